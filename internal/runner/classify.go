package runner

import (
	"fmt"
	"time"

	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
)

// Well-known child exit codes (§6): a case that does not declare an
// explicit expected_exit is classified against these.
const (
	DiffCode    = 64
	FailCode    = 65
	TimeoutCode = 66
	SkipCode    = 63
)

// Classify implements §4.4 step 5: map a terminated case's returncode
// (plus whether it was killed on timeout or interrupted) to its
// terminal status, given what the case declared it expected.
//
// Open Question (a): a negative expected_exit integer is treated
// identically to the "fail" string sentinel (ExpectFail) — both mean
// "any non-zero exit counts as the expected failure". Classify makes the
// decision itself: its ExpectExactInt branch checks Exact<0 and returns
// the same outcomes as the ExpectFail branch.
func Classify(exp testcase.ExpectedExit, returncode int, timedOut, interrupted bool, timeout time.Duration) (status.Status, string) {
	if timedOut {
		return status.Timeout, fmt.Sprintf("exceeded timeout budget of %.2fs", timeout.Seconds())
	}

	switch exp.Kind {
	case testcase.ExpectDiff:
		if returncode == DiffCode {
			return status.XDiff, ""
		}

		return status.Failed, "expected diff exit code"

	case testcase.ExpectFail:
		if returncode != 0 {
			return status.XFail, ""
		}

		return status.Failed, "expected a non-zero exit"

	case testcase.ExpectExactInt:
		if exp.Exact < 0 {
			if returncode != 0 {
				return status.XFail, ""
			}

			return status.Failed, "expected a non-zero exit"
		}

		if returncode == exp.Exact {
			return status.XFail, ""
		}

		return status.Failed, "exit code did not match expected_exit"

	default: // ExpectDefault
		if interrupted {
			return status.Cancelled, "interrupted"
		}

		switch returncode {
		case 0:
			return status.Success, ""
		case DiffCode:
			return status.Diffed, ""
		case SkipCode:
			return status.Skipped, ""
		case FailCode:
			return status.Failed, ""
		case TimeoutCode:
			return status.Timeout, ""
		default:
			if returncode != 0 {
				return status.Failed, ""
			}

			return status.Success, ""
		}
	}
}
