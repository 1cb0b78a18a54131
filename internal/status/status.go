// Package status defines the lifecycle tag carried by every test case
// and batch, and the forward-only state machine it obeys.
package status

// Status is a discriminated lifecycle tag. The zero value is Created.
type Status int

const (
	Created Status = iota
	Pending
	Ready
	Running
	Retry
	Success
	XFail
	XDiff
	Diffed
	Failed
	Timeout
	Skipped
	Cancelled
	NotRun
)

var names = map[Status]string{
	Created:   "created",
	Pending:   "pending",
	Ready:     "ready",
	Running:   "running",
	Retry:     "retry",
	Success:   "success",
	XFail:     "xfail",
	XDiff:     "xdiff",
	Diffed:    "diffed",
	Failed:    "failed",
	Timeout:   "timeout",
	Skipped:   "skipped",
	Cancelled: "cancelled",
	NotRun:    "not_run",
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}

	return "unknown"
}

// Terminal reports whether s is one of the statuses a case cannot leave.
func (s Status) Terminal() bool {
	switch s {
	case Success, XFail, XDiff, Diffed, Failed, Timeout, Skipped, Cancelled, NotRun:
		return true
	default:
		return false
	}
}

// Family groups terminal statuses for exit-code roll-up and report
// grouping purposes.
type Family int

const (
	FamilyUnknown Family = iota
	FamilySuccess
	FamilyFailure
	FamilySkip
)

// Family classifies a terminal status. xdiff and xfail are successes:
// the case behaved exactly as declared. Non-terminal statuses classify
// as FamilyUnknown.
func (s Status) Family() Family {
	switch s {
	case Success, XFail, XDiff:
		return FamilySuccess
	case Diffed, Failed, Timeout:
		return FamilyFailure
	case Skipped, NotRun, Cancelled:
		return FamilySkip
	default:
		return FamilyUnknown
	}
}

// transitions enumerates every legal (from, to) pair. Created may move
// to Pending, Ready, Skipped or NotRun; Pending to Ready, Skipped or
// NotRun; Ready to Running, Skipped or NotRun; Running to Retry or to
// any terminal status except NotRun; Retry back to Ready or on to
// Failed; every terminal status is final.
var transitions = map[Status]map[Status]bool{
	Created: {Pending: true, Ready: true, Skipped: true, NotRun: true},
	Pending: {Ready: true, Skipped: true, NotRun: true},
	Ready:   {Running: true, Skipped: true, NotRun: true},
	Running: {
		Success: true, XFail: true, XDiff: true, Diffed: true,
		Failed: true, Timeout: true, Skipped: true, Cancelled: true,
		Retry: true,
	},
	Retry: {Ready: true, Failed: true},
}

// CanTransitionTo reports whether moving from s to next is legal under
// the forward-only state machine in spec §3.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}

	return transitions[s][next]
}
