package report_test

import (
	"strings"
	"testing"

	"github.com/gruntwork-io/canary/internal/report"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terminal(id string, st status.Status, detail string) *testcase.TestCase {
	c := &testcase.TestCase{ID: id, DisplayName: id, Status: st, Detail: detail}
	return c
}

func TestGroupedOrdersSuccessBeforeFailureBeforeSkip(t *testing.T) {
	t.Parallel()

	cases := []*testcase.TestCase{
		terminal("skip-case", status.Skipped, "dependency failed"),
		terminal("fail-case", status.Failed, "boom"),
		terminal("pass-case", status.Success, ""),
	}

	var buf strings.Builder
	require.NoError(t, report.Grouped{}.Report(&buf, cases))

	out := buf.String()
	assert.Less(t, strings.Index(out, "pass-case"), strings.Index(out, "fail-case"))
	assert.Less(t, strings.Index(out, "fail-case"), strings.Index(out, "skip-case"))
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "dependency failed")
}
