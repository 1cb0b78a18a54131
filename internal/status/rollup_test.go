package status_test

import (
	"testing"

	"github.com/gruntwork-io/canary/internal/status"
	"github.com/stretchr/testify/assert"
)

func TestRollupIsZeroOnFullSuccess(t *testing.T) {
	t.Parallel()

	code := status.Rollup([]status.Status{status.Success, status.XFail, status.XDiff})
	assert.Equal(t, 0, code)
}

func TestRollupSetsEachBitIndependently(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, status.Rollup([]status.Status{status.Diffed}))
	assert.Equal(t, 2, status.Rollup([]status.Status{status.Failed}))
	assert.Equal(t, 4, status.Rollup([]status.Status{status.Timeout}))
	assert.Equal(t, 8, status.Rollup([]status.Status{status.Skipped}))
	assert.Equal(t, 8, status.Rollup([]status.Status{status.NotRun}))
	assert.Equal(t, 16, status.Rollup([]status.Status{status.Cancelled}))
	assert.Equal(t, 16, status.Rollup([]status.Status{status.Ready}))
}

func TestRollupCombinesMultipleBits(t *testing.T) {
	t.Parallel()

	code := status.Rollup([]status.Status{status.Failed, status.Skipped, status.Skipped})
	assert.Equal(t, 2|8, code)
}

func TestRollupSkippedAndNotRunShareBit4(t *testing.T) {
	t.Parallel()

	withSkipped := status.Rollup([]status.Status{status.Skipped})
	withNotRun := status.Rollup([]status.Status{status.NotRun})
	assert.Equal(t, withSkipped, withNotRun)
}
