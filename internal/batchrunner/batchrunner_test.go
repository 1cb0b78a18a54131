package batchrunner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gruntwork-io/canary/internal/batchrunner"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatch(t *testing.T, n int, timeoutSec float64) *testcase.TestBatch {
	t.Helper()

	cases := make([]*testcase.TestCase, n)
	for i := range cases {
		c := &testcase.TestCase{ID: "case-" + string(rune('a'+i)), TimeoutSec: timeoutSec}
		c.SetStatus(status.Pending, "")
		c.SetStatus(status.Ready, "")
		cases[i] = c
	}

	return &testcase.TestBatch{ID: "batch-1", Cases: cases}
}

type fakeBackend struct {
	submitErr error
	waitErr   error
	isolate   bool
}

func (f *fakeBackend) Submit(ctx context.Context, job batchrunner.Job) (batchrunner.Handle, error) {
	if f.submitErr != nil {
		return batchrunner.Handle{}, f.submitErr
	}

	return batchrunner.Handle{ID: job.Name}, nil
}

func (f *fakeBackend) Wait(ctx context.Context, h batchrunner.Handle) error { return f.waitErr }
func (f *fakeBackend) Isolatable() bool                                    { return f.isolate }

type fakeStatusSource struct {
	set map[string]status.Status
}

func (f *fakeStatusSource) Refresh(c *testcase.TestCase) error {
	if next, ok := f.set[c.ID]; ok {
		st, _ := c.SnapshotStatus()
		if st == status.Ready {
			c.SetStatus(status.Running, "")
		}

		c.SetStatus(next, "refreshed")
	}

	return nil
}

func TestRunMarksCasesNotRunOnSubmissionFailure(t *testing.T) {
	t.Parallel()

	batch := newBatch(t, 2, 10)
	r := &batchrunner.BatchRunner{
		Backend:     &fakeBackend{submitErr: errors.New("scheduler unreachable")},
		StagingDir:  t.TempDir(),
		SelfCommand: []string{"canary", "run"},
	}

	require.NoError(t, r.Run(context.Background(), batch))

	for _, c := range batch.Cases {
		st, detail := c.SnapshotStatus()
		assert.Equal(t, status.NotRun, st)
		assert.Contains(t, detail, "submission failed")
	}
}

func TestRunMarksCasesNotRunOnWaitFailure(t *testing.T) {
	t.Parallel()

	batch := newBatch(t, 1, 10)
	r := &batchrunner.BatchRunner{
		Backend:     &fakeBackend{waitErr: errors.New("job vanished")},
		StagingDir:  t.TempDir(),
		SelfCommand: []string{"canary", "run"},
	}

	require.NoError(t, r.Run(context.Background(), batch))

	st, _ := batch.Cases[0].SnapshotStatus()
	assert.Equal(t, status.NotRun, st)
}

func TestRunReconcilesStillReadyCaseAsNotRun(t *testing.T) {
	t.Parallel()

	batch := newBatch(t, 1, 10)
	r := &batchrunner.BatchRunner{
		Backend:     &fakeBackend{},
		StagingDir:  t.TempDir(),
		SelfCommand: []string{"canary", "run"},
	}

	require.NoError(t, r.Run(context.Background(), batch))

	st, detail := batch.Cases[0].SnapshotStatus()
	assert.Equal(t, status.NotRun, st)
	assert.Equal(t, "case failed to start", detail)
}

func TestRunReconcilesStillRunningCaseAsCancelled(t *testing.T) {
	t.Parallel()

	batch := newBatch(t, 1, 10)

	src := &fakeStatusSource{set: map[string]status.Status{"case-a": status.Running}}

	r := &batchrunner.BatchRunner{
		Backend:     &fakeBackend{},
		StagingDir:  t.TempDir(),
		SelfCommand: []string{"canary", "run"},
		Status:      src,
	}

	require.NoError(t, r.Run(context.Background(), batch))

	st, detail := batch.Cases[0].SnapshotStatus()
	assert.Equal(t, status.Cancelled, st)
	assert.Equal(t, "case failed to stop", detail)
}

func TestRunPreservesSuccessfulCaseFromStatusSource(t *testing.T) {
	t.Parallel()

	batch := newBatch(t, 1, 10)

	src := &fakeStatusSource{set: map[string]status.Status{"case-a": status.Success}}

	r := &batchrunner.BatchRunner{
		Backend:     &fakeBackend{},
		StagingDir:  t.TempDir(),
		SelfCommand: []string{"canary", "run"},
		Status:      src,
	}

	require.NoError(t, r.Run(context.Background(), batch))

	st, _ := batch.Cases[0].SnapshotStatus()
	assert.Equal(t, status.Success, st)
}

func TestComposeJobAppliesWallclockFloorForSmallBatches(t *testing.T) {
	t.Parallel()

	batch := newBatch(t, 1, 1)
	job := batchrunner.ComposeJob(batch, t.TempDir(), nil)

	assert.GreaterOrEqual(t, job.WallclockLimit, 5*time.Minute)
}

func TestComposeJobScalesWallclockWithRuntimeEstimate(t *testing.T) {
	t.Parallel()

	batch := newBatch(t, 2, 600)
	job := batchrunner.ComposeJob(batch, t.TempDir(), nil)

	assert.Greater(t, job.WallclockLimit, 20*time.Minute)
}

func TestReinvocationCommandGuardsAgainstResubmission(t *testing.T) {
	t.Parallel()

	cmd := batchrunner.ReinvocationCommand([]string{"canary", "run"}, "batch-1")
	assert.Contains(t, cmd, "scheduler=null")
	assert.Contains(t, cmd, "^batch-1")
}

func TestShellBackendRunsJobToCompletion(t *testing.T) {
	t.Parallel()

	backend := batchrunner.ShellBackend{}

	batch := newBatch(t, 1, 5)
	job := batchrunner.ComposeJob(batch, t.TempDir(), []string{"true"})

	handle, err := backend.Submit(context.Background(), job)
	require.NoError(t, err)
	require.NoError(t, backend.Wait(context.Background(), handle))
}
