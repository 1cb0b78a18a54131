package batchrunner

import (
	"context"
	"path/filepath"

	"github.com/gruntwork-io/canary/internal/clog"
	canaryerrors "github.com/gruntwork-io/canary/internal/errors"
	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
)

// StatusSource refreshes a case's runtime status from whatever
// persisted it while the batch's job ran — the session repository's
// on-disk case records, once a job resubmits the tool against this
// work tree. Nil is valid: a caller with no persistence layer wired up
// yet (or a backend, like ShellBackend, that never leaves the process)
// skips the refresh and works from in-memory state alone.
type StatusSource interface {
	Refresh(c *testcase.TestCase) error
}

// BatchRunner drives one TestBatch through the scheduled-execution
// path described in §4.5.
type BatchRunner struct {
	Pool        *respool.Pool
	Backend     SchedulerBackend
	Log         *clog.Logger
	StagingDir  string
	SelfCommand []string
	Status      StatusSource
	Mode        ExecutionMode
}

// Run composes the batch's job, submits it, waits for completion, and
// reconciles every case's terminal status. It returns nil both for a
// job that ran and failed and for a submission the backend rejected
// (which marks the batch's ready/pending cases not_run); case-level
// outcomes live entirely in each case's Status field afterward.
//
// When Mode is Isolate and the backend supports subscheduling, each
// case gets its own sub-job and wallclock budget instead of sharing
// the batch's combined job.
func (r *BatchRunner) Run(ctx context.Context, batch *testcase.TestBatch) error {
	if r.Mode == Isolate && r.Backend.Isolatable() {
		return r.runIsolated(ctx, batch)
	}

	stagingDir := filepath.Join(r.StagingDir, batch.ID)

	command := ReinvocationCommand(r.SelfCommand, batch.ID)
	job := ComposeJob(batch, stagingDir, command)

	if err := WriteConfigStub(filepath.Join(stagingDir, "config"), job, caseIDs(batch), r.Pool, batch.GetAcquisition()); err != nil {
		r.failSubmission(batch, err)
		return nil
	}

	handle, err := r.Backend.Submit(ctx, job)
	if err != nil {
		r.failSubmission(batch, err)
		return nil
	}

	if err := r.Backend.Wait(ctx, handle); err != nil {
		r.failSubmission(batch, err)
		return nil
	}

	r.reconcile(batch)

	return nil
}

// runIsolated submits one sub-job per case instead of one combined job
// for the whole batch. Each case's sub-job only ever masks that one
// case, so a per-case submission failure only takes down that case.
func (r *BatchRunner) runIsolated(ctx context.Context, batch *testcase.TestBatch) error {
	for _, c := range batch.Cases {
		sub := &testcase.TestBatch{ID: batch.ID + "." + c.ID, Cases: []*testcase.TestCase{c}}

		stagingDir := filepath.Join(r.StagingDir, batch.ID, c.ID)
		command := ReinvocationCommand(r.SelfCommand, sub.ID)
		job := ComposeJob(sub, stagingDir, command)

		if err := WriteConfigStub(filepath.Join(stagingDir, "config"), job, []string{c.ID}, r.Pool, c.GetAcquisition()); err != nil {
			r.failSubmission(sub, err)
			continue
		}

		handle, err := r.Backend.Submit(ctx, job)
		if err != nil {
			r.failSubmission(sub, err)
			continue
		}

		if err := r.Backend.Wait(ctx, handle); err != nil {
			r.failSubmission(sub, err)
			continue
		}

		r.reconcile(sub)
	}

	return nil
}

// failSubmission marks every ready/pending case in the batch not_run,
// per §4.5's "scheduler submission failure" step.
func (r *BatchRunner) failSubmission(batch *testcase.TestBatch, cause error) {
	if r.Log != nil {
		r.Log.WithCase(batch.ID).Errorf("batch submission failed: %v", cause)
	}

	reason := (&canaryerrors.SubmissionFailed{BatchID: batch.ID, Reason: cause.Error()}).Error()

	for _, c := range batch.Cases {
		st, _ := c.SnapshotStatus()
		if st == status.Created || st == status.Pending || st == status.Ready {
			c.SetStatus(status.NotRun, reason)
		}
	}

	batch.Status, batch.Detail = status.NotRun, reason
}

// reconcile applies §4.5's post-completion rules: refresh each case
// from its persisted record if a StatusSource is wired, then resolve
// whatever didn't make it to a terminal status on its own.
func (r *BatchRunner) reconcile(batch *testcase.TestBatch) {
	for _, c := range batch.Cases {
		if r.Status != nil {
			if err := r.Status.Refresh(c); err != nil && r.Log != nil {
				r.Log.WithCase(c.ID).Warnf("could not refresh case status: %v", err)
			}
		}

		st, _ := c.SnapshotStatus()

		switch st {
		case status.Running:
			c.SetStatus(status.Cancelled, "case failed to stop")
		case status.Ready, status.Pending, status.Created:
			c.SetStatus(status.NotRun, "case failed to start")
		}
	}
}

func caseIDs(batch *testcase.TestBatch) []string {
	ids := make([]string, len(batch.Cases))
	for i, c := range batch.Cases {
		ids[i] = c.ID
	}

	return ids
}
