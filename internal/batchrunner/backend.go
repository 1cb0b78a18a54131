package batchrunner

import (
	"context"
	"os"

	"github.com/gruntwork-io/canary/internal/procexec"
)

// Handle identifies a submitted job to its backend for a later Wait.
type Handle struct {
	ID   string
	done <-chan error
}

// SchedulerBackend submits a Job to an external scheduler and waits
// for it to finish. Submit returning an error is §4.5's "scheduler
// submission failure" case: the job never started running at all.
type SchedulerBackend interface {
	Submit(ctx context.Context, job Job) (Handle, error)
	Wait(ctx context.Context, h Handle) error
	// Isolatable reports whether this backend supports one sub-job per
	// case (§4.5's isolate execution mode).
	Isolatable() bool
}

// ShellBackend runs a job's command directly on the local machine via
// internal/procexec, with no external scheduler in the loop. It is the
// default backend, and the only one with no "not wired" caveat: every
// other backend (slurm, pbs) needs a scheduler binary this environment
// doesn't carry.
type ShellBackend struct{}

var _ SchedulerBackend = ShellBackend{}

// Submit starts job.Command and returns once the process is launched;
// Wait blocks for it to exit. A non-zero exit is not a submission
// failure — the job ran, and per-case reconciliation decides what that
// means for each case. Submit only fails if the process never started.
func (ShellBackend) Submit(ctx context.Context, job Job) (Handle, error) {
	stdout, err := os.Create(job.OutputPath)
	if err != nil {
		return Handle{}, err
	}

	stderr, err := os.Create(job.ErrorPath)
	if err != nil {
		stdout.Close()
		return Handle{}, err
	}

	if len(job.Command) == 0 {
		stdout.Close()
		stderr.Close()

		done := make(chan error, 1)
		done <- nil

		return Handle{ID: job.Name, done: done}, nil
	}

	cmd := procexec.Command(ctx, job.Command[0], job.Command[1:]...)
	cmd.Configure(
		procexec.WithDir(job.Dir),
		procexec.WithStdout(stdout),
		procexec.WithStderr(stderr),
	)

	done := make(chan error, 1)

	go func() {
		defer stdout.Close()
		defer stderr.Close()

		done <- cmd.Run()
	}()

	return Handle{ID: job.Name, done: done}, nil
}

// Wait blocks until the job's process exits. A clean non-zero exit
// (*exec.ExitError) is reported as success: the job completed and the
// batch's reconciliation step is what classifies individual cases.
// Anything else (the process couldn't be waited on at all) is a real
// failure.
func (ShellBackend) Wait(ctx context.Context, h Handle) error {
	if h.done == nil {
		return nil
	}

	select {
	case err := <-h.done:
		if err == nil {
			return nil
		}

		if _, convErr := procexec.ExitCode(err); convErr == nil {
			return nil
		}

		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ShellBackend) Isolatable() bool { return false }

// SlurmBackend and PBSBackend are not implemented: neither scheduler's
// client binary is available in this environment to ground a real
// submit/wait/query cycle against, and fabricating one from imagined
// CLI output would not be grounded in anything observed. A future
// backend only needs to satisfy SchedulerBackend above.
