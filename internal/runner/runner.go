// Package runner implements the single-process Test Case Runner from
// §4.4: stage a working directory, apply environment mods, spawn the
// case's child process, poll it to completion while sampling resource
// metrics, and classify the terminal outcome.
package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gruntwork-io/canary/internal/clog"
	canaryerrors "github.com/gruntwork-io/canary/internal/errors"
	"github.com/gruntwork-io/canary/internal/procexec"
	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
)

// DefaultPollInterval is the §4.4 step 4 poll period.
const DefaultPollInterval = 50 * time.Millisecond

// Result is everything the runner learned about one case's execution,
// for the caller (the executor loop, via the session repository) to
// persist.
type Result struct {
	Status      status.Status
	Detail      string
	ReturnCode  int
	StartTS     time.Time
	StopTS      time.Time
	Measurement Measurement
	StdoutPath  string
	StderrPath  string
}

// Runner executes test cases directly on the local machine. A single
// Runner must only ever have one case in flight at a time; the run
// command builds a fresh Runner for every case it dispatches.
type Runner struct {
	Pool              *respool.Pool
	Log               *clog.Logger
	PollInterval      time.Duration
	TimeoutMultiplier float64

	measurement Measurement // scratch state for the in-flight poll, see poll()
}

// New returns a Runner with the §4.4 defaults.
func New(pool *respool.Pool, log *clog.Logger) *Runner {
	return &Runner{
		Pool:              pool,
		Log:               log,
		PollInterval:      DefaultPollInterval,
		TimeoutMultiplier: 1.0,
	}
}

// Run executes c to completion (or until ctx is cancelled) and returns
// its result. It does not itself persist anything; the caller owns
// §4.4 step 6's persistence and log concatenation.
func (r *Runner) Run(ctx context.Context, c *testcase.TestCase) Result {
	start := time.Now()
	c.StartTS = start

	workDir := c.WorkingDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "canary-"+c.ID)
	}

	if err := os.RemoveAll(workDir); err != nil {
		return r.terminal(c, status.Failed, "could not clean working directory: "+err.Error(), 0, start, Measurement{}, "", "")
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return r.terminal(c, status.Failed, "could not create working directory: "+err.Error(), 0, start, Measurement{}, "", "")
	}

	c.WorkingDir = workDir

	for _, a := range c.Assets {
		if err := stageAsset(workDir, a); err != nil {
			var missing *canaryerrors.MissingSource
			if errors.As(err, &missing) {
				return r.terminal(c, status.Skipped, err.Error(), 0, start, Measurement{}, "", "")
			}

			return r.terminal(c, status.Failed, err.Error(), 0, start, Measurement{}, "", "")
		}
	}

	env := buildEnv(c.EnvironmentMods, c.ResourcesHeld, r.Pool, workDir)

	stdoutPath := filepath.Join(workDir, "stdout.log")
	stderrPath := filepath.Join(workDir, "stderr.log")

	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return r.terminal(c, status.Failed, "could not open stdout log: "+err.Error(), 0, start, Measurement{}, "", "")
	}
	defer stdout.Close()

	stderr, err := os.Create(stderrPath)
	if err != nil {
		return r.terminal(c, status.Failed, "could not open stderr log: "+err.Error(), 0, start, Measurement{}, stdoutPath, "")
	}
	defer stderr.Close()

	multiplier := r.TimeoutMultiplier
	if multiplier <= 0 {
		multiplier = 1.0
	}

	timeout := time.Duration(c.TimeoutSec * multiplier * float64(time.Second))

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := procexec.Command(runCtx, c.FilePath)
	cmd.Configure(
		procexec.WithDir(workDir),
		procexec.WithEnv(env),
		procexec.WithStdout(stdout),
		procexec.WithStderr(stderr),
	)

	runErr := r.poll(cmd)

	timedOut := runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
	interrupted := !timedOut && ctx.Err() != nil

	returncode, convErr := procexec.ExitCode(runErr)
	if convErr != nil {
		return r.terminal(c, status.Failed, convErr.Error(), returncode, start, r.measurement, stdoutPath, stderrPath)
	}

	st, detail := Classify(c.ExpectedExit, returncode, timedOut, interrupted, timeout)

	if timedOut {
		returncode = TimeoutCode
	}

	return r.terminal(c, st, detail, returncode, start, r.measurement, stdoutPath, stderrPath)
}

// poll runs cmd to completion while sampling its process metrics every
// PollInterval, per §4.4 step 4. It stashes the accumulated
// measurement on the runner for Run to pick up — Run and poll are
// always called from the same goroutine for a given case, so this is
// safe without extra synchronization.
func (r *Runner) poll(cmd *procexec.Cmd) error {
	r.measurement = Measurement{}

	done := make(chan error, 1)

	go func() { done <- cmd.Run() }()

	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			if proc := cmd.Process(); proc != nil {
				r.measurement.sample(int32(proc.Pid))
			}
		}
	}
}

func (r *Runner) terminal(
	c *testcase.TestCase,
	st status.Status,
	detail string,
	returncode int,
	start time.Time,
	m Measurement,
	stdoutPath, stderrPath string,
) Result {
	stop := time.Now()

	c.ReturnCode = returncode
	c.StopTS = stop
	c.SetStatus(st, detail)

	if r.Log != nil {
		r.Log.WithCase(c.ID).Infof("case finished: status=%s returncode=%d detail=%q", st, returncode, detail)
	}

	return Result{
		Status:      st,
		Detail:      detail,
		ReturnCode:  returncode,
		StartTS:     start,
		StopTS:      stop,
		Measurement: m,
		StdoutPath:  stdoutPath,
		StderrPath:  stderrPath,
	}
}
