// Package batchrunner implements the Batch Runner from §4.5: it groups
// a dependency-closed set of cases into a single external-scheduler
// job, submits it, waits for it to finish, and reconciles every case's
// terminal status from whatever the job actually did.
package batchrunner

import (
	"math"
	"path/filepath"
	"time"

	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/testcase"
)

// ExecutionMode selects how a batch's cases share (or don't share) the
// job the scheduler runs.
type ExecutionMode int

const (
	// Sequential runs every case cooperatively inside one combined job.
	Sequential ExecutionMode = iota
	// Isolate gives each case its own sub-job and wallclock budget,
	// when the backend supports subscheduling.
	Isolate
)

// wallclockMultiplier is the "generous multiplier" §4.5 asks for
// without pinning a number; chosen generous enough to absorb scheduler
// queueing delay on top of the cases' own timeouts.
const wallclockMultiplier = 2.0

// minWallclock is the step-function floor for small batches: a batch
// of a couple of short cases still gets enough wallclock to survive
// scheduler startup and teardown overhead.
const minWallclock = 5 * time.Minute

// Job is a composed job description, ready to hand to a
// SchedulerBackend.
type Job struct {
	Name           string
	Dir            string
	OutputPath     string
	ErrorPath      string
	WallclockLimit time.Duration
	TaskCount      int
	Command        []string
}

// ComposeJob builds the job description for batch, per §4.5: a name,
// output/error paths under stagingDir, a wallclock limit derived from
// the batch's runtime estimate, and a task count equal to the batch's
// maximum per-type CPU demand.
func ComposeJob(batch *testcase.TestBatch, stagingDir string, command []string) Job {
	estimate := batch.RuntimeEstimate()

	wallclock := time.Duration(estimate*wallclockMultiplier) * time.Second
	if wallclock < minWallclock {
		wallclock = minWallclock
	}

	return Job{
		Name:           batch.ID,
		Dir:            stagingDir,
		OutputPath:     filepath.Join(stagingDir, batch.ID+".out"),
		ErrorPath:      filepath.Join(stagingDir, batch.ID+".err"),
		WallclockLimit: wallclock,
		TaskCount:      taskCount(batch),
		Command:        command,
	}
}

// taskCount is the maximum CPU demand across the batch's cases, the
// one-task-per-CPU-slot allocation §4.5 asks the scheduler to reserve.
func taskCount(batch *testcase.TestBatch) int {
	demand := batch.Demand()

	slots := 0

	for _, group := range demand.Groups {
		for _, item := range group {
			if item.Type == respool.CPUType && item.Slots > slots {
				slots = item.Slots
			}
		}
	}

	return int(math.Max(1, float64(slots)))
}

// ReinvocationCommand constructs the command that resubmits this same
// work tree to the batch's own selector, guarded against infinite
// re-submission by forcing scheduler=null. base is the canary
// executable invocation the caller would otherwise use (e.g.
// []string{os.Args[0], "run"}).
func ReinvocationCommand(base []string, batchID string) []string {
	cmd := make([]string, len(base), len(base)+3)
	copy(cmd, base)

	return append(cmd,
		"-b", "scheduler=null",
		"^"+batchID,
	)
}
