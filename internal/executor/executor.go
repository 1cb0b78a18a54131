// Package executor implements the top-level driver from §4.6: given a
// queue and a function that runs one item to completion, it dispatches
// admitted items to a bounded worker pool, listens for interactive
// status/shutdown keystrokes, enforces a session wall-clock timeout,
// and on return computes the process exit code from every item's
// terminal status.
package executor

import (
	"context"
	"time"

	"github.com/gruntwork-io/canary/internal/clog"
	canaryerrors "github.com/gruntwork-io/canary/internal/errors"
	"github.com/gruntwork-io/canary/internal/keyboard"
	"github.com/gruntwork-io/canary/internal/queue"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/worker"
	"golang.org/x/sync/errgroup"
)

// RunFunc executes one admitted item to completion and returns its
// terminal status. Cancelling ctx must make RunFunc return promptly
// (§4.4's runner honors context cancellation through procexec).
type RunFunc func(ctx context.Context, item queue.Item) (status.Status, string)

// busyPollInterval is §4.6 step 3's "Busy → sleep 5 ms, continue".
const busyPollInterval = 5 * time.Millisecond

// Executor drives one Queue to completion.
type Executor struct {
	Queue          *queue.Queue
	Run            RunFunc
	Workers        int
	SessionTimeout time.Duration
	Log            *clog.Logger
	Keys           *keyboard.Reader
}

// Execute runs the dispatch loop until the queue drains or a
// cancellation condition (ctx, fail-fast, session timeout) fires, then
// returns the §6 exit-code bitmask computed over every item's final
// status.
func (e *Executor) Execute(parent context.Context) (int, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	pool := worker.NewWorkerPool(workerCount(e.Workers))
	defer pool.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if e.SessionTimeout > 0 {
		g.Go(func() error { return e.watchSessionTimeout(gctx, cancel) })
	}

	g.Go(func() error { return e.dispatch(gctx, pool, cancel) })

	err := g.Wait()

	// Every in-flight task must reach its Queue.Done() call before
	// Close inspects bucket state, or Close could mark a case
	// cancelled that is, at that exact moment, calling Done itself.
	_ = pool.Wait()

	cleanup := err == nil
	e.Queue.Close(cleanup)

	return status.Rollup(snapshotStatuses(e.Queue)), err
}

// watchSessionTimeout races the dispatch loop: whichever fires first
// cancels gctx for the other. A clean dispatch completion cancels this
// goroutine's own timer via ctx.Done() before it ever fires.
func (e *Executor) watchSessionTimeout(ctx context.Context, cancel context.CancelFunc) error {
	timer := time.NewTimer(e.SessionTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
		cancel()
		return &canaryerrors.SessionTimeoutError{Timeout: e.SessionTimeout.String()}
	}
}

// dispatch is §4.6 step 3's loop body. It always cancels ctx before
// returning, win or lose, so watchSessionTimeout's race stops as soon
// as the queue drains instead of running until the session timeout.
func (e *Executor) dispatch(ctx context.Context, pool *worker.Pool, cancel context.CancelFunc) error {
	defer cancel()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.handleKeys(cancel)

		result := e.Queue.Get()

		switch result.Kind {
		case queue.Busy:
			time.Sleep(busyPollInterval)
			continue
		case queue.Empty:
			return nil
		case queue.KindFailFast:
			cancel()
			return &canaryerrors.FailFast{}
		}

		item, iid := result.Item, result.IID

		pool.Submit(func() error {
			st, detail := e.Run(ctx, item)
			e.Queue.Done(iid, st, detail)

			return nil
		})
	}
}

// handleKeys drains any keystrokes read so far without blocking: s/S
// logs the current status line, q/Q requests a graceful shutdown.
func (e *Executor) handleKeys(cancel context.CancelFunc) {
	if e.Keys == nil {
		return
	}

	for {
		select {
		case k, ok := <-e.Keys.Keys():
			if !ok {
				return
			}

			switch k {
			case 's', 'S':
				if e.Log != nil {
					e.Log.Infof("%s", e.Queue.StatusLine())
				}
			case 'q', 'Q':
				cancel()
			}
		default:
			return
		}
	}
}

func workerCount(n int) int {
	if n < 1 {
		return 1
	}

	return n
}

func snapshotStatuses(q *queue.Queue) []status.Status {
	items := q.Items()

	statuses := make([]status.Status, len(items))
	for i, item := range items {
		st, _ := item.SnapshotStatus()
		statuses[i] = st
	}

	return statuses
}
