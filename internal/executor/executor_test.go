package executor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gruntwork-io/canary/internal/depgraph"
	"github.com/gruntwork-io/canary/internal/executor"
	"github.com/gruntwork-io/canary/internal/queue"
	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItem struct {
	id   string
	deps []string
	st   status.Status
	acq  *respool.Acquisition
}

func (f *fakeItem) NodeID() string          { return f.id }
func (f *fakeItem) DependencyIDs() []string { return f.deps }

func (f *fakeItem) DepEdges() []depgraph.Edge {
	edges := make([]depgraph.Edge, len(f.deps))
	for i, d := range f.deps {
		edges[i] = depgraph.Edge{DependencyID: d, Expect: depgraph.Expectation{Kind: depgraph.ExpectAny}}
	}

	return edges
}

func (f *fakeItem) Demand() respool.Request {
	return respool.Request{Groups: [][]respool.RequestItem{{{Type: respool.CPUType, Slots: 1}}}}
}

func (f *fakeItem) IsExclusive() bool      { return false }
func (f *fakeItem) QueuePriority() float64 { return 0 }

func (f *fakeItem) SetStatus(next status.Status, detail string) bool {
	if !f.st.CanTransitionTo(next) {
		return false
	}

	f.st = next

	return true
}

func (f *fakeItem) SnapshotStatus() (status.Status, string)     { return f.st, "" }
func (f *fakeItem) IsMasked() bool                               { return false }
func (f *fakeItem) SetMask(string)                               {}
func (f *fakeItem) SetAcquisition(a *respool.Acquisition)         { f.acq = a }
func (f *fakeItem) GetAcquisition() *respool.Acquisition          { return f.acq }

func onePool(t *testing.T, cpus int) *respool.Pool {
	t.Helper()

	p := respool.New()
	require.NoError(t, p.Fill([]respool.NodeSpec{
		{ID: "n1", Resources: map[string][]respool.InstanceSpec{
			respool.CPUType: {{LocalID: "0", Slots: cpus}},
		}},
	}))

	return p
}

func TestExecuteRunsEveryItemToSuccess(t *testing.T) {
	t.Parallel()

	pool := onePool(t, 4)
	q := queue.New(pool, true, false)

	q.Put(&fakeItem{id: "a"})
	q.Put(&fakeItem{id: "b"})
	q.Put(&fakeItem{id: "c"})

	var ran int32

	e := &executor.Executor{
		Queue:   q,
		Workers: 2,
		Run: func(ctx context.Context, item queue.Item) (status.Status, string) {
			atomic.AddInt32(&ran, 1)
			return status.Success, ""
		},
	}

	code, err := e.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.EqualValues(t, 3, ran)
}

func TestExecuteRollsUpFailureBit(t *testing.T) {
	t.Parallel()

	pool := onePool(t, 4)
	q := queue.New(pool, true, false)
	q.Put(&fakeItem{id: "a"})

	e := &executor.Executor{
		Queue:   q,
		Workers: 1,
		Run: func(ctx context.Context, item queue.Item) (status.Status, string) {
			return status.Failed, "boom"
		},
	}

	code, err := e.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, code)
}

func TestExecuteStopsOnFailFast(t *testing.T) {
	t.Parallel()

	pool := onePool(t, 4)
	q := queue.New(pool, true, true)
	q.Put(&fakeItem{id: "a"})
	q.Put(&fakeItem{id: "b"})

	var ranB int32

	e := &executor.Executor{
		Queue:   q,
		Workers: 1,
		Run: func(ctx context.Context, item queue.Item) (status.Status, string) {
			if item.NodeID() == "a" {
				return status.Failed, "boom"
			}

			atomic.AddInt32(&ranB, 1)

			return status.Success, ""
		},
	}

	_, err := e.Execute(context.Background())
	require.Error(t, err)
}

func TestExecuteHonorsSessionTimeout(t *testing.T) {
	t.Parallel()

	pool := onePool(t, 1)
	q := queue.New(pool, true, false)
	q.Put(&fakeItem{id: "a"})

	started := make(chan struct{})

	e := &executor.Executor{
		Queue:          q,
		Workers:        1,
		SessionTimeout: 20 * time.Millisecond,
		Run: func(ctx context.Context, item queue.Item) (status.Status, string) {
			close(started)
			<-ctx.Done()
			return status.Cancelled, "cancelled"
		},
	}

	_, err := e.Execute(context.Background())
	require.Error(t, err)

	select {
	case <-started:
	default:
		t.Fatal("expected the run function to have started")
	}
}
