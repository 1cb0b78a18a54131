package respool_test

import (
	"testing"

	"github.com/gruntwork-io/canary/internal/errors"
	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoNodePool(t *testing.T) *respool.Pool {
	t.Helper()

	pool := respool.New()
	err := pool.Fill([]respool.NodeSpec{
		{
			ID: "node-a",
			Resources: map[string][]respool.InstanceSpec{
				respool.CPUType: {{LocalID: "0", Slots: 2}, {LocalID: "1", Slots: 4}},
				respool.GPUType: {{LocalID: "0", Slots: 1}},
			},
		},
		{
			ID: "node-b",
			Resources: map[string][]respool.InstanceSpec{
				respool.CPUType: {{LocalID: "0", Slots: 4}},
			},
		},
	})
	require.NoError(t, err)

	return pool
}

func TestFillRejectsMissingCPUs(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	err := pool.Fill([]respool.NodeSpec{{ID: "n", Resources: map[string][]respool.InstanceSpec{}}})
	require.Error(t, err)

	var invalid *errors.InvalidPool
	assert.ErrorAs(t, err, &invalid)
}

func TestFillRejectsDuplicateLocalID(t *testing.T) {
	t.Parallel()

	pool := respool.New()
	err := pool.Fill([]respool.NodeSpec{{
		ID: "n",
		Resources: map[string][]respool.InstanceSpec{
			respool.CPUType: {{LocalID: "0", Slots: 1}, {LocalID: "0", Slots: 1}},
		},
	}})
	require.Error(t, err)
}

func TestSatisfiableRejectsUnknownType(t *testing.T) {
	t.Parallel()

	pool := twoNodePool(t)
	err := pool.Satisfiable(respool.Request{Groups: [][]respool.RequestItem{{{Type: "tpus", Slots: 1}}}})
	require.Error(t, err)

	var unsat *errors.ResourceUnsatisfiable
	assert.ErrorAs(t, err, &unsat)
}

func TestSatisfiableRejectsOversizedRequest(t *testing.T) {
	t.Parallel()

	pool := twoNodePool(t)
	// total cpus across pool = 2+4+4 = 10
	err := pool.Satisfiable(respool.Request{Groups: [][]respool.RequestItem{{{Type: respool.CPUType, Slots: 11}}}})
	require.Error(t, err)
}

func TestMinNodesRequired(t *testing.T) {
	t.Parallel()

	pool := twoNodePool(t)
	// max single-node cpu capacity is node-a's 2+4=6. Request 10 cpus -> ceil(10/6) = 2.
	n := pool.MinNodesRequired(respool.Request{Groups: [][]respool.RequestItem{{{Type: respool.CPUType, Slots: 10}}}})
	assert.Equal(t, 2, n)
}

func TestAcquireIsAtomicOnFailure(t *testing.T) {
	t.Parallel()

	pool := twoNodePool(t)
	before := pool.FreeSlots(respool.CPUType)

	_, err := pool.Acquire(respool.Request{Groups: [][]respool.RequestItem{
		{{Type: respool.CPUType, Slots: 2}},
		{{Type: respool.GPUType, Slots: 5}}, // impossible: pool only has 1 gpu slot
	}})
	require.Error(t, err)

	var unavail *errors.ResourceUnavailable
	assert.ErrorAs(t, err, &unavail)
	assert.Equal(t, before, pool.FreeSlots(respool.CPUType), "a failed acquire must not mutate the pool")
}

func TestAcquireThenReclaimConservesSlots(t *testing.T) {
	t.Parallel()

	pool := twoNodePool(t)
	totalBefore := pool.FreeSlots(respool.CPUType)

	acq, err := pool.Acquire(respool.Request{Groups: [][]respool.RequestItem{{{Type: respool.CPUType, Slots: 3}}}})
	require.NoError(t, err)
	assert.Less(t, pool.FreeSlots(respool.CPUType), totalBefore)

	unknown := pool.Reclaim(acq)
	assert.Empty(t, unknown)
	assert.Equal(t, totalBefore, pool.FreeSlots(respool.CPUType))
}

func TestAcquireSmallestFitPacking(t *testing.T) {
	t.Parallel()

	// node n has two cpu instances: 2 slots and 4 slots. A request for 2
	// slots should land on the 2-slot instance (smallest that fits),
	// leaving the 4-slot instance free for a larger future request.
	pool := respool.New()
	require.NoError(t, pool.Fill([]respool.NodeSpec{{
		ID: "n",
		Resources: map[string][]respool.InstanceSpec{
			respool.CPUType: {{LocalID: "small", Slots: 2}, {LocalID: "big", Slots: 4}},
		},
	}}))

	acq, err := pool.Acquire(respool.Request{Groups: [][]respool.RequestItem{{{Type: respool.CPUType, Slots: 2}}}})
	require.NoError(t, err)

	ids := pool.LocalIDs(acq, respool.CPUType)
	assert.Equal(t, []string{"small"}, ids)

	// the 4-slot instance should still be fully free
	acq2, err := pool.Acquire(respool.Request{Groups: [][]respool.RequestItem{{{Type: respool.CPUType, Slots: 4}}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"big"}, pool.LocalIDs(acq2, respool.CPUType))
}

func TestDefaultPoolHasAtLeastOneCPU(t *testing.T) {
	t.Parallel()

	pool := respool.DefaultPool()
	assert.GreaterOrEqual(t, pool.TotalSlots(respool.CPUType), 1)
}
