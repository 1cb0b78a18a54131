package testcase_test

import (
	"testing"

	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIDStableAcrossParamOrder(t *testing.T) {
	t.Parallel()

	id1 := testcase.ComputeID("tests/foo.py", "test_bar", map[string]string{"a": "1", "b": "2"})
	id2 := testcase.ComputeID("tests/foo.py", "test_bar", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, id1, id2)

	id3 := testcase.ComputeID("tests/foo.py", "test_bar", map[string]string{"a": "1", "b": "3"})
	assert.NotEqual(t, id1, id3)
}

func TestSetStatusRejectsIllegalTransition(t *testing.T) {
	t.Parallel()

	c := &testcase.TestCase{}
	assert.True(t, c.SetStatus(status.Ready, ""))
	assert.True(t, c.SetStatus(status.Running, ""))
	assert.True(t, c.SetStatus(status.Success, ""))
	assert.False(t, c.SetStatus(status.Running, ""), "a terminal status cannot transition again")

	got, _ := c.SnapshotStatus()
	assert.Equal(t, status.Success, got)
}

func TestBatchRequiredResourcesIsMaxAcrossCases(t *testing.T) {
	t.Parallel()

	mkCase := func(cpus int) *testcase.TestCase {
		return &testcase.TestCase{
			RequiredResources: respool.Request{Groups: [][]respool.RequestItem{{{Type: respool.CPUType, Slots: cpus}}}},
			TimeoutSec:        10,
		}
	}

	batch := &testcase.TestBatch{ID: "batch-1", Cases: []*testcase.TestCase{mkCase(2), mkCase(5), mkCase(3)}}

	req := batch.Demand()
	require.Len(t, req.Groups, 1)
	assert.Equal(t, 5, req.Groups[0][0].Slots)
	assert.InDelta(t, 30.0, batch.RuntimeEstimate(), 0.001)
}

func TestBatchDependencyIDsExcludesInternalEdges(t *testing.T) {
	t.Parallel()

	a := &testcase.TestCase{ID: "a"}
	b := &testcase.TestCase{ID: "b", Dependencies: []testcase.Dependency{{CaseID: "a"}}}
	c := &testcase.TestCase{ID: "c", Dependencies: []testcase.Dependency{{CaseID: "external"}}}

	batch := &testcase.TestBatch{ID: "batch", Cases: []*testcase.TestCase{a, b, c}}
	assert.Equal(t, []string{"external"}, batch.DependencyIDs())
}
