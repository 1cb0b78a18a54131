package testcase

import (
	"math"

	"github.com/gruntwork-io/canary/internal/depgraph"
	"github.com/gruntwork-io/canary/internal/queue"
	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/status"
)

var (
	_ queue.Item = (*TestCase)(nil)
	_ queue.Item = (*TestBatch)(nil)
)

// The methods in this file are what adapt *TestCase and *TestBatch to
// queue.Item: the queue only ever needs a resource demand, an
// exclusivity flag, a sort key, dependency edges, and a masked/status
// view — it has no notion of what a case or batch actually runs.

// Demand returns the resources this item needs to acquire.
func (c *TestCase) Demand() respool.Request { return c.RequiredResources }

// IsExclusive reports whether this case requires the worker pool to be
// otherwise idle.
func (c *TestCase) IsExclusive() bool { return c.Exclusive }

// QueuePriority is the direct-queue sort key from §4.3:
// sqrt(cpus^2 + runtime^2), largest first.
func (c *TestCase) QueuePriority() float64 {
	return math.Hypot(float64(totalCPUSlots(c.RequiredResources)), c.TimeoutSec)
}

// SetMask records a permanent, non-terminal exclusion.
func (c *TestCase) SetMask(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Mask = &Mask{Reason: reason}
}

// IsMasked reports whether the case was excluded before ever being
// admitted.
func (c *TestCase) IsMasked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Mask != nil
}

// SetAcquisition records the resources a runner has acquired for this
// case.
func (c *TestCase) SetAcquisition(a *respool.Acquisition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ResourcesHeld = a
}

// GetAcquisition returns the currently held acquisition, if any.
func (c *TestCase) GetAcquisition() *respool.Acquisition {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ResourcesHeld
}

func totalCPUSlots(req respool.Request) int {
	total := 0
	for _, g := range req.Groups {
		for _, item := range g {
			if item.Type == respool.CPUType {
				total += item.Slots
			}
		}
	}

	return total
}

// Demand is the batch analogue of TestCase.Demand: the maximum
// per-type per-group demand across its cases.
func (b *TestBatch) Demand() respool.Request {
	maxByType := map[string]int{}

	for _, c := range b.Cases {
		for _, g := range c.RequiredResources.Groups {
			for _, item := range g {
				if item.Slots > maxByType[item.Type] {
					maxByType[item.Type] = item.Slots
				}
			}
		}
	}

	group := make([]respool.RequestItem, 0, len(maxByType))
	for t, slots := range maxByType {
		group = append(group, respool.RequestItem{Type: t, Slots: slots})
	}

	return respool.Request{Groups: [][]respool.RequestItem{group}}
}

// IsExclusive: batches never require exclusivity themselves; the
// individual cases they contain do not get an independent exclusive
// gate once folded into a batch job.
func (b *TestBatch) IsExclusive() bool { return false }

// QueuePriority is unused for batch queues (arrival order applies
// instead, per §4.3) but is implemented for interface conformance.
func (b *TestBatch) QueuePriority() float64 {
	return math.Hypot(float64(totalCPUSlots(b.Demand())), b.RuntimeEstimate())
}

// DepEdges exposes the batch's external dependencies (edges pointing
// outside the batch) with wildcard expectations; a batch is considered
// ready once every case-level prerequisite outside the batch has
// terminated, the exact per-edge expectation is re-checked case by
// case once the batch runs.
func (b *TestBatch) DepEdges() []depgraph.Edge {
	edges := make([]depgraph.Edge, 0, len(b.DependencyIDs()))
	for _, id := range b.DependencyIDs() {
		edges = append(edges, depgraph.Edge{DependencyID: id, Expect: depgraph.Expectation{Kind: depgraph.ExpectAny}})
	}

	return edges
}

func (b *TestBatch) SetStatus(next status.Status, detail string) bool {
	for _, c := range b.Cases {
		c.SetStatus(next, detail)
	}

	b.Status = next
	b.Detail = detail

	return true
}

func (b *TestBatch) SnapshotStatus() (status.Status, string) {
	return b.Status, b.Detail
}

func (b *TestBatch) SetMask(reason string) {
	b.Mask = &Mask{Reason: reason}
	for _, c := range b.Cases {
		c.SetMask(reason)
	}
}

func (b *TestBatch) IsMasked() bool { return b.Mask != nil }

func (b *TestBatch) SetAcquisition(a *respool.Acquisition) { b.ResourcesHeld = a }

func (b *TestBatch) GetAcquisition() *respool.Acquisition { return b.ResourcesHeld }
