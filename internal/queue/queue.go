// Package queue implements the dependency-aware resource queue from
// §4.3: a single structure that holds every test case or batch for a
// session, tracks which bucket (buffer, busy, finished, not_run) each
// one currently occupies, and only admits an item once its
// dependencies have resolved favorably and the resource pool can grant
// its demand. Modeled on the teacher's internal/queue (dependency-level
// ordering, FailEntry cascades) generalized from a destroy-aware
// Terraform unit queue to a resource-acquiring test queue.
package queue

import (
	"sort"
	"strconv"
	"sync"

	"github.com/gruntwork-io/canary/internal/depgraph"
	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/status"
)

// Item is what the queue needs from a *testcase.TestCase or
// *testcase.TestBatch; the queue itself has no notion of how either
// one actually runs.
type Item interface {
	NodeID() string
	DependencyIDs() []string
	DepEdges() []depgraph.Edge
	Demand() respool.Request
	IsExclusive() bool
	QueuePriority() float64
	SetStatus(next status.Status, detail string) bool
	SnapshotStatus() (status.Status, string)
	IsMasked() bool
	SetMask(reason string)
	SetAcquisition(*respool.Acquisition)
	GetAcquisition() *respool.Acquisition
}

// bucket names one of the four places an item can live.
type bucket int

const (
	bucketPending bucket = iota // created/pending/ready, not yet admitted
	bucketBusy
	bucketFinished
	bucketNotRun
)

// slot is the queue's private bookkeeping record for one item.
type slot struct {
	iid     int
	item    Item
	bucket  bucket
	retries int
}

// ResultKind discriminates the four shapes Get can return, per the
// REDESIGN FLAGS §9 note replacing the original's exception-for-control-flow
// idiom (QueueEmpty/AllBusy exceptions) with an explicit result value.
type ResultKind int

const (
	Admitted ResultKind = iota
	Busy
	Empty
	KindFailFast
)

// GetResult is what Get returns: a kind, and the admitted item and its
// iid when Kind is Admitted.
type GetResult struct {
	Kind ResultKind
	Item Item
	IID  int
}

// Counts summarizes how many items currently occupy each bucket.
type Counts struct {
	Buffer   int
	Busy     int
	Finished int
	NotRun   int
}

// DefaultRetryCeiling is the number of times a batch job may be
// resubmitted before it is given up as failed (Open Question (c):
// canary fixes this rather than exposing it as a per-session knob,
// since no caller in the corpus needed it tunable).
const DefaultRetryCeiling = 3

// Queue is the dependency-aware, resource-gated admission queue. One
// Queue instance serves either test cases or batches, never both; the
// direct-queue and batch-queue flavors in §4.3 are this same type
// parameterized by the Item it holds and whether priority ordering or
// arrival ordering governs its buffer.
type Queue struct {
	mu sync.Mutex

	pool *respool.Pool

	slots map[string]*slot // NodeID -> slot
	order []string         // insertion order, for stable iteration

	nextIID int

	failFast        bool
	priorityOrdered bool // true: direct queue (§4.3 sort key); false: batch queue (arrival order)
	retryCeiling    int

	failFastTriggered bool
}

// New returns an empty queue bound to pool. priorityOrdered selects the
// direct-queue sort key (sqrt(cpus^2+runtime^2), largest first);
// batch queues pass false and keep arrival order.
func New(pool *respool.Pool, priorityOrdered bool, failFast bool) *Queue {
	return &Queue{
		pool:            pool,
		slots:           map[string]*slot{},
		priorityOrdered: priorityOrdered,
		failFast:        failFast,
		retryCeiling:    DefaultRetryCeiling,
	}
}

// Put registers item with the queue. If the pool can never satisfy its
// demand (regardless of future availability), the item is placed
// directly into not_run rather than ever entering the buffer, per
// §4.1's satisfiable check. Returns the assigned iid.
func (q *Queue) Put(item Item) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	iid := q.nextIID
	q.nextIID++

	s := &slot{iid: iid, item: item, bucket: bucketPending}
	q.slots[item.NodeID()] = s
	q.order = append(q.order, item.NodeID())

	if item.IsMasked() {
		item.SetStatus(status.Pending, "")
		item.SetStatus(status.NotRun, "masked")
		s.bucket = bucketNotRun

		return iid
	}

	if err := q.pool.Satisfiable(item.Demand()); err != nil {
		item.SetStatus(status.Pending, "")
		item.SetStatus(status.NotRun, err.Error())
		s.bucket = bucketNotRun

		return iid
	}

	item.SetStatus(status.Pending, "")

	return iid
}

// lookup adapts the queue's slot table to depgraph.DepConditionFlags'
// lookup signature.
func (q *Queue) lookup(id string) depgraph.DepState {
	s, ok := q.slots[id]
	if !ok {
		// A dependency outside this queue's scope is treated as having
		// already succeeded; the session that wired the queue is
		// responsible for only including cases whose dependencies are
		// known.
		return depgraph.DepState{Status: status.Success}
	}

	if s.item.IsMasked() {
		return depgraph.DepState{Masked: true, Detail: "excluded before admission"}
	}

	st, detail := s.item.SnapshotStatus()

	return depgraph.DepState{Status: st, Detail: detail}
}

// promote walks every item still pending and moves it to ready (stays
// bucketPending but is now eligible for admission) or cascades it to
// skipped/not_run if a dependency resolved unfavorably.
func (q *Queue) promote() {
	for _, id := range q.order {
		s := q.slots[id]
		if s.bucket != bucketPending {
			continue
		}

		st, _ := s.item.SnapshotStatus()
		if st == status.Ready || st.Terminal() {
			continue
		}

		results := depgraph.DepConditionFlags(s.item.DepEdges(), q.lookup)

		if detail, wontRun := depgraph.FirstWontRun(results); wontRun {
			s.item.SetStatus(status.Skipped, detail)
			s.bucket = bucketFinished

			continue
		}

		if depgraph.Ready(results) {
			s.item.SetStatus(status.Ready, "")
		}
	}
}

// readyIDs returns the NodeIDs of every pending slot whose item is in
// Ready status, ordered per the queue's flavor: priority-ordered
// queues sort by QueuePriority descending (ties broken by id for
// determinism), arrival-ordered queues keep insertion order.
func (q *Queue) readyIDs() []string {
	var ready []string

	for _, id := range q.order {
		s := q.slots[id]
		if s.bucket != bucketPending {
			continue
		}

		st, _ := s.item.SnapshotStatus()
		if st == status.Ready {
			ready = append(ready, id)
		}
	}

	if q.priorityOrdered {
		sort.SliceStable(ready, func(i, j int) bool {
			pi := q.slots[ready[i]].item.QueuePriority()
			pj := q.slots[ready[j]].item.QueuePriority()

			if pi != pj {
				return pi > pj
			}

			return ready[i] < ready[j]
		})
	}

	return ready
}

// Get returns the next item to run, or a sentinel result describing
// why none was returned: Busy (work is ready but resources or
// exclusivity currently forbid it, or outstanding work might still
// free resources), Empty (nothing pending, ready, or busy remains —
// the queue is fully drained), or KindFailFast (a failure was observed
// under fail-fast and the caller should stop requesting new work).
func (q *Queue) Get() GetResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.failFastTriggered {
		return GetResult{Kind: KindFailFast}
	}

	q.promote()

	busyCount := q.countLocked(bucketBusy)
	ready := q.readyIDs()

	if len(ready) == 0 {
		if busyCount == 0 && q.countLocked(bucketPending) == 0 {
			return GetResult{Kind: Empty}
		}

		return GetResult{Kind: Busy}
	}

	for _, id := range ready {
		s := q.slots[id]

		if s.item.IsExclusive() && busyCount > 0 {
			continue
		}

		acq, err := q.pool.Acquire(s.item.Demand())
		if err != nil {
			continue
		}

		s.item.SetAcquisition(acq)
		s.item.SetStatus(status.Running, "")
		s.bucket = bucketBusy

		return GetResult{Kind: Admitted, Item: s.item, IID: s.iid}
	}

	return GetResult{Kind: Busy}
}

// Done marks the item holding iid as finished with final, a terminal
// status, reclaiming any held resources. If fail-fast is enabled and
// final's family is a failure, every still-pending item (dependent or
// not) is cascaded to skipped and subsequent Get calls return
// KindFailFast.
func (q *Queue) Done(iid int, final status.Status, detail string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.findByIID(iid)
	if s == nil {
		return
	}

	if acq := s.item.GetAcquisition(); acq != nil {
		q.pool.Reclaim(acq)
		s.item.SetAcquisition(nil)
	}

	s.item.SetStatus(final, detail)
	s.bucket = bucketFinished

	if q.failFast && final.Family() == status.FamilyFailure {
		q.failFastTriggered = true
		q.cascadeSkipLocked()
	}
}

// cascadeSkipLocked marks every item still in the pending bucket as
// skipped once fail-fast has triggered; busy items are left alone, and
// callers still holding a
// busy item are expected to call Done for it normally, this only
// forecloses items that never got a chance to start.
func (q *Queue) cascadeSkipLocked() {
	for _, id := range q.order {
		s := q.slots[id]
		if s.bucket != bucketPending {
			continue
		}

		s.item.SetStatus(status.Ready, "")
		s.item.SetStatus(status.Skipped, "fail-fast triggered")
		s.bucket = bucketFinished
	}
}

// Retry resubmits a batch item for resubmission after a transient
// submission failure, up to the queue's retry ceiling. Returns false
// (and fails the item) once the ceiling is exceeded.
func (q *Queue) Retry(iid int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.findByIID(iid)
	if s == nil {
		return false
	}

	s.retries++

	if s.retries > q.retryCeiling {
		if acq := s.item.GetAcquisition(); acq != nil {
			q.pool.Reclaim(acq)
			s.item.SetAcquisition(nil)
		}

		s.item.SetStatus(status.Retry, "")
		s.item.SetStatus(status.Failed, "Maximum number of retries exceeded")
		s.bucket = bucketFinished

		return false
	}

	if acq := s.item.GetAcquisition(); acq != nil {
		q.pool.Reclaim(acq)
		s.item.SetAcquisition(nil)
	}

	s.item.SetStatus(status.Retry, "resubmitting")
	s.item.SetStatus(status.Ready, "")
	s.bucket = bucketPending

	return true
}

// Close reclaims every outstanding acquisition, used when the executor
// loop tears down early (session timeout, cancellation). cleanup, when
// true, also gives every non-terminal item a terminal status so the
// rollup sees a consistent final state: busy items become cancelled,
// all others not_run.
func (q *Queue) Close(cleanup bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		s := q.slots[id]

		if acq := s.item.GetAcquisition(); acq != nil {
			q.pool.Reclaim(acq)
			s.item.SetAcquisition(nil)
		}

		if !cleanup || s.bucket == bucketFinished || s.bucket == bucketNotRun {
			continue
		}

		st, _ := s.item.SnapshotStatus()
		if st.Terminal() {
			continue
		}

		if s.bucket == bucketBusy {
			s.item.SetStatus(status.Cancelled, "Case failed to stop")
			s.bucket = bucketFinished

			continue
		}

		if st == status.Created {
			s.item.SetStatus(status.Pending, "")
		}

		s.item.SetStatus(status.NotRun, "Case failed to start")
		s.bucket = bucketNotRun
	}
}

// Counts reports the current population of each bucket.
func (q *Queue) Counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Counts{
		Buffer:   q.countLocked(bucketPending),
		Busy:     q.countLocked(bucketBusy),
		Finished: q.countLocked(bucketFinished),
		NotRun:   q.countLocked(bucketNotRun),
	}
}

// StatusLine renders the one-line progress summary shown by the
// executor loop between ticks.
func (q *Queue) StatusLine() string {
	c := q.Counts()

	return strconv.Itoa(c.Buffer) + " pending, " + strconv.Itoa(c.Busy) + " running, " +
		strconv.Itoa(c.Finished) + " finished, " + strconv.Itoa(c.NotRun) + " not run"
}

func (q *Queue) countLocked(b bucket) int {
	n := 0

	for _, id := range q.order {
		if q.slots[id].bucket == b {
			n++
		}
	}

	return n
}

func (q *Queue) findByIID(iid int) *slot {
	for _, id := range q.order {
		if q.slots[id].iid == iid {
			return q.slots[id]
		}
	}

	return nil
}

// Finished reports whether every item has reached a terminal bucket
// (finished or not_run) and no item remains pending or busy.
func (q *Queue) Finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.countLocked(bucketPending) == 0 && q.countLocked(bucketBusy) == 0
}

// Items returns every item the queue holds, in insertion order, for
// callers that need to inspect final statuses once the queue drains
// (the executor's exit-code roll-up).
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]Item, len(q.order))
	for i, id := range q.order {
		items[i] = q.slots[id].item
	}

	return items
}
