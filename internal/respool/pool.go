// Package respool implements the multi-node, typed, slot-countable
// resource accounting structure (§4.1): atomic acquire/release with
// rollback, tie-broken smallest-fit-first packing, and the derived
// gid index used to translate an acquisition back into environment
// variables a child process can read.
package respool

import (
	"sort"
	"strconv"
	"sync"

	"github.com/gruntwork-io/canary/internal/errors"
)

// CPUType and GPUType are the two resource types the schema in §6
// names explicitly; any other type string is accepted equally, cpus
// is simply the only one `fill` requires every node to define.
const (
	CPUType = "cpus"
	GPUType = "gpus"
)

// NodeSpec is the input shape to fill/LoadPoolFile: one node's named
// resource instances, keyed by type.
type NodeSpec struct {
	ID        string
	Resources map[string][]InstanceSpec
}

// InstanceSpec names one resource instance on a node before gids are
// assigned.
type InstanceSpec struct {
	LocalID string
	Slots   int
}

// ResourceInstance is (node_id, local_id, slots_total, slots_free) plus
// the process-unique gid assigned during fill.
type ResourceInstance struct {
	GID        int
	NodeID     string
	LocalID    string
	Type       string
	SlotsTotal int
	SlotsFree  int
}

type gidKey struct {
	nodeID  string
	localID string
}

// Pool is the ordered list of node records plus the derived gid index.
// All mutation happens under mu; acquire/reclaim are the only ways
// slots move.
type Pool struct {
	mu sync.Mutex

	nodeOrder []string
	instances map[string][]*ResourceInstance // type -> instances, node order then local order

	gidIndex    map[string]map[gidKey]int // type -> (node,local) -> gid
	gidInverse  map[int]*ResourceInstance // gid -> instance
	nextGID     int
	nodeTotalOf map[string]map[string]int // nodeID -> type -> total slots on that node
}

// New returns an empty pool. Call Fill to populate it.
func New() *Pool {
	return &Pool{
		instances:   map[string][]*ResourceInstance{},
		gidIndex:    map[string]map[gidKey]int{},
		gidInverse:  map[int]*ResourceInstance{},
		nodeTotalOf: map[string]map[string]int{},
	}
}

// Fill replaces the pool's contents with the given nodes. Every node
// must define CPUType; a missing GPUType defaults to empty. Gids are
// assigned sequentially per type in traversal order (node, then
// local). Returns *errors.InvalidPool on a duplicate local id within a
// node+type, or a node missing cpus.
func (p *Pool) Fill(nodes []NodeSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, n := range nodes {
		if _, ok := n.Resources[CPUType]; !ok {
			return &errors.InvalidPool{Reason: "node " + n.ID + " is missing required resource type " + CPUType}
		}
	}

	nodeOrder := make([]string, 0, len(nodes))
	instances := map[string][]*ResourceInstance{}
	gidIndex := map[string]map[gidKey]int{}
	gidInverse := map[int]*ResourceInstance{}
	nodeTotalOf := map[string]map[string]int{}
	nextGID := 0

	// Assign gids per type, in node-then-local traversal order, so the
	// numbering is stable across a fixed node list regardless of the
	// number of types a given node carries.
	types := orderedTypes(nodes)

	for _, typ := range types {
		gidIndex[typ] = map[gidKey]int{}

		for _, n := range nodes {
			localSeen := map[string]bool{}

			for _, inst := range n.Resources[typ] {
				if localSeen[inst.LocalID] {
					return &errors.InvalidPool{Reason: "duplicate local id " + inst.LocalID + " for type " + typ + " on node " + n.ID}
				}

				localSeen[inst.LocalID] = true

				gid := nextGID
				nextGID++

				ri := &ResourceInstance{
					GID:        gid,
					NodeID:     n.ID,
					LocalID:    inst.LocalID,
					Type:       typ,
					SlotsTotal: inst.Slots,
					SlotsFree:  inst.Slots,
				}

				instances[typ] = append(instances[typ], ri)
				gidIndex[typ][gidKey{n.ID, inst.LocalID}] = gid
				gidInverse[gid] = ri

				if nodeTotalOf[n.ID] == nil {
					nodeTotalOf[n.ID] = map[string]int{}
				}

				nodeTotalOf[n.ID][typ] += inst.Slots
			}
		}
	}

	for _, n := range nodes {
		nodeOrder = append(nodeOrder, n.ID)
	}

	p.nodeOrder = nodeOrder
	p.instances = instances
	p.gidIndex = gidIndex
	p.gidInverse = gidInverse
	p.nextGID = nextGID
	p.nodeTotalOf = nodeTotalOf

	return nil
}

// orderedTypes collects every resource type across nodes, cpus first
// (since it is mandatory), the rest sorted for determinism.
func orderedTypes(nodes []NodeSpec) []string {
	set := map[string]bool{CPUType: true}

	for _, n := range nodes {
		for typ := range n.Resources {
			set[typ] = true
		}
	}

	rest := make([]string, 0, len(set))

	for typ := range set {
		if typ != CPUType {
			rest = append(rest, typ)
		}
	}

	sort.Strings(rest)

	return append([]string{CPUType}, rest...)
}

// RequestItem is one resource demand within a group: this much of this
// type, co-located with the rest of the group.
type RequestItem struct {
	Type  string
	Slots int
}

// Request is a list of groups; a group is co-located within one node,
// multiple groups are independent co-location constraints.
type Request struct {
	Groups [][]RequestItem
}

// Held is one instance's contribution to a satisfied request item.
type Held struct {
	GID   int
	Slots int
}

// Acquisition is the result of a successful Acquire: a map per group
// from type to the instances that satisfied it.
type Acquisition struct {
	Groups []map[string][]Held
}

// TotalSlots sums the slots held across every group for the given type.
func (a *Acquisition) TotalSlots(typ string) int {
	total := 0

	for _, g := range a.Groups {
		for _, h := range g[typ] {
			total += h.Slots
		}
	}

	return total
}

// LocalIDs resolves an acquisition's held gids for typ back to the
// node-local ids the %(type)_ids template substitutes, e.g. "3,7".
func (p *Pool) LocalIDs(a *Acquisition, typ string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ids []string

	for _, g := range a.Groups {
		for _, h := range g[typ] {
			if inst, ok := p.gidInverse[h.GID]; ok {
				ids = append(ids, inst.LocalID)
			}
		}
	}

	return ids
}

// MinNodesRequired computes, per type across all groups, the sum of
// requested slots divided by the node capacity for that type (ceiling);
// the maximum across types is the minimum number of nodes needed.
func (p *Pool) MinNodesRequired(req Request) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	perType := map[string]int{}

	for _, g := range req.Groups {
		for _, item := range g {
			perType[item.Type] += item.Slots
		}
	}

	maxNodeCapacity := map[string]int{}

	for _, byType := range p.nodeTotalOf {
		for typ, total := range byType {
			if total > maxNodeCapacity[typ] {
				maxNodeCapacity[typ] = total
			}
		}
	}

	minNodes := 0

	for typ, needed := range perType {
		cap := maxNodeCapacity[typ]
		if cap == 0 {
			continue
		}

		n := (needed + cap - 1) / cap
		if n > minNodes {
			minNodes = n
		}
	}

	return minNodes
}

// Satisfiable reports whether, per type, the sum of requested slots
// across all groups is at most the pool's total of that type. An
// unknown type fails fast with *errors.ResourceUnsatisfiable.
func (p *Pool) Satisfiable(req Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	perType := map[string]int{}

	for _, g := range req.Groups {
		for _, item := range g {
			perType[item.Type] += item.Slots
		}
	}

	for typ, needed := range perType {
		instances, ok := p.instances[typ]
		if !ok {
			return &errors.ResourceUnsatisfiable{Reason: "unknown resource type " + typ}
		}

		total := 0
		for _, inst := range instances {
			total += inst.SlotsTotal
		}

		if needed > total {
			return &errors.ResourceUnsatisfiable{Reason: "requested " + typ + " exceeds pool total"}
		}
	}

	return nil
}

// Acquire performs a transactional acquisition: either every group is
// fully satisfied or none are, and a failure never mutates the pool.
// Within a group, items are placed smallest-fit-first (the instance
// with the fewest free slots that still covers the request), which
// keeps larger instances available for larger future requests.
func (p *Pool) Acquire(req Request) (*Acquisition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := p.snapshotFree()

	acq := &Acquisition{Groups: make([]map[string][]Held, len(req.Groups))}

	for gi, group := range req.Groups {
		held := map[string][]Held{}

		for _, item := range group {
			instances, ok := p.instances[item.Type]
			if !ok {
				p.restoreFree(snapshot)
				return nil, &errors.ResourceUnavailable{Reason: "unknown resource type " + item.Type}
			}

			best := bestFit(instances, item.Slots)
			if best == nil {
				p.restoreFree(snapshot)
				return nil, &errors.ResourceUnavailable{Reason: "no instance of " + item.Type + " has " + strconv.Itoa(item.Slots) + " free slots"}
			}

			best.SlotsFree -= item.Slots
			held[item.Type] = append(held[item.Type], Held{GID: best.GID, Slots: item.Slots})
		}

		acq.Groups[gi] = held
	}

	return acq, nil
}

// bestFit returns the instance with the fewest free slots that still
// satisfies the request, or nil if none qualifies.
func bestFit(instances []*ResourceInstance, need int) *ResourceInstance {
	var best *ResourceInstance

	for _, inst := range instances {
		if inst.SlotsFree < need {
			continue
		}

		if best == nil || inst.SlotsFree < best.SlotsFree {
			best = inst
		}
	}

	return best
}

// Reclaim returns a held acquisition's slots to the pool. Unknown gids
// are skipped and returned to the caller (unknownGIDs) but never fail the
// call; a caller reclaiming twice or reclaiming a programmer error
// should not crash the dispatcher.
func (p *Pool) Reclaim(a *Acquisition) (unknownGIDs []int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, g := range a.Groups {
		for _, list := range g {
			for _, h := range list {
				inst, ok := p.gidInverse[h.GID]
				if !ok {
					unknownGIDs = append(unknownGIDs, h.GID)
					continue
				}

				inst.SlotsFree += h.Slots
				if inst.SlotsFree > inst.SlotsTotal {
					inst.SlotsFree = inst.SlotsTotal
				}
			}
		}
	}

	return unknownGIDs
}

// FreeSlots sums the free slots of every instance of typ across the
// pool. Tests use it to check pool conservation (free plus outstanding
// slots equal the total); the outstanding count is theirs to supply.
func (p *Pool) FreeSlots(typ string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, inst := range p.instances[typ] {
		total += inst.SlotsFree
	}

	return total
}

// TotalSlots returns the pool-wide total slots of typ.
func (p *Pool) TotalSlots(typ string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, inst := range p.instances[typ] {
		total += inst.SlotsTotal
	}

	return total
}

// NodeCount returns how many nodes the pool was filled with.
func (p *Pool) NodeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.nodeOrder)
}

func (p *Pool) snapshotFree() map[int]int {
	snap := map[int]int{}
	for gid, inst := range p.gidInverse {
		snap[gid] = inst.SlotsFree
	}

	return snap
}

func (p *Pool) restoreFree(snap map[int]int) {
	for gid, free := range snap {
		if inst, ok := p.gidInverse[gid]; ok {
			inst.SlotsFree = free
		}
	}
}

