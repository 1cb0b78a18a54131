// Package testcase defines TestCase and TestBatch, the immutable-spec
// plus mutable-runtime-state records described in spec §3, and the
// content-hash identity scheme that makes re-runs idempotent.
package testcase

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gruntwork-io/canary/internal/depgraph"
	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/status"
)

// ExpectedExitKind discriminates the four shapes expected_exit can
// take: the default (a returncode mapped through the well-known exit
// codes), the "diff" sentinel, the "fail" sentinel, or an exact
// integer (positive or negative; negative is treated identically to
// the "fail" sentinel, resolving Open Question (a) from §9).
type ExpectedExitKind int

const (
	ExpectDefault ExpectedExitKind = iota
	ExpectDiff
	ExpectFail
	ExpectExactInt
)

// ExpectedExit is the expected_exit field.
type ExpectedExit struct {
	Kind  ExpectedExitKind
	Exact int
}

// EnvOp is one ordered environment-mutation operation.
type EnvOp int

const (
	EnvSet EnvOp = iota
	EnvUnset
	EnvPrependPath
	EnvAppendPath
)

// EnvMod is one entry of environment_mods.
type EnvMod struct {
	Op    EnvOp
	Var   string
	Value string
}

// AssetAction discriminates the two ways an asset can be staged into
// the working directory.
type AssetAction int

const (
	AssetCopy AssetAction = iota
	AssetLink
)

// Asset is one {action, src, dst} entry of the assets list.
type Asset struct {
	Action AssetAction
	Src    string
	Dst    string
}

// Dependency is one edge of the dependencies list: which case must run
// first, and what terminal status it must land in for this edge to be
// satisfied.
type Dependency struct {
	CaseID string
	Expect depgraph.Expectation
}

// Mask records a non-terminal reason (filter, unsatisfiable resources,
// dependency pruning) that excludes a case from a session without it
// ever having attempted to run. Distinct from a terminal Skipped
// status: a masked case was never admitted to the queue at all.
// Recovered from original_source/src/_canary/mask.py, which the
// distillation dropped.
type Mask struct {
	Reason string
	Filter string
}

// OnOptions is the pass-through on_options vector recovered from
// original_source: a set of option names this case is only enabled
// under. The expression language that evaluates them is out of scope
// (§1/§6); canary only carries the field and exposes it for whatever
// filtering layer is wired in front of the core.
type OnOptions struct {
	Options []string
}

// TestCase is the immutable identity plus mutable runtime state of one
// executable test case.
type TestCase struct {
	mu sync.Mutex

	// Immutable identity and inputs.
	ID                string
	DisplayName       string
	FilePath          string
	Keywords          []string
	Parameters        map[string]string
	RequiredResources respool.Request
	TimeoutSec        float64
	ExpectedExit      ExpectedExit
	Dependencies      []Dependency
	EnvironmentMods   []EnvMod
	Assets            []Asset
	Exclusive         bool
	OnOptions         OnOptions

	// Mutable runtime state.
	Status        status.Status
	Detail        string
	StartTS       time.Time
	StopTS        time.Time
	ReturnCode    int
	ResourcesHeld *respool.Acquisition
	WorkingDir    string
	Mask          *Mask
}

// NodeID and DependencyIDs implement depgraph.Node.
func (c *TestCase) NodeID() string { return c.ID }

func (c *TestCase) DependencyIDs() []string {
	ids := make([]string, len(c.Dependencies))
	for i, d := range c.Dependencies {
		ids[i] = d.CaseID
	}

	return ids
}

// DepEdges adapts Dependencies to the []depgraph.Edge shape
// DepConditionFlags consumes.
func (c *TestCase) DepEdges() []depgraph.Edge {
	edges := make([]depgraph.Edge, len(c.Dependencies))
	for i, d := range c.Dependencies {
		edges[i] = depgraph.Edge{DependencyID: d.CaseID, Expect: d.Expect}
	}

	return edges
}

// SetStatus performs a checked transition, returning false (without
// mutating) if the transition is illegal under the forward-only state
// machine in §3.
func (c *TestCase) SetStatus(next status.Status, detail string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.Status.CanTransitionTo(next) {
		return false
	}

	c.Status = next
	c.Detail = detail

	return true
}

// SnapshotStatus reads the current status/detail under the case's
// lock, used by callers (the queue's dependency lookup) that must not
// race the runner's terminal-status write.
func (c *TestCase) SnapshotStatus() (status.Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Status, c.Detail
}

// ComputeID is the determinism-of-id scheme from §8: a stable content
// hash of file_path + name + sorted parameter bindings, so the same
// spec always yields the same id across runs.
func ComputeID(filePath, name string, parameters map[string]string) string {
	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder

	b.WriteString(filePath)
	b.WriteByte('\x00')
	b.WriteString(name)

	for _, k := range keys {
		b.WriteByte('\x00')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(parameters[k])
	}

	sum := sha256.Sum256([]byte(b.String()))

	return hex.EncodeToString(sum[:])
}

// TestBatch groups a dependency-closed set of cases into a single
// external-scheduler job.
type TestBatch struct {
	ID          string
	Cases       []*TestCase
	WorkerCount int

	// Mutable runtime state, mirroring TestCase's: a batch is itself a
	// queue slot and carries the same bucket/mask/acquisition tracking.
	Status        status.Status
	Detail        string
	ResourcesHeld *respool.Acquisition
	Mask          *Mask
}

// NodeID and DependencyIDs implement depgraph.Node so batches can be
// topologically ordered the same way individual cases are.
func (b *TestBatch) NodeID() string { return b.ID }

func (b *TestBatch) DependencyIDs() []string {
	caseIDs := map[string]bool{}
	for _, c := range b.Cases {
		caseIDs[c.ID] = true
	}

	seen := map[string]bool{}

	var ids []string

	for _, c := range b.Cases {
		for _, d := range c.Dependencies {
			if caseIDs[d.CaseID] || seen[d.CaseID] {
				continue // internal to the batch, or already recorded
			}

			seen[d.CaseID] = true
			ids = append(ids, d.CaseID)
		}
	}

	return ids
}

// RuntimeEstimate sums the cases' individual timeout-based runtime
// estimates, used to size the batch's wallclock budget.
func (b *TestBatch) RuntimeEstimate() float64 {
	total := 0.0
	for _, c := range b.Cases {
		total += c.TimeoutSec
	}

	return total
}
