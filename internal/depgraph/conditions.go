package depgraph

import "github.com/gruntwork-io/canary/internal/status"

// ExpectKind discriminates the three ways a dependency edge can declare
// what status the dependency must land in for the edge to be
// satisfied: any terminal status (wildcard), one exact status, or
// membership in a small set.
type ExpectKind int

const (
	ExpectAny ExpectKind = iota
	ExpectExact
	ExpectSet
)

// Expectation is the dep_expect value attached to one dependency edge.
type Expectation struct {
	Kind  ExpectKind
	Exact status.Status
	Set   []status.Status
}

// Satisfies reports whether a dependency that landed in s matches this
// edge's expectation.
func (e Expectation) Satisfies(s status.Status) bool {
	switch e.Kind {
	case ExpectAny:
		return true
	case ExpectExact:
		return s == e.Exact
	case ExpectSet:
		for _, want := range e.Set {
			if s == want {
				return true
			}
		}

		return false
	default:
		return false
	}
}

// Edge is one dependency of a case: the dependency's id and what
// status it must terminate in.
type Edge struct {
	DependencyID string
	Expect       Expectation
}

// Flag is the per-edge verdict §4.2 defines.
type Flag int

const (
	CanRun Flag = iota
	Pending
	WontRun
)

// DepState is what the lookup function reports about one dependency:
// its current status, whether it was masked out of the session
// entirely (a non-terminal exclusion distinct from any Status value),
// and a human-readable detail to cite if it causes a skip cascade.
type DepState struct {
	Status status.Status
	Masked bool
	Detail string
}

// EdgeResult pairs an edge with its evaluated flag and a citation
// detail for reporting.
type EdgeResult struct {
	DependencyID string
	Flag         Flag
	Detail       string
}

// DepConditionFlags evaluates every dependency edge of a case against
// the current state of its dependencies (supplied by lookup, which the
// queue backs with its canonical case table): wont_run when the
// dependency is masked or terminal-but-incompatible, pending while
// non-terminal, can_run when terminal and compatible.
func DepConditionFlags(edges []Edge, lookup func(id string) DepState) []EdgeResult {
	results := make([]EdgeResult, 0, len(edges))

	for _, e := range edges {
		state := lookup(e.DependencyID)

		switch {
		case state.Masked:
			results = append(results, EdgeResult{
				DependencyID: e.DependencyID,
				Flag:         WontRun,
				Detail:       "dependency " + e.DependencyID + " was masked: " + state.Detail,
			})
		case !state.Status.Terminal():
			results = append(results, EdgeResult{
				DependencyID: e.DependencyID,
				Flag:         Pending,
			})
		case e.Expect.Satisfies(state.Status):
			results = append(results, EdgeResult{
				DependencyID: e.DependencyID,
				Flag:         CanRun,
			})
		default:
			results = append(results, EdgeResult{
				DependencyID: e.DependencyID,
				Flag:         WontRun,
				Detail:       "dependency " + e.DependencyID + " terminated as " + state.Status.String(),
			})
		}
	}

	return results
}

// Ready reports whether every edge result is CanRun (the case may move
// to the Ready status).
func Ready(results []EdgeResult) bool {
	for _, r := range results {
		if r.Flag != CanRun {
			return false
		}
	}

	return true
}

// FirstWontRun returns the detail of the first WontRun edge (naming
// the dependency and why it will not run), used as the skip detail
// when a case cascades to skipped, and false if no edge is WontRun.
func FirstWontRun(results []EdgeResult) (string, bool) {
	for _, r := range results {
		if r.Flag == WontRun {
			return r.Detail, true
		}
	}

	return "", false
}
