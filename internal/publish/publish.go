// Package publish defines the contract for shipping a finished
// session's results to an external artifact store. The concrete
// backends are an explicit non-goal (§1); this package carries the
// interface plus a no-op default.
package publish

import "github.com/gruntwork-io/canary/internal/testcase"

// Publisher ships a finished case set somewhere outside the session
// tree.
type Publisher interface {
	Publish(cases []*testcase.TestCase) error
}

// Noop does nothing, the default until a real backend is wired in.
type Noop struct{}

func (Noop) Publish(cases []*testcase.TestCase) error { return nil }
