// Package discovery defines the contract the executor pipeline depends
// on for turning pathspecs into TestCase values. The file-format
// parsing and directive language discovery implies (§1's explicit
// non-goal) are not implemented here; this package only carries the
// interface and an in-memory stand-in so the rest of canary can be
// exercised end-to-end without a real discovery backend.
package discovery

import "github.com/gruntwork-io/canary/internal/testcase"

// Discoverer finds test case specs under a set of pathspecs.
type Discoverer interface {
	Discover(pathspecs []string) ([]*testcase.TestCase, error)
}

// Static is a Discoverer returning a fixed case set, used by tests and
// as cmd/canary's placeholder until a real backend is wired in.
type Static struct {
	Cases []*testcase.TestCase
}

func (s Static) Discover(pathspecs []string) ([]*testcase.TestCase, error) {
	return s.Cases, nil
}
