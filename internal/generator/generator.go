// Package generator defines the contract for pluggable file-format
// test generators (e.g. ctest, a custom YAML schema). The concrete
// generators are an explicit non-goal (§1); this package carries the
// interface and a name-keyed registry a discovery backend can consult.
package generator

import "github.com/gruntwork-io/canary/internal/testcase"

// Generator produces TestCase values from one file.
type Generator interface {
	Name() string
	Generate(path string) ([]*testcase.TestCase, error)
}

// Registry looks generators up by name.
type Registry map[string]Generator

func (r Registry) Register(g Generator) {
	r[g.Name()] = g
}

func (r Registry) Lookup(name string) (Generator, bool) {
	g, ok := r[name]
	return g, ok
}
