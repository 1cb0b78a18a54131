// Package filterexpr defines the contract for narrowing a case set by
// keyword/parameter/owner expressions (-k, -p, --owner, --grep, +opt).
// The expression language itself is an explicit non-goal (§1); this
// package only carries the interface and a pass-through default.
package filterexpr

import "github.com/gruntwork-io/canary/internal/testcase"

// Evaluator narrows cases by expr, whose syntax is left to the
// concrete implementation.
type Evaluator interface {
	Evaluate(cases []*testcase.TestCase, expr string) ([]*testcase.TestCase, error)
}

// PassThrough ignores expr and returns every case unfiltered.
type PassThrough struct{}

func (PassThrough) Evaluate(cases []*testcase.TestCase, expr string) ([]*testcase.TestCase, error) {
	return cases, nil
}
