package cliapp

import (
	"strings"

	"github.com/gruntwork-io/canary/internal/testcase"
)

// selectCases discovers cases under pathspecs and narrows them by
// every filter expression in exprs, in order. Each of -k/-p/--owner/
// --grep becomes one expression handed to the Evaluator; the
// expression language itself is out of scope (§1), so canary only
// threads the raw strings through.
func selectCases(deps Dependencies, pathspecs []string, exprs []string) ([]*testcase.TestCase, error) {
	cases, err := deps.Discoverer.Discover(pathspecs)
	if err != nil {
		return nil, err
	}

	for _, expr := range exprs {
		if strings.TrimSpace(expr) == "" {
			continue
		}

		cases, err = deps.Evaluator.Evaluate(cases, expr)
		if err != nil {
			return nil, err
		}
	}

	return cases, nil
}

// filterExprs collects the run/find/describe filter flags into the
// ordered expression list selectCases consumes.
func filterExprs(keywords, params, owner, grep string) []string {
	var exprs []string

	if keywords != "" {
		exprs = append(exprs, "keywords:"+keywords)
	}

	if params != "" {
		exprs = append(exprs, "params:"+params)
	}

	if owner != "" {
		exprs = append(exprs, "owner:"+owner)
	}

	if grep != "" {
		exprs = append(exprs, "grep:"+grep)
	}

	return exprs
}
