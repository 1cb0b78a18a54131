package runner

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/testcase"
)

// idTemplate matches %(type)_ids, e.g. %(cpus)_ids or %(gpus)_ids.
var idTemplate = regexp.MustCompile(`%\((\w+)\)_ids`)

// buildEnv assembles the environment exposed to a case's child process
// (§6): a fresh copy of the process environment, a `CANARY_<TYPE>` var
// for every resource type the case acquired (e.g. `CANARY_CPUS=3,7`),
// the case's working directory prepended to PATH and PYTHONPATH, and
// finally the case's own environment_mods applied in order, resolving
// %(type)_ids templates against the acquired resources (§4.4 step 2).
func buildEnv(mods []testcase.EnvMod, acq *respool.Acquisition, pool *respool.Pool, workDir string) []string {
	env := map[string]string{}

	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}

	for _, typ := range acquiredTypes(acq) {
		env["CANARY_"+strings.ToUpper(typ)] = strings.Join(pool.LocalIDs(acq, typ), ",")
	}

	env["PATH"] = joinPath(workDir, env["PATH"])
	env["PYTHONPATH"] = joinPath(workDir, env["PYTHONPATH"])

	for _, mod := range mods {
		value := substituteIDs(mod.Value, acq, pool)

		switch mod.Op {
		case testcase.EnvSet:
			env[mod.Var] = value
		case testcase.EnvUnset:
			delete(env, mod.Var)
		case testcase.EnvPrependPath:
			env[mod.Var] = joinPath(value, env[mod.Var])
		case testcase.EnvAppendPath:
			env[mod.Var] = joinPath(env[mod.Var], value)
		}
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}

	return out
}

// acquiredTypes lists the distinct resource types held across every
// group of acq, sorted for deterministic CANARY_<TYPE> ordering.
func acquiredTypes(acq *respool.Acquisition) []string {
	if acq == nil {
		return nil
	}

	seen := map[string]bool{}

	var types []string

	for _, g := range acq.Groups {
		for typ := range g {
			if !seen[typ] {
				seen[typ] = true

				types = append(types, typ)
			}
		}
	}

	sort.Strings(types)

	return types
}

func substituteIDs(value string, acq *respool.Acquisition, pool *respool.Pool) string {
	if acq == nil {
		return value
	}

	return idTemplate.ReplaceAllStringFunc(value, func(match string) string {
		sub := idTemplate.FindStringSubmatch(match)
		typ := sub[1]

		ids := pool.LocalIDs(acq, typ)

		return strings.Join(ids, ",")
	})
}

func joinPath(parts ...string) string {
	var nonEmpty []string

	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	return strings.Join(nonEmpty, string(os.PathListSeparator))
}
