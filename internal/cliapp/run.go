package cliapp

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gruntwork-io/canary/internal/config"
	"github.com/gruntwork-io/canary/internal/executor"
	"github.com/gruntwork-io/canary/internal/queue"
	"github.com/gruntwork-io/canary/internal/respool"
	"github.com/gruntwork-io/canary/internal/runner"
	"github.com/gruntwork-io/canary/internal/session"
	"github.com/gruntwork-io/canary/internal/status"
	"github.com/gruntwork-io/canary/internal/testcase"
	"github.com/urfave/cli/v2"
)

// runFlags adds run's own options to the filters find/describe share:
// a resource pool file, --fail-fast, --durations, --timeout-multiplier,
// and the -b batch-runner knobs (scheduler=, workers=, scheme=).
var runFlags = append(append([]cli.Flag{}, findFlags...),
	&cli.StringFlag{Name: "pool", Usage: "resource pool file (YAML/JSON); defaults to one node sized to the host"},
	&cli.BoolFlag{Name: "fail-fast", Usage: "stop dispatching once any case fails"},
	&cli.IntFlag{Name: "durations", Usage: "print the N slowest cases after the run"},
	&cli.Float64Flag{Name: "timeout-multiplier", Value: 1.0, Usage: "scale every case's timeout_sec"},
	&cli.StringSliceFlag{Name: "batch", Aliases: []string{"b"}, Usage: "batch runner option `key=value` (scheduler=, workers=, scheme=)"},
)

func runCommand(deps Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "discover, schedule, and execute matching cases",
		ArgsUsage: "[pathspec...]",
		Flags:     runFlags,
		Action: func(c *cli.Context) error {
			return doRun(c, deps)
		},
	}
}

// batchOptions is the parsed form of repeated -b key=value pairs.
// Only `workers` is read by run, as the local executor's worker count;
// `scheduler` and `scheme` are parsed and not used, since run never
// groups cases into testcase.TestBatch values for internal/batchrunner
// (batch composition is a scheduling-policy decision spec.md leaves to
// the deployment, not something `run` infers from a flat case
// selection — see DESIGN.md).
type batchOptions struct {
	scheduler string
	workers   int
	scheme    string
}

func parseBatchOptions(pairs []string) batchOptions {
	opts := batchOptions{scheduler: "shell", workers: 1, scheme: "sequential"}

	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		switch k {
		case "scheduler":
			opts.scheduler = v
		case "scheme":
			opts.scheme = v
		case "workers":
			if n, err := strconv.Atoi(v); err == nil {
				opts.workers = n
			}
		}
	}

	return opts
}

func doRun(c *cli.Context, deps Dependencies) error {
	cases, err := selectCases(deps, c.Args().Slice(),
		filterExprs(c.String("keywords"), c.String("params"), c.String("owner"), c.String("grep")))
	if err != nil {
		return err
	}

	cfg := resolveConfig(deps)

	poolFile := c.String("pool")
	if poolFile == "" {
		poolFile = cfg.ResourcePoolFile
	}

	pool := respool.DefaultPool()
	if poolFile != "" {
		pool, err = respool.LoadPoolFile(poolFile)
		if err != nil {
			return err
		}
	}

	opts := parseBatchOptions(c.StringSlice("batch"))

	failFast := cfg.FailFast
	if c.IsSet("fail-fast") {
		failFast = c.Bool("fail-fast")
	}

	q := queue.New(pool, true, failFast)
	for _, tc := range cases {
		q.Put(tc)
	}

	multiplier := c.Float64("timeout-multiplier")
	if !c.IsSet("timeout-multiplier") && cfg.TimeoutMultiplier != 0 {
		multiplier = cfg.TimeoutMultiplier
	}

	exec := &executor.Executor{
		Queue:   q,
		Workers: opts.workers,
		Log:     deps.Log,
		Run: func(ctx context.Context, item queue.Item) (status.Status, string) {
			tc, ok := item.(*testcase.TestCase)
			if !ok {
				return status.Failed, "queue item is not a runnable case"
			}

			rnr := runner.New(pool, deps.Log)
			rnr.TimeoutMultiplier = multiplier

			res := rnr.Run(ctx, tc)

			return res.Status, res.Detail
		},
	}

	code, runErr := exec.Execute(c.Context)

	persistResults(deps, cases)

	if reportErr := deps.Reporter.Report(c.App.Writer, cases); reportErr != nil {
		return reportErr
	}

	if runErr != nil {
		return runErr
	}

	if code != 0 {
		return cli.Exit(fmt.Sprintf("canary run exited with code %d", code), code)
	}

	return nil
}

// resolveConfig best-efforts reading the discoverable session tree's
// resolved config snapshot, falling back to build defaults when no
// tree is discoverable (e.g. exercised in tests or against an ad hoc
// pathspec) or the tree predates any config file.
func resolveConfig(deps Dependencies) *config.Config {
	dir, err := os.Getwd()
	if err != nil {
		return config.New()
	}

	repo, err := session.Open(dir)
	if err != nil {
		return config.New()
	}

	cfg, err := repo.LoadConfig()
	if err != nil {
		deps.Log.Warnf("could not read session config: %v", err)
		return config.New()
	}

	return cfg
}

// persistResults best-efforts a session write: run works without a
// discoverable .canary tree (e.g. exercised in tests or against an
// ad hoc pathspec), so a missing session root is not fatal to the run
// itself.
func persistResults(deps Dependencies, cases []*testcase.TestCase) {
	dir, err := os.Getwd()
	if err != nil {
		return
	}

	repo, err := session.Open(dir)
	if err != nil {
		return
	}

	sess, err := repo.NewSession()
	if err != nil {
		deps.Log.Warnf("could not start session: %v", err)
		return
	}

	if err := repo.WriteResults(sess, cases); err != nil {
		deps.Log.Warnf("could not persist session results: %v", err)
	}
}
