// Package cliapp builds the canary command-line application (§6):
// `canary [global opts] <run|find|describe|status> [opts] [pathspec...]`.
// Modeled on the teacher's cli.CreateTerragruntCli (cli/cli_app.go) —
// one constructor handing back a ready-to-run *cli.App — adapted to
// urfave/cli/v2's Command-based API, which is what this module's
// go.mod actually carries rather than the v1 package the teacher used.
package cliapp

import (
	"io"
	"os"
	"strings"

	"github.com/gruntwork-io/canary/internal/clog"
	"github.com/gruntwork-io/canary/internal/discovery"
	"github.com/gruntwork-io/canary/internal/filterexpr"
	"github.com/gruntwork-io/canary/internal/publish"
	"github.com/gruntwork-io/canary/internal/report"
	"github.com/urfave/cli/v2"
)

// Dependencies are the collaborator-contract implementations the app
// wires into each command. Callers needing the full mechanical
// subsystems (real discovery, a real expression language, ...) supply
// their own; cmd/canary's default main wires the in-memory stand-ins.
type Dependencies struct {
	Discoverer discovery.Discoverer
	Evaluator  filterexpr.Evaluator
	Reporter   report.Reporter
	Publisher  publish.Publisher
	Log        *clog.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Discoverer == nil {
		d.Discoverer = discovery.Static{}
	}

	if d.Evaluator == nil {
		d.Evaluator = filterexpr.PassThrough{}
	}

	if d.Reporter == nil {
		d.Reporter = report.Grouped{}
	}

	if d.Publisher == nil {
		d.Publisher = publish.Noop{}
	}

	if d.Log == nil {
		d.Log = clog.Default()
	}

	return d
}

// globalFlags are §6's global options: config overrides, environment
// injections, working-directory change, plugin directories, verbosity,
// and an --echo for reproducibility. The Before hook applies
// --working-dir, --env and --echo; --config, --plugin-dir and
// --verbosity are parsed but nothing reads them.
var globalFlags = []cli.Flag{
	&cli.StringSliceFlag{Name: "config", Aliases: []string{"c"}, Usage: "config override `section:key:value`"},
	&cli.StringSliceFlag{Name: "env", Aliases: []string{"e"}, Usage: "environment injection `VAR=VAL`"},
	&cli.StringFlag{Name: "working-dir", Aliases: []string{"C"}, Usage: "change to `DIR` before running"},
	&cli.StringSliceFlag{Name: "plugin-dir", Aliases: []string{"p"}, Usage: "plugin directory"},
	&cli.StringFlag{Name: "verbosity", Value: "info", Usage: "log level: debug, info, warn, error"},
	&cli.BoolFlag{Name: "echo", Usage: "echo the resolved invocation for reproducibility"},
}

// New builds the canary CLI application.
func New(version string, writer, errWriter io.Writer, deps Dependencies) *cli.App {
	deps = deps.withDefaults()

	app := cli.NewApp()
	app.Name = "canary"
	app.Usage = "canary <run|find|describe|status> [opts] [pathspec...]"
	app.UsageText = "canary is a parallel test orchestration engine: it discovers test cases, " +
		"schedules them against a resource pool honoring their dependencies, and reports the outcome."
	app.Version = version
	app.Writer = writer
	app.ErrWriter = errWriter
	app.Flags = globalFlags
	app.Before = func(c *cli.Context) error {
		if dir := c.String("working-dir"); dir != "" {
			if err := os.Chdir(dir); err != nil {
				return err
			}
		}

		for _, pair := range c.StringSlice("env") {
			if k, v, ok := strings.Cut(pair, "="); ok {
				_ = os.Setenv(k, v)
			}
		}

		if c.Bool("echo") {
			deps.Log.Infof("canary %v", c.Args().Slice())
		}

		return nil
	}
	app.Commands = []*cli.Command{
		runCommand(deps),
		findCommand(deps),
		describeCommand(deps),
		statusCommand(deps),
	}

	return app
}
