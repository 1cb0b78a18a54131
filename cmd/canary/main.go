// Command canary is the entrypoint for the canary-go test orchestration
// engine (§6). It wires the default in-memory collaborator stand-ins
// into internal/cliapp and hands off to urfave/cli/v2, mirroring the
// way the teacher's own root main.go is a thin shell around
// cli.CreateTerragruntCli.
package main

import (
	"fmt"
	"os"

	"github.com/gruntwork-io/canary/internal/cliapp"
	"github.com/gruntwork-io/canary/internal/clog"
	"github.com/urfave/cli/v2"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	app := cliapp.New(version, os.Stdout, os.Stderr, cliapp.Dependencies{
		Log: clog.Default(),
	})

	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			fmt.Fprintln(os.Stderr, exitErr.Error())
			os.Exit(exitErr.ExitCode())
		}

		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
