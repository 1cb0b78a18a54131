package cliapp

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// findFlags are the filter options shared by find/describe/run: -k, -p
// (param expr), --owner, --grep.
var findFlags = []cli.Flag{
	&cli.StringFlag{Name: "keywords", Aliases: []string{"k"}, Usage: "keyword expression"},
	&cli.StringFlag{Name: "params", Aliases: []string{"p"}, Usage: "parameter expression"},
	&cli.StringFlag{Name: "owner", Usage: "filter by declared owner"},
	&cli.StringFlag{Name: "grep", Usage: "filter by regex over case content"},
}

func findCommand(deps Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "list the cases a pathspec resolves to, without running them",
		ArgsUsage: "[pathspec...]",
		Flags:     findFlags,
		Action: func(c *cli.Context) error {
			cases, err := selectCases(deps, c.Args().Slice(),
				filterExprs(c.String("keywords"), c.String("params"), c.String("owner"), c.String("grep")))
			if err != nil {
				return err
			}

			for _, tc := range cases {
				fmt.Fprintln(c.App.Writer, tc.DisplayName)
			}

			return nil
		},
	}
}
