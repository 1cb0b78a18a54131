package cliapp

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func describeCommand(deps Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "print the full resolved spec of each matching case",
		ArgsUsage: "[pathspec...]",
		Flags:     findFlags,
		Action: func(c *cli.Context) error {
			cases, err := selectCases(deps, c.Args().Slice(),
				filterExprs(c.String("keywords"), c.String("params"), c.String("owner"), c.String("grep")))
			if err != nil {
				return err
			}

			for _, tc := range cases {
				fmt.Fprintf(c.App.Writer, "%s\n  file: %s\n  keywords: %v\n  parameters: %v\n  timeout: %gs\n  exclusive: %v\n",
					tc.DisplayName, tc.FilePath, tc.Keywords, tc.Parameters, tc.TimeoutSec, tc.Exclusive)
			}

			return nil
		},
	}
}
