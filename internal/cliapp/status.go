package cliapp

import (
	"os"

	"github.com/gruntwork-io/canary/internal/session"
	"github.com/urfave/cli/v2"
)

func statusCommand(deps Dependencies) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "report the outcome of a prior session's case set without re-discovering it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "keywords", Aliases: []string{"k"}, Usage: "keyword expression"},
		},
		Action: func(c *cli.Context) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}

			repo, err := session.Open(dir)
			if err != nil {
				return err
			}

			criteria := session.Criteria{}
			if kw := c.String("keywords"); kw != "" {
				criteria.Keywords = []string{kw}
			}

			cases, err := repo.ReFilter(criteria)
			if err != nil {
				return err
			}

			return deps.Reporter.Report(c.App.Writer, cases)
		},
	}
}
