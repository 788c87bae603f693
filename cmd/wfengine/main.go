// Package main is the wfengine command line tool.
package main

import (
	"context"
	"os"

	"github.com/hydromis/wfengine/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("cli")

	command := &cli.Command{
		Name:                  "wfengine",
		Usage:                 "Author and inspect workflow specifications",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:      "lint",
				Aliases:   []string{"l"},
				Usage:     "Validate and check a JSON or YAML workflow specification",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Print the compiled state table",
					},
				},
				Action: func(_ context.Context, command *cli.Command) error {
					if command.Args().Len() != 1 {
						return cli.Exit("expected exactly one spec file", 2)
					}

					return lint(os.Stdout, command.Args().First(), command.Bool("print"))
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		logger.Error("wfengine failed", "error", err)
		os.Exit(1)
	}
}
