// Command clonescan is a minimal CLI front end for the clone detection
// pipeline: scan a tree for clones, or write out a starter config file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "clonescan",
		Usage:   "Find duplicate and near-duplicate code across a tree",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"CLONESCAN_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format: text, json, markdown, toon",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the incremental token cache",
			},
		},
		Action: runScan,
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a starter clones.toml configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "clones.toml"},
					&cli.BoolFlag{Name: "force"},
				},
				Action: runInit,
			},
			{
				Name:   "scan",
				Usage:  "Scan paths for clones (default action)",
				Action: runScan,
			},
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}
