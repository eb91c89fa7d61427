package main

import "github.com/urfave/cli/v2"

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML config file",
		Value:   "config.yaml",
		EnvVars: []string{"CYSINFO_CONFIG"},
	}

	// modelFlag overrides ollama.model for a single invocation.
	modelFlag = &cli.StringFlag{
		Name:    "model",
		Aliases: []string{"m"},
		Usage:   "Model name (defaults to ollama.model)",
	}

	insecureFlag = &cli.BoolFlag{
		Name:  "insecure",
		Usage: "Allow insecure registry connections",
	}

	noStreamFlag = &cli.BoolFlag{
		Name:  "no-progress",
		Usage: "Wait for the final status instead of streaming progress",
	}

	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Print JSON instead of a table",
	}
)

func globalFlags() []cli.Flag {
	return []cli.Flag{configFlag}
}
