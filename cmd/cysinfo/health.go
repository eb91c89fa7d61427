package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/tui/theme"
)

const healthTimeout = 5 * time.Second

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the Ollama server is reachable",
		Flags: []cli.Flag{
			modelFlag,
			&cli.BoolFlag{
				Name:  "warmup",
				Usage: "Also load the model into memory",
			},
		},
		Action: healthAction,
	}
}

func healthAction(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := c.App.Writer
	fmt.Fprintf(out, "%s %s\n", theme.Bold.Render("server"), rt.client.BaseURL())

	start := time.Now()
	ctx, cancel := context.WithTimeout(c.Context, healthTimeout)
	v, err := rt.client.Version(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(out, theme.Failure("unreachable"))
		return err
	}
	fmt.Fprintln(out, theme.Success(fmt.Sprintf("ollama %s (%s)", v.Version, time.Since(start).Round(time.Millisecond))))
	fmt.Fprintf(out, "%s %s\n", theme.TextMuted.Render("circuit"), rt.client.BreakerState())

	if !c.Bool("warmup") {
		return nil
	}
	start = time.Now()
	if err := rt.client.Warmup(c.Context); err != nil {
		fmt.Fprintln(out, theme.Failure("warmup "+rt.client.Model()))
		return err
	}
	fmt.Fprintln(out, theme.Success(fmt.Sprintf("loaded %s (%s)", rt.client.Model(), time.Since(start).Round(time.Millisecond))))
	return nil
}
