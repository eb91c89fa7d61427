// Package main provides the cysinfo CLI entrypoint.
//
// Usage:
//
//	cysinfo <command> [subcommand] [options]
//
// Exit codes:
//   - 0: success
//   - 1: error
//   - 2: usage error
//   - 130: chat interrupted
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/tui/uxerror"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// exitErrHandler already exited for every error it saw.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "cysinfo",
		Usage:                "Chat with and manage models on a local Ollama server",
		Version:              version,
		Flags:                globalFlags(),
		ExitErrHandler:       exitErrHandler,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			chatCommand(),
			modelsCommand(),
			embedCommand(),
			sessionsCommand(),
			healthCommand(),
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit and renders every other
// error with recovery hints.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintln(os.Stderr, uxerror.Humanize(err).Render())
	os.Exit(1)
}
