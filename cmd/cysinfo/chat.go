package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/tui/theme"
	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
	"github.com/shreeramdrao/Cysinfo-AI/internal/usecase"
)

// exitInterrupted is the conventional exit code for SIGINT.
const exitInterrupted = 130

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Send a prompt and stream the reply",
		ArgsUsage: "PROMPT",
		Flags: []cli.Flag{
			modelFlag,
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Continue the conversation with this ID",
			},
			&cli.StringFlag{
				Name:  "system",
				Usage: "System prompt prepended to the conversation",
			},
			&cli.BoolFlag{
				Name:    "render",
				Aliases: []string{"r"},
				Usage:   "Render the finished reply as markdown instead of streaming raw text",
			},
		},
		Action: chatAction,
	}
}

func chatAction(c *cli.Context) error {
	prompt := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if prompt == "" {
		return cli.Exit("usage: cysinfo chat [--session ID] [--model NAME] [--render] PROMPT", 2)
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	store, err := rt.openHistory()
	if err != nil {
		return err
	}
	var hist domain.HistoryStore
	if store != nil {
		hist = store
	}

	svc := usecase.NewChatService(rt.client, hist, rt.logger,
		usecase.WithModel(rt.cfg.Ollama.Model),
		usecase.WithSystemPrompt(c.String("system")),
	)

	done := make(chan struct{})
	defer close(done)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			svc.Abort()
		case <-done:
		}
	}()

	out := c.App.Writer
	render := c.Bool("render")
	var onDelta func(string)
	if !render {
		onDelta = func(s string) { fmt.Fprint(out, s) }
	}

	res, err := svc.Send(c.Context, c.String("session"), prompt, onDelta)
	if !render && res != nil && res.Reply.Content != "" {
		fmt.Fprintln(out)
	}
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) {
			fmt.Fprintln(c.App.ErrWriter, theme.Warning("cancelled"))
			return cli.Exit("", exitInterrupted)
		}
		return err
	}

	if render {
		fmt.Fprint(out, renderMarkdown(res.Reply.Content, terminalWidth()))
	}
	printTurnFooter(c.App.ErrWriter, res)
	return nil
}

// printTurnFooter reports the generation rate and the session to continue.
func printTurnFooter(w io.Writer, res *usecase.TurnResult) {
	var parts []string
	if res.Metrics != nil {
		if tps := res.Metrics.TokensPerSecond(); tps > 0 {
			parts = append(parts, fmt.Sprintf("%d tokens, %.1f tok/s", res.Metrics.EvalCount, tps))
		}
	}
	if res.ConversationID != "" {
		parts = append(parts, "session "+res.ConversationID)
	}
	if len(parts) == 0 {
		return
	}
	fmt.Fprintln(w, theme.TextMuted.Render(strings.Join(parts, " "+theme.SymbolBullet+" ")))
}
