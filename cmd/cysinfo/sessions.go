package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/history"
	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/tui/theme"
)

var errHistoryDisabled = errors.New("history is disabled (history.enabled=false)")

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect stored conversations",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List conversations, most recent first",
				Action: sessionsListAction,
			},
			{
				Name:      "show",
				Usage:     "Print a conversation's messages",
				ArgsUsage: "ID",
				Action:    sessionsShowAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a conversation and its messages",
				ArgsUsage: "ID",
				Action:    sessionsDeleteAction,
			},
		},
	}
}

// withHistory runs fn with an open history store.
func withHistory(c *cli.Context, fn func(*history.SQLiteStore) error) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	store, err := rt.openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return cli.Exit(errHistoryDisabled.Error(), 1)
	}
	return fn(store)
}

func sessionsListAction(c *cli.Context) error {
	return withHistory(c, func(store *history.SQLiteStore) error {
		convs, err := store.ListConversations(c.Context)
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Fprintln(c.App.Writer, theme.TextMuted.Render("no conversations"))
			return nil
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
			Headers("ID", "TITLE", "MODEL", "UPDATED").
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return theme.Header.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		for _, conv := range convs {
			t.Row(conv.ID, conv.Title, conv.Model, humanize.Time(conv.UpdatedAt))
		}
		fmt.Fprintln(c.App.Writer, t.String())
		return nil
	})
}

func sessionsShowAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: cysinfo sessions show ID", 2)
	}
	id := c.Args().First()
	return withHistory(c, func(store *history.SQLiteStore) error {
		conv, err := store.GetConversation(c.Context, id)
		if err != nil {
			return err
		}
		msgs, err := store.Messages(c.Context, id)
		if err != nil {
			return err
		}

		fmt.Fprintln(c.App.Writer, theme.Header.Render(conv.Title)+" "+theme.TextMuted.Render(conv.Model))
		for _, m := range msgs {
			role := theme.TextInfo.Render(m.Message.Role)
			if m.Message.Role == "assistant" {
				role = theme.TextAccent.Render(m.Message.Role)
			}
			fmt.Fprintf(c.App.Writer, "\n%s %s\n%s\n", role,
				theme.TextMuted.Render(m.CreatedAt.Local().Format("2006-01-02 15:04:05")),
				m.Message.Content)
		}
		return nil
	})
}

func sessionsDeleteAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: cysinfo sessions delete ID", 2)
	}
	id := c.Args().First()
	return withHistory(c, func(store *history.SQLiteStore) error {
		if err := store.DeleteConversation(c.Context, id); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, theme.Success("deleted "+id))
		return nil
	})
}
