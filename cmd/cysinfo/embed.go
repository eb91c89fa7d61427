package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/tui/theme"
)

// previewValues is how many leading vector components the text output shows.
const previewValues = 4

func embedCommand() *cli.Command {
	return &cli.Command{
		Name:      "embed",
		Usage:     "Generate embeddings for one or more texts",
		ArgsUsage: "TEXT...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "embedding-model",
				Aliases: []string{"e"},
				Usage:   "Embedding model (defaults to embedding.model)",
			},
			jsonFlag,
		},
		Action: embedAction,
	}
}

type embedResult struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

func embedAction(c *cli.Context) error {
	texts := c.Args().Slice()
	if len(texts) == 0 {
		return cli.Exit("usage: cysinfo embed [--embedding-model NAME] TEXT...", 2)
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()
	if m := c.String("embedding-model"); m != "" {
		rt.cfg.Embedding.Model = m
	}

	provider := rt.embedder()
	vecs, err := provider.Embed(c.Context, texts)
	if err != nil {
		return err
	}

	if c.Bool(jsonFlag.Name) {
		out := make([]embedResult, len(texts))
		for i := range texts {
			out[i] = embedResult{Text: texts[i], Embedding: vecs[i]}
		}
		return json.NewEncoder(c.App.Writer).Encode(out)
	}

	for i, vec := range vecs {
		fmt.Fprintf(c.App.Writer, "%s %s\n  %s\n",
			theme.Bold.Render(fmt.Sprintf("[%d]", i)),
			texts[i],
			theme.TextMuted.Render(fmt.Sprintf("dims=%d %s", len(vec), preview(vec))),
		)
	}
	return nil
}

func preview(vec []float32) string {
	n := min(len(vec), previewValues)
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%.4f", vec[i])
	}
	s := "[" + strings.Join(parts, ", ")
	if len(vec) > n {
		s += ", " + theme.SymbolEllipsis
	}
	return s + "]"
}
