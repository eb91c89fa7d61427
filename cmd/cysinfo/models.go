package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/shreeramdrao/Cysinfo-AI/internal/adapter/tui/theme"
	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
)

func modelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "Manage local models",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List local models",
				Flags:  []cli.Flag{jsonFlag},
				Action: modelsListAction,
			},
			{
				Name:      "show",
				Usage:     "Show a model's details and Modelfile",
				ArgsUsage: "NAME",
				Action:    modelsShowAction,
			},
			{
				Name:      "copy",
				Usage:     "Copy a model under a new name",
				ArgsUsage: "SOURCE DESTINATION",
				Action:    modelsCopyAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a model",
				ArgsUsage: "NAME",
				Action:    modelsDeleteAction,
			},
			{
				Name:      "pull",
				Usage:     "Download a model from a registry",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{insecureFlag, noStreamFlag},
				Action:    modelsPullAction,
			},
			{
				Name:      "push",
				Usage:     "Upload a model to a registry",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{insecureFlag, noStreamFlag},
				Action:    modelsPushAction,
			},
			{
				Name:      "create",
				Usage:     "Create a model from a Modelfile",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the Modelfile",
						Required: true,
					},
					noStreamFlag,
				},
				Action: modelsCreateAction,
			},
		},
	}
}

// args returns exactly n positional arguments or a usage error.
func args(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, cli.Exit(fmt.Sprintf("usage: cysinfo models %s %s", c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return c.Args().Slice(), nil
}

func modelsListAction(c *cli.Context) error {
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.client.ListLocalModels(c.Context)
	if err != nil {
		return err
	}
	models := resp.Models
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

	if c.Bool(jsonFlag.Name) {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}
	if len(models) == 0 {
		fmt.Fprintln(c.App.Writer, theme.TextMuted.Render("no local models"))
		return nil
	}
	fmt.Fprintln(c.App.Writer, modelsTable(models))
	return nil
}

func modelsTable(models []domain.Model) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("NAME", "SIZE", "PARAMS", "QUANT", "MODIFIED").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.Header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, m := range models {
		t.Row(
			m.Name,
			humanize.Bytes(uint64(max(m.Size, 0))),
			m.Details.ParameterSize,
			m.Details.QuantizationLevel,
			humanize.Time(m.ModifiedAt),
		)
	}
	return t.String()
}

func modelsShowAction(c *cli.Context) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	info, err := rt.client.ShowModelInformation(c.Context, domain.ShowModelInformationRequest{Name: a[0]})
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(theme.Header.Render(a[0]))
	d := info.Details
	for _, kv := range [][2]string{
		{"family", d.Family},
		{"format", d.Format},
		{"parameters", d.ParameterSize},
		{"quantization", d.QuantizationLevel},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&sb, "\n%s %s", theme.TextMuted.Render(fmt.Sprintf("%-13s", kv[0])), kv[1])
		}
	}
	fmt.Fprintln(c.App.Writer, theme.Panel.Render(sb.String()))

	if info.Parameters != "" {
		fmt.Fprintln(c.App.Writer, theme.Bold.Render("Parameters"))
		fmt.Fprintln(c.App.Writer, strings.TrimRight(info.Parameters, "\n"))
	}
	if info.Modelfile != "" {
		fmt.Fprintln(c.App.Writer, theme.Bold.Render("Modelfile"))
		fmt.Fprintln(c.App.Writer, strings.TrimRight(info.Modelfile, "\n"))
	}
	return nil
}

func modelsCopyAction(c *cli.Context) error {
	a, err := args(c, 2)
	if err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.client.CopyModel(c.Context, domain.CopyModelRequest{Source: a[0], Destination: a[1]})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, theme.Success(fmt.Sprintf("copied %s to %s (%s)", a[0], a[1], resp.Status)))
	return nil
}

func modelsDeleteAction(c *cli.Context) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.client.DeleteModel(c.Context, domain.DeleteModelRequest{Model: a[0]})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, theme.Success(fmt.Sprintf("deleted %s (%s)", a[0], resp.Status)))
	return nil
}

func modelsPullAction(c *cli.Context) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := domain.PullModelRequest{Name: a[0], Insecure: c.Bool(insecureFlag.Name)}
	if c.Bool(noStreamFlag.Name) {
		resp, err := rt.client.PullModel(c.Context, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, theme.Success(fmt.Sprintf("pulled %s (%s)", a[0], resp.Status)))
		return nil
	}

	p := newProgressPrinter(c.App.ErrWriter)
	err = rt.client.PullModelStream(c.Context, req, p.update)
	p.finish()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, theme.Success("pulled "+a[0]))
	return nil
}

func modelsPushAction(c *cli.Context) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := domain.PushModelRequest{Name: a[0], Insecure: c.Bool(insecureFlag.Name)}
	if c.Bool(noStreamFlag.Name) {
		resp, err := rt.client.PushModel(c.Context, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, theme.Success(fmt.Sprintf("pushed %s (%s)", a[0], resp.Status)))
		return nil
	}

	p := newProgressPrinter(c.App.ErrWriter)
	err = rt.client.PushModelStream(c.Context, req, p.update)
	p.finish()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, theme.Success("pushed "+a[0]))
	return nil
}

func modelsCreateAction(c *cli.Context) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}
	modelfile, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("read Modelfile: %w", err)
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := domain.CreateModelRequest{Name: a[0], Modelfile: string(modelfile)}
	if c.Bool(noStreamFlag.Name) {
		resp, err := rt.client.CreateModel(c.Context, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, theme.Success(fmt.Sprintf("created %s (%s)", a[0], resp.Status)))
		return nil
	}

	p := newProgressPrinter(c.App.ErrWriter)
	err = rt.client.CreateModelStream(c.Context, req, p.update)
	p.finish()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, theme.Success("created "+a[0]))
	return nil
}

// progressPrinter redraws one status line per progress record.
type progressPrinter struct {
	w       io.Writer
	lastLen int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) update(r domain.ProgressResponse) {
	line := progressLine(r)
	pad := ""
	if n := p.lastLen - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprint(p.w, "\r"+line+pad)
	p.lastLen = len(line)
}

func (p *progressPrinter) finish() {
	if p.lastLen > 0 {
		fmt.Fprintln(p.w)
	}
}

// progressLine formats one progress record, e.g.
// "pulling 8eeb52dfb3bb  42.1% (1.7 GB/4.1 GB)".
func progressLine(r domain.ProgressResponse) string {
	status := r.Status
	if r.Digest != "" && !strings.Contains(status, shortDigest(r.Digest)) {
		status += " " + shortDigest(r.Digest)
	}
	if pct := r.Percent(); pct >= 0 {
		return fmt.Sprintf("%s  %5.1f%% (%s/%s)", status, pct,
			humanize.Bytes(uint64(max(r.Completed, 0))), humanize.Bytes(uint64(r.Total)))
	}
	return status
}

func shortDigest(d string) string {
	d = strings.TrimPrefix(d, "sha256:")
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
