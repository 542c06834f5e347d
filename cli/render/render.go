// Package render provides centralized output rendering for the sluice CLI.
//
// Format selection rules:
//   - --format always wins; unknown formats are errors
//   - otherwise a terminal gets a table and anything else gets json
//
// Table layout:
//   - A slice renders as one row per element under a header row
//   - A struct renders as "field: value" lines; slice-of-struct fields are
//     summarized inline and expanded as a titled section below
//   - Field names come from json tags so every format uses the same keys
//
// --no-color only strips styling from table section titles. TUI mode uses
// its own styling.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/sluice/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

var knownFormats = []Format{FormatJSON, FormatTable, FormatYAML}

// ParseFormat resolves a --format value. The empty string is returned as is
// so the caller can pick a default.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return "", nil
	}
	want := Format(strings.ToLower(s))
	for _, f := range knownFormats {
		if f == want {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
}

// Renderer writes command results in one format.
type Renderer struct {
	format Format
	out    io.Writer
	title  lipgloss.Style
}

// NewRenderer builds a renderer from the --format and --no-color flags.
// Output goes to the app writer so tests can capture it.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = defaultFormat(os.Stdout)
	}

	out := io.Writer(os.Stdout)
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}
	return NewRendererWithWriter(format, c.Bool("no-color"), out), nil
}

// NewRendererWithWriter creates a renderer writing to out.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	title := lipgloss.NewStyle()
	if !noColor {
		title = title.Bold(true)
	}
	return &Renderer{format: format, out: out, title: title}
}

// Render outputs data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI shows data interactively. Only read-only views support it.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func defaultFormat(f *os.File) Format {
	if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
		return FormatTable
	}
	return FormatJSON
}
