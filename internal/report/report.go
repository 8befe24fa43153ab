// Package report renders reconciliation results and live schemas for the console.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/maloquacious/schemactl/internal/schema"
)

// Format types for output.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat converts s to a Format. An empty string means auto-detect.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(s))
	switch format {
	case FormatTable, FormatJSON, FormatYAML, "":
		return format, nil
	default:
		return "", fmt.Errorf("invalid format %q: must be one of: table, json, yaml", s)
	}
}

// DetectFormat returns explicit if set, otherwise table on a terminal and JSON for pipes.
func DetectFormat(explicit Format) Format {
	if explicit != "" {
		return explicit
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

// Row is one line of a results report.
type Row struct {
	Table  string `json:"table" yaml:"table"`
	Kind   string `json:"kind" yaml:"kind"`
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
	Action string `json:"action" yaml:"action"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Rows flattens results into report rows, in result order.
func Rows(results []*schema.Result) []Row {
	var rows []Row
	for _, r := range results {
		if r.Aborted != nil {
			rows = append(rows, Row{Table: r.Table, Kind: "table", Name: r.Table, Action: string(schema.ActionFailed), Detail: r.Aborted.Error()})
		}
		for _, c := range r.Columns {
			row := Row{Table: r.Table, Kind: "column", Name: c.Column.Name, Type: c.Column.Type, Action: string(c.Action)}
			switch {
			case c.Err != nil:
				row.Detail = c.Err.Error()
			case c.TypeMismatch:
				row.Detail = fmt.Sprintf("type mismatch: live %q", c.LiveType)
			}
			rows = append(rows, row)
		}
		for _, i := range r.Indexes {
			row := Row{Table: r.Table, Kind: "index", Name: i.Index.Name, Type: indexType(i.Index), Action: string(i.Action)}
			if i.Err != nil {
				row.Detail = i.Err.Error()
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func indexType(idx schema.Index) string {
	cols := "(" + strings.Join(idx.Columns, ", ") + ")"
	if idx.Unique {
		return "UNIQUE " + cols
	}
	return cols
}

// Summary is the per-action totals of a run.
type Summary struct {
	Added   int `json:"added" yaml:"added"`
	Present int `json:"present" yaml:"present"`
	Missing int `json:"missing,omitempty" yaml:"missing,omitempty"`
	Failed  int `json:"failed" yaml:"failed"`
	Skipped int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Aborted int `json:"aborted,omitempty" yaml:"aborted,omitempty"`
}

// Summarize totals results.
func Summarize(results []*schema.Result) Summary {
	var s Summary
	for _, r := range results {
		s.Added += r.Count(schema.ActionAdded)
		s.Present += r.Count(schema.ActionPresent)
		s.Missing += r.Count(schema.ActionMissing)
		s.Failed += r.Count(schema.ActionFailed)
		s.Skipped += r.Count(schema.ActionSkipped)
		if r.Aborted != nil {
			s.Aborted++
		}
	}
	return s
}

func (s Summary) String() string {
	parts := []string{
		fmt.Sprintf("%d added", s.Added),
		fmt.Sprintf("%d present", s.Present),
	}
	if s.Missing > 0 {
		parts = append(parts, fmt.Sprintf("%d missing", s.Missing))
	}
	parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	if s.Aborted > 0 {
		parts = append(parts, fmt.Sprintf("%d tables aborted", s.Aborted))
	}
	return strings.Join(parts, ", ")
}

type resultsDoc struct {
	Summary Summary `json:"summary" yaml:"summary"`
	Items   []Row   `json:"items" yaml:"items"`
}

// WriteResults renders results in format.
func WriteResults(w io.Writer, format Format, results []*schema.Result) error {
	rows := Rows(results)
	summary := Summarize(results)

	switch DetectFormat(format) {
	case FormatJSON:
		return writeJSON(w, resultsDoc{Summary: summary, Items: rows})
	case FormatYAML:
		return writeYAML(w, resultsDoc{Summary: summary, Items: rows})
	}

	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{r.Table, r.Kind, r.Name, r.Type, r.Action, r.Detail}
	}
	if err := writeTable(w, []string{"Table", "Kind", "Name", "Type", "Action", "Detail"}, data); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, summary.String())
	return err
}

// WriteSchema renders a live table schema in format.
func WriteSchema(w io.Writer, format Format, t *schema.Table) error {
	switch DetectFormat(format) {
	case FormatJSON:
		return writeJSON(w, t)
	case FormatYAML:
		return writeYAML(w, t)
	}

	data := make([][]string, len(t.Columns))
	for i, c := range t.Columns {
		def := ""
		if c.Default != nil {
			def = *c.Default
		}
		pk := ""
		if c.PrimaryKey > 0 {
			pk = fmt.Sprint(c.PrimaryKey)
		}
		data[i] = []string{fmt.Sprint(c.Position), c.Name, c.Type, yesNo(c.NotNull), def, pk}
	}
	if _, err := fmt.Fprintf(w, "table %s\n", t.Name); err != nil {
		return err
	}
	if err := writeTable(w, []string{"#", "Column", "Type", "Not Null", "Default", "PK"}, data); err != nil {
		return err
	}
	if len(t.Indexes) == 0 {
		return nil
	}

	data = make([][]string, len(t.Indexes))
	for i, idx := range t.Indexes {
		data[i] = []string{idx.Name, strings.Join(idx.Columns, ", "), yesNo(idx.Unique), idx.Origin}
	}
	return writeTable(w, []string{"Index", "Columns", "Unique", "Origin"}, data)
}

// WriteList renders a flat list of names, such as tables.
func WriteList(w io.Writer, format Format, header string, items []string) error {
	switch DetectFormat(format) {
	case FormatJSON:
		return writeJSON(w, items)
	case FormatYAML:
		return writeYAML(w, items)
	}
	data := make([][]string, len(items))
	for i, it := range items {
		data[i] = []string{it}
	}
	return writeTable(w, []string{header}, data)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.MarshalWithOptions(v, yaml.Indent(2), yaml.IndentSequence(false))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewTable(w)

	h := make([]any, len(headers))
	for i, v := range headers {
		h[i] = v
	}
	table.Header(h...)

	for _, row := range rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}
