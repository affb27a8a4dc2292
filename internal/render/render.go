// Package render serializes transformed query results into their configured
// output formats.
package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/oakwood-commons/kqlrun/internal/config"
)

// UnrenderableShapeError reports a value whose shape does not fit the
// requested format: table and tsv need a sequence of objects.
type UnrenderableShapeError struct {
	Format config.Format
	Value  any
}

func (e *UnrenderableShapeError) Error() string {
	return fmt.Sprintf("cannot render %T as %s: expected a sequence of objects", e.Value, e.Format)
}

// Render serializes value into format. columns is the preferred column order
// for the tabular formats (normally the backend's column order); keys not
// listed are appended in sorted order. colorize enables ANSI color for the
// jsonc and yamlc variants and must be false for file destinations.
func Render(value any, columns []string, format config.Format, colorize bool) ([]byte, error) {
	switch format {
	case config.FormatJSON, config.FormatJSONC:
		b, err := marshalJSON(value)
		if err != nil || !colorize || format == config.FormatJSON {
			return b, err
		}
		return colorizeJSON(b), nil
	case config.FormatYAML, config.FormatYAMLC:
		b, err := marshalYAML(value)
		if err != nil || !colorize || format == config.FormatYAML {
			return b, err
		}
		return colorizeYAML(b), nil
	case config.FormatTable:
		return renderTable(value, columns)
	case config.FormatTSV:
		return renderTSV(value, columns)
	case config.FormatNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %q", format)
	}
}

func marshalJSON(value any) ([]byte, error) {
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return b, nil
}

func marshalYAML(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// rowsOf normalizes value into row maps for tabular rendering. A single
// object counts as one row; nil renders as an empty table.
func rowsOf(value any, format config.Format) ([]map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, el := range v {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, &UnrenderableShapeError{Format: format, Value: el}
			}
			rows = append(rows, m)
		}
		return rows, nil
	default:
		return nil, &UnrenderableShapeError{Format: format, Value: value}
	}
}

// orderColumns resolves the final column order: hinted columns that are
// present first, in hint order, then any remaining keys sorted. For an
// untransformed result the hint is the backend's column order, so the table
// matches the service response; after a projection the hint may cover only a
// subset and new keys get a deterministic fallback order.
func orderColumns(rows []map[string]any, hint []string) []string {
	present := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			present[k] = true
		}
	}
	seen := make(map[string]bool, len(present))
	cols := make([]string, 0, len(present))
	for _, h := range hint {
		if present[h] && !seen[h] {
			cols = append(cols, h)
			seen[h] = true
		}
	}
	rest := make([]string, 0, len(present))
	for k := range present {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func renderTable(value any, hint []string) ([]byte, error) {
	rows, err := rowsOf(value, config.FormatTable)
	if err != nil {
		return nil, err
	}
	cols := orderColumns(rows, hint)

	t := table.NewWriter()
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = cellString(r[c])
		}
		t.AppendRow(row)
	}
	t.SetStyle(table.StyleLight)
	t.Style().Format = table.FormatOptions{
		Footer: text.FormatDefault,
		Header: text.FormatDefault,
		Row:    text.FormatDefault,
	}
	t.Style().Options.DrawBorder = false
	return []byte(t.Render()), nil
}

func renderTSV(value any, hint []string) ([]byte, error) {
	rows, err := rowsOf(value, config.FormatTSV)
	if err != nil {
		return nil, err
	}
	cols := orderColumns(rows, hint)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	if err := w.Write(cols); err != nil {
		return nil, fmt.Errorf("encode tsv: %w", err)
	}
	record := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			record[i] = cellString(r[c])
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("encode tsv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode tsv: %w", err)
	}
	return buf.Bytes(), nil
}

// cellString renders one cell value. Nested structures collapse to compact
// JSON so tabular output stays single-line per row.
func cellString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
