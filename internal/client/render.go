package client

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// renderRows writes rows in the requested format with columns in the given
// order.
func renderRows(out io.Writer, columns []string, rows []types.Row, format string) error {
	switch format {
	case "json":
		return renderJSON(out, rows)
	case "csv":
		return renderCSV(out, columns, rows)
	default:
		return renderTable(out, columns, rows)
	}
}

func renderTable(out io.Writer, columns []string, rows []types.Row) error {
	if len(rows) == 0 {
		fmt.Fprintln(out, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, row := range rows {
		cells := make(table.Row, len(columns))
		for i, c := range columns {
			cells[i] = cellText(row, c)
		}
		t.AppendRow(cells)
	}

	t.Render()
	fmt.Fprintf(out, "(%d rows)\n", len(rows))
	return nil
}

func renderJSON(out io.Writer, rows []types.Row) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func renderCSV(out io.Writer, columns []string, rows []types.Row) error {
	fmt.Fprintln(out, strings.Join(columns, ","))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = escapeCSV(cellText(row, c))
		}
		fmt.Fprintln(out, strings.Join(cells, ","))
	}
	return nil
}

func cellText(row types.Row, column string) string {
	v, ok := row[column]
	if !ok {
		return ""
	}
	return v.String()
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// printSchema lists tables and their columns in declaration order.
func printSchema(out io.Writer, schema *types.Schema) {
	fmt.Fprintf(out, "database %s (%s backend)\n", schema.Name, schema.Kind)
	names := make([]string, 0, len(schema.Tables))
	for name := range schema.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		specs := make([]string, 0, len(schema.Tables[name].Columns))
		for _, c := range schema.Tables[name].Columns {
			specs = append(specs, c.Name+":"+c.Type.String())
		}
		fmt.Fprintf(out, "  %s (%s)\n", name, strings.Join(specs, ", "))
	}
}
