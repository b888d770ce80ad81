package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is one table column: its header and how its cells align.
type column struct {
	title string
	align text.Align
}

func left(title string) column  { return column{title: title, align: text.AlignLeft} }
func right(title string) column { return column{title: title, align: text.AlignRight} }

// The layouts printed by the CLI.
var (
	settingsColumns = []column{left("Setting"), left("Value")}
	summaryColumns  = []column{left("Field"), right("Value")}
	jobColumns      = []column{right("#"), left("Source"), left("Output"), right("Elapsed"), left("Error")}
	runColumns      = []column{
		left("Run"), left("Started"), left("Status"), left("Strategy"),
		right("Completed"), right("Failed"), right("Duration"),
	}
)

// renderTable draws rows in the rounded style. Missing trailing cells render
// empty and extra cells are dropped.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: c.align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := make(table.Row, len(columns))
		for i := range cells {
			cells[i] = ""
			if i < len(row) {
				cells[i] = row[i]
			}
		}
		tw.AppendRow(cells)
	}
	return tw.Render()
}
