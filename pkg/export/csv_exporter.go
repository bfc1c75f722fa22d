package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
)

// ErrNoColumns is returned when a table has nothing to render.
var ErrNoColumns = errors.New("export requires at least one column")

// Column describes one exported field. Width is a relative PDF weight.
type Column struct {
	Key   string
	Title string
	Width float64
}

// Table is the tabular content shared by the CSV and PDF renderers.
type Table struct {
	Columns []Column
	Rows    []map[string]string
}

func (t Table) titles() []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = col.Title
		if out[i] == "" {
			out[i] = col.Key
		}
	}
	return out
}

// CSVExporter renders tables as RFC 4180 CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType reports the MIME type of rendered output.
func (e *CSVExporter) ContentType() string { return "text/csv" }

// Extension reports the file extension of rendered output.
func (e *CSVExporter) Extension() string { return "csv" }

// Render encodes the table, header row first.
func (e *CSVExporter) Render(table Table, _ string) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, ErrNoColumns
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(table.titles()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			record[i] = row[col.Key]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
