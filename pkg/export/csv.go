package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSVExporter renders datasets as comma separated values.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render returns the dataset encoded as CSV with a header row.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := e.Write(buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the dataset to w.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if err := data.validate(); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	if err := writer.WriteAll(data.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// Record is one input row keyed by lower-cased, trimmed header name.
type Record struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed value for column, or "" when absent.
func (r Record) Get(column string) string {
	return strings.TrimSpace(r.Values[strings.ToLower(column)])
}

// ReadRecords parses header-keyed CSV. Rows may be shorter or longer than
// the header; missing cells read as empty and extra cells are ignored.
func ReadRecords(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv input is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		values := make(map[string]string, len(columns))
		for i, column := range columns {
			if column == "" || i >= len(row) {
				continue
			}
			values[column] = row[i]
		}
		records = append(records, Record{Line: line, Values: values})
	}
	return records, nil
}
