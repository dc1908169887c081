package export

import "fmt"

// Dataset is a titled table ready to be rendered as CSV or PDF.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// AddRow appends a row, which must match the header width.
func (d *Dataset) AddRow(values ...string) error {
	if len(values) != len(d.Headers) {
		return fmt.Errorf("row has %d columns, want %d", len(values), len(d.Headers))
	}
	d.Rows = append(d.Rows, values)
	return nil
}

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(row), len(d.Headers))
		}
	}
	return nil
}
