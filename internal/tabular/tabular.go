// Package tabular turns uploaded CSV and XLSX files into a header plus rows
// of raw cell text.
package tabular

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format identifies a supported tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrUnsupportedFormat is returned for file names with an unknown extension.
	ErrUnsupportedFormat = errors.New("tabular: unsupported file format")
	// ErrUnreadable wraps every failure to decode a file of a supported format.
	ErrUnreadable = errors.New("tabular: unreadable file")
)

// Table is a parsed sheet. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Detect picks the format from the file extension, ignoring case.
func Detect(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// Parse reads the whole of r and decodes it as format.
func Parse(r io.Reader, format Format) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSV(r)
	case FormatXLSX:
		rows, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	table, err := newTable(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return table, nil
}

// Records returns each row keyed by its trimmed header name. When a header
// repeats, the leftmost column wins.
func (t *Table) Records() []map[string]string {
	if t == nil {
		return nil
	}
	records := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Header))
		for i, name := range t.Header {
			if _, seen := rec[name]; !seen {
				rec[name] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records
}

func newTable(rows [][]string) (*Table, error) {
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, errors.New("no columns to parse from file")
	}
	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return nil, errors.New("no columns to parse from file")
	}

	table := &Table{Header: header, Rows: make([][]string, 0, len(rows)-1)}
	for i, raw := range rows[1:] {
		if len(raw) > len(header) && !blankTail(raw[len(header):]) {
			return nil, fmt.Errorf("expected %d fields in line %d, saw %d", len(header), i+2, len(raw))
		}
		row := make([]string, len(header))
		copy(row, raw)
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		if blankTail(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func blankTail(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
