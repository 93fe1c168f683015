package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrMalformedCSV indicates the input could not be read as delimited text.
	ErrMalformedCSV = errors.New("importer: malformed csv")
	// ErrMissingColumn indicates a required header is absent.
	ErrMissingColumn = errors.New("importer: missing required column")
)

// table is a header-indexed view over parsed CSV records.
type table struct {
	columns map[string]int
	rows    [][]string
}

// readTable parses header-based CSV text. A leading byte order mark is dropped
// and header names are matched case-insensitively.
func readTable(text string) (*table, error) {
	src := transform.NewReader(strings.NewReader(text), unicode.BOMOverride(transform.Nop))
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMalformedCSV)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	t := &table{columns: make(map[string]int, len(header))}
	for i, name := range header {
		key := normalizeHeader(name)
		if key == "" {
			continue
		}
		if _, dup := t.columns[key]; !dup {
			t.columns[key] = i
		}
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		if blank(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// require returns the column index of the first alias present.
func (t *table) require(aliases ...string) (int, error) {
	if idx, ok := t.lookup(aliases...); ok {
		return idx, nil
	}
	return -1, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(aliases, " or "))
}

func (t *table) lookup(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if idx, ok := t.columns[normalizeHeader(a)]; ok {
			return idx, true
		}
	}
	return -1, false
}

// field returns the trimmed cell at idx, or "" when the row is short or idx < 0.
func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// optional returns the cell of the first alias present in the header.
func (t *table) optional(row []string, aliases ...string) string {
	idx, ok := t.lookup(aliases...)
	if !ok {
		return ""
	}
	return field(row, idx)
}

func normalizeHeader(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// SplitList splits a semicolon-delimited cell into trimmed, non-empty values.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
