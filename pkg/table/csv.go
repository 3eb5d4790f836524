package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultSetSeparator = "|"
)

var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
}

// CSVOptions controls how cells are parsed and written.
type CSVOptions struct {
	// SetColumns are parsed into factor sets.
	SetColumns []string
	// SetSeparator splits factor labels within a cell, defaults to "|".
	SetSeparator string
	// Delimiter between fields, defaults to ','.
	Delimiter rune
}

func (o CSVOptions) separator() string {
	if o.SetSeparator == "" {
		return DefaultSetSeparator
	}
	return o.SetSeparator
}

func (o CSVOptions) isSetColumn(name string) bool {
	for _, c := range o.SetColumns {
		if c == name {
			return true
		}
	}
	return false
}

// ReadCSV parses a header row followed by records.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty CSV: header row required")
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := New(cols...)
	if len(t.columns) != len(cols) {
		return nil, fmt.Errorf("duplicate column names in header: %v", cols)
	}

	sets := make([]bool, len(cols))
	for i, c := range cols {
		sets[i] = opts.isSetColumn(c)
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}

		row := make([]Value, len(cols))
		for i := range cols {
			if i >= len(rec) {
				row[i] = Missing
				continue
			}
			if sets[i] {
				row[i] = parseSet(rec[i], opts.separator())
				continue
			}
			row[i] = parseCell(rec[i])
		}
		if err := t.AddRow(row...); err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}
	}

	return t, nil
}

// parseCell keeps infinities and hex literals as text: only finite decimal
// numbers survive the JSON cell encoding.
func parseCell(s string) Value {
	s = strings.TrimSpace(s)
	if missingTokens[strings.ToLower(s)] {
		return Missing
	}
	if strings.ContainsAny(s, "xX") {
		return Text(s)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		return Number(f)
	}
	return Text(s)
}

func parseSet(s, sep string) Value {
	s = strings.TrimSpace(s)
	if missingTokens[strings.ToLower(s)] && s != "" {
		return Missing
	}
	fs := FactorSet{}
	for _, p := range strings.Split(s, sep) {
		if l := strings.TrimSpace(p); l != "" {
			fs[l] = struct{}{}
		}
	}
	return Set(fs)
}

// WriteCSV writes the header and all rows. Missing cells are empty.
func WriteCSV(w io.Writer, t *Table, opts CSVOptions) error {
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}

	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	rec := make([]string, len(t.columns))
	for r, row := range t.rows {
		for i, v := range row {
			rec[i] = formatCell(v, opts.separator())
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", r, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

func formatCell(v Value, sep string) string {
	switch v.Kind() {
	case KindSet:
		fs, _ := v.Factors()
		return strings.Join(fs.Sorted(), sep)
	case KindMissing:
		return ""
	default:
		return v.String()
	}
}
