package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrParse reports input that could not be read as a delimited table.
var ErrParse = errors.New("invalid tabular data")

// Kind classifies a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// missingTokens mirrors the NA markers most CSV exporters emit.
var missingTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
}

type column struct {
	name    string
	kind    Kind
	raw     []string
	nums    []float64 // NaN marks a missing cell; only set for numeric columns
	missing int
}

// Dataset is a parsed CSV snapshot. It is never mutated after Parse returns,
// so a single value may be shared across goroutines.
type Dataset struct {
	cols []column
	rows int
}

// Parse reads CSV data with a header row. Rows shorter than the header are
// padded with missing cells; rows longer than the header are rejected.
func Parse(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no header row", ErrParse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrParse, err)
	}

	names := headerNames(header)
	width := len(names)
	cells := make([][]string, width)
	rows := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if len(record) > width {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrParse, rows+1, len(record), width)
		}
		for i := 0; i < width; i++ {
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			cells[i] = append(cells[i], value)
		}
		rows++
	}

	ds := &Dataset{cols: make([]column, width), rows: rows}
	for i, name := range names {
		ds.cols[i] = buildColumn(name, cells[i], rows)
	}
	return ds, nil
}

func headerNames(header []string) []string {
	names := make([]string, len(header))
	// next holds the last suffix tried per base name; used marks every
	// name already assigned so a generated name never shadows a real one.
	next := make(map[string]int, len(header))
	used := make(map[string]struct{}, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := used[name]; dup {
			base := name
			for {
				next[base]++
				name = fmt.Sprintf("%s.%d", base, next[base])
				if _, taken := used[name]; !taken {
					break
				}
			}
		}
		used[name] = struct{}{}
		names[i] = name
	}
	return names
}

func buildColumn(name string, raw []string, rows int) column {
	col := column{name: name, kind: KindText, raw: raw}
	if raw == nil {
		col.raw = []string{}
	}

	nums := make([]float64, len(raw))
	numeric := rows > 0
	for i, v := range raw {
		if isMissing(v) {
			col.missing++
			nums[i] = math.NaN()
			continue
		}
		if !numeric {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			numeric = false
			continue
		}
		nums[i] = f
	}

	if numeric {
		col.kind = KindNumeric
		col.nums = nums
	}
	return col
}

func isMissing(v string) bool {
	_, ok := missingTokens[v]
	return ok
}

// Rows returns the number of data rows.
func (d *Dataset) Rows() int { return d.rows }

// Width returns the number of columns.
func (d *Dataset) Width() int { return len(d.cols) }

// Columns returns the column names in file order.
func (d *Dataset) Columns() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.name
	}
	return names
}

// Kind reports the inferred kind of the named column.
func (d *Dataset) Kind(name string) (Kind, bool) {
	if c := d.column(name); c != nil {
		return c.kind, true
	}
	return "", false
}

// NumericColumns returns the numeric column names in file order.
func (d *Dataset) NumericColumns() []string {
	var names []string
	for _, c := range d.cols {
		if c.kind == KindNumeric {
			names = append(names, c.name)
		}
	}
	return names
}

// NumericValues returns the non-missing values of a numeric column.
func (d *Dataset) NumericValues(name string) ([]float64, bool) {
	c := d.column(name)
	if c == nil || c.kind != KindNumeric {
		return nil, false
	}
	values := make([]float64, 0, len(c.nums)-c.missing)
	for _, v := range c.nums {
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	return values, true
}

// Missing returns the count of missing cells per column.
func (d *Dataset) Missing() map[string]int {
	out := make(map[string]int, len(d.cols))
	for _, c := range d.cols {
		out[c.name] = c.missing
	}
	return out
}

func (d *Dataset) column(name string) *column {
	for i := range d.cols {
		if d.cols[i].name == name {
			return &d.cols[i]
		}
	}
	return nil
}
