// Package fitsutil holds the small FITS helpers shared by the cube, run
// list and data store readers: typed header access, HDU lookup and
// column-wise reads of scalar binary tables.
package fitsutil

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/astrogo/fitsio"
)

// ErrMissingCard is returned when a required header keyword is absent.
var ErrMissingCard = errors.New("missing header card")

// HeaderInt reads an integer-valued card. fitsio decodes integers as int but
// values written by other tools may arrive as int64 or float64.
func HeaderInt(hdr *fitsio.Header, name string) (int, error) {
	card := hdr.Get(name)
	if card == nil {
		return 0, fmt.Errorf("%w %s", ErrMissingCard, name)
	}
	switch v := card.Value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("header card %s: not an integer: %v", name, card.Value)
}

// HeaderFloat reads a numeric card as float64.
func HeaderFloat(hdr *fitsio.Header, name string) (float64, error) {
	card := hdr.Get(name)
	if card == nil {
		return 0, fmt.Errorf("%w %s", ErrMissingCard, name)
	}
	switch v := card.Value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	}
	return 0, fmt.Errorf("header card %s: not a number: %v", name, card.Value)
}

// HeaderString reads a string card, trimming FITS padding.
func HeaderString(hdr *fitsio.Header, name string) (string, error) {
	card := hdr.Get(name)
	if card == nil {
		return "", fmt.Errorf("%w %s", ErrMissingCard, name)
	}
	v, ok := card.Value.(string)
	if !ok {
		return "", fmt.Errorf("header card %s: not a string: %v", name, card.Value)
	}
	return strings.TrimSpace(v), nil
}

// HeaderComment returns the comment of a card, or "" when absent.
func HeaderComment(hdr *fitsio.Header, name string) string {
	card := hdr.Get(name)
	if card == nil {
		return ""
	}
	return strings.TrimSpace(card.Comment)
}

// FindTable returns the first binary or ASCII table whose EXTNAME matches
// name case-insensitively.
func FindTable(f *fitsio.File, name string) (*fitsio.Table, bool) {
	for _, hdu := range f.HDUs() {
		table, ok := hdu.(*fitsio.Table)
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(hdu.Name()), name) {
			return table, true
		}
	}
	return nil, false
}

// Columns is a column-major float64 view over a scalar table.
type Columns struct {
	Len    int
	Values map[string][]float64
	Units  map[string]string
}

// Has reports whether the named column was read.
func (c *Columns) Has(name string) bool {
	_, ok := c.Values[name]
	return ok
}

// ReadColumns reads every row of a table, returning the requested columns
// converted to float64. Requested columns must be scalar numeric or string;
// other columns may have any format. A missing requested column is an
// error.
func ReadColumns(table *fitsio.Table, names ...string) (*Columns, error) {
	cols := table.Cols()
	index := make(map[string]int, len(cols))
	for i, col := range cols {
		index[strings.ToUpper(strings.TrimSpace(col.Name))] = i
	}
	for _, name := range names {
		if _, ok := index[strings.ToUpper(name)]; !ok {
			return nil, fmt.Errorf("table %s: missing column %s", table.Name(), name)
		}
	}

	n := int(table.NumRows())
	out := &Columns{
		Len:    n,
		Values: make(map[string][]float64, len(names)),
		Units:  make(map[string]string, len(names)),
	}

	requested := make(map[int]bool, len(names))
	for _, name := range names {
		requested[index[strings.ToUpper(name)]] = true
	}
	targets := make([]any, len(cols))
	getters := make([]func() float64, len(cols))
	for i := range cols {
		if !requested[i] {
			// Scanned into a value of the column's own type and discarded.
			targets[i] = reflect.New(cols[i].Type()).Interface()
			continue
		}
		t, get, err := scalarTarget(cols[i])
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table.Name(), err)
		}
		targets[i], getters[i] = t, get
	}
	for _, name := range names {
		col := cols[index[strings.ToUpper(name)]]
		out.Values[name] = make([]float64, 0, n)
		out.Units[name] = strings.TrimSpace(col.Unit)
	}

	rows, err := table.Read(0, table.NumRows())
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", table.Name(), err)
	}
	defer rows.Close()

	for r := 0; rows.Next(); r++ {
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan table %s row %d: %w", table.Name(), r, err)
		}
		for _, name := range names {
			i := index[strings.ToUpper(name)]
			out.Values[name] = append(out.Values[name], getters[i]())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read table %s: %w", table.Name(), err)
	}
	return out, nil
}

// scalarTarget allocates a scan destination for a single-element column
// and a getter converting the scanned value to float64. String columns scan
// into a string and read back as NaN.
func scalarTarget(col fitsio.Column) (any, func() float64, error) {
	format := strings.TrimLeft(strings.TrimSpace(col.Format), "1")
	switch format {
	case "D":
		var v float64
		return &v, func() float64 { return v }, nil
	case "E":
		var v float32
		return &v, func() float64 { return float64(v) }, nil
	case "K":
		var v int64
		return &v, func() float64 { return float64(v) }, nil
	case "J":
		var v int32
		return &v, func() float64 { return float64(v) }, nil
	case "I":
		var v int16
		return &v, func() float64 { return float64(v) }, nil
	case "B":
		var v uint8
		return &v, func() float64 { return float64(v) }, nil
	}
	if strings.HasSuffix(format, "A") {
		var v string
		return &v, func() float64 { return math.NaN() }, nil
	}
	return nil, nil, fmt.Errorf("column %s: unsupported format %q", col.Name, col.Format)
}
