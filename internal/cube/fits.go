package cube

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"

	"github.com/banshee-data/bgcube/internal/fitsutil"
	"github.com/banshee-data/bgcube/internal/units"
)

// Column names of the per-bin table layout.
const (
	colEnergyLo = "ENERG_LO"
	colEnergyHi = "ENERG_HI"
	colDetYLo   = "DETY_LO"
	colDetYHi   = "DETY_HI"
	colDetXLo   = "DETX_LO"
	colDetXHi   = "DETX_HI"
)

// Table serialises the cube as a FITS binary table named after its scheme.
// Each row is one bin, (energy, y, x) in row-major order, carrying its own
// edges so the binning can be rebuilt on read. NENERGY, NDETY and NDETX
// header cards record the shape.
func (c *Cube) Table() (*fitsio.Table, error) {
	cols := []fitsio.Column{
		{Name: colEnergyLo, Format: "D", Unit: units.TeV},
		{Name: colEnergyHi, Format: "D", Unit: units.TeV},
		{Name: colDetYLo, Format: "D", Unit: units.Degree},
		{Name: colDetYHi, Format: "D", Unit: units.Degree},
		{Name: colDetXLo, Format: "D", Unit: units.Degree},
		{Name: colDetXHi, Format: "D", Unit: units.Degree},
		{Name: c.Scheme.Column, Format: "D", Unit: c.Unit},
	}
	table, err := fitsio.NewTable(c.Scheme.Name, cols, fitsio.BINARY_TBL)
	if err != nil {
		return nil, fmt.Errorf("create %s table: %w", c.Scheme.Name, err)
	}

	ne, ny, nx := c.Shape()
	err = table.Header().Append(
		fitsio.Card{Name: "NENERGY", Value: ne, Comment: "number of energy bins"},
		fitsio.Card{Name: "NDETY", Value: ny, Comment: "number of detector-Y bins"},
		fitsio.Card{Name: "NDETX", Value: nx, Comment: "number of detector-X bins"},
	)
	if err != nil {
		table.Close()
		return nil, fmt.Errorf("%s header: %w", c.Scheme.Name, err)
	}

	e, y, x := c.edges.energy, c.edges.y, c.edges.x
	for ie := 0; ie < ne; ie++ {
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				elo, ehi := e[ie], e[ie+1]
				ylo, yhi := y[iy], y[iy+1]
				xlo, xhi := x[ix], x[ix+1]
				v := c.At(ie, iy, ix)
				if err := table.Write(&elo, &ehi, &ylo, &yhi, &xlo, &xhi, &v); err != nil {
					table.Close()
					return nil, fmt.Errorf("write %s row: %w", c.Scheme.Name, err)
				}
			}
		}
	}
	return table, nil
}

// FromTable rebuilds a cube from a table written by Table. Edge columns in
// other energy or angle units are converted to TeV and degrees; the data
// column's unit becomes the cube's Unit (the scheme default when absent).
func FromTable(table *fitsio.Table, scheme Scheme) (*Cube, error) {
	hdr := table.Header()
	var shape [3]int
	for i, key := range []string{"NENERGY", "NDETY", "NDETX"} {
		n, err := fitsutil.HeaderInt(hdr, key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", scheme.Name, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("%s: invalid %s %d", scheme.Name, key, n)
		}
		shape[i] = n
	}
	ne, ny, nx := shape[0], shape[1], shape[2]

	cols, err := fitsutil.ReadColumns(table,
		colEnergyLo, colEnergyHi, colDetYLo, colDetYHi, colDetXLo, colDetXHi, scheme.Column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scheme.Name, err)
	}
	if cols.Len != ne*ny*nx {
		return nil, fmt.Errorf("%s: %d rows for shape (%d, %d, %d)", scheme.Name, cols.Len, ne, ny, nx)
	}

	efac, err := columnFactor(cols, colEnergyLo, units.EnergyFactor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scheme.Name, err)
	}
	yfac, err := columnFactor(cols, colDetYLo, units.AngleFactor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scheme.Name, err)
	}
	xfac, err := columnFactor(cols, colDetXLo, units.AngleFactor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scheme.Name, err)
	}

	energy := make([]float64, ne+1)
	y := make([]float64, ny+1)
	x := make([]float64, nx+1)
	v := cols.Values
	for r := 0; r < cols.Len; r++ {
		ie, iy, ix := r/(ny*nx), (r/nx)%ny, r%nx
		energy[ie], energy[ie+1] = v[colEnergyLo][r]*efac, v[colEnergyHi][r]*efac
		y[iy], y[iy+1] = v[colDetYLo][r]*yfac, v[colDetYHi][r]*yfac
		x[ix], x[ix+1] = v[colDetXLo][r]*xfac, v[colDetXHi][r]*xfac
	}

	edges, err := NewEdges(energy, y, x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scheme.Name, err)
	}
	c, err := FromData(scheme, edges, v[scheme.Column])
	if err != nil {
		return nil, err
	}
	if u := cols.Units[scheme.Column]; u != "" {
		c.Unit = u
	}
	return c, nil
}

// columnFactor returns the conversion of a column to the canonical unit.
// Unit-less edge columns are taken to already be canonical.
func columnFactor(cols *fitsutil.Columns, name string, conv func(string) (float64, error)) (float64, error) {
	u := cols.Units[name]
	if u == "" {
		return 1, nil
	}
	f, err := conv(u)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return f, nil
}

// Encode writes an empty primary HDU carrying cards, followed by one binary
// table per cube in the given order.
func Encode(w io.Writer, cards []fitsio.Card, cubes ...*Cube) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("create FITS stream: %w", err)
	}
	defer f.Close()

	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return fmt.Errorf("primary HDU: %w", err)
	}
	defer phdu.Close()
	if len(cards) > 0 {
		if err := phdu.Header().Append(cards...); err != nil {
			return fmt.Errorf("primary header: %w", err)
		}
	}
	if err := f.Write(phdu); err != nil {
		return fmt.Errorf("write primary HDU: %w", err)
	}

	for _, c := range cubes {
		table, err := c.Table()
		if err != nil {
			return err
		}
		err = f.Write(table)
		table.Close()
		if err != nil {
			return fmt.Errorf("write %s table: %w", c.Scheme.Name, err)
		}
	}
	return nil
}

// Decode reads the tables named by schemes from a FITS stream. Schemes with
// no matching extension are absent from the result; callers decide whether
// that is an error.
func Decode(r io.Reader, schemes ...Scheme) (map[string]*Cube, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("open FITS stream: %w", err)
	}
	defer f.Close()

	out := make(map[string]*Cube, len(schemes))
	for _, s := range schemes {
		table, ok := fitsutil.FindTable(f, s.Name)
		if !ok {
			continue
		}
		c, err := FromTable(table, s)
		if err != nil {
			return nil, err
		}
		out[s.Name] = c
	}
	return out, nil
}
