// Package cube holds the dense 3-D histograms the background model is made
// of. A Cube pairs immutable bin edges with a mutable data slice indexed
// (energy, y, x) in row-major order.
package cube

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/bgcube/internal/units"
)

// Scheme names one of the three cube kinds: the FITS extension name, the
// data column name and the canonical physical unit.
type Scheme struct {
	Name   string
	Column string
	Unit   string
}

var (
	Counts     = Scheme{Name: "COUNTS", Column: "COUNTS", Unit: units.Dimensionless}
	Livetime   = Scheme{Name: "LIVETIME", Column: "LIVETIME", Unit: units.Second}
	Background = Scheme{Name: "BACKGROUND", Column: "BGD", Unit: units.BackgroundRate}
)

// Cube is a dense histogram over Edges. len(Data) always equals
// Edges().Len(); callers may mutate Data values but must not resize it.
type Cube struct {
	Scheme Scheme
	Unit   string
	Data   []float64

	edges Edges
}

// New returns a zero-filled cube tagged with the scheme's unit.
func New(scheme Scheme, edges Edges) *Cube {
	return &Cube{
		Scheme: scheme,
		Unit:   scheme.Unit,
		Data:   make([]float64, edges.Len()),
		edges:  edges,
	}
}

// FromData wraps data (without copying) after checking its length.
func FromData(scheme Scheme, edges Edges, data []float64) (*Cube, error) {
	if len(data) != edges.Len() {
		ne, ny, nx := edges.Shape()
		return nil, fmt.Errorf("%s: data length %d does not match shape (%d, %d, %d)",
			scheme.Name, len(data), ne, ny, nx)
	}
	return &Cube{Scheme: scheme, Unit: scheme.Unit, Data: data, edges: edges}, nil
}

// Edges returns the cube's bin edges.
func (c *Cube) Edges() Edges { return c.edges }

// Shape returns (n_energy, n_y, n_x).
func (c *Cube) Shape() (ne, ny, nx int) { return c.edges.Shape() }

// Index flattens (ie, iy, ix) into an offset into Data.
func (c *Cube) Index(ie, iy, ix int) int {
	_, ny, nx := c.edges.Shape()
	return (ie*ny+iy)*nx + ix
}

// At returns the value of one bin.
func (c *Cube) At(ie, iy, ix int) float64 { return c.Data[c.Index(ie, iy, ix)] }

// Slice returns the (y, x) image of energy bin ie. The returned slice
// aliases Data.
func (c *Cube) Slice(ie int) []float64 {
	_, ny, nx := c.edges.Shape()
	n := ny * nx
	return c.Data[ie*n : (ie+1)*n : (ie+1)*n]
}

// Spectrum returns a copy of the energy profile at spatial bin (iy, ix).
func (c *Cube) Spectrum(iy, ix int) []float64 {
	ne, _, _ := c.edges.Shape()
	out := make([]float64, ne)
	for ie := range out {
		out[ie] = c.At(ie, iy, ix)
	}
	return out
}

// Sum returns the total over all bins.
func (c *Cube) Sum() float64 { return floats.Sum(c.Data) }

// Clone returns a deep copy of the cube data sharing the same edges.
func (c *Cube) Clone() *Cube {
	return &Cube{Scheme: c.Scheme, Unit: c.Unit, Data: slices.Clone(c.Data), edges: c.edges}
}

// Value returns the content of the bin containing (energy, y, x).
func (c *Cube) Value(energy, y, x float64) (float64, bool) {
	ie, iy, ix, ok := c.edges.Locate(energy, y, x)
	if !ok {
		return 0, false
	}
	return c.At(ie, iy, ix), true
}
