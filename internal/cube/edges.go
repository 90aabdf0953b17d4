package cube

import (
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/bgcube/internal/units"
)

// Edges is the immutable set of bin boundaries shared by every cube of a
// model: energy in TeV and the two detector-plane axes in degrees.
// The zero value has no bins.
type Edges struct {
	energy []float64
	y      []float64
	x      []float64
}

// NewEdges copies the given boundaries and checks that each axis has at
// least one bin with strictly increasing values. Energy edges must be
// positive.
func NewEdges(energy, y, x []float64) (Edges, error) {
	for _, ax := range []struct {
		name string
		v    []float64
	}{{"energy", energy}, {"y", y}, {"x", x}} {
		if err := checkAxis(ax.name, ax.v); err != nil {
			return Edges{}, err
		}
	}
	if energy[0] <= 0 {
		return Edges{}, fmt.Errorf("energy edges must be positive, got %g", energy[0])
	}
	return Edges{
		energy: slices.Clone(energy),
		y:      slices.Clone(y),
		x:      slices.Clone(x),
	}, nil
}

// MustEdges is NewEdges for fixtures; it panics on invalid input.
func MustEdges(energy, y, x []float64) Edges {
	e, err := NewEdges(energy, y, x)
	if err != nil {
		panic(err)
	}
	return e
}

func checkAxis(name string, v []float64) error {
	if len(v) < 2 {
		return fmt.Errorf("%s axis needs at least 2 edges, got %d", name, len(v))
	}
	for i := 1; i < len(v); i++ {
		if math.IsNaN(v[i]) || !(v[i] > v[i-1]) {
			return fmt.Errorf("%s edges not strictly increasing at index %d (%g after %g)", name, i, v[i], v[i-1])
		}
	}
	return nil
}

// Energy returns a copy of the energy edges in TeV.
func (e Edges) Energy() []float64 { return slices.Clone(e.energy) }

// Y returns a copy of the detector-Y edges in degrees.
func (e Edges) Y() []float64 { return slices.Clone(e.y) }

// X returns a copy of the detector-X edges in degrees.
func (e Edges) X() []float64 { return slices.Clone(e.x) }

// Shape returns the number of bins along energy, Y and X.
func (e Edges) Shape() (ne, ny, nx int) {
	return bins(e.energy), bins(e.y), bins(e.x)
}

// Len is the total number of bins.
func (e Edges) Len() int {
	ne, ny, nx := e.Shape()
	return ne * ny * nx
}

func bins(v []float64) int {
	if len(v) < 2 {
		return 0
	}
	return len(v) - 1
}

// IsZero reports whether e holds no bins.
func (e Edges) IsZero() bool { return e.Len() == 0 }

// Equal reports whether both edge sets are bit-identical.
func (e Edges) Equal(o Edges) bool {
	return slices.Equal(e.energy, o.energy) && slices.Equal(e.y, o.y) && slices.Equal(e.x, o.x)
}

// EnergyCenters returns the logarithmic bin centres sqrt(lo*hi).
func (e Edges) EnergyCenters() []float64 {
	out := make([]float64, bins(e.energy))
	for i := range out {
		out[i] = math.Sqrt(e.energy[i] * e.energy[i+1])
	}
	return out
}

// YCenters returns the linear detector-Y bin centres.
func (e Edges) YCenters() []float64 { return linearCenters(e.y) }

// XCenters returns the linear detector-X bin centres.
func (e Edges) XCenters() []float64 { return linearCenters(e.x) }

func linearCenters(v []float64) []float64 {
	out := make([]float64, bins(v))
	for i := range out {
		out[i] = 0.5 * (v[i] + v[i+1])
	}
	return out
}

// EnergyWidths returns hi-lo per energy bin in TeV.
func (e Edges) EnergyWidths() []float64 { return widths(e.energy) }

func widths(v []float64) []float64 {
	out := make([]float64, bins(v))
	for i := range out {
		out[i] = v[i+1] - v[i]
	}
	return out
}

// SolidAngles returns the solid angle in steradian of each spatial bin,
// flattened in (y, x) row-major order.
func (e Edges) SolidAngles() []float64 {
	dy, dx := widths(e.y), widths(e.x)
	out := make([]float64, len(dy)*len(dx))
	for iy, wy := range dy {
		for ix, wx := range dx {
			out[iy*len(dx)+ix] = units.SolidAngle(wy, wx)
		}
	}
	return out
}

// Locate returns the bin indices containing (energy, y, x) using the same
// half-open convention as the histogram fill, with the upper edge of each
// axis included in its last bin.
func (e Edges) Locate(energy, y, x float64) (ie, iy, ix int, ok bool) {
	if ie, ok = locate(e.energy, energy); !ok {
		return
	}
	if iy, ok = locate(e.y, y); !ok {
		return
	}
	ix, ok = locate(e.x, x)
	return
}

// locate finds i with v[i] <= val < v[i+1]; val equal to the last edge maps
// to the last bin. NaN and out-of-range values are rejected.
func locate(v []float64, val float64) (int, bool) {
	n := len(v)
	if n < 2 || math.IsNaN(val) || val < v[0] || val > v[n-1] {
		return 0, false
	}
	if val == v[n-1] {
		return n - 2, true
	}
	i, found := slices.BinarySearch(v, val)
	if !found {
		i--
	}
	return i, true
}

// CompareBinning returns a *BinningMismatchError describing the first axis
// on which a and b disagree, or nil when they are identical.
func CompareBinning(a, b Edges) error {
	for _, ax := range []struct {
		name string
		l, r []float64
	}{{"ENERGY", a.energy, b.energy}, {"DETY", a.y, b.y}, {"DETX", a.x, b.x}} {
		if !slices.Equal(ax.l, ax.r) {
			return &BinningMismatchError{Axis: ax.name, Left: formatAxis(ax.l), Right: formatAxis(ax.r)}
		}
	}
	return nil
}

func formatAxis(v []float64) string {
	if len(v) == 0 {
		return "[]"
	}
	return fmt.Sprintf("%d bins [%g, %g]", bins(v), v[0], v[len(v)-1])
}
