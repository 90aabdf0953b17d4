// Package report compares two sets of background cube models group by
// group: agreement statistics per energy slice, PNG figures with images
// and spectra, and an interactive HTML page.
package report

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/bgcube/internal/cube"
)

// CompareConfig selects what a comparison shows and where it is written.
type CompareConfig struct {
	// Energies (TeV) at which background images are drawn.
	Energies []float64
	// Coords are (x, y) detector positions in degrees at which spectra are
	// drawn.
	Coords [][2]float64
	// GroupIDs restricts the comparison; empty means every group present
	// in both model sets.
	GroupIDs []int

	Label1    string
	Label2    string
	OutputDir string
	SavePNG   bool
	WriteHTML bool
}

// DefaultCompareConfig draws images at 5 and 50 TeV and spectra at the
// detector centre and at (2, 2) deg for the mid-altitude groups.
func DefaultCompareConfig() CompareConfig {
	return CompareConfig{
		Energies:  []float64{5, 50},
		Coords:    [][2]float64{{0, 0}, {2, 2}},
		GroupIDs:  []int{14, 15, 20, 21, 26, 27},
		Label1:    "model 1",
		Label2:    "model 2",
		OutputDir: ".",
		SavePNG:   true,
		WriteHTML: true,
	}
}

// SliceStats measures agreement of one energy slice.
type SliceStats struct {
	EnergyLo float64
	EnergyHi float64
	// Correlation is Pearson's r over all spatial bins; NaN when either
	// slice is constant.
	Correlation float64
	// MeanRatio averages b/a over bins where both are positive; NaN when
	// there are none.
	MeanRatio float64
	Integral1 float64
	Integral2 float64
}

// Comparison is the agreement of two background cubes on shared binning.
type Comparison struct {
	Slices []SliceStats
}

// Compare checks that a and b share binning and unit and measures their
// agreement slice by slice.
func Compare(a, b *cube.Cube) (*Comparison, error) {
	if err := cube.CompareBinning(a.Edges(), b.Edges()); err != nil {
		return nil, err
	}
	if a.Unit != b.Unit {
		return nil, fmt.Errorf("expected same unit, but got %q and %q", a.Unit, b.Unit)
	}

	edges := a.Edges()
	energy := edges.Energy()
	omega := edges.SolidAngles()
	ne, _, _ := edges.Shape()

	out := &Comparison{Slices: make([]SliceStats, ne)}
	for ie := 0; ie < ne; ie++ {
		sa, sb := a.Slice(ie), b.Slice(ie)
		s := SliceStats{
			EnergyLo:    energy[ie],
			EnergyHi:    energy[ie+1],
			Correlation: stat.Correlation(sa, sb, nil),
			MeanRatio:   math.NaN(),
		}
		var ratios []float64
		for i := range sa {
			s.Integral1 += sa[i] * omega[i]
			s.Integral2 += sb[i] * omega[i]
			if sa[i] > 0 && sb[i] > 0 {
				ratios = append(ratios, sb[i]/sa[i])
			}
		}
		if len(ratios) > 0 {
			s.MeanRatio = stat.Mean(ratios, nil)
		}
		out.Slices[ie] = s
	}
	return out, nil
}

// MeanCorrelation averages the finite per-slice correlations; NaN when
// none is finite.
func (c *Comparison) MeanCorrelation() float64 {
	var vals []float64
	for _, s := range c.Slices {
		if !math.IsNaN(s.Correlation) && !math.IsInf(s.Correlation, 0) {
			vals = append(vals, s.Correlation)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}
