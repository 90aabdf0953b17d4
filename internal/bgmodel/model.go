// Package bgmodel builds cube background models: it chooses the binning for
// an observation group, accumulates counts and livetime, derives the
// background rate, smooths it while preserving flux and persists the three
// cubes as one file.
package bgmodel

import (
	"fmt"

	"github.com/banshee-data/bgcube/internal/cube"
)

// Model owns the counts, livetime and background cubes of one group. All
// three share identical edges; NewModel and NewEmptyModel enforce it.
type Model struct {
	Counts     *cube.Cube
	Livetime   *cube.Cube
	Background *cube.Cube
}

// NewEmptyModel returns a model with zero-filled cubes over edges.
func NewEmptyModel(edges cube.Edges) (*Model, error) {
	if edges.IsZero() {
		return nil, fmt.Errorf("%w: no bins", ErrDegenerateBinning)
	}
	return &Model{
		Counts:     cube.New(cube.Counts, edges),
		Livetime:   cube.New(cube.Livetime, edges),
		Background: cube.New(cube.Background, edges),
	}, nil
}

// NewModel bundles existing cubes after checking that they share binning.
func NewModel(counts, livetime, background *cube.Cube) (*Model, error) {
	if counts == nil || livetime == nil || background == nil {
		return nil, fmt.Errorf("model needs counts, livetime and background cubes")
	}
	edges := background.Edges()
	for _, c := range []*cube.Cube{counts, livetime} {
		if err := cube.CompareBinning(edges, c.Edges()); err != nil {
			return nil, fmt.Errorf("%s vs %s: %w", cube.Background.Name, c.Scheme.Name, err)
		}
	}
	return &Model{Counts: counts, Livetime: livetime, Background: background}, nil
}

// Edges returns the binning shared by the three cubes.
func (m *Model) Edges() cube.Edges { return m.Background.Edges() }

// TotalCounts is the sum of the counts cube.
func (m *Model) TotalCounts() float64 { return m.Counts.Sum() }

// HasAuxiliary reports whether counts and livetime both hold data and so
// are worth persisting.
func (m *Model) HasAuxiliary() bool {
	return m.Counts.Sum() > 0 && m.Livetime.Sum() > 0
}

// ComputeBackgroundRate overwrites the background cube with
// counts / (livetime * dE * dOmega) in 1 / (s TeV sr). Bins without
// livetime get zero.
func (m *Model) ComputeBackgroundRate() {
	edges := m.Edges()
	ne, ny, nx := edges.Shape()
	dE := edges.EnergyWidths()
	dOmega := edges.SolidAngles()
	n := ny * nx

	for ie := 0; ie < ne; ie++ {
		counts := m.Counts.Slice(ie)
		live := m.Livetime.Slice(ie)
		bg := m.Background.Slice(ie)
		for j := 0; j < n; j++ {
			if live[j] <= 0 {
				bg[j] = 0
				continue
			}
			bg[j] = counts[j] / (live[j] * dE[ie] * dOmega[j])
		}
	}
	m.Background.Unit = cube.Background.Unit
}
