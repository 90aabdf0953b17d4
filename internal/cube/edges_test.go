package cube

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEdges_Validation(t *testing.T) {
	good := []float64{-1, 0, 1}
	tests := []struct {
		name      string
		e, y, x   []float64
		wantError bool
	}{
		{"valid", []float64{0.1, 1, 10}, good, good, false},
		{"single energy edge", []float64{1}, good, good, true},
		{"empty y", []float64{0.1, 1}, nil, good, true},
		{"non-increasing x", []float64{0.1, 1}, good, []float64{0, 0, 1}, true},
		{"decreasing energy", []float64{10, 1}, good, good, true},
		{"zero energy", []float64{0, 1}, good, good, true},
		{"NaN edge", []float64{0.1, math.NaN(), 1}, good, good, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEdges(tt.e, tt.y, tt.x)
			if (err != nil) != tt.wantError {
				t.Errorf("NewEdges() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestEdges_Immutable(t *testing.T) {
	energy := []float64{0.1, 1, 10}
	y := []float64{-2, 0, 2}
	e := MustEdges(energy, y, y)

	energy[0] = 99
	assert.Equal(t, 0.1, e.Energy()[0], "constructor must copy its input")

	got := e.Y()
	got[1] = 42
	assert.Equal(t, 0.0, e.Y()[1], "accessors must return copies")
}

func TestEdges_ShapeAndCenters(t *testing.T) {
	e := MustEdges([]float64{1, 10, 100}, []float64{-1, 0, 1, 2}, []float64{0, 2})
	ne, ny, nx := e.Shape()
	assert.Equal(t, [3]int{2, 3, 1}, [3]int{ne, ny, nx})
	assert.Equal(t, 6, e.Len())

	assert.InDeltaSlice(t, []float64{math.Sqrt(10), math.Sqrt(1000)}, e.EnergyCenters(), 1e-12)
	assert.Equal(t, []float64{-0.5, 0.5, 1.5}, e.YCenters())
	assert.Equal(t, []float64{1}, e.XCenters())
	assert.Equal(t, []float64{9, 90}, e.EnergyWidths())
}

func TestEdges_SolidAngles(t *testing.T) {
	e := MustEdges([]float64{1, 2}, []float64{0, 1, 3}, []float64{0, 2})
	got := e.SolidAngles()
	deg2 := (math.Pi / 180) * (math.Pi / 180)
	assert.InDeltaSlice(t, []float64{2 * deg2, 4 * deg2}, got, 1e-15)
}

func TestEdges_Locate(t *testing.T) {
	e := MustEdges([]float64{1, 10, 100}, []float64{-1, 0, 1}, []float64{-1, 0, 1})

	tests := []struct {
		name       string
		en, y, x   float64
		ie, iy, ix int
		ok         bool
	}{
		{"lower edges inclusive", 1, -1, -1, 0, 0, 0, true},
		{"interior edge opens next bin", 10, 0, 0, 1, 1, 1, true},
		{"last edge closed", 100, 1, 1, 1, 1, 1, true},
		{"below range", 0.5, 0, 0, 0, 0, 0, false},
		{"above range", 100.0001, 0, 0, 0, 0, 0, false},
		{"NaN rejected", 5, math.NaN(), 0, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ie, iy, ix, ok := e.Locate(tt.en, tt.y, tt.x)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, [3]int{tt.ie, tt.iy, tt.ix}, [3]int{ie, iy, ix})
			}
		})
	}
}

func TestCompareBinning(t *testing.T) {
	a := MustEdges([]float64{1, 10}, []float64{-1, 1}, []float64{-1, 1})
	b := MustEdges([]float64{1, 10}, []float64{-1, 1}, []float64{-1, 1})
	require.NoError(t, CompareBinning(a, b))
	assert.True(t, a.Equal(b))

	c := MustEdges([]float64{1, 10}, []float64{-2, 0, 2}, []float64{-1, 1})
	err := CompareBinning(a, c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBinningMismatch))

	var mismatch *BinningMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "DETY", mismatch.Axis)
	assert.Contains(t, err.Error(), "1 bins [-1, 1]")
	assert.Contains(t, err.Error(), "2 bins [-2, 2]")
}
