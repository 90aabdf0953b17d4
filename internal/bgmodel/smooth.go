package bgmodel

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/bgcube/internal/config"
	"github.com/banshee-data/bgcube/internal/cube"
	"github.com/banshee-data/bgcube/internal/monitoring"
)

// k5a is the 5x5 smoothing kernel. It is not normalised; Smooth rescales
// each slice afterwards.
var k5a = mat.NewDense(5, 5, []float64{
	0, 0, 1, 0, 0,
	0, 2, 2, 2, 0,
	1, 2, 5, 2, 1,
	0, 2, 2, 2, 0,
	0, 0, 1, 0, 0,
})

// SmoothingPasses returns how many times each slice is convolved for a
// model holding totalCounts events: fewer counts, more passes.
func SmoothingPasses(totalCounts float64, cfg *config.BuilderConfig) int {
	switch {
	case totalCounts >= cfg.GetSmoothingHighCounts():
		return cfg.GetSmoothingPassesHigh()
	case totalCounts >= cfg.GetSmoothingMidCounts():
		return cfg.GetSmoothingPassesMid()
	default:
		return cfg.GetSmoothingPassesLow()
	}
}

// SmoothStats describes one Smooth call.
type SmoothStats struct {
	Passes        int
	TotalCounts   float64
	Reference     []float64 // per energy slice, before smoothing, 1 / (s TeV)
	Smoothed      []float64 // per energy slice, after convolution and before rescaling
	SkippedSlices []int     // slices whose smoothed integral was zero
}

// Smooth convolves every energy slice of the background cube with k5a,
// zero padded, SmoothingPasses times, then rescales each slice so its
// solid-angle integral equals the value before smoothing. A slice whose
// smoothed integral is zero is left unscaled and reported in
// SkippedSlices. Non-finite background values are rejected before any
// modification.
func (m *Model) Smooth(cfg *config.BuilderConfig) (SmoothStats, error) {
	bg := m.Background
	for i, v := range bg.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return SmoothStats{}, fmt.Errorf("background bin %d is not finite: %g", i, v)
		}
	}

	edges := m.Edges()
	ne, ny, nx := edges.Shape()
	omega := mat.NewDense(ny, nx, edges.SolidAngles())

	stats := SmoothStats{TotalCounts: m.TotalCounts()}
	stats.Passes = SmoothingPasses(stats.TotalCounts, cfg)
	stats.Reference = sliceIntegrals(bg, omega)

	scratch := mat.NewDense(ny, nx, nil)
	for ie := 0; ie < ne; ie++ {
		img := mat.NewDense(ny, nx, bg.Slice(ie))
		for p := 0; p < stats.Passes; p++ {
			convolve(scratch, img, k5a)
			img.Copy(scratch)
		}
	}

	stats.Smoothed = sliceIntegrals(bg, omega)
	for ie := 0; ie < ne; ie++ {
		if stats.Smoothed[ie] == 0 {
			stats.SkippedSlices = append(stats.SkippedSlices, ie)
			continue
		}
		img := mat.NewDense(ny, nx, bg.Slice(ie))
		img.Scale(stats.Reference[ie]/stats.Smoothed[ie], img)
	}

	if len(stats.SkippedSlices) > 0 {
		monitoring.Warnf("[Smooth] %d energy slices have zero integral and were not rescaled: %v",
			len(stats.SkippedSlices), stats.SkippedSlices)
	}
	monitoring.Logf("[Smooth] counts=%s passes=%d slices=%d",
		humanize.Comma(int64(stats.TotalCounts)), stats.Passes, ne)
	return stats, nil
}

// SliceIntegrals returns sum(rate * dOmega) over each energy slice of c.
func SliceIntegrals(c *cube.Cube) []float64 {
	_, ny, nx := c.Shape()
	return sliceIntegrals(c, mat.NewDense(ny, nx, c.Edges().SolidAngles()))
}

func sliceIntegrals(c *cube.Cube, omega *mat.Dense) []float64 {
	ne, ny, nx := c.Shape()
	out := make([]float64, ne)
	var w mat.Dense
	for ie := range out {
		w.MulElem(mat.NewDense(ny, nx, c.Slice(ie)), omega)
		out[ie] = mat.Sum(&w)
	}
	return out
}

// convolve writes the zero-padded 2-D convolution of src with k into dst.
// dst and src must not alias.
func convolve(dst, src, k *mat.Dense) {
	rows, cols := src.Dims()
	kr, kc := k.Dims()
	cr, cc := kr/2, kc/2
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			var sum float64
			for a := 0; a < kr; a++ {
				si := i + a - cr
				if si < 0 || si >= rows {
					continue
				}
				for b := 0; b < kc; b++ {
					sj := j + b - cc
					if sj < 0 || sj >= cols {
						continue
					}
					sum += k.At(kr-1-a, kc-1-b) * src.At(si, sj)
				}
			}
			dst.Set(i, j, sum)
		}
	}
}
