package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/bgcube/internal/cube"
)

const paletteSize = 64

var (
	color1 = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	color2 = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// energyBin returns the energy slice containing e (TeV).
func energyBin(edges cube.Edges, e float64) (int, error) {
	y, x := edges.Y(), edges.X()
	ie, _, _, ok := edges.Locate(e, y[0], x[0])
	if !ok {
		energy := edges.Energy()
		return 0, fmt.Errorf("energy %g TeV outside [%g, %g]", e, energy[0], energy[len(energy)-1])
	}
	return ie, nil
}

// spatialBin returns the (y, x) bin containing the detector position.
func spatialBin(edges cube.Edges, x, y float64) (iy, ix int, err error) {
	_, iy, ix, ok := edges.Locate(edges.Energy()[0], y, x)
	if !ok {
		return 0, 0, fmt.Errorf("position (%g, %g) deg outside the detector grid", x, y)
	}
	return iy, ix, nil
}

// sliceGrid adapts one energy slice to plotter.GridXYZ.
type sliceGrid struct {
	c      *cube.Cube
	ie     int
	xs, ys []float64
}

func (g sliceGrid) Dims() (c, r int)   { return len(g.xs), len(g.ys) }
func (g sliceGrid) Z(c, r int) float64 { return g.c.At(g.ie, r, c) }
func (g sliceGrid) X(c int) float64    { return g.xs[c] }
func (g sliceGrid) Y(r int) float64    { return g.ys[r] }

// ImagePlot draws the detector image of c at energy e (TeV).
func ImagePlot(c *cube.Cube, e float64, label string) (*plot.Plot, error) {
	edges := c.Edges()
	ie, err := energyBin(edges, e)
	if err != nil {
		return nil, err
	}
	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(0)
	cmap.SetMax(1)
	hm := plotter.NewHeatMap(sliceGrid{c: c, ie: ie, xs: edges.XCenters(), ys: edges.YCenters()}, cmap.Palette(paletteSize))
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}

	energy := edges.Energy()
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: E = [%.3g, %.3g) TeV", label, energy[ie], energy[ie+1])
	p.X.Label.Text = "DETX (deg)"
	p.Y.Label.Text = "DETY (deg)"
	p.Add(hm)
	return p, nil
}

// SpectrumPlot draws the spectra of every cube at detector position (x, y)
// on log-log axes. Non-positive values are left out.
func SpectrumPlot(cubes []*cube.Cube, labels []string, x, y float64) (*plot.Plot, error) {
	if len(cubes) == 0 {
		return nil, fmt.Errorf("no cubes to plot")
	}
	edges := cubes[0].Edges()
	iy, ix, err := spatialBin(edges, x, y)
	if err != nil {
		return nil, err
	}
	xs, ys := edges.XCenters(), edges.YCenters()
	centers := edges.EnergyCenters()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("DET = (%.2f, %.2f) deg", xs[ix], ys[iy])
	p.X.Label.Text = "E (TeV)"
	p.Y.Label.Text = "bg rate (1 / (s TeV sr))"

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, c := range cubes {
		if err := cube.CompareBinning(edges, c.Edges()); err != nil {
			return nil, err
		}
		var pts plotter.XYs
		for ie, v := range c.Spectrum(iy, ix) {
			if v > 0 {
				pts = append(pts, plotter.XY{X: centers[ie], Y: v})
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("spectrum line: %w", err)
		}
		line.Width = vg.Points(1.5)
		line.Color = color1
		if i%2 == 1 {
			line.Color = color2
		}
		p.Add(line)
		if i < len(labels) {
			p.Legend.Add(labels[i], line)
		}
	}

	energy := edges.Energy()
	p.X.Min, p.X.Max = energy[0], energy[len(energy)-1]
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	if lo <= hi {
		if lo == hi {
			lo, hi = lo/10, hi*10
		}
		p.Y.Min, p.Y.Max = lo, hi
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	p.Legend.Top = true
	return p, nil
}

// GroupFigure lays out one row per requested energy or position: the two
// models' images side by side followed by both spectra.
func GroupFigure(a, b *cube.Cube, cfg CompareConfig) ([][]*plot.Plot, error) {
	rows := max(len(cfg.Energies), len(cfg.Coords))
	if rows == 0 {
		return nil, fmt.Errorf("nothing to plot: no energies or positions")
	}
	grid := make([][]*plot.Plot, rows)
	for r := range grid {
		grid[r] = make([]*plot.Plot, 3)
		if r < len(cfg.Energies) {
			for col, m := range []struct {
				c     *cube.Cube
				label string
			}{{a, cfg.Label1}, {b, cfg.Label2}} {
				p, err := ImagePlot(m.c, cfg.Energies[r], m.label)
				if err != nil {
					return nil, err
				}
				grid[r][col] = p
			}
		}
		if r < len(cfg.Coords) {
			p, err := SpectrumPlot([]*cube.Cube{a, b}, []string{cfg.Label1, cfg.Label2}, cfg.Coords[r][0], cfg.Coords[r][1])
			if err != nil {
				return nil, err
			}
			grid[r][2] = p
		}
		for col, p := range grid[r] {
			if p == nil {
				blank := plot.New()
				blank.HideAxes()
				grid[r][col] = blank
			}
		}
	}
	return grid, nil
}

// WritePNG renders a grid of plots as one PNG.
func WritePNG(w io.Writer, grid [][]*plot.Plot) error {
	if len(grid) == 0 {
		return fmt.Errorf("empty figure")
	}
	rows, cols := len(grid), len(grid[0])
	img := vgimg.New(vg.Length(cols)*6*vg.Inch, vg.Length(rows)*5*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(grid, tiles, dc)
	for r := range grid {
		for c := range grid[r] {
			grid[r][c].Draw(canvases[r][c])
		}
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}
	return nil
}
