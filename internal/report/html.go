package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/bgcube/internal/cube"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

func axisLabels(v []float64, format string) []string {
	out := make([]string, len(v))
	for i, x := range v {
		out[i] = fmt.Sprintf(format, x)
	}
	return out
}

// lineValue maps values a log axis cannot show to a gap.
func lineValue(v float64, logAxis bool) opts.LineData {
	if math.IsNaN(v) || math.IsInf(v, 0) || (logAxis && v <= 0) {
		return opts.LineData{Value: nil}
	}
	return opts.LineData{Value: v}
}

func spectrumChart(g *GroupReport, cfg CompareConfig, x, y float64) (*charts.Line, error) {
	edges := g.Model1.Edges()
	iy, ix, err := spatialBin(edges, x, y)
	if err != nil {
		return nil, err
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Group %d spectrum", g.GroupID), Subtitle: fmt.Sprintf("DET = (%.2f, %.2f) deg", x, y)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "E (TeV)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "1 / (s TeV sr)", Type: "log"}),
	)
	line.SetXAxis(axisLabels(edges.EnergyCenters(), "%.3g"))
	for _, m := range []struct {
		c     *cube.Cube
		label string
	}{{g.Model1, cfg.Label1}, {g.Model2, cfg.Label2}} {
		flux := m.c.Spectrum(iy, ix)
		data := make([]opts.LineData, len(flux))
		for i, v := range flux {
			data[i] = lineValue(v, true)
		}
		line.AddSeries(m.label, data)
	}
	return line, nil
}

func agreementChart(g *GroupReport) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Group %d agreement", g.GroupID), Subtitle: "per energy slice"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "E (TeV)", NameLocation: "middle", NameGap: 25}),
	)
	centers := make([]float64, len(g.Comparison.Slices))
	corr := make([]opts.LineData, len(g.Comparison.Slices))
	ratio := make([]opts.LineData, len(g.Comparison.Slices))
	for i, s := range g.Comparison.Slices {
		centers[i] = math.Sqrt(s.EnergyLo * s.EnergyHi)
		corr[i] = lineValue(s.Correlation, false)
		ratio[i] = lineValue(s.MeanRatio, false)
	}
	line.SetXAxis(axisLabels(centers, "%.3g")).
		AddSeries("correlation", corr).
		AddSeries("mean ratio", ratio)
	return line
}

func imageChart(c *cube.Cube, groupID int, label string, e float64) (*charts.HeatMap, error) {
	edges := c.Edges()
	ie, err := energyBin(edges, e)
	if err != nil {
		return nil, err
	}
	_, ny, nx := edges.Shape()
	data := make([]opts.HeatMapData, 0, ny*nx)
	var hi float64
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			v := c.At(ie, iy, ix)
			hi = math.Max(hi, v)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{ix, iy, v}})
		}
	}
	if hi == 0 {
		hi = 1
	}
	energy := edges.Energy()
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "480px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Group %d %s", groupID, label),
			Subtitle: fmt.Sprintf("E = [%.3g, %.3g) TeV", energy[ie], energy[ie+1]),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "DETX (deg)", Data: axisLabels(edges.XCenters(), "%.2f")}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "DETY (deg)", Data: axisLabels(edges.YCenters(), "%.2f")}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.AddSeries(label, data)
	return hm, nil
}

// WriteHTML renders every group of a comparison on one page: images of
// both models at each energy, spectra at each position and the per-slice
// agreement.
func WriteHTML(w io.Writer, groups []GroupReport, cfg CompareConfig) error {
	page := components.NewPage()
	page.PageTitle = "Background cube model comparison"
	for i := range groups {
		g := &groups[i]
		for _, e := range cfg.Energies {
			for _, m := range []struct {
				c     *cube.Cube
				label string
			}{{g.Model1, cfg.Label1}, {g.Model2, cfg.Label2}} {
				hm, err := imageChart(m.c, g.GroupID, m.label, e)
				if err != nil {
					return fmt.Errorf("group %d: %w", g.GroupID, err)
				}
				page.AddCharts(hm)
			}
		}
		for _, xy := range cfg.Coords {
			line, err := spectrumChart(g, cfg, xy[0], xy[1])
			if err != nil {
				return fmt.Errorf("group %d: %w", g.GroupID, err)
			}
			page.AddCharts(line)
		}
		page.AddCharts(agreementChart(g))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render comparison page: %w", err)
	}
	return nil
}
