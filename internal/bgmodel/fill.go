package bgmodel

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/bgcube/internal/config"
	"github.com/banshee-data/bgcube/internal/cube"
	"github.com/banshee-data/bgcube/internal/datastore"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/obs"
)

// RunStats records one observation's contribution to a fill.
type RunStats struct {
	ObsID     int64
	Threshold float64 // TeV
	Livetime  float64 // s
	Events    int     // events in the file
	Selected  int     // events inside [threshold, threshold*cut]
	Binned    int     // selected events inside the cube edges
	LiveBins  int     // energy bins credited with livetime
}

// FillStats summarises a fill over a group.
type FillStats struct {
	Runs     []RunStats
	Events   int
	Selected int
	Binned   int
	Livetime float64
}

func (s *FillStats) add(r RunStats) {
	s.Runs = append(s.Runs, r)
	s.Events += r.Events
	s.Selected += r.Selected
	s.Binned += r.Binned
	s.Livetime += r.Livetime
}

// Fill accumulates every observation of table into the counts and livetime
// cubes of m, in table order.
//
// Events are selected on threshold <= E <= threshold*cut and histogrammed
// over (energy, y, x) with half-open bins, the upper edge of each axis
// closed, and NaN or out-of-range values dropped. Each energy bin whose
// upper edge lies above the threshold gains the observation's livetime
// across all spatial bins.
//
// Fill is not transactional: an error stops the loop and leaves earlier
// observations' contributions in place.
func Fill(m *Model, table *obs.Table, src datastore.Source, cfg *config.BuilderConfig) (FillStats, error) {
	var stats FillStats
	if table == nil || table.Len() == 0 {
		return stats, ErrEmptyGroup
	}
	if err := datastore.CheckScheme(table.Observatory); err != nil {
		return stats, err
	}
	cut := cfg.GetEnergyCutFactor()

	for _, row := range table.Rows {
		ev, err := src.Events(row.ObsID)
		if err != nil {
			return stats, fmt.Errorf("events of obs %d: %w", row.ObsID, err)
		}
		if len(ev.DetX) != ev.Len() || len(ev.DetY) != ev.Len() {
			return stats, fmt.Errorf("events of obs %d: column lengths differ (%d energy, %d detx, %d dety)",
				row.ObsID, ev.Len(), len(ev.DetX), len(ev.DetY))
		}
		thr, err := src.EnergyThreshold(row.ObsID)
		if err != nil {
			return stats, fmt.Errorf("energy threshold of obs %d: %w", row.ObsID, err)
		}

		run := fillCounts(m.Counts, ev, thr, thr*cut)
		run.ObsID = row.ObsID
		run.Threshold = thr
		run.Livetime = ev.Livetime
		run.LiveBins = fillLivetime(m.Livetime, thr, ev.Livetime)
		stats.add(run)
	}

	monitoring.Logf("[Fill] obs=%d events=%s selected=%s binned=%s livetime=%.1fh",
		table.Len(), humanize.Comma(int64(stats.Events)), humanize.Comma(int64(stats.Selected)),
		humanize.Comma(int64(stats.Binned)), stats.Livetime/3600)
	return stats, nil
}

// fillCounts histograms the selected events of ev into c.
func fillCounts(c *cube.Cube, ev *datastore.EventList, lo, hi float64) RunStats {
	run := RunStats{Events: ev.Len()}
	edges := c.Edges()
	for i, e := range ev.Energy {
		if !(e >= lo && e <= hi) {
			continue
		}
		run.Selected++
		ie, iy, ix, ok := edges.Locate(e, ev.DetY[i], ev.DetX[i])
		if !ok {
			continue
		}
		c.Data[c.Index(ie, iy, ix)]++
		run.Binned++
	}
	return run
}

// fillLivetime adds livetime to every bin above threshold and returns the
// number of energy bins credited.
func fillLivetime(c *cube.Cube, threshold, livetime float64) int {
	energy := c.Edges().Energy()
	credited := 0
	for ie := 0; ie < len(energy)-1; ie++ {
		if !(energy[ie+1] > threshold) {
			continue
		}
		slice := c.Slice(ie)
		for j := range slice {
			slice[j] += livetime
		}
		credited++
	}
	return credited
}
