package bgmodel

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/bgcube/internal/config"
	"github.com/banshee-data/bgcube/internal/cube"
	"github.com/banshee-data/bgcube/internal/datastore"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/obs"
	"github.com/banshee-data/bgcube/internal/units"
)

// BinCounts returns the number of energy bins and of spatial bins per
// detector axis for a group of nObs observations. Groups smaller than the
// full-statistics size lose k = nObs/10 - full/10 energy bins (k <= 0) and
// 4k spatial bins per axis. The result may be non-positive; DefineBinning
// rejects that.
func BinCounts(nObs int, cfg *config.BuilderConfig) (energyBins, spatialBins int) {
	energyBins, spatialBins = cfg.GetBaseEnergyBins(), cfg.GetBaseSpatialBins()
	if full := cfg.GetFullStatisticsObservations(); nObs < full {
		k := nObs/10 - full/10
		energyBins += k
		spatialBins += 4 * k
	}
	return energyBins, spatialBins
}

// DefineBinning computes the bin edges of a group's background model.
//
// Under config.MethodDefault the energy axis spans the configured fixed
// range. Under config.MethodAdaptive the lower bound is the smallest energy
// threshold in the group, looked up once per observation from src. Energy
// edges are log spaced; both detector axes are linearly spaced over the
// configured half width, converted from radians to degrees.
func DefineBinning(table *obs.Table, method string, src datastore.Source, cfg *config.BuilderConfig) (cube.Edges, error) {
	if table == nil || table.Len() == 0 {
		return cube.Edges{}, ErrEmptyGroup
	}
	nObs := table.Len()
	ne, ns := BinCounts(nObs, cfg)
	if ne < 1 || ns < 1 {
		return cube.Edges{}, fmt.Errorf("%w: %d observations give %d energy and %d spatial bins",
			ErrDegenerateBinning, nObs, ne, ns)
	}

	emin, emax := cfg.GetEnergyMinTeV(), cfg.GetEnergyMaxTeV()
	switch method {
	case config.MethodDefault:
	case config.MethodAdaptive:
		thr, err := minThreshold(table, src)
		if err != nil {
			return cube.Edges{}, err
		}
		emin = thr
	default:
		return cube.Edges{}, fmt.Errorf("unknown binning method %q", method)
	}
	if !(emin > 0) || emin >= emax {
		return cube.Edges{}, fmt.Errorf("%w: energy range [%g, %g] TeV", ErrDegenerateBinning, emin, emax)
	}

	energy := floats.LogSpan(make([]float64, ne+1), emin, emax)
	energy[0], energy[ne] = emin, emax

	half := units.RadToDeg(cfg.GetDetectorHalfWidthRad())
	spatial := floats.Span(make([]float64, ns+1), -half, half)

	edges, err := cube.NewEdges(energy, spatial, spatial)
	if err != nil {
		return cube.Edges{}, fmt.Errorf("%w: %v", ErrDegenerateBinning, err)
	}
	monitoring.Logf("[Binning] method=%s obs=%d energy=%d bins [%.4g, %.4g] TeV spatial=%dx%d bins +/-%.4g deg",
		method, nObs, ne, emin, emax, ns, ns, half)
	return edges, nil
}

// minThreshold scans every observation's energy threshold.
func minThreshold(table *obs.Table, src datastore.Source) (float64, error) {
	if err := datastore.CheckScheme(table.Observatory); err != nil {
		return 0, err
	}
	var lowest float64
	for i, row := range table.Rows {
		thr, err := src.EnergyThreshold(row.ObsID)
		if err != nil {
			return 0, fmt.Errorf("energy threshold of obs %d: %w", row.ObsID, err)
		}
		if i == 0 || thr < lowest {
			lowest = thr
		}
	}
	return lowest, nil
}
