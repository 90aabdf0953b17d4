// Package simulate produces synthetic H.E.S.S.-like archives for tests and
// demonstrations: a random run list, per-run event lists drawn from a
// Gaussian times power-law background, toy effective-area records, and the
// analytic background cube the events were drawn from.
package simulate

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/bgcube/internal/cube"
	"github.com/banshee-data/bgcube/internal/datastore"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/obs"
	"github.com/banshee-data/bgcube/internal/units"
)

// referenceEnergy is the pivot of every power law here, in TeV.
const referenceEnergy = 1.0

// Config describes the simulated archive.
type Config struct {
	Observatory string
	NObs        int
	FirstObsID  int64

	// Start times are drawn uniformly between DateStart and DateEnd and
	// moved into the night window unless the interval is shorter than a day.
	DateStart time.Time
	DateEnd   time.Time

	Duration time.Duration
	Livetime time.Duration

	// TriggerRateHz is the event rate at zenith; it halves towards the horizon.
	TriggerRateHz float64
	SigmaDeg      float64
	SpectralIndex float64
	EnergyMinTeV  float64
	EnergyMaxTeV  float64
	ThresholdTeV  float64

	// MinAltDeg bounds the pointing altitude from below.
	MinAltDeg float64
}

// DefaultConfig returns ten runs between 2010 and 2015.
func DefaultConfig() Config {
	return Config{
		Observatory:   datastore.SchemeHESS,
		NObs:          10,
		FirstObsID:    1,
		DateStart:     time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:       time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:      30 * time.Minute,
		Livetime:      25 * time.Minute,
		TriggerRateHz: 300,
		SigmaDeg:      5,
		SpectralIndex: 2.7,
		EnergyMinTeV:  0.1,
		EnergyMaxTeV:  100,
		ThresholdTeV:  0.1,
		MinAltDeg:     45,
	}
}

const (
	nightStartHours    = 22.0
	nightDurationHours = 5.5
	minTels, maxTels   = 3, 4
)

// ObservationTable draws a random run list. Times are seconds after the
// table's MJD reference, which is DateStart at midnight.
func ObservationTable(cfg Config, rng *rand.Rand) (*obs.Table, error) {
	if err := datastore.CheckScheme(cfg.Observatory); err != nil {
		return nil, err
	}
	if !cfg.DateEnd.After(cfg.DateStart) {
		return nil, fmt.Errorf("date window %s to %s is empty", cfg.DateStart, cfg.DateEnd)
	}

	refDay := cfg.DateStart.Truncate(24 * time.Hour)
	mjdRef := obs.TimeToMJD(refDay)
	refI, refF := math.Modf(mjdRef)
	t := &obs.Table{Observatory: cfg.Observatory, MJDRefI: refI, MJDRefF: refF}

	mjdLo, mjdHi := obs.TimeToMJD(cfg.DateStart), obs.TimeToMJD(cfg.DateEnd)
	nightly := mjdHi-mjdLo > 1
	start := distuv.Uniform{Min: mjdLo, Max: mjdHi, Src: rng}
	hour := distuv.Uniform{Min: nightStartHours, Max: nightStartHours + nightDurationHours, Src: rng}
	muon := distuv.Uniform{Min: 0.6, Max: 1.0, Src: rng}

	duration := cfg.Duration.Seconds()
	for i := 0; i < cfg.NObs; i++ {
		mjd := start.Rand()
		if nightly {
			mjd = math.Floor(mjd) + hour.Rand()/24
		}
		tstart := (mjd - mjdRef) * 86400
		alt, az := samplePointing(rng, cfg.MinAltDeg)
		t.Rows = append(t.Rows, obs.Observation{
			ObsID:           cfg.FirstObsID + int64(i),
			TimeStart:       tstart,
			TimeStop:        tstart + duration,
			TimeObservation: duration,
			Livetime:        cfg.Livetime.Seconds(),
			AltDeg:          alt,
			AzDeg:           az,
			NTels:           minTels + rng.IntN(maxTels-minTels+1),
			MuonEfficiency:  muon.Rand(),
			GroupID:         -1,
		})
	}
	return t, nil
}

// samplePointing draws a direction uniformly on the sphere above minAlt.
func samplePointing(rng *rand.Rand, minAlt float64) (altDeg, azDeg float64) {
	lo := math.Sin(minAlt * math.Pi / 180)
	sinAlt := lo + (1-lo)*rng.Float64()
	return math.Asin(sinAlt) * 180 / math.Pi, 360 * rng.Float64()
}

// altitudeFactor scales linearly from 1/2 at the horizon to 1 at zenith.
func altitudeFactor(altDeg float64) float64 { return 0.5 + 0.5*altDeg/90 }

// sigmaLaw returns the energy-dependent Gaussian width: sigma/2 at emin
// rising as a power law to sigma at emax.
func sigmaLaw(sigma, emin, emax float64) func(e float64) float64 {
	sigmaMin := sigma / 2
	index := math.Log(sigma/sigmaMin) / math.Log(emax/emin)
	norm := sigmaMin * math.Pow(emin/referenceEnergy, -index)
	return func(e float64) float64 { return norm * math.Pow(e/referenceEnergy, index) }
}

// powerLaw returns the inverse CDF of E^-index on [emin, emax].
func powerLaw(index, emin, emax float64) func(u float64) float64 {
	if index == 1 {
		ratio := emax / emin
		return func(u float64) float64 { return emin * math.Pow(ratio, u) }
	}
	g := 1 - index
	lo, hi := math.Pow(emin, g), math.Pow(emax, g)
	return func(u float64) float64 { return math.Pow(lo+u*(hi-lo), 1/g) }
}

// EventList draws the events of one run together with its effective-area
// record. Energies are TeV and detector coordinates degrees.
func EventList(row obs.Observation, cfg Config, rng *rand.Rand) (*datastore.EventList, *datastore.EffectiveArea) {
	n := int(cfg.TriggerRateHz * row.Livetime * altitudeFactor(row.AltDeg))
	sigma := sigmaLaw(cfg.SigmaDeg, cfg.EnergyMinTeV, cfg.EnergyMaxTeV)

	ev := &datastore.EventList{
		ObsID:    row.ObsID,
		Energy:   make([]float64, n),
		DetX:     make([]float64, n),
		DetY:     make([]float64, n),
		Time:     make([]float64, n),
		Livetime: row.Livetime,
	}
	energy := powerLaw(cfg.SpectralIndex, cfg.EnergyMinTeV, cfg.EnergyMaxTeV)
	offset := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	for i := 0; i < n; i++ {
		e := energy(rng.Float64())
		s := sigma(e)
		ev.Energy[i] = e
		ev.DetX[i] = s * offset.Rand()
		ev.DetY[i] = s * offset.Rand()
		ev.Time[i] = row.TimeStart + rng.Float64()*row.TimeObservation
	}
	slices.Sort(ev.Time)

	return ev, effectiveArea(row.ObsID, cfg)
}

// effectiveArea is a smooth turn-on above threshold saturating at 1e5 m^2.
func effectiveArea(obsID int64, cfg Config) *datastore.EffectiveArea {
	const nbins = 16
	edges := make([]float64, nbins+1)
	floats.LogSpan(edges, cfg.EnergyMinTeV, cfg.EnergyMaxTeV)
	a := &datastore.EffectiveArea{
		ObsID:         obsID,
		Threshold:     cfg.ThresholdTeV,
		ThresholdUnit: units.TeV,
		EnergyLo:      edges[:nbins],
		EnergyHi:      edges[1:],
		Area:          make([]float64, nbins),
	}
	for i := range a.Area {
		e := math.Sqrt(edges[i] * edges[i+1])
		a.Area[i] = 1e5 * (1 - math.Exp(-e/(4*cfg.ThresholdTeV)))
	}
	return a
}

// Dataset writes a simulated run list and every run's event list and
// effective-area file into store, returning the run list.
func Dataset(store *datastore.Store, cfg Config, rng *rand.Rand) (*obs.Table, error) {
	table, err := ObservationTable(cfg, rng)
	if err != nil {
		return nil, err
	}
	if err := store.WriteRunList(table); err != nil {
		return nil, fmt.Errorf("write run list: %w", err)
	}

	var events int
	for _, row := range table.Rows {
		ev, aeff := EventList(row, cfg, rng)
		if err := store.WriteEvents(ev, datastore.DefaultColumnUnits); err != nil {
			return nil, fmt.Errorf("write events of obs %d: %w", row.ObsID, err)
		}
		if err := store.WriteEffectiveArea(aeff); err != nil {
			return nil, fmt.Errorf("write effective area of obs %d: %w", row.ObsID, err)
		}
		events += ev.Len()
	}
	monitoring.Logf("[Simulate] wrote %d runs with %d events under %s", table.Len(), events, store.Root())
	return table, nil
}

// CubeConfig describes an analytic background cube.
type CubeConfig struct {
	DetHalfWidthDeg float64
	SpatialBins     int
	EnergyMinTeV    float64
	EnergyMaxTeV    float64
	EnergyBins      int
	AltitudeDeg     float64
	SigmaDeg        float64
	SpectralIndex   float64
	// Mask zeroes every bin with x or y above the detector centre.
	Mask bool
}

// DefaultCubeConfig returns a 14 x 24 x 24 cube over +-10 deg and 0.01-100 TeV.
func DefaultCubeConfig() CubeConfig {
	return CubeConfig{
		DetHalfWidthDeg: 10,
		SpatialBins:     24,
		EnergyMinTeV:    0.01,
		EnergyMaxTeV:    100,
		EnergyBins:      14,
		AltitudeDeg:     70,
		SigmaDeg:        5,
		SpectralIndex:   2.7,
	}
}

// BackgroundCube evaluates norm(alt) * exp(-(x^2+y^2)/sigma(E)^2) * E^-index
// at bin centres. The norm is 1 / (s TeV sr) at zenith.
func BackgroundCube(cfg CubeConfig) (*cube.Cube, error) {
	if cfg.EnergyBins < 1 || cfg.SpatialBins < 1 {
		return nil, fmt.Errorf("cube needs at least one bin per axis, got %d energy and %d spatial",
			cfg.EnergyBins, cfg.SpatialBins)
	}
	energy := make([]float64, cfg.EnergyBins+1)
	det := make([]float64, cfg.SpatialBins+1)
	floats.LogSpan(energy, cfg.EnergyMinTeV, cfg.EnergyMaxTeV)
	floats.Span(det, -cfg.DetHalfWidthDeg, cfg.DetHalfWidthDeg)
	edges, err := cube.NewEdges(energy, det, det)
	if err != nil {
		return nil, err
	}

	c := cube.New(cube.Background, edges)
	norm := altitudeFactor(cfg.AltitudeDeg)
	sigma := sigmaLaw(cfg.SigmaDeg, cfg.EnergyMinTeV, cfg.EnergyMaxTeV)
	xs, ys := edges.XCenters(), edges.YCenters()
	const center = 0.0
	for ie, e := range edges.EnergyCenters() {
		s := sigma(e)
		pl := math.Pow(e/referenceEnergy, -cfg.SpectralIndex)
		for iy, y := range ys {
			for ix, x := range xs {
				if cfg.Mask && (x > center || y > center) {
					continue
				}
				c.Data[c.Index(ie, iy, ix)] = norm * math.Exp(-(x*x+y*y)/(s*s)) * pl
			}
		}
	}
	return c, nil
}
