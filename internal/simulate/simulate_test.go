package simulate

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bgcube/internal/bgmodel"
	"github.com/banshee-data/bgcube/internal/config"
	"github.com/banshee-data/bgcube/internal/datastore"
	"github.com/banshee-data/bgcube/internal/fsutil"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func newRand(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, 11)) }

func TestObservationTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NObs = 50
	cfg.FirstObsID = 1000

	table, err := ObservationTable(cfg, newRand(1))
	require.NoError(t, err)
	require.Equal(t, 50, table.Len())
	assert.Equal(t, datastore.SchemeHESS, table.Observatory)
	assert.Equal(t, 55197.0, table.MJDRefI)
	assert.Equal(t, 0.0, table.MJDRefF)

	for i, row := range table.Rows {
		assert.Equal(t, int64(1000+i), row.ObsID)
		assert.Equal(t, 1800.0, row.TimeObservation)
		assert.Equal(t, 1500.0, row.Livetime)
		assert.InDelta(t, row.TimeStart+1800, row.TimeStop, 1e-6)
		assert.GreaterOrEqual(t, row.AltDeg, 45.0)
		assert.LessOrEqual(t, row.AltDeg, 90.0)
		assert.GreaterOrEqual(t, row.AzDeg, 0.0)
		assert.Less(t, row.AzDeg, 360.0)
		assert.Contains(t, []int{3, 4}, row.NTels)
		assert.GreaterOrEqual(t, row.MuonEfficiency, 0.6)
		assert.Less(t, row.MuonEfficiency, 1.0)
		assert.Equal(t, -1, row.GroupID)

		start := table.StartTime(row)
		assert.False(t, start.Before(cfg.DateStart), "obs %d starts %s", row.ObsID, start)
		assert.True(t, start.Before(cfg.DateEnd.Add(24*time.Hour)), "obs %d starts %s", row.ObsID, start)
		assert.Contains(t, []int{22, 23, 0, 1, 2, 3}, start.Hour(), "obs %d starts outside the night", row.ObsID)
	}
}

func TestObservationTable_ShortWindowKeepsTimeOfDay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DateStart = time.Date(2012, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg.DateEnd = cfg.DateStart.Add(2 * time.Hour)

	table, err := ObservationTable(cfg, newRand(2))
	require.NoError(t, err)
	for _, row := range table.Rows {
		start := table.StartTime(row)
		assert.WithinRange(t, start, cfg.DateStart.Add(-time.Millisecond), cfg.DateEnd.Add(time.Millisecond))
	}
}

func TestObservationTable_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Observatory = "VERITAS"
	_, err := ObservationTable(cfg, newRand(3))
	assert.True(t, errors.Is(err, datastore.ErrUnsupportedScheme))

	cfg = DefaultConfig()
	cfg.DateEnd = cfg.DateStart
	_, err = ObservationTable(cfg, newRand(3))
	assert.Error(t, err)
}

func TestSigmaLaw(t *testing.T) {
	sigma := sigmaLaw(5, 0.1, 100)
	testutil.AssertRelClose(t, 2.5, sigma(0.1), 1e-12)
	testutil.AssertRelClose(t, 5, sigma(100), 1e-12)
	assert.Less(t, sigma(1), sigma(10))
}

func TestEventList(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TriggerRateHz = 2
	table, err := ObservationTable(cfg, newRand(4))
	require.NoError(t, err)
	row := table.Rows[0]

	ev, aeff := EventList(row, cfg, newRand(5))
	want := int(2 * 1500 * (0.5 + 0.5*row.AltDeg/90))
	require.Equal(t, want, ev.Len())
	assert.Equal(t, row.ObsID, ev.ObsID)
	assert.Equal(t, 1500.0, ev.Livetime)
	require.Len(t, ev.DetX, want)
	require.Len(t, ev.DetY, want)
	require.Len(t, ev.Time, want)

	var low int
	for i, e := range ev.Energy {
		assert.GreaterOrEqual(t, e, cfg.EnergyMinTeV)
		assert.LessOrEqual(t, e, cfg.EnergyMaxTeV)
		if e < 1 {
			low++
		}
		assert.GreaterOrEqual(t, ev.Time[i], row.TimeStart)
		assert.LessOrEqual(t, ev.Time[i], row.TimeStop)
		if i > 0 {
			assert.GreaterOrEqual(t, ev.Time[i], ev.Time[i-1])
		}
	}
	assert.Greater(t, low, want/2, "spectrum should be dominated by low energies")

	assert.Equal(t, row.ObsID, aeff.ObsID)
	assert.Equal(t, 0.1, aeff.Threshold)
	assert.Len(t, aeff.Area, len(aeff.EnergyLo))
	for i := 1; i < len(aeff.Area); i++ {
		assert.Greater(t, aeff.Area[i], aeff.Area[i-1])
	}
}

func TestBackgroundCube(t *testing.T) {
	cfg := DefaultCubeConfig()
	cfg.AltitudeDeg = 90
	c, err := BackgroundCube(cfg)
	require.NoError(t, err)

	ne, ny, nx := c.Shape()
	assert.Equal(t, 14, ne)
	assert.Equal(t, 24, ny)
	assert.Equal(t, 24, nx)

	edges := c.Edges()
	e0 := edges.EnergyCenters()[0]
	x0, y0 := edges.XCenters()[11], edges.YCenters()[11]
	s := sigmaLaw(5, 0.01, 100)(e0)
	want := math.Exp(-(x0*x0+y0*y0)/(s*s)) * math.Pow(e0, -2.7)
	testutil.AssertRelClose(t, want, c.At(0, 11, 11), 1e-12)

	for ie := 0; ie < ne; ie++ {
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				assert.InDelta(t, c.At(ie, iy, ix), c.At(ie, ny-1-iy, nx-1-ix), 1e-9*c.At(ie, iy, ix))
			}
		}
	}
	spectrum := c.Spectrum(11, 11)
	for ie := 1; ie < ne; ie++ {
		assert.Less(t, spectrum[ie], spectrum[ie-1])
	}
}

func TestBackgroundCube_Mask(t *testing.T) {
	cfg := DefaultCubeConfig()
	cfg.Mask = true
	c, err := BackgroundCube(cfg)
	require.NoError(t, err)

	edges := c.Edges()
	xs, ys := edges.XCenters(), edges.YCenters()
	for iy, y := range ys {
		for ix, x := range xs {
			if x > 0 || y > 0 {
				assert.Zero(t, c.At(0, iy, ix))
			} else {
				assert.Positive(t, c.At(0, iy, ix))
			}
		}
	}
}

func TestBackgroundCube_Invalid(t *testing.T) {
	cfg := DefaultCubeConfig()
	cfg.EnergyBins = 0
	_, err := BackgroundCube(cfg)
	assert.Error(t, err)
}

func TestDataset_BuildsModel(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	store, err := datastore.Open(datastore.SchemeHESS, "/data/sim", fsys, datastore.Options{})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.NObs = 12
	cfg.FirstObsID = 190
	cfg.TriggerRateHz = 0.5
	written, err := Dataset(store, cfg, newRand(6))
	require.NoError(t, err)

	table, err := store.ReadRunList()
	require.NoError(t, err)
	require.Equal(t, written.Len(), table.Len())
	assert.Equal(t, written.IDs(), table.IDs())

	for _, id := range []int64{190, 201} {
		assert.True(t, fsutil.Exists(fsys, store.EventsPath(id)), "events of %d", id)
		assert.True(t, fsutil.Exists(fsys, store.EffectiveAreaPath(id)), "aeff of %d", id)
	}
	thr, err := store.EnergyThreshold(195)
	require.NoError(t, err)
	assert.Equal(t, 0.1, thr)

	m, stats, err := bgmodel.BuildGroupModel(table, store, config.DefaultBuilderConfig())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Observations)
	assert.Positive(t, stats.Fill.Binned)
	assert.Equal(t, float64(stats.Fill.Binned), m.Counts.Sum())

	ne, _, _ := m.Background.Shape()
	integrals := bgmodel.SliceIntegrals(m.Background)
	require.Len(t, integrals, ne)
	assert.Greater(t, integrals[0], integrals[ne-1], "background should fall with energy")
	for _, v := range m.Background.Data {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestPowerLaw(t *testing.T) {
	inv := powerLaw(2.7, 0.1, 100)
	testutil.AssertRelClose(t, 0.1, inv(0), 1e-12)
	testutil.AssertRelClose(t, 100, inv(1), 1e-12)
	// Median of E^-2.7 above 0.1 TeV.
	testutil.AssertRelClose(t, 0.1*math.Pow(2, 1/1.7), inv(0.5), 1e-3)

	flat := powerLaw(1, 1, 100)
	testutil.AssertRelClose(t, 10, flat(0.5), 1e-12)
}
