package bgmodel

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bgcube/internal/config"
	"github.com/banshee-data/bgcube/internal/testutil"
	"github.com/banshee-data/bgcube/internal/timeutil"
)

func TestBuilder_Build(t *testing.T) {
	const nObs = 30
	table := testutil.HESSTable(100, nObs, 1500)
	src := testutil.NewMemorySource()
	for i, row := range table.Rows {
		src.Add(randomEvents(row.ObsID, 400, 0.1, 80, 4, 1500, uint64(i+1)), 0.2)
	}

	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b := &Builder{
		Config: config.DefaultBuilderConfig(),
		Clock:  timeutil.NewSteppingClock(start, time.Second),
	}
	m, stats, err := b.Build(table, src)
	require.NoError(t, err)

	assert.Equal(t, config.MethodDefault, stats.Method)
	assert.Equal(t, nObs, stats.Observations)
	assert.Equal(t, 13, stats.EnergyBins)
	assert.Equal(t, 32, stats.SpatialBins)
	assert.Equal(t, 0.1, stats.EnergyMin)
	assert.Equal(t, 80.0, stats.EnergyMax)
	assert.Equal(t, start, stats.Started)
	assert.Equal(t, time.Second, stats.Duration)
	assert.Equal(t, 5, stats.Smooth.Passes)
	assert.Len(t, stats.Fill.Runs, nObs)

	assert.Equal(t, float64(stats.Fill.Binned), m.Counts.Sum())
	assert.True(t, m.HasAuxiliary())

	// Smoothing preserved the rate integral computed from the raw counts.
	raw, err := NewModel(m.Counts, m.Livetime, m.Background.Clone())
	require.NoError(t, err)
	raw.ComputeBackgroundRate()
	want := SliceIntegrals(raw.Background)
	got := SliceIntegrals(m.Background)
	for ie := range want {
		testutil.AssertRelClose(t, want[ie], got[ie], 1e-10, "slice %d", ie)
	}
}

func TestBuildGroupModel_Adaptive(t *testing.T) {
	table := testutil.HESSTable(1, 5, 1000)
	src := testutil.NewMemorySource()
	for i, row := range table.Rows {
		src.Add(randomEvents(row.ObsID, 50, 0.3, 60, 3, 1000, uint64(40+i)), 0.3+0.1*float64(i))
	}
	cfg := config.DefaultBuilderConfig()
	cfg.Method = ptr(config.MethodAdaptive)

	m, stats, err := BuildGroupModel(table, src, cfg)
	require.NoError(t, err)
	assert.Equal(t, config.MethodAdaptive, stats.Method)
	assert.Equal(t, 0.3, m.Edges().Energy()[0])
	for _, row := range table.Rows {
		assert.Equal(t, 2, src.ThresholdCalls[row.ObsID], "one lookup for binning, one for the fill")
		assert.Equal(t, 1, src.EventCalls[row.ObsID])
	}
}

func TestBuildGroupModel_Errors(t *testing.T) {
	_, _, err := BuildGroupModel(testutil.HESSTable(1, 0, 0), testutil.NewMemorySource(), nil)
	assert.True(t, errors.Is(err, ErrEmptyGroup))

	_, _, err = BuildGroupModel(testutil.HESSTable(1, 2, 0), testutil.NewMemorySource(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events of obs 1")
}
