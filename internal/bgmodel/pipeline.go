package bgmodel

import (
	"time"

	"github.com/banshee-data/bgcube/internal/config"
	"github.com/banshee-data/bgcube/internal/datastore"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/obs"
	"github.com/banshee-data/bgcube/internal/timeutil"
)

// BuildStats summarises one group build.
type BuildStats struct {
	Method       string
	Observations int
	EnergyBins   int
	SpatialBins  int
	EnergyMin    float64 // TeV
	EnergyMax    float64 // TeV
	Fill         FillStats
	Smooth       SmoothStats
	Started      time.Time
	Duration     time.Duration
}

// Builder runs the full model pipeline for observation groups.
type Builder struct {
	Config *config.BuilderConfig
	Clock  timeutil.Clock
}

// NewBuilder returns a Builder using cfg (defaults when nil) and the wall
// clock.
func NewBuilder(cfg *config.BuilderConfig) *Builder {
	if cfg == nil {
		cfg = config.DefaultBuilderConfig()
	}
	return &Builder{Config: cfg, Clock: timeutil.RealClock{}}
}

// Build runs DefineBinning, NewEmptyModel, Fill, ComputeBackgroundRate and
// Smooth for one group.
func (b *Builder) Build(table *obs.Table, src datastore.Source) (*Model, BuildStats, error) {
	cfg := b.Config
	stats := BuildStats{Method: cfg.GetMethod(), Started: b.Clock.Now()}

	edges, err := DefineBinning(table, stats.Method, src, cfg)
	if err != nil {
		return nil, stats, err
	}
	stats.Observations = table.Len()
	stats.EnergyBins, stats.SpatialBins, _ = edges.Shape()
	energy := edges.Energy()
	stats.EnergyMin, stats.EnergyMax = energy[0], energy[len(energy)-1]

	m, err := NewEmptyModel(edges)
	if err != nil {
		return nil, stats, err
	}
	if stats.Fill, err = Fill(m, table, src, cfg); err != nil {
		return nil, stats, err
	}
	m.ComputeBackgroundRate()
	if stats.Smooth, err = m.Smooth(cfg); err != nil {
		return nil, stats, err
	}

	stats.Duration = b.Clock.Since(stats.Started)
	monitoring.Logf("[Build] obs=%d method=%s bins=%dx%dx%d took %s",
		stats.Observations, stats.Method, stats.EnergyBins, stats.SpatialBins, stats.SpatialBins,
		stats.Duration.Round(time.Millisecond))
	return m, stats, nil
}

// BuildGroupModel builds one group's model with cfg and the wall clock.
func BuildGroupModel(table *obs.Table, src datastore.Source, cfg *config.BuilderConfig) (*Model, BuildStats, error) {
	return NewBuilder(cfg).Build(table, src)
}
