package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical builder defaults file.
const DefaultConfigPath = "config/bgcube.defaults.json"

// Binning method names accepted by BuilderConfig.Method.
const (
	MethodDefault  = "default"
	MethodAdaptive = "adaptive"
)

// BuilderConfig holds the tunables of the cube background model builder.
// Pointer fields distinguish "unset" from zero so partial JSON files fall back
// to the Get* defaults.
type BuilderConfig struct {
	// Binning policy
	Method                     *string  `json:"method,omitempty"` // "default" or "adaptive"
	BaseEnergyBins             *int     `json:"base_energy_bins,omitempty"`
	BaseSpatialBins            *int     `json:"base_spatial_bins,omitempty"`
	FullStatisticsObservations *int     `json:"full_statistics_observations,omitempty"`
	EnergyMinTeV               *float64 `json:"energy_min_tev,omitempty"`
	EnergyMaxTeV               *float64 `json:"energy_max_tev,omitempty"`
	DetectorHalfWidthRad       *float64 `json:"detector_half_width_rad,omitempty"`

	// Histogram accumulation
	EnergyCutFactor *float64 `json:"energy_cut_factor,omitempty"`
	UnitFallback    *bool    `json:"unit_fallback,omitempty"`

	// Smoothing
	SmoothingHighCounts *float64 `json:"smoothing_high_counts,omitempty"`
	SmoothingMidCounts  *float64 `json:"smoothing_mid_counts,omitempty"`
	SmoothingPassesHigh *int     `json:"smoothing_passes_high,omitempty"`
	SmoothingPassesMid  *int     `json:"smoothing_passes_mid,omitempty"`
	SmoothingPassesLow  *int     `json:"smoothing_passes_low,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyBuilderConfig returns a BuilderConfig with all fields unset.
func EmptyBuilderConfig() *BuilderConfig {
	return &BuilderConfig{}
}

// DefaultBuilderConfig returns a BuilderConfig with every field populated
// with the values the H.E.S.S. background models were built with.
func DefaultBuilderConfig() *BuilderConfig {
	return &BuilderConfig{
		Method:                     ptrString(MethodDefault),
		BaseEnergyBins:             ptrInt(20),
		BaseSpatialBins:            ptrInt(60),
		FullStatisticsObservations: ptrInt(100),
		EnergyMinTeV:               ptrFloat64(0.1),
		EnergyMaxTeV:               ptrFloat64(80),
		DetectorHalfWidthRad:       ptrFloat64(0.07),
		EnergyCutFactor:            ptrFloat64(1e6),
		UnitFallback:               ptrBool(false),
		SmoothingHighCounts:        ptrFloat64(1e6),
		SmoothingMidCounts:         ptrFloat64(1e5),
		SmoothingPassesHigh:        ptrInt(3),
		SmoothingPassesMid:         ptrInt(4),
		SmoothingPassesLow:         ptrInt(5),
	}
}

// LoadBuilderConfig loads a BuilderConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their Get* defaults.
func LoadBuilderConfig(path string) (*BuilderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyBuilderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repository root.
// Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *BuilderConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from cmd/tools/bg-compare/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadBuilderConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are consistent.
func (c *BuilderConfig) Validate() error {
	if c.Method != nil {
		switch *c.Method {
		case MethodDefault, MethodAdaptive:
		default:
			return fmt.Errorf("method must be %q or %q, got %q", MethodDefault, MethodAdaptive, *c.Method)
		}
	}

	if c.BaseEnergyBins != nil && *c.BaseEnergyBins < 1 {
		return fmt.Errorf("base_energy_bins must be positive, got %d", *c.BaseEnergyBins)
	}
	if c.BaseSpatialBins != nil && *c.BaseSpatialBins < 1 {
		return fmt.Errorf("base_spatial_bins must be positive, got %d", *c.BaseSpatialBins)
	}
	if c.FullStatisticsObservations != nil && *c.FullStatisticsObservations < 0 {
		return fmt.Errorf("full_statistics_observations must be non-negative, got %d", *c.FullStatisticsObservations)
	}

	if c.EnergyMinTeV != nil && *c.EnergyMinTeV <= 0 {
		return fmt.Errorf("energy_min_tev must be positive, got %g", *c.EnergyMinTeV)
	}
	if c.GetEnergyMinTeV() >= c.GetEnergyMaxTeV() {
		return fmt.Errorf("energy_min_tev (%g) must be below energy_max_tev (%g)", c.GetEnergyMinTeV(), c.GetEnergyMaxTeV())
	}
	if c.DetectorHalfWidthRad != nil && *c.DetectorHalfWidthRad <= 0 {
		return fmt.Errorf("detector_half_width_rad must be positive, got %g", *c.DetectorHalfWidthRad)
	}
	if c.EnergyCutFactor != nil && *c.EnergyCutFactor < 1 {
		return fmt.Errorf("energy_cut_factor must be at least 1, got %g", *c.EnergyCutFactor)
	}

	if c.GetSmoothingMidCounts() < 0 || c.GetSmoothingHighCounts() < c.GetSmoothingMidCounts() {
		return fmt.Errorf("smoothing count thresholds must satisfy 0 <= mid (%g) <= high (%g)",
			c.GetSmoothingMidCounts(), c.GetSmoothingHighCounts())
	}
	for name, v := range map[string]*int{
		"smoothing_passes_high": c.SmoothingPassesHigh,
		"smoothing_passes_mid":  c.SmoothingPassesMid,
		"smoothing_passes_low":  c.SmoothingPassesLow,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, *v)
		}
	}

	return nil
}

// GetMethod returns the binning method or the default.
func (c *BuilderConfig) GetMethod() string {
	if c.Method == nil || *c.Method == "" {
		return MethodDefault
	}
	return *c.Method
}

// GetBaseEnergyBins returns the base_energy_bins value or the default.
func (c *BuilderConfig) GetBaseEnergyBins() int {
	if c.BaseEnergyBins == nil {
		return 20
	}
	return *c.BaseEnergyBins
}

// GetBaseSpatialBins returns the base_spatial_bins value or the default.
func (c *BuilderConfig) GetBaseSpatialBins() int {
	if c.BaseSpatialBins == nil {
		return 60
	}
	return *c.BaseSpatialBins
}

// GetFullStatisticsObservations returns the group size at and above which
// no bin reduction is applied.
func (c *BuilderConfig) GetFullStatisticsObservations() int {
	if c.FullStatisticsObservations == nil {
		return 100
	}
	return *c.FullStatisticsObservations
}

// GetEnergyMinTeV returns the energy_min_tev value or the default.
func (c *BuilderConfig) GetEnergyMinTeV() float64 {
	if c.EnergyMinTeV == nil {
		return 0.1
	}
	return *c.EnergyMinTeV
}

// GetEnergyMaxTeV returns the energy_max_tev value or the default.
func (c *BuilderConfig) GetEnergyMaxTeV() float64 {
	if c.EnergyMaxTeV == nil {
		return 80
	}
	return *c.EnergyMaxTeV
}

// GetDetectorHalfWidthRad returns the detector_half_width_rad value or the default.
func (c *BuilderConfig) GetDetectorHalfWidthRad() float64 {
	if c.DetectorHalfWidthRad == nil {
		return 0.07
	}
	return *c.DetectorHalfWidthRad
}

// GetEnergyCutFactor returns the upper selection bound as a multiple of the
// energy threshold.
func (c *BuilderConfig) GetEnergyCutFactor() float64 {
	if c.EnergyCutFactor == nil {
		return 1e6
	}
	return *c.EnergyCutFactor
}

// GetUnitFallback returns whether hard-coded units may replace missing ones.
func (c *BuilderConfig) GetUnitFallback() bool {
	if c.UnitFallback == nil {
		return false
	}
	return *c.UnitFallback
}

// GetSmoothingHighCounts returns the total-count threshold for the fewest passes.
func (c *BuilderConfig) GetSmoothingHighCounts() float64 {
	if c.SmoothingHighCounts == nil {
		return 1e6
	}
	return *c.SmoothingHighCounts
}

// GetSmoothingMidCounts returns the total-count threshold for the middle pass count.
func (c *BuilderConfig) GetSmoothingMidCounts() float64 {
	if c.SmoothingMidCounts == nil {
		return 1e5
	}
	return *c.SmoothingMidCounts
}

// GetSmoothingPassesHigh returns the number of passes for high-statistics cubes.
func (c *BuilderConfig) GetSmoothingPassesHigh() int {
	if c.SmoothingPassesHigh == nil {
		return 3
	}
	return *c.SmoothingPassesHigh
}

// GetSmoothingPassesMid returns the number of passes for medium-statistics cubes.
func (c *BuilderConfig) GetSmoothingPassesMid() int {
	if c.SmoothingPassesMid == nil {
		return 4
	}
	return *c.SmoothingPassesMid
}

// GetSmoothingPassesLow returns the number of passes for low-statistics cubes.
func (c *BuilderConfig) GetSmoothingPassesLow() int {
	if c.SmoothingPassesLow == nil {
		return 5
	}
	return *c.SmoothingPassesLow
}
