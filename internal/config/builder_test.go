package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBuilderConfig(t *testing.T) {
	cfg := DefaultBuilderConfig()

	if cfg.BaseEnergyBins == nil || *cfg.BaseEnergyBins != 20 {
		t.Errorf("Expected BaseEnergyBins 20, got %v", cfg.BaseEnergyBins)
	}
	if cfg.BaseSpatialBins == nil || *cfg.BaseSpatialBins != 60 {
		t.Errorf("Expected BaseSpatialBins 60, got %v", cfg.BaseSpatialBins)
	}
	if cfg.UnitFallback == nil || *cfg.UnitFallback != false {
		t.Errorf("Expected UnitFallback false, got %v", cfg.UnitFallback)
	}

	assert.Equal(t, MethodDefault, cfg.GetMethod())
	assert.Equal(t, 100, cfg.GetFullStatisticsObservations())
	assert.Equal(t, 0.1, cfg.GetEnergyMinTeV())
	assert.Equal(t, 80.0, cfg.GetEnergyMaxTeV())
	assert.Equal(t, 0.07, cfg.GetDetectorHalfWidthRad())
	assert.Equal(t, 1e6, cfg.GetEnergyCutFactor())
	assert.Equal(t, 1e6, cfg.GetSmoothingHighCounts())
	assert.Equal(t, 1e5, cfg.GetSmoothingMidCounts())
	assert.Equal(t, []int{3, 4, 5}, []int{
		cfg.GetSmoothingPassesHigh(), cfg.GetSmoothingPassesMid(), cfg.GetSmoothingPassesLow(),
	})
}

func TestEmptyConfigMatchesDefaults(t *testing.T) {
	empty := EmptyBuilderConfig()
	def := DefaultBuilderConfig()

	assert.Equal(t, def.GetMethod(), empty.GetMethod())
	assert.Equal(t, def.GetBaseEnergyBins(), empty.GetBaseEnergyBins())
	assert.Equal(t, def.GetBaseSpatialBins(), empty.GetBaseSpatialBins())
	assert.Equal(t, def.GetFullStatisticsObservations(), empty.GetFullStatisticsObservations())
	assert.Equal(t, def.GetEnergyMinTeV(), empty.GetEnergyMinTeV())
	assert.Equal(t, def.GetEnergyMaxTeV(), empty.GetEnergyMaxTeV())
	assert.Equal(t, def.GetDetectorHalfWidthRad(), empty.GetDetectorHalfWidthRad())
	assert.Equal(t, def.GetEnergyCutFactor(), empty.GetEnergyCutFactor())
	assert.Equal(t, def.GetUnitFallback(), empty.GetUnitFallback())
	assert.Equal(t, def.GetSmoothingPassesLow(), empty.GetSmoothingPassesLow())
}

func TestLoadBuilderConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "builder.json")

	testJSON := `{
  "method": "adaptive",
  "base_energy_bins": 10,
  "unit_fallback": true,
  "smoothing_passes_low": 7
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0644))

	cfg, err := LoadBuilderConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, MethodAdaptive, cfg.GetMethod())
	assert.Equal(t, 10, cfg.GetBaseEnergyBins())
	assert.True(t, cfg.GetUnitFallback())
	assert.Equal(t, 7, cfg.GetSmoothingPassesLow())
	// Omitted fields keep their defaults.
	assert.Equal(t, 60, cfg.GetBaseSpatialBins())
	assert.Equal(t, 0.07, cfg.GetDetectorHalfWidthRad())
}

func TestLoadBuilderConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"wrong extension", write("builder.yaml", `{}`)},
		{"missing file", filepath.Join(tmpDir, "absent.json")},
		{"malformed json", write("bad.json", `{"base_energy_bins": `)},
		{"invalid values", write("invalid.json", `{"energy_min_tev": 100, "energy_max_tev": 10}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBuilderConfig(tt.path)
			if err == nil {
				t.Errorf("LoadBuilderConfig(%q) expected error", tt.path)
			}
		})
	}
}

func TestLoadBuilderConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	require.NoError(t, os.WriteFile(p, big, 0644))

	_, err := LoadBuilderConfig(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *BuilderConfig
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultBuilderConfig()},
		{name: "empty config is valid", cfg: &BuilderConfig{}},
		{name: "unknown method", cfg: &BuilderConfig{Method: ptrString("fancy")}, wantErr: true},
		{name: "zero energy bins", cfg: &BuilderConfig{BaseEnergyBins: ptrInt(0)}, wantErr: true},
		{name: "negative spatial bins", cfg: &BuilderConfig{BaseSpatialBins: ptrInt(-4)}, wantErr: true},
		{name: "non-positive energy min", cfg: &BuilderConfig{EnergyMinTeV: ptrFloat64(0)}, wantErr: true},
		{name: "inverted energy range", cfg: &BuilderConfig{EnergyMinTeV: ptrFloat64(90)}, wantErr: true},
		{name: "zero half width", cfg: &BuilderConfig{DetectorHalfWidthRad: ptrFloat64(0)}, wantErr: true},
		{name: "cut factor below one", cfg: &BuilderConfig{EnergyCutFactor: ptrFloat64(0.5)}, wantErr: true},
		{name: "inverted smoothing thresholds", cfg: &BuilderConfig{SmoothingMidCounts: ptrFloat64(1e7)}, wantErr: true},
		{name: "negative passes", cfg: &BuilderConfig{SmoothingPassesMid: ptrInt(-1)}, wantErr: true},
		{name: "zero passes allowed", cfg: &BuilderConfig{SmoothingPassesHigh: ptrInt(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	def := DefaultBuilderConfig()

	assert.Equal(t, def.GetBaseEnergyBins(), cfg.GetBaseEnergyBins())
	assert.Equal(t, def.GetBaseSpatialBins(), cfg.GetBaseSpatialBins())
	assert.Equal(t, def.GetEnergyCutFactor(), cfg.GetEnergyCutFactor())
	assert.Equal(t, def.GetSmoothingHighCounts(), cfg.GetSmoothingHighCounts())
	assert.Equal(t, def.GetSmoothingPassesMid(), cfg.GetSmoothingPassesMid())
}
