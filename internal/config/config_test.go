package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://earthengine.googleapis.com/v1", cfg.Compute.BaseURL)
	assert.InDelta(t, 5.0, cfg.Compute.RateLimit, 0.001)
	assert.Equal(t, 5, cfg.Compute.Burst)
	assert.Equal(t, 300, cfg.Compute.TimeoutSecs)
	assert.Len(t, cfg.Collection.Collections, 5)
	assert.Contains(t, cfg.Collection.Collections, "LANDSAT/LC08/C02/T1_L2")
	assert.InDelta(t, 70.0, cfg.Collection.CloudCoverMax, 0.001)
	assert.InDelta(t, 100.0, cfg.Collection.BufferMeters, 0.001)
	assert.Equal(t, []string{"et", "et_reference", "et_fraction"}, cfg.Collection.Variables)
	assert.Equal(t, "ERA5LAND", cfg.Model.ETReferenceSource)
	assert.Equal(t, "eto", cfg.Model.ETReferenceBand)
	assert.InDelta(t, 1.0, cfg.Model.ETReferenceFactor, 0.001)
	assert.Equal(t, "bilinear", cfg.Model.ETReferenceResample)
	assert.Equal(t, "ERA5LAND", cfg.Model.Sources["LWin_source"])
	assert.Equal(t, "ERA5LAND", cfg.Model.Sources["ta_source"])
	assert.NotContains(t, cfg.Model.Sources, "lwin_source")
	assert.Equal(t, "custom", cfg.Interpolate.TInterval)
	assert.Equal(t, "linear", cfg.Interpolate.Method)
	assert.Equal(t, 32, cfg.Interpolate.Days)
	assert.False(t, cfg.Interpolate.UseJoins)
	assert.Equal(t, 600, cfg.Export.CooldownSecs)
	assert.InDelta(t, 1e13, cfg.Export.MaxPixels, 1)
	assert.Equal(t, "0.4.1", cfg.Export.ModelVersion)
	assert.InDelta(t, 0.0001, cfg.Export.ScaleFactor, 1e-9)
	assert.Equal(t, "FID", cfg.Export.IDField)
	assert.Equal(t, 2000, cfg.Export.StartYear)
	assert.Equal(t, 2024, cfg.Export.EndYear)
	assert.Empty(t, cfg.Export.AssetRoot)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
compute:
  project: ee-test
  rate_limit: 2
log:
  level: debug
  format: console
collection:
  collections:
    - LANDSAT/LC08/C02/T1_L2
  cloud_cover_max: 40
model:
  et_reference_source: IDAHO_EPSCOR/GRIDMET
  et_reference_resample: nearest
  cloudmask_args:
    filter_flag: true
export:
  asset_root: projects/ee-test/assets/ptjpl
  cooldown_secs: 30
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ee-test", cfg.Compute.Project)
	assert.InDelta(t, 2.0, cfg.Compute.RateLimit, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"LANDSAT/LC08/C02/T1_L2"}, cfg.Collection.Collections)
	assert.InDelta(t, 40.0, cfg.Collection.CloudCoverMax, 0.001)
	assert.Equal(t, "IDAHO_EPSCOR/GRIDMET", cfg.Model.ETReferenceSource)
	assert.Equal(t, "nearest", cfg.Model.ETReferenceResample)
	assert.True(t, cfg.Model.CloudMask.FilterFlag)
	assert.False(t, cfg.Model.CloudMask.CloudScoreFlag)
	assert.Equal(t, "projects/ee-test/assets/ptjpl", cfg.Export.AssetRoot)
	assert.Equal(t, 30, cfg.Export.CooldownSecs)
	// Defaults still apply for unset values
	assert.Equal(t, "eto", cfg.Model.ETReferenceBand)
	assert.Equal(t, 32, cfg.Interpolate.Days)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
compute:
  project: from-file
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PTJPL_COMPUTE_PROJECT", "from-env")
	t.Setenv("PTJPL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "from-env", cfg.Compute.Project)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PTJPL_COMPUTE_TOKEN", "secret")
	t.Setenv("PTJPL_EXPORT_COOLDOWN_SECS", "5")
	t.Setenv("PTJPL_COLLECTION_CLOUD_COVER_MAX", "25.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Compute.Token)
	assert.Equal(t, 5, cfg.Export.CooldownSecs)
	assert.InDelta(t, 25.5, cfg.Collection.CloudCoverMax, 0.001)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("compute: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults validation looks at.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Compute.Project = "ee-test"
	cfg.Compute.RateLimit = 5
	cfg.Collection.CloudCoverMax = 70
	cfg.Export.AssetRoot = "projects/ee-test/assets/ptjpl"
	cfg.Export.CooldownSecs = 600
	cfg.Export.StartYear = 2000
	cfg.Export.EndYear = 2024
	return cfg
}

func TestValidateExport_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("export"))
	assert.NoError(t, validDefaults().Validate("interpolate"))
}

func TestValidateExport_MissingFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute.project")
	assert.Contains(t, err.Error(), "export.asset_root")
}

func TestValidateScenes_OnlyNeedsProject(t *testing.T) {
	cfg := &Config{}
	cfg.Compute.Project = "ee-test"
	assert.NoError(t, cfg.Validate("scenes"))

	cfg.Compute.Project = ""
	err := cfg.Validate("scenes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute.project")
}

func TestValidateCollections_NeedsNothing(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate("collections"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Collection.CloudCoverMax = 101
	err := cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cloud_cover_max")

	cfg = validDefaults()
	cfg.Export.CooldownSecs = -1
	err = cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cooldown_secs")

	cfg = validDefaults()
	cfg.Export.StartYear = 2025
	err = cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_year")
	assert.NoError(t, cfg.Validate("interpolate"))

	cfg = validDefaults()
	cfg.Compute.RateLimit = -1
	err = cfg.Validate("scenes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit")
}
