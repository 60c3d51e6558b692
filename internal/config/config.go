package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dgketchum/openet-ptjpl/internal/collection"
)

// Config holds the full application configuration.
type Config struct {
	Compute     ComputeConfig        `yaml:"compute" mapstructure:"compute"`
	Collection  CollectionConfig     `yaml:"collection" mapstructure:"collection"`
	Model       collection.ModelArgs `yaml:"model" mapstructure:"model"`
	Interpolate InterpolateConfig    `yaml:"interpolate" mapstructure:"interpolate"`
	Export      ExportConfig         `yaml:"export" mapstructure:"export"`
	Log         LogConfig            `yaml:"log" mapstructure:"log"`
}

// ComputeConfig configures the remote compute client.
type ComputeConfig struct {
	Project     string  `yaml:"project" mapstructure:"project"`
	Token       string  `yaml:"token" mapstructure:"token"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CollectionConfig holds request defaults for collection builds.
type CollectionConfig struct {
	Collections   []string `yaml:"collections" mapstructure:"collections"`
	CloudCoverMax float64  `yaml:"cloud_cover_max" mapstructure:"cloud_cover_max"`
	BufferMeters  float64  `yaml:"buffer_meters" mapstructure:"buffer_meters"`
	RegistryFile  string   `yaml:"registry_file" mapstructure:"registry_file"`
	Variables     []string `yaml:"variables" mapstructure:"variables"`
}

// InterpolateConfig holds interpolation defaults.
type InterpolateConfig struct {
	TInterval string `yaml:"t_interval" mapstructure:"t_interval"`
	Method    string `yaml:"method" mapstructure:"method"`
	Days      int    `yaml:"days" mapstructure:"days"`
	UseJoins  bool   `yaml:"use_joins" mapstructure:"use_joins"`
}

// ExportConfig configures asset exports.
type ExportConfig struct {
	AssetRoot    string  `yaml:"asset_root" mapstructure:"asset_root"`
	CooldownSecs int     `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	MaxPixels    float64 `yaml:"max_pixels" mapstructure:"max_pixels"`
	ModelVersion string  `yaml:"model_version" mapstructure:"model_version"`
	CoreVersion  string  `yaml:"core_version" mapstructure:"core_version"`
	ScaleFactor  float64 `yaml:"scale_factor" mapstructure:"scale_factor"`
	IDField      string  `yaml:"id_field" mapstructure:"id_field"`
	StartYear    int     `yaml:"start_year" mapstructure:"start_year"`
	EndYear      int     `yaml:"end_year" mapstructure:"end_year"`
	MetricsFile  string  `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PTJPL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("compute.project", "")
	v.SetDefault("compute.token", "")
	v.SetDefault("compute.base_url", "https://earthengine.googleapis.com/v1")
	v.SetDefault("compute.rate_limit", 5.0)
	v.SetDefault("compute.burst", 5)
	v.SetDefault("compute.timeout_secs", 300)
	v.SetDefault("collection.collections", []string{
		"LANDSAT/LT04/C02/T1_L2",
		"LANDSAT/LT05/C02/T1_L2",
		"LANDSAT/LE07/C02/T1_L2",
		"LANDSAT/LC08/C02/T1_L2",
		"LANDSAT/LC09/C02/T1_L2",
	})
	v.SetDefault("collection.cloud_cover_max", collection.DefaultCloudCoverMax)
	v.SetDefault("collection.buffer_meters", 100.0)
	v.SetDefault("collection.registry_file", "")
	v.SetDefault("collection.variables", []string{"et", "et_reference", "et_fraction"})
	v.SetDefault("model.et_reference_source", "ERA5LAND")
	v.SetDefault("model.et_reference_band", "eto")
	v.SetDefault("model.et_reference_factor", 1.0)
	v.SetDefault("model.et_reference_resample", "bilinear")
	v.SetDefault("model.cloudmask_args.cloud_score_flag", false)
	v.SetDefault("model.cloudmask_args.filter_flag", false)
	v.SetDefault("model.sources", map[string]string{
		"ta_source":        "ERA5LAND",
		"ea_source":        "ERA5LAND",
		"windspeed_source": "ERA5LAND",
		"rs_source":        "ERA5LAND",
		"LWin_source":      "ERA5LAND",
	})
	v.SetDefault("interpolate.t_interval", "custom")
	v.SetDefault("interpolate.method", "linear")
	v.SetDefault("interpolate.days", collection.DefaultInterpDays)
	v.SetDefault("interpolate.use_joins", false)
	v.SetDefault("export.asset_root", "")
	v.SetDefault("export.cooldown_secs", 600)
	v.SetDefault("export.max_pixels", 1e13)
	v.SetDefault("export.model_version", "0.4.1")
	v.SetDefault("export.core_version", "")
	v.SetDefault("export.scale_factor", 0.0001)
	v.SetDefault("export.id_field", "FID")
	v.SetDefault("export.start_year", 2000)
	v.SetDefault("export.end_year", 2024)
	v.SetDefault("export.metrics_file", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Model.Sources = canonicalSources(cfg.Model.Sources)

	return &cfg, nil
}

// sourceKeys restores the casing of model source keys, which viper folds
// to lower case.
var sourceKeys = map[string]string{
	"lwin_source": "LWin_source",
}

func canonicalSources(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if canon, ok := sourceKeys[strings.ToLower(k)]; ok {
			k = canon
		}
		out[k] = v
	}
	return out
}

// Validate checks the fields a command mode needs.
func (c *Config) Validate(mode string) error {
	var missing []string
	switch mode {
	case "collections":
		return nil
	case "scenes":
		if c.Compute.Project == "" {
			missing = append(missing, "compute.project")
		}
	case "export", "interpolate":
		if c.Compute.Project == "" {
			missing = append(missing, "compute.project")
		}
		if c.Export.AssetRoot == "" {
			missing = append(missing, "export.asset_root")
		}
		if c.Export.CooldownSecs < 0 {
			return eris.Errorf("config: export.cooldown_secs must be >= 0, got %d", c.Export.CooldownSecs)
		}
		if mode == "export" && c.Export.StartYear > c.Export.EndYear {
			return eris.Errorf("config: export.start_year %d is after export.end_year %d",
				c.Export.StartYear, c.Export.EndYear)
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Collection.CloudCoverMax < 0 || c.Collection.CloudCoverMax > 100 {
		return eris.Errorf("config: collection.cloud_cover_max must be in [0, 100], got %v", c.Collection.CloudCoverMax)
	}
	if c.Compute.RateLimit < 0 {
		return eris.Errorf("config: compute.rate_limit must be >= 0, got %v", c.Compute.RateLimit)
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required fields for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
