package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is loaded once and
// immutable for the duration of a run.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Quality    QualityConfig    `yaml:"quality_thresholds" mapstructure:"quality_thresholds"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Validation ValidationConfig `yaml:"validation_rules" mapstructure:"validation_rules"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts" mapstructure:"artifacts"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// DiscoveryConfig locates the property sources scanned in stage 1.
type DiscoveryConfig struct {
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// PipelineConfig configures stage execution.
type PipelineConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// QualityConfig holds the QA stage thresholds.
type QualityConfig struct {
	Completeness float64 `yaml:"completeness" mapstructure:"completeness"`
	Accuracy     float64 `yaml:"accuracy" mapstructure:"accuracy"`
	Consistency  float64 `yaml:"consistency" mapstructure:"consistency"`
}

// ResearchConfig configures the enrichment stage.
type ResearchConfig struct {
	Providers       []string `yaml:"providers" mapstructure:"providers"`
	RatePerSecond   float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	SkipConfidence  float64  `yaml:"skip_confidence" mapstructure:"skip_confidence"`
	MaxAttempts     int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ValidationConfig holds cross-validation and quality-gate rules.
type ValidationConfig struct {
	MinSources          int     `yaml:"min_sources" mapstructure:"min_sources"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// MonitoringConfig configures post-deploy observability setup.
type MonitoringConfig struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	AlertThreshold float64 `yaml:"alert_threshold" mapstructure:"alert_threshold"`
	ReviewSchedule string  `yaml:"review_schedule" mapstructure:"review_schedule"`
	WebhookURL     string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ArtifactsConfig locates the per-stage and run result artifacts.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. A missing config
// file is not an error: the documented defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPERTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "property-pipeline.db")
	v.SetDefault("discovery.data_dir", "data/materials")
	v.SetDefault("discovery.rules_path", "data/category_rules.yaml")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("quality_thresholds.completeness", 0.8)
	v.SetDefault("quality_thresholds.accuracy", 0.85)
	v.SetDefault("quality_thresholds.consistency", 0.9)
	v.SetDefault("research.providers", []string{"reference_data", "vendor_datasheets", "literature"})
	v.SetDefault("research.rate_per_second", 5.0)
	v.SetDefault("research.skip_confidence", 0.9)
	v.SetDefault("research.max_attempts", 3)
	v.SetDefault("research.timeout_secs", 30)
	v.SetDefault("validation_rules.min_sources", 2)
	v.SetDefault("validation_rules.confidence_threshold", 0.7)
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.alert_threshold", 0.95)
	v.SetDefault("monitoring.review_schedule", "weekly")
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
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
