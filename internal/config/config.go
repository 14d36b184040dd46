// Package config loads application configuration from config.yaml and
// WOHNWERT_* environment variables, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wohnwert/wohnwert/internal/mortgage"
	"github.com/wohnwert/wohnwert/internal/store"
	"github.com/wohnwert/wohnwert/internal/validate"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Criteria  CriteriaConfig  `yaml:"criteria" mapstructure:"criteria"`
	Profiles  ProfilesConfig  `yaml:"profiles" mapstructure:"profiles"`
	Mortgage  mortgage.Params `yaml:"mortgage" mapstructure:"mortgage"`
	Validate  ValidateConfig  `yaml:"validate" mapstructure:"validate"`
	Selection SelectionConfig `yaml:"selection" mapstructure:"selection"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// CriteriaConfig points at an optional criteria catalog file. Empty means
// the built-in Vienna catalog.
type CriteriaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ProfilesConfig configures buyer profiles.
type ProfilesConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	Default string `yaml:"default" mapstructure:"default"`
}

// ValidateConfig configures plausibility bands and URL liveness probes.
type ValidateConfig struct {
	Bands           validate.Bands `yaml:"bands" mapstructure:"bands"`
	LivenessEnabled bool           `yaml:"liveness_enabled" mapstructure:"liveness_enabled"`
	TimeoutSecs     int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RecheckWorkers  int            `yaml:"recheck_workers" mapstructure:"recheck_workers"`
}

// SelectionConfig holds the feed defaults.
type SelectionConfig struct {
	MinScore          float64  `yaml:"min_score" mapstructure:"min_score"`
	Limit             int      `yaml:"limit" mapstructure:"limit"`
	RecencyDays       int      `yaml:"recency_days" mapstructure:"recency_days"`
	ResendDays        int      `yaml:"resend_days" mapstructure:"resend_days"`
	ExcludedDistricts []string `yaml:"excluded_districts" mapstructure:"excluded_districts"`
	MinRooms          float64  `yaml:"min_rooms" mapstructure:"min_rooms"`
}

// NotifyConfig configures outbound notifications.
type NotifyConfig struct {
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MessagesPerSecond float64 `yaml:"messages_per_second" mapstructure:"messages_per_second"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and environment
// variables prefixed WOHNWERT_.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WOHNWERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("profiles.default", "default")
	v.SetDefault("mortgage.annual_rate_pct", 3.5)
	v.SetDefault("mortgage.term_years", 35)
	v.SetDefault("mortgage.down_payment_pct", 0.20)
	v.SetDefault("mortgage.life_insurance_rate_pct", 0.4)
	v.SetDefault("mortgage.property_insurance_rate_pct", 0.15)
	v.SetDefault("mortgage.admin_fee_monthly", 25)
	v.SetDefault("mortgage.income_ratio", 0.30)
	v.SetDefault("mortgage.min_operating_cost", 10)
	v.SetDefault("mortgage.max_operating_cost", 5000)
	v.SetDefault("validate.bands.min_price_total", 50000)
	v.SetDefault("validate.bands.min_area_m2", 20)
	v.SetDefault("validate.bands.min_price_per_m2", 1000)
	v.SetDefault("validate.bands.max_price_per_m2", 25000)
	v.SetDefault("validate.liveness_enabled", true)
	v.SetDefault("validate.timeout_secs", 10)
	v.SetDefault("validate.recheck_workers", 8)
	v.SetDefault("selection.min_score", 40)
	v.SetDefault("selection.limit", 5)
	v.SetDefault("selection.recency_days", 0)
	v.SetDefault("selection.resend_days", 7)
	v.SetDefault("notify.timeout_secs", 15)
	v.SetDefault("notify.messages_per_second", 1)
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
