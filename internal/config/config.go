package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Health     HealthConfig     `mapstructure:"health"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConnections int    `mapstructure:"max_connections"`
	PruneInterval  string `mapstructure:"prune_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CollectorConfig struct {
	Interval   string `mapstructure:"interval"`
	HistoryCap int    `mapstructure:"history_cap"`
	Retention  string `mapstructure:"retention"`
}

type HealthConfig struct {
	Interval     string         `mapstructure:"interval"`
	ProbeTimeout string         `mapstructure:"probe_timeout"`
	Services     []ServiceProbe `mapstructure:"services"`
}

// ServiceProbe describes one dependent service the health checker pings.
type ServiceProbe struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Core    bool   `mapstructure:"core"`
	Timeout string `mapstructure:"timeout"`
}

type AlertingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	AlertCap        int    `mapstructure:"alert_cap"`
	AuditCap        int    `mapstructure:"audit_cap"`
	DefaultCooldown string `mapstructure:"default_cooldown"`
	SeedPath        string `mapstructure:"seed_path"`
}

type EscalationConfig struct {
	ScanInterval string `mapstructure:"scan_interval"`
}

type NotifyConfig struct {
	ChannelTimeout string `mapstructure:"channel_timeout"`
	StopGrace      string `mapstructure:"stop_grace"`
}

// Load reads config.yaml and applies environment overrides.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults plus env cover everything.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3001)
	viper.SetDefault("server.mode", "development")

	viper.SetDefault("database.path", "./data/sentinel.db")
	viper.SetDefault("database.migrations_path", "./migrations")
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("database.prune_interval", "1h")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("collector.interval", "30s")
	viper.SetDefault("collector.history_cap", 1000)
	viper.SetDefault("collector.retention", "168h")

	viper.SetDefault("health.interval", "60s")
	viper.SetDefault("health.probe_timeout", "5s")

	viper.SetDefault("alerting.enabled", true)
	viper.SetDefault("alerting.alert_cap", 500)
	viper.SetDefault("alerting.audit_cap", 1000)
	viper.SetDefault("alerting.default_cooldown", "5m")
	viper.SetDefault("alerting.seed_path", "./configs/seed.yaml")

	viper.SetDefault("escalation.scan_interval", "2m")

	viper.SetDefault("notify.channel_timeout", "10s")
	viper.SetDefault("notify.stop_grace", "15s")
}

// Duration parses a duration field, falling back to def when the value is
// empty or malformed. Duration values are kept as strings in yaml and parsed
// at the use site.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
