// Package config loads the service configuration from an optional YAML file
// and CODEMEET_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const EnvPrefix = "CODEMEET"

// Config is the root configuration
type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Matching     MatchingConfig     `mapstructure:"matching"`
	Resources    ResourcesConfig    `mapstructure:"resources"`
	Opportunity  OpportunityConfig  `mapstructure:"opportunity"`
	Persistence  PersistenceConfig  `mapstructure:"persistence"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Notification NotificationConfig `mapstructure:"notification"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type MatchingConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RandomSeed uint64        `mapstructure:"random_seed"` // 0 seeds from the clock
}

type ResourcesConfig struct {
	DocumentURLTemplate string `mapstructure:"document_url_template"`
	VideoURLTemplate    string `mapstructure:"video_url_template"`
}

type OpportunityConfig struct {
	Backend        string `mapstructure:"backend"` // gorm, redis, memory
	InitialBalance int    `mapstructure:"initial_balance"`
}

type PersistenceConfig struct {
	Backend string `mapstructure:"backend"` // gorm, memory
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type NotificationConfig struct {
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	EventsTopic string   `mapstructure:"events_topic"`
	Compression string   `mapstructure:"compression"`
}

type WebSocketConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Shards  int  `mapstructure:"shards"`
}

type TracingConfig struct {
	Exporter    string  `mapstructure:"exporter"` // none, stdout
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.allowed_origins", []string{"*"})

	v.SetDefault("matching.interval", 5*time.Second)
	v.SetDefault("matching.random_seed", 0)

	v.SetDefault("resources.document_url_template", "https://codemeet.app/doc/%s")
	v.SetDefault("resources.video_url_template", "https://codemeet.app/video/%s")

	v.SetDefault("opportunity.backend", "gorm")
	v.SetDefault("opportunity.initial_balance", 1)
	v.SetDefault("persistence.backend", "gorm")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:codemeet.db?_busy_timeout=5000")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "silent")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "codemeet:opportunity")

	v.SetDefault("notification.kafka.enabled", false)
	v.SetDefault("notification.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("notification.kafka.topic", "codemeet.match.notifications")
	v.SetDefault("notification.kafka.events_topic", "codemeet.match.events")
	v.SetDefault("notification.kafka.compression", "snappy")
	v.SetDefault("notification.websocket.enabled", true)
	v.SetDefault("notification.websocket.shards", 16)

	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load reads the configuration. A missing file at path is not an error;
// environment variables override file values.
func Load(path string, logger *zap.Logger) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
			logger.Info("Loaded configuration file", zap.String("path", path))
		} else {
			logger.Debug("Config file not found, skipping", zap.String("path", path))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail at runtime
func (c *Config) Validate() error {
	if c.Matching.Interval <= 0 {
		return fmt.Errorf("matching.interval must be positive, got %s", c.Matching.Interval)
	}
	if !strings.Contains(c.Resources.DocumentURLTemplate, "%s") {
		return fmt.Errorf("resources.document_url_template must contain %%s")
	}
	if !strings.Contains(c.Resources.VideoURLTemplate, "%s") {
		return fmt.Errorf("resources.video_url_template must contain %%s")
	}
	switch c.Opportunity.Backend {
	case "gorm", "redis", "memory":
	default:
		return fmt.Errorf("unsupported opportunity.backend %q", c.Opportunity.Backend)
	}
	if c.Opportunity.InitialBalance < 0 {
		return fmt.Errorf("opportunity.initial_balance cannot be negative")
	}
	switch c.Persistence.Backend {
	case "gorm", "memory":
	default:
		return fmt.Errorf("unsupported persistence.backend %q", c.Persistence.Backend)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Notification.Kafka.Enabled && len(c.Notification.Kafka.Brokers) == 0 {
		return fmt.Errorf("notification.kafka.brokers is required when kafka is enabled")
	}
	return nil
}
