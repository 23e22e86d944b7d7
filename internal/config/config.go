// Package config loads cti-refine settings from an optional YAML file,
// defaults and CTIREFINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "CTIREFINE"

type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	NATS  NATSConfig  `mapstructure:"nats"`
	Batch BatchConfig `mapstructure:"batch"`
	Inbox InboxConfig `mapstructure:"inbox"`
	OTel  OTelConfig  `mapstructure:"otel"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	RateCapacity int64         `mapstructure:"rate_capacity"`
	RateFill     float64       `mapstructure:"rate_fill"`
	RateWindow   time.Duration `mapstructure:"rate_window"`
	RateMax      int64         `mapstructure:"rate_max"`
}

type NATSConfig struct {
	URL             string        `mapstructure:"url"`
	Subject         string        `mapstructure:"subject"`
	Queue           string        `mapstructure:"queue"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectDelay    time.Duration `mapstructure:"connect_delay"`
}

type BatchConfig struct {
	Workers  int   `mapstructure:"workers"`
	ShardPow uint8 `mapstructure:"shard_pow"`
}

type InboxConfig struct {
	Dir       string        `mapstructure:"dir"`
	OutDir    string        `mapstructure:"out_dir"`
	Operation string        `mapstructure:"operation"`
	Column    string        `mapstructure:"column"`
	Defang    bool          `mapstructure:"defang"`
	Mode      string        `mapstructure:"mode"`
	Debounce  time.Duration `mapstructure:"debounce"`
}

type OTelConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Endpoint    string            `mapstructure:"endpoint"`
	Environment string            `mapstructure:"environment"`
	Attributes  map[string]string `mapstructure:"attributes"`
}

// Load reads configuration. An explicit path must exist; otherwise
// cti-refine.yaml is looked up in the working directory and /etc/cti-refine
// and its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cti-refine")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/cti-refine/")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.max_body_bytes", 8<<20)
	v.SetDefault("http.rate_capacity", 200)
	v.SetDefault("http.rate_fill", 100.0)
	v.SetDefault("http.rate_window", "1s")
	v.SetDefault("http.rate_max", 1000)

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject", "cti.refine.extract")
	v.SetDefault("nats.queue", "cti-refine")
	v.SetDefault("nats.connect_attempts", 5)
	v.SetDefault("nats.connect_delay", "500ms")

	v.SetDefault("batch.workers", 8)
	v.SetDefault("batch.shard_pow", 4)

	v.SetDefault("inbox.dir", "./inbox")
	v.SetDefault("inbox.out_dir", "./outbox")
	v.SetDefault("inbox.operation", "extractAllIOCs")
	v.SetDefault("inbox.column", "text")
	v.SetDefault("inbox.defang", false)
	v.SetDefault("inbox.mode", "")
	v.SetDefault("inbox.debounce", "200ms")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.environment", "")
}
