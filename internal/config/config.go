// Package config loads service configuration from a YAML file and
// environment variables via viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Database DatabaseConfig `mapstructure:"database"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Home     HomeConfig     `mapstructure:"home"`
}

type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	TrustProxy bool   `mapstructure:"trust_proxy"`
	LogLevel   string `mapstructure:"log_level"`
}

type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type EngineConfig struct {
	Workers            int           `mapstructure:"workers"`
	SampleStep         time.Duration `mapstructure:"sample_step"`
	MaxConcurrentGrids int           `mapstructure:"max_concurrent_grids"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// HomeConfig is the garden's own location, used for the daily MQTT summary.
type HomeConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// Load reads configuration from the given file (or the default search
// paths when empty), applying defaults and SUNFIELD_* environment
// overrides.
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/sunfield")
	}

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.trust_proxy", false)
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.token", "")
	viper.SetDefault("engine.workers", runtime.NumCPU())
	viper.SetDefault("engine.sample_step", "10m")
	viper.SetDefault("engine.max_concurrent_grids", 2)
	viper.SetDefault("database.path", "./sunfield.db")
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.client_id", "sunfield")
	viper.SetDefault("mqtt.topic_prefix", "sunfield")
	viper.SetDefault("home.latitude", 0)
	viper.SetDefault("home.longitude", 0)

	viper.SetEnvPrefix("SUNFIELD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Auth.Enabled && cfg.Auth.Token == "" {
		return nil, fmt.Errorf("auth.token is required when auth is enabled")
	}
	if cfg.Engine.Workers < 1 {
		cfg.Engine.Workers = 1
	}

	return &cfg, nil
}
