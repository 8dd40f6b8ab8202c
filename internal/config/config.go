// Package config loads client configuration from a config file and the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ServerConfig points the client at the backend REST API.
type ServerConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RealtimeConfig points the client at the notification websocket.
type RealtimeConfig struct {
	URL              string
	ReconnectMax     time.Duration
	ReconnectInitial time.Duration
}

// StateConfig locates the durable client-local state database that holds the
// credential pair and the notification log.
type StateConfig struct {
	Path string
}

// MetricsConfig enables the local prometheus endpoint when Addr is non-empty.
type MetricsConfig struct {
	Addr string
}

// Config is the full client configuration.
type Config struct {
	Server   ServerConfig
	Realtime RealtimeConfig
	State    StateConfig
	Metrics  MetricsConfig
}

// Load reads config.yaml (working directory or ./config) and TRIPCREW_*
// environment variables. A missing config file is not an error; defaults
// cover every key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("TRIPCREW")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.baseurl", "http://localhost:8080")
	v.SetDefault("server.timeout", "15s")

	v.SetDefault("realtime.url", "ws://localhost:8080/ws")
	v.SetDefault("realtime.reconnectinitial", "1s")
	v.SetDefault("realtime.reconnectmax", "30s")

	v.SetDefault("state.path", "./data/tripcrew.db")

	v.SetDefault("metrics.addr", "")
}
