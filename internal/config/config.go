// Package config loads the simulator's configuration with viper:
// flags override environment variables override an optional YAML
// config file override these defaults — the same precedence
// cmd/task-cli's root command sets up with viper.BindPFlag.
package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is everything the CLI/servers need at startup.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	ProfilePath string        `mapstructure:"profile"`
	Duration    time.Duration `mapstructure:"duration"`

	APIAddr   string `mapstructure:"api_addr"`
	AdminAddr string `mapstructure:"admin_addr"`

	JWTSecret       string   `mapstructure:"jwt_secret"`
	AdminAPIKeyHash string   `mapstructure:"admin_api_key_hash"`
	AdminTOTP       string   `mapstructure:"admin_totp_secret"`
	CORSOrigins     []string `mapstructure:"cors_origins"`

	PostgresDSN string `mapstructure:"postgres_dsn"`
	RedisAddr   string `mapstructure:"redis_addr"`

	KafkaBrokers   []string `mapstructure:"kafka_brokers"`
	TickTopic      string   `mapstructure:"tick_topic"`
	RunEventsTopic string   `mapstructure:"run_events_topic"`
}

// Defaults returns the simulator's out-of-the-box configuration: no
// external services configured, so it runs standalone.
func Defaults() Config {
	return Config{
		LogLevel:       "info",
		LogFormat:      "console",
		Duration:       1 * time.Second,
		APIAddr:        ":8081",
		AdminAddr:      ":9090",
		TickTopic:      "htbsim.ticks",
		RunEventsTopic: "htbsim.runs",
	}
}

// Load reads configuration from (in increasing precedence) the
// built-in defaults, an optional config file, environment variables
// prefixed HTBSIM_, and whatever flags v already has bound. cfgFile
// may be empty, in which case config.yaml is looked up in
// $HOME/.config/htbsim and then in the working directory (a missing
// file is not an error).
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	def := Defaults()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("duration", def.Duration)
	v.SetDefault("api_addr", def.APIAddr)
	v.SetDefault("admin_addr", def.AdminAddr)
	v.SetDefault("tick_topic", def.TickTopic)
	v.SetDefault("run_events_topic", def.RunEventsTopic)

	v.SetEnvPrefix("HTBSIM")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.config/htbsim")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// WatchReload registers a callback invoked whenever the config file on
// disk changes, via viper's fsnotify-backed watcher — used by `htbsim
// serve` to hot-reload the log level and admin TOTP secret without a
// restart.
func WatchReload(v *viper.Viper, onChange func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err == nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
