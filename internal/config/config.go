// Package config loads the settings record of spec.md §6 plus the
// ambient layers (catalog client, decoder, logging) needed to run it,
// using the same viper-based layering the teacher uses: defaults, then
// a config file, then environment variables.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/loopstationfm/loopstation/internal/platform"
)

// BpmMode mirrors spec.md §6's bpm_mode field.
type BpmMode string

const (
	BpmModeAuto  BpmMode = "auto"
	BpmModeFixed BpmMode = "fixed"
)

// Config is the settings record of spec.md §6 plus the ambient
// catalog/decoder/logging configuration a running process also needs.
// Load range-checks the settings fields; keys that match no field are
// ignored, not rejected.
type Config struct {
	Debug bool `mapstructure:"debug"`

	ListenSeconds         int     `mapstructure:"listen_seconds"`
	ClipSeconds           int     `mapstructure:"clip_seconds"`
	StationChangeSeconds  int     `mapstructure:"station_change_seconds"`
	Bars                  int     `mapstructure:"bars"`
	BeatsPerBar           int     `mapstructure:"beats_per_bar"`
	BpmMode               BpmMode `mapstructure:"bpm_mode"`
	BpmFixed              float64 `mapstructure:"bpm_fixed"`
	BpmMin                float64 `mapstructure:"bpm_min"`
	BpmMax                float64 `mapstructure:"bpm_max"`
	Seed                  string  `mapstructure:"seed"`

	Search string `mapstructure:"search"`
	Region string `mapstructure:"region"`
	Random bool   `mapstructure:"random"`

	Catalog struct {
		BaseURL           string  `mapstructure:"base_url"`
		Timeout           int     `mapstructure:"timeout"`
		Retries           int     `mapstructure:"retries"`
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
		BurstSize         int     `mapstructure:"burst_size"`
		UserAgent         string  `mapstructure:"user_agent"`
	} `mapstructure:"catalog"`

	Decoder struct {
		Binary string `mapstructure:"binary"`
	} `mapstructure:"decoder"`
}

// Load reads configuration from configPath (or the platform config
// directory / working directory if empty), layering defaults below a
// config file below environment variables prefixed LOOPSTATION_.
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		configDir, err := platform.GetConfigDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("LOOPSTATION")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("listen_seconds", 10)
	viper.SetDefault("clip_seconds", 4)
	viper.SetDefault("station_change_seconds", 12)
	viper.SetDefault("bars", 2)
	viper.SetDefault("beats_per_bar", 4)
	viper.SetDefault("bpm_mode", string(BpmModeAuto))
	viper.SetDefault("bpm_fixed", 120.0)
	viper.SetDefault("bpm_min", 70.0)
	viper.SetDefault("bpm_max", 170.0)
	viper.SetDefault("seed", "")

	viper.SetDefault("search", "")
	viper.SetDefault("region", "")
	viper.SetDefault("random", false)

	viper.SetDefault("catalog.base_url", "https://radio.garden/api")
	viper.SetDefault("catalog.timeout", 30)
	viper.SetDefault("catalog.retries", 3)
	viper.SetDefault("catalog.requests_per_second", 5)
	viper.SetDefault("catalog.burst_size", 5)
	viper.SetDefault("catalog.user_agent", "loopstation/1.0")

	viper.SetDefault("decoder.binary", "ffmpeg")
}

// validate enforces spec.md §6's range table: "all else rejected" means
// the CLI/config layer is the only place these bounds are checked; every
// internal component trusts its caller.
func validate(cfg *Config) error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{cfg.ListenSeconds >= 1 && cfg.ListenSeconds <= 60, "listen_seconds must be in 1..60"},
		{cfg.ClipSeconds >= 2 && cfg.ClipSeconds <= 30, "clip_seconds must be in 2..30"},
		{cfg.StationChangeSeconds >= 5 && cfg.StationChangeSeconds <= 3600, "station_change_seconds must be in 5..3600"},
		{cfg.Bars == 1 || cfg.Bars == 2 || cfg.Bars == 4, "bars must be one of {1,2,4}"},
		{cfg.BeatsPerBar >= 2 && cfg.BeatsPerBar <= 12, "beats_per_bar must be in 2..12"},
		{cfg.BpmMode == BpmModeAuto || cfg.BpmMode == BpmModeFixed, "bpm_mode must be auto or fixed"},
		{cfg.BpmMin >= 30 && cfg.BpmMin <= 300, "bpm_min must be in 30..300"},
		{cfg.BpmMax >= 30 && cfg.BpmMax <= 300, "bpm_max must be in 30..300"},
		{cfg.BpmMin < cfg.BpmMax, "bpm_min must be less than bpm_max"},
	}
	if cfg.BpmMode == BpmModeFixed {
		checks = append(checks, struct {
			ok  bool
			msg string
		}{cfg.BpmFixed >= 30 && cfg.BpmFixed <= 300, "bpm_fixed must be in 30..300 when bpm_mode=fixed"})
	}

	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("invalid configuration: %s", c.msg)
		}
	}
	return nil
}
