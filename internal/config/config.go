// Package config loads the application configuration from config.yml.
// Secrets and wiring (database URL, JWT secret, Firebase credentials)
// stay in environment variables; config.yml holds the tracking knobs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppConfig is the application configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Tracking TrackingConfig `yaml:"tracking"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// TrackingConfig tunes the live-tracking pipeline. Zero values fall back
// to the defaults below.
type TrackingConfig struct {
	TickIntervalSec       int     `yaml:"tick_interval_sec" validate:"gte=0"`
	ProximityThresholdM   float64 `yaml:"proximity_threshold_m" validate:"gte=0"`
	ProximityCooldownSec  int     `yaml:"proximity_cooldown_sec" validate:"gte=0"`
	DeviationThresholdM   float64 `yaml:"deviation_threshold_m" validate:"gte=0"`
	DeviationIntervalSec  int     `yaml:"deviation_interval_sec" validate:"gte=0"`
	TripPurgeDelaySec     int     `yaml:"trip_purge_delay_sec" validate:"gte=0"`
	RoutingBaseURL        string  `yaml:"routing_base_url"`
}

// Load reads and validates config.yml. A missing file yields defaults;
// a malformed or invalid file is an error.
func Load() (AppConfig, error) {
	var cfg AppConfig

	data, err := os.ReadFile("config.yml")
	if err != nil {
		if os.IsNotExist(err) {
			return withDefaults(cfg), nil
		}
		return cfg, fmt.Errorf("failed to read config.yml: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config.yml: %w", err)
	}

	v := validator.New()
	if err := v.Struct(cfg.Server); err != nil {
		return cfg, fmt.Errorf("invalid server config: %w", err)
	}
	if err := v.Struct(cfg.Tracking); err != nil {
		return cfg, fmt.Errorf("invalid tracking config: %w", err)
	}

	return withDefaults(cfg), nil
}

func withDefaults(cfg AppConfig) AppConfig {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Tracking.TickIntervalSec == 0 {
		cfg.Tracking.TickIntervalSec = 3
	}
	if cfg.Tracking.ProximityThresholdM == 0 {
		cfg.Tracking.ProximityThresholdM = 500
	}
	if cfg.Tracking.ProximityCooldownSec == 0 {
		cfg.Tracking.ProximityCooldownSec = 300
	}
	if cfg.Tracking.DeviationThresholdM == 0 {
		cfg.Tracking.DeviationThresholdM = 100
	}
	if cfg.Tracking.DeviationIntervalSec == 0 {
		cfg.Tracking.DeviationIntervalSec = 30
	}
	if cfg.Tracking.TripPurgeDelaySec == 0 {
		cfg.Tracking.TripPurgeDelaySec = 30
	}
	if cfg.Tracking.RoutingBaseURL == "" {
		cfg.Tracking.RoutingBaseURL = "https://router.project-osrm.org"
	}
	return cfg
}

// TickInterval returns the polling cadence as a duration.
func (t TrackingConfig) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalSec) * time.Second
}

// ProximityCooldown returns the alert cooldown as a duration.
func (t TrackingConfig) ProximityCooldown() time.Duration {
	return time.Duration(t.ProximityCooldownSec) * time.Second
}

// TripPurgeDelay returns the completed-trip purge delay as a duration.
func (t TrackingConfig) TripPurgeDelay() time.Duration {
	return time.Duration(t.TripPurgeDelaySec) * time.Second
}
