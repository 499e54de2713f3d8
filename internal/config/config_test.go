package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Tracking.TickIntervalSec)
	assert.Equal(t, 500.0, cfg.Tracking.ProximityThresholdM)
	assert.Equal(t, 100.0, cfg.Tracking.DeviationThresholdM)
	assert.Equal(t, 30, cfg.Tracking.DeviationIntervalSec)
	assert.Equal(t, "https://router.project-osrm.org", cfg.Tracking.RoutingBaseURL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	content := `
server:
  port: 9090
tracking:
  tick_interval_sec: 5
  deviation_threshold_m: 250
  routing_base_url: http://localhost:5000
`
	require.NoError(t, os.WriteFile("config.yml", []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Tracking.TickIntervalSec)
	assert.Equal(t, 250.0, cfg.Tracking.DeviationThresholdM)
	assert.Equal(t, "http://localhost:5000", cfg.Tracking.RoutingBaseURL)

	// Omitted knobs still get defaults.
	assert.Equal(t, 500.0, cfg.Tracking.ProximityThresholdM)
	assert.Equal(t, 300, cfg.Tracking.ProximityCooldownSec)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("config.yml", []byte("tracking: ["), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoad_ValidationRejectsNegativeValues(t *testing.T) {
	t.Chdir(t.TempDir())
	content := `
tracking:
  tick_interval_sec: -1
`
	require.NoError(t, os.WriteFile("config.yml", []byte(content), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tracking config")
}

func TestTrackingConfig_Durations(t *testing.T) {
	tc := TrackingConfig{
		TickIntervalSec:      3,
		ProximityCooldownSec: 300,
		TripPurgeDelaySec:    30,
	}
	assert.Equal(t, 3*time.Second, tc.TickInterval())
	assert.Equal(t, 5*time.Minute, tc.ProximityCooldown())
	assert.Equal(t, 30*time.Second, tc.TripPurgeDelay())
}
