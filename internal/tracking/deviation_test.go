package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantrack-backend/internal/models"
)

type fakeRouter struct {
	calls int
	err   error
	path  *models.RoutePath
}

func (f *fakeRouter) GetRoute(ctx context.Context, origin, destination models.PathPoint) (*models.RoutePath, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.path != nil {
		return f.path, nil
	}
	return &models.RoutePath{
		Points:         []models.PathPoint{origin, destination},
		DistanceMeters: 1000,
	}, nil
}

func deviationFixture(router Router) (*DeviationDetector, *time.Time) {
	d := NewDeviationDetector(router)
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	d.Arm(
		[]models.PathPoint{
			{Latitude: -23.5489, Longitude: -46.6388},
			{Latitude: -23.5500, Longitude: -46.6400},
		},
		models.PathPoint{Latitude: -23.5600, Longitude: -46.6500},
		"Carlos",
	)
	return d, &now
}

func TestDeviation_OnRouteStaysQuiet(t *testing.T) {
	router := &fakeRouter{}
	d, _ := deviationFixture(router)

	d.OnLocation(models.RouteLocation{Latitude: -23.5489, Longitude: -46.6388})

	assert.False(t, d.IsOffRoute())
	assert.Zero(t, router.calls)
	assert.InDelta(t, 0, d.DistanceFromPath(), 1)
}

func TestDeviation_CrossingThresholdRecalculates(t *testing.T) {
	router := &fakeRouter{}
	d, _ := deviationFixture(router)

	var changed []string
	d.OnRouteChanged = func(newPath *models.RoutePath, driverName, reason string) {
		changed = append(changed, reason)
		assert.Equal(t, "Carlos", driverName)
		assert.NotEmpty(t, newPath.Points)
	}

	// ~1.1 km from every path vertex, well past the 100 m threshold.
	d.OnLocation(models.RouteLocation{Latitude: -23.5389, Longitude: -46.6388})

	assert.True(t, d.IsOffRoute())
	assert.Equal(t, 1, router.calls)
	require.Len(t, changed, 1)
	assert.Equal(t, "the van left the planned route", changed[0])
	assert.Greater(t, d.DistanceFromPath(), 100.0)
}

func TestDeviation_RecalculationThrottled(t *testing.T) {
	router := &fakeRouter{
		// Keep the recalculated path far from the van so every reading
		// below stays off-route.
		path: &models.RoutePath{Points: []models.PathPoint{
			{Latitude: -23.5600, Longitude: -46.6500},
		}},
	}
	d, now := deviationFixture(router)

	off := models.RouteLocation{Latitude: -23.5389, Longitude: -46.6388}

	d.OnLocation(off)
	require.Equal(t, 1, router.calls)

	// Inside the 30 s gate: still off-route, no second recalculation.
	*now = now.Add(10 * time.Second)
	d.OnLocation(off)
	assert.Equal(t, 1, router.calls)
	assert.True(t, d.IsOffRoute())

	// Past the gate the detector recalculates again.
	*now = now.Add(30 * time.Second)
	d.OnLocation(off)
	assert.Equal(t, 2, router.calls)
}

func TestDeviation_RouterFailureFallsBackToStraightLine(t *testing.T) {
	router := &fakeRouter{err: errors.New("osrm unreachable")}
	d, _ := deviationFixture(router)

	var got *models.RoutePath
	d.OnRouteChanged = func(newPath *models.RoutePath, driverName, reason string) {
		got = newPath
	}

	d.OnLocation(models.RouteLocation{Latitude: -23.5389, Longitude: -46.6388})

	require.NotNil(t, got)
	assert.True(t, got.StraightLine)
	assert.NotEmpty(t, got.Points)
}

func TestDeviation_ReturningOnRouteClearsFlag(t *testing.T) {
	router := &fakeRouter{
		// Recalculated path passes through the off-route position.
		path: &models.RoutePath{Points: []models.PathPoint{
			{Latitude: -23.5389, Longitude: -46.6388},
			{Latitude: -23.5600, Longitude: -46.6500},
		}},
	}
	d, _ := deviationFixture(router)

	d.OnLocation(models.RouteLocation{Latitude: -23.5389, Longitude: -46.6388})
	require.True(t, d.IsOffRoute())

	d.OnLocation(models.RouteLocation{Latitude: -23.5389, Longitude: -46.6388})
	assert.False(t, d.IsOffRoute())
}

func TestDeviation_DisarmedDetectorIgnoresReadings(t *testing.T) {
	router := &fakeRouter{}
	d, _ := deviationFixture(router)
	d.Disarm()

	d.OnLocation(models.RouteLocation{Latitude: -23.5389, Longitude: -46.6388})

	assert.False(t, d.IsOffRoute())
	assert.Zero(t, router.calls)
}

func TestDeviation_SetConfigIgnoresNonPositiveValues(t *testing.T) {
	d := NewDeviationDetector(&fakeRouter{})

	d.SetConfig(DeviationConfig{ThresholdMeters: 250, MinIntervalSec: 0})
	cfg := d.Config()
	assert.Equal(t, 250.0, cfg.ThresholdMeters)
	assert.Equal(t, 30, cfg.MinIntervalSec)

	d.SetConfig(DeviationConfig{ThresholdMeters: -1, MinIntervalSec: 60})
	cfg = d.Config()
	assert.Equal(t, 250.0, cfg.ThresholdMeters)
	assert.Equal(t, 60, cfg.MinIntervalSec)
}
