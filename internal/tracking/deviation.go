package tracking

import (
	"context"
	"log"
	"sync"
	"time"

	"vantrack-backend/internal/models"
	"vantrack-backend/internal/routing"
)

// Router is the routing collaborator boundary.
type Router interface {
	GetRoute(ctx context.Context, origin, destination models.PathPoint) (*models.RoutePath, error)
}

// DeviationConfig is the runtime-tunable part of the detector.
type DeviationConfig struct {
	ThresholdMeters float64 `json:"threshold_meters" yaml:"threshold_meters" validate:"gt=0"`
	MinIntervalSec  int     `json:"min_interval_sec" yaml:"min_interval_sec" validate:"gt=0"`
}

// DefaultDeviationConfig returns the stock thresholds: 100 m off-route,
// one recalculation per 30 s.
func DefaultDeviationConfig() DeviationConfig {
	return DeviationConfig{ThresholdMeters: 100, MinIntervalSec: 30}
}

// DeviationDetector compares each reading against the computed path,
// flags off-route once the distance crosses the threshold, and throttles
// path recalculations behind a minimum-interval gate.
type DeviationDetector struct {
	router Router

	mu               sync.Mutex
	cfg              DeviationConfig
	path             []models.PathPoint
	destination      models.PathPoint
	driverName       string
	offRoute         bool
	distanceFromPath float64
	consecutive      int
	lastRecalc       time.Time

	// OnRouteChanged fires after a successful recalculation; the owner
	// turns it into guardian notifications.
	OnRouteChanged func(newPath *models.RoutePath, driverName, reason string)

	now func() time.Time
}

// NewDeviationDetector builds a detector with the default configuration.
func NewDeviationDetector(router Router) *DeviationDetector {
	return &DeviationDetector{
		router: router,
		cfg:    DefaultDeviationConfig(),
		now:    time.Now,
	}
}

// Arm primes the detector for a new route. Clears all prior state.
func (d *DeviationDetector) Arm(path []models.PathPoint, destination models.PathPoint, driverName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
	d.destination = destination
	d.driverName = driverName
	d.offRoute = false
	d.distanceFromPath = 0
	d.consecutive = 0
	d.lastRecalc = time.Time{}
}

// Disarm clears the detector when the route ends.
func (d *DeviationDetector) Disarm() {
	d.Arm(nil, models.PathPoint{}, "")
}

// SetConfig applies a new threshold/interval pair. The gate respects the
// new values from the next reading on.
func (d *DeviationDetector) SetConfig(cfg DeviationConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.ThresholdMeters > 0 {
		d.cfg.ThresholdMeters = cfg.ThresholdMeters
	}
	if cfg.MinIntervalSec > 0 {
		d.cfg.MinIntervalSec = cfg.MinIntervalSec
	}
}

// Config returns the current configuration.
func (d *DeviationDetector) Config() DeviationConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// IsOffRoute reports the current off-route flag.
func (d *DeviationDetector) IsOffRoute() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offRoute
}

// DistanceFromPath returns the last computed distance in meters.
func (d *DeviationDetector) DistanceFromPath() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.distanceFromPath
}

// OnLocation consumes one reading. Called from the location source.
func (d *DeviationDetector) OnLocation(loc models.RouteLocation) {
	d.mu.Lock()
	if len(d.path) == 0 {
		d.mu.Unlock()
		return
	}

	dist := minDistanceToPath(loc, d.path)
	d.distanceFromPath = dist

	if dist <= d.cfg.ThresholdMeters {
		if d.offRoute {
			log.Printf("🛣️  Driver %s back on route (%.0f m from path)", d.driverName, dist)
		}
		d.offRoute = false
		d.consecutive = 0
		d.mu.Unlock()
		return
	}

	d.offRoute = true
	d.consecutive++

	gate := time.Duration(d.cfg.MinIntervalSec) * time.Second
	if !d.lastRecalc.IsZero() && d.now().Sub(d.lastRecalc) < gate {
		// Still inside the throttle window; keep drifting silently.
		d.mu.Unlock()
		return
	}
	origin := models.PathPoint{Latitude: loc.Latitude, Longitude: loc.Longitude}
	destination := d.destination
	driverName := d.driverName
	threshold := d.cfg.ThresholdMeters
	d.mu.Unlock()

	log.Printf("⚠️  Driver %s is off route (%.0f m, threshold %.0f m), recalculating", driverName, dist, threshold)
	d.recalculate(origin, destination, driverName)
}

func (d *DeviationDetector) recalculate(origin, destination models.PathPoint, driverName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	newPath, err := d.router.GetRoute(ctx, origin, destination)
	if err != nil {
		// Routing collaborator failure is not fatal: estimate straight-line.
		log.Printf("❌ Route recalculation failed, using straight-line fallback: %v", err)
		newPath = routing.StraightLine(origin, destination)
	}

	d.mu.Lock()
	d.path = newPath.Points
	d.lastRecalc = d.now()
	cb := d.OnRouteChanged
	d.mu.Unlock()

	if cb != nil {
		cb(newPath, driverName, "the van left the planned route")
	}
}

// minDistanceToPath returns the smallest haversine distance from loc to
// any vertex of the path, in meters.
func minDistanceToPath(loc models.RouteLocation, path []models.PathPoint) float64 {
	minDist := -1.0
	for _, pt := range path {
		dist := routing.HaversineMeters(loc.Latitude, loc.Longitude, pt.Latitude, pt.Longitude)
		if minDist < 0 || dist < minDist {
			minDist = dist
		}
	}
	if minDist < 0 {
		return 0
	}
	return minDist
}
