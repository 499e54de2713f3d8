package tracking

import (
	"fmt"
	"log"
	"sync"
	"time"

	"vantrack-backend/internal/models"
	"vantrack-backend/internal/routing"
)

const (
	// DefaultProximityThresholdMeters is the distance at which an
	// arrival alert becomes relevant.
	DefaultProximityThresholdMeters = 500.0
	// DefaultProximityCooldown is how long a fired (student, driver)
	// pair stays silenced.
	DefaultProximityCooldown = 5 * time.Minute
)

// ProximityAlert is emitted at most once per (studentID, driverName) pair
// per cooldown window.
type ProximityAlert struct {
	StudentID      string
	DriverName     string
	DistanceMeters float64
	ETAText        string
	Location       models.RouteLocation
}

// ProximityEngine fires a one-shot alert when the driver comes within the
// threshold of a still-pending student.
type ProximityEngine struct {
	mu        sync.Mutex
	threshold float64
	cooldown  time.Duration
	alerted   map[string]time.Time // (studentID|driverName) -> silenced until

	emit func(ProximityAlert)
	now  func() time.Time
}

// NewProximityEngine builds an engine that calls emit for each alert.
func NewProximityEngine(threshold float64, cooldown time.Duration, emit func(ProximityAlert)) *ProximityEngine {
	if threshold <= 0 {
		threshold = DefaultProximityThresholdMeters
	}
	if cooldown <= 0 {
		cooldown = DefaultProximityCooldown
	}
	return &ProximityEngine{
		threshold: threshold,
		cooldown:  cooldown,
		alerted:   make(map[string]time.Time),
		emit:      emit,
		now:       time.Now,
	}
}

// Check evaluates one location reading against every pending pickup.
// However many ticks land inside the threshold, a pair alerts at most
// once per cooldown window; after the window it may fire again if still
// in range.
func (e *ProximityEngine) Check(loc models.RouteLocation, pickups []models.StudentPickup, driverName string) {
	now := e.now()

	for _, p := range pickups {
		if p.Status != models.PickupStatusPending {
			continue
		}

		dist := routing.HaversineMeters(loc.Latitude, loc.Longitude, p.Latitude, p.Longitude)
		if dist > e.threshold {
			continue
		}

		key := p.StudentID + "|" + driverName
		e.mu.Lock()
		if until, ok := e.alerted[key]; ok && now.Before(until) {
			e.mu.Unlock()
			continue
		}
		e.alerted[key] = now.Add(e.cooldown)
		e.mu.Unlock()

		log.Printf("🔔 Proximity alert: %s is %.0f m from student %s", driverName, dist, p.StudentID)
		e.emit(ProximityAlert{
			StudentID:      p.StudentID,
			DriverName:     driverName,
			DistanceMeters: dist,
			ETAText:        etaText(dist),
			Location:       loc,
		})
	}
}

// Reset clears the alerted memory. Called when a trip finishes so the
// next trip can re-notify the same guardians.
func (e *ProximityEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerted = make(map[string]time.Time)
}

// etaText renders a rough arrival estimate from distance alone.
func etaText(distanceMeters float64) string {
	const vanSpeedMS = 8.0
	minutes := int(distanceMeters/vanSpeedMS/60) + 1
	if minutes <= 1 {
		return "arriving in about a minute"
	}
	return fmt.Sprintf("arriving in about %d minutes", minutes)
}
