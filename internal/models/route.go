package models

// AccuracyBand classifies a GPS fix by reported accuracy. Diagnostic only,
// readings are never gated on it.
type AccuracyBand string

const (
	AccuracyHigh   AccuracyBand = "high"   // <= 10 m
	AccuracyMedium AccuracyBand = "medium" // <= 30 m
	AccuracyLow    AccuracyBand = "low"
)

// BandFor returns the accuracy band for a reported accuracy in meters.
func BandFor(accuracy float64) AccuracyBand {
	switch {
	case accuracy <= 10:
		return AccuracyHigh
	case accuracy <= 30:
		return AccuracyMedium
	default:
		return AccuracyLow
	}
}

// RouteLocation is a single driver position fix. Immutable once created.
type RouteLocation struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // GPS accuracy in meters
	Timestamp int64    `json:"timestamp"`
}

// Band returns the accuracy band, defaulting to low when no accuracy
// figure was reported.
func (l RouteLocation) Band() AccuracyBand {
	if l.Accuracy == nil {
		return AccuracyLow
	}
	return BandFor(*l.Accuracy)
}

// PickupStatus is a student's status on the active route
type PickupStatus string

const (
	PickupStatusPending    PickupStatus = "pending"
	PickupStatusPickedUp   PickupStatus = "picked_up"
	PickupStatusDroppedOff PickupStatus = "dropped_off"
)

// StudentPickup is one stop on an active route
type StudentPickup struct {
	StudentID string       `json:"student_id"`
	Address   string       `json:"address"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Status    PickupStatus `json:"status"`
}

// ActiveRoute is the live state of a driver's route. One per driver at a time.
type ActiveRoute struct {
	RouteID         string          `json:"route_id"`
	DriverID        string          `json:"driver_id"`
	DriverName      string          `json:"driver_name"`
	Direction       Direction       `json:"direction"`
	Active          bool            `json:"active"`
	StartedAt       int64           `json:"started_at"`
	EndedAt         *int64          `json:"ended_at,omitempty"`
	CurrentLocation *RouteLocation  `json:"current_location,omitempty"`
	Pickups         []StudentPickup `json:"pickups"`
}

// Pickup returns the pickup record for studentID, or nil.
func (r *ActiveRoute) Pickup(studentID string) *StudentPickup {
	for i := range r.Pickups {
		if r.Pickups[i].StudentID == studentID {
			return &r.Pickups[i]
		}
	}
	return nil
}

// PendingPickups returns the stops the van has not reached yet.
func (r *ActiveRoute) PendingPickups() []StudentPickup {
	var pending []StudentPickup
	for _, p := range r.Pickups {
		if p.Status == PickupStatusPending {
			pending = append(pending, p)
		}
	}
	return pending
}

// Route is a driver's configured, reusable pickup sequence
type Route struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	DriverID  string    `json:"driver_id" db:"driver_id"`
	Direction Direction `json:"direction" db:"direction"`
	CreatedAt int64     `json:"created_at" db:"created_at"`
	UpdatedAt int64     `json:"updated_at" db:"updated_at"`
}

// RouteStudent links a student to a route with a stop order
type RouteStudent struct {
	ID            int    `json:"id" db:"id"`
	RouteID       string `json:"route_id" db:"route_id"`
	StudentID     string `json:"student_id" db:"student_id"`
	SequenceOrder int    `json:"sequence_order" db:"sequence_order"`
}

// RouteHistoryEntry is a retired ActiveRoute kept for the record
type RouteHistoryEntry struct {
	ID        string `json:"id" db:"id"`
	RouteID   string `json:"route_id" db:"route_id"`
	DriverID  string `json:"driver_id" db:"driver_id"`
	TripID    string `json:"trip_id" db:"trip_id"`
	StartedAt int64  `json:"started_at" db:"started_at"`
	EndedAt   int64  `json:"ended_at" db:"ended_at"`
	Snapshot  string `json:"snapshot" db:"snapshot"` // JSON-encoded ActiveRoute
}

// PathPoint is one vertex of a computed route path
type PathPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RoutePath is the routing collaborator's answer for (origin, destination)
type RoutePath struct {
	Points          []PathPoint `json:"points"`
	DistanceMeters  float64     `json:"distance_meters"`
	DurationSeconds float64     `json:"duration_seconds"`
	StraightLine    bool        `json:"straight_line"` // true when the fallback estimate was used
}
