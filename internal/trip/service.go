// Package trip owns the active trip lifecycle: one ActiveRoute/Trip pair
// per driver, per-student status transitions, and the wiring that feeds
// location readings into deviation and proximity detection.
package trip

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"vantrack-backend/internal/models"
	"vantrack-backend/internal/notify"
	"vantrack-backend/internal/routing"
	"vantrack-backend/internal/scheduler"
	"vantrack-backend/internal/store"
	"vantrack-backend/internal/tracking"
)

// Directory is the read-only registry boundary the service needs.
// Satisfied by registry.Registry.
type Directory interface {
	Route(routeID string) (*models.Route, error)
	RouteStudents(routeID string) ([]models.Student, error)
	Student(studentID string) (*models.Student, error)
	Guardian(guardianID string) (*models.Guardian, error)
	SchoolName(schoolID string) (string, error)
	School(schoolID string) (*models.School, error)
}

// HistorySink persists retired routes.
type HistorySink interface {
	Append(entry models.RouteHistoryEntry) error
}

// LocationFanout pushes live driver positions to watching sessions.
// Satisfied by broadcast.Hub.
type LocationFanout interface {
	PublishToUser(userID string, data interface{})
}

// Config tunes the service's timers.
type Config struct {
	TickInterval time.Duration // location polling cadence
	PurgeDelay   time.Duration // how long a completed trip snapshot lingers
}

// DefaultConfig: a few-second tick, completed
// trips cleared a fixed delay after finishing.
func DefaultConfig() Config {
	return Config{
		TickInterval: 3 * time.Second,
		PurgeDelay:   30 * time.Second,
	}
}

// Service is the trip state machine and the owner of the live tracking
// pipeline for the driver it serves.
type Service struct {
	st         store.Store
	dir        Directory
	router     tracking.Router
	dispatcher *notify.Dispatcher
	push       *notify.PushNotifier
	location   *tracking.LocationSource
	deviation  *tracking.DeviationDetector
	proximity  *tracking.ProximityEngine
	sched      *scheduler.Scheduler
	history    HistorySink
	fanout     LocationFanout
	cfg        Config

	mu sync.Mutex
	// driver currently holding the single active trip, "" when idle
	activeDriverID   string
	activeDriverName string
}

// NewService wires the trip service. history and fanout may be nil.
func NewService(
	st store.Store,
	dir Directory,
	router tracking.Router,
	dispatcher *notify.Dispatcher,
	push *notify.PushNotifier,
	location *tracking.LocationSource,
	deviation *tracking.DeviationDetector,
	proximity *tracking.ProximityEngine,
	sched *scheduler.Scheduler,
	history HistorySink,
	fanout LocationFanout,
	cfg Config,
) *Service {
	s := &Service{
		st:         st,
		dir:        dir,
		router:     router,
		dispatcher: dispatcher,
		push:       push,
		location:   location,
		deviation:  deviation,
		proximity:  proximity,
		sched:      sched,
		history:    history,
		fanout:     fanout,
		cfg:        cfg,
	}

	location.AddSink(s.onLocation)
	deviation.OnRouteChanged = s.onRouteChanged
	return s
}

// NewProximityEmit returns the emit hook to construct the proximity
// engine with: it routes each alert to the guardian panel and the
// device-push channel.
func (s *Service) NewProximityEmit() func(tracking.ProximityAlert) {
	return s.onProximity
}

// StartRoute creates the ActiveRoute/Trip pair for the driver and arms
// the whole tracking pipeline. Exactly one pair may exist per driver; a
// second start while one is active is rejected.
func (s *Service) StartRoute(ctx context.Context, driverID, driverName, routeID string) (*models.Trip, error) {
	existing, err := s.ActiveTrip(driverID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == models.TripStatusInProgress {
		return nil, fmt.Errorf("driver %s already has an active trip", driverID)
	}

	// The tracking pipeline serves one van at a time.
	s.mu.Lock()
	if s.activeDriverID != "" && s.activeDriverID != driverID {
		other := s.activeDriverID
		s.mu.Unlock()
		return nil, fmt.Errorf("driver %s already has a route in progress", other)
	}
	s.mu.Unlock()

	route, err := s.dir.Route(routeID)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, fmt.Errorf("route %s not found", routeID)
	}

	students, err := s.dir.RouteStudents(routeID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, fmt.Errorf("route %s has no students", routeID)
	}

	now := time.Now().Unix()
	trip := &models.Trip{
		ID:        uuid.NewString(),
		RouteID:   routeID,
		DriverID:  driverID,
		Status:    models.TripStatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	active := &models.ActiveRoute{
		RouteID:    routeID,
		DriverID:   driverID,
		DriverName: driverName,
		Direction:  route.Direction,
		Active:     true,
		StartedAt:  now,
	}

	for _, st := range students {
		// Direction is fixed at trip start: route configuration wins,
		// otherwise the student's default.
		direction := route.Direction
		if direction == "" {
			direction = st.DefaultDirection
		}
		trip.Students = append(trip.Students, models.TripStudent{
			StudentID: st.ID,
			Status:    models.StudentStatusWaiting,
			Direction: direction,
		})
		active.Pickups = append(active.Pickups, models.StudentPickup{
			StudentID: st.ID,
			Address:   st.Address,
			Latitude:  st.Latitude,
			Longitude: st.Longitude,
			Status:    models.PickupStatusPending,
		})
	}

	path := s.computePath(ctx, active, students)

	// A purge timer left over from the previous leg must not delete the
	// snapshots of the trip starting now.
	s.sched.Cancel("purge-trip:" + driverID)

	if err := store.SetJSON(s.st, store.ActiveTripKey(driverID), trip); err != nil {
		return nil, err
	}
	if err := store.SetJSON(s.st, store.ActiveRouteKey(driverID), active); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.activeDriverID = driverID
	s.activeDriverName = driverName
	s.mu.Unlock()

	destination := pathDestination(path, active)
	s.deviation.Arm(path.Points, destination, driverName)
	s.applyStoredDeviationConfig()
	s.location.Start(driverID, path.Points, s.cfg.TickInterval)

	for _, ts := range trip.Students {
		s.emitStatusEvent(trip, ts.StudentID, models.EventTripStarted, nil)
	}

	log.Printf("🚌 Route %s started by %s: %d students, %d path points", routeID, driverName, len(students), len(path.Points))
	return trip, nil
}

// Transition sets one student's status. Any target status is accepted so
// the driver UI can correct mistakes, but moves that are not the chain
// successor are logged. Each accepted transition emits exactly one event.
func (s *Service) Transition(driverID, studentID string, status models.StudentStatus) (*models.Trip, error) {
	trip, err := s.requireActiveTrip(driverID)
	if err != nil {
		return nil, err
	}

	if err := s.applyTransition(trip, driverID, studentID, status); err != nil {
		return nil, err
	}
	if err := s.saveTrip(driverID, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

// TransitionGroup applies the same status to a set of students, atomic
// from the caller's perspective: all records change before the snapshot
// is written, and one event is emitted per student.
func (s *Service) TransitionGroup(driverID string, studentIDs []string, status models.StudentStatus) (*models.Trip, error) {
	trip, err := s.requireActiveTrip(driverID)
	if err != nil {
		return nil, err
	}

	for _, id := range studentIDs {
		if trip.Student(id) == nil {
			return nil, fmt.Errorf("student %s is not on this trip", id)
		}
	}
	for _, id := range studentIDs {
		if err := s.applyTransition(trip, driverID, id, status); err != nil {
			return nil, err
		}
	}
	if err := s.saveTrip(driverID, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

// CanFinish reports whether every student has reached the terminal status
// for its direction. The driver UI only offers "finish trip" then.
func (s *Service) CanFinish(driverID string) (bool, error) {
	trip, err := s.ActiveTrip(driverID)
	if err != nil || trip == nil {
		return false, err
	}
	return trip.AllTerminal(), nil
}

// Finish completes the trip: marks it completed, retires the ActiveRoute
// into history, clears every dedup memory so the next trip can re-notify
// the same guardians, and schedules the delayed snapshot purge.
func (s *Service) Finish(driverID string) (*models.Trip, error) {
	trip, err := s.requireActiveTrip(driverID)
	if err != nil {
		return nil, err
	}
	if !trip.AllTerminal() {
		return nil, fmt.Errorf("trip %s still has students in transit", trip.ID)
	}

	now := time.Now().Unix()
	trip.Status = models.TripStatusCompleted
	trip.UpdatedAt = now

	var active models.ActiveRoute
	if ok, err := store.GetJSON(s.st, store.ActiveRouteKey(driverID), &active); err == nil && ok {
		active.Active = false
		active.EndedAt = &now
		if err := store.SetJSON(s.st, store.ActiveRouteKey(driverID), &active); err != nil {
			return nil, err
		}
		if s.history != nil {
			if err := s.history.Append(routeHistoryEntry(trip, &active)); err != nil {
				// History is best-effort; the trip still finishes.
				log.Printf("❌ Failed to persist route history: %v", err)
			}
		}
	}

	if err := s.saveTrip(driverID, trip); err != nil {
		return nil, err
	}

	// Ending the route cancels its timer and detector state; nothing is
	// in flight across the cancellation.
	s.location.Stop()
	s.deviation.Disarm()
	s.proximity.Reset()
	s.dispatcher.Reset()
	s.push.Reset()

	s.mu.Lock()
	s.activeDriverID = ""
	s.activeDriverName = ""
	s.mu.Unlock()

	for _, ts := range trip.Students {
		s.emitStatusEvent(trip, ts.StudentID, models.EventTripFinished, nil)
	}

	s.sched.After("purge-trip:"+driverID, s.cfg.PurgeDelay, func() {
		s.st.Delete(store.ActiveTripKey(driverID))
		s.st.Delete(store.ActiveRouteKey(driverID))
		log.Printf("🧹 Purged completed trip snapshots for driver %s", driverID)
	})

	log.Printf("🏁 Trip %s finished by driver %s", trip.ID, driverID)
	return trip, nil
}

// ReportDelay notifies every guardian on the trip of a delay.
func (s *Service) ReportDelay(driverID, reason string) error {
	trip, err := s.requireActiveTrip(driverID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	driverName := s.activeDriverName
	s.mu.Unlock()

	for _, ts := range trip.Students {
		student, err := s.dir.Student(ts.StudentID)
		if err != nil || student == nil {
			continue
		}
		event := models.NotificationEvent{
			Type:        models.EventDelay,
			StudentID:   ts.StudentID,
			StudentName: student.Name,
			Direction:   ts.Direction,
			Timestamp:   time.Now().Unix(),
			DriverName:  driverName,
			Reason:      reason,
		}
		if err := s.dispatcher.Dispatch(event); err != nil {
			log.Printf("❌ Delay dispatch failed for %s: %v", ts.StudentID, err)
		}
		s.pushToGuardian(student, notify.PushKindDelay, driverName,
			"Van delayed", notify.MessageFor(event))
	}
	return nil
}

// ActiveTrip loads the driver's trip snapshot, nil when absent.
func (s *Service) ActiveTrip(driverID string) (*models.Trip, error) {
	var trip models.Trip
	ok, err := store.GetJSON(s.st, store.ActiveTripKey(driverID), &trip)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &trip, nil
}

// ActiveRoute loads the driver's route snapshot, nil when absent.
func (s *Service) ActiveRoute(driverID string) (*models.ActiveRoute, error) {
	var active models.ActiveRoute
	ok, err := store.GetJSON(s.st, store.ActiveRouteKey(driverID), &active)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &active, nil
}

// IngestLocation feeds a driver-reported position fix into the pipeline.
func (s *Service) IngestLocation(driverID string, loc models.RouteLocation) {
	s.mu.Lock()
	active := s.activeDriverID == driverID
	s.mu.Unlock()
	if !active {
		return
	}
	s.location.Ingest(loc)
}

// SetDeviationConfig applies and persists new detector thresholds.
func (s *Service) SetDeviationConfig(cfg tracking.DeviationConfig) error {
	s.deviation.SetConfig(cfg)
	return store.SetJSON(s.st, store.DeviationConfigKey, s.deviation.Config())
}

// DeviationConfig returns the current detector thresholds.
func (s *Service) DeviationConfig() tracking.DeviationConfig {
	return s.deviation.Config()
}

// --- internals ---

// statusEvents maps a student status to the event its transition emits.
var statusEvents = map[models.StudentStatus]models.EventType{
	models.StudentStatusVanArrived:  models.EventVanArrived,
	models.StudentStatusEmbarked:    models.EventEmbarked,
	models.StudentStatusAtSchool:    models.EventAtSchool,
	models.StudentStatusDisembarked: models.EventDisembarked,
}

// pickupStatuses maps a student status to its ActiveRoute pickup status.
var pickupStatuses = map[models.StudentStatus]models.PickupStatus{
	models.StudentStatusWaiting:     models.PickupStatusPending,
	models.StudentStatusVanArrived:  models.PickupStatusPending,
	models.StudentStatusEmbarked:    models.PickupStatusPickedUp,
	models.StudentStatusAtSchool:    models.PickupStatusPickedUp,
	models.StudentStatusDisembarked: models.PickupStatusDroppedOff,
}

func (s *Service) requireActiveTrip(driverID string) (*models.Trip, error) {
	trip, err := s.ActiveTrip(driverID)
	if err != nil {
		return nil, err
	}
	if trip == nil || trip.Status != models.TripStatusInProgress {
		return nil, fmt.Errorf("driver %s has no active trip", driverID)
	}
	return trip, nil
}

func (s *Service) applyTransition(trip *models.Trip, driverID, studentID string, status models.StudentStatus) error {
	ts := trip.Student(studentID)
	if ts == nil {
		return fmt.Errorf("student %s is not on this trip", studentID)
	}

	if !models.IsChainSuccessor(ts.Status, status, ts.Direction) {
		log.Printf("⚠️  Off-chain transition for student %s: %s → %s (%s)", studentID, ts.Status, status, ts.Direction)
	}

	ts.Status = status
	trip.UpdatedAt = time.Now().Unix()

	if pickup, ok := pickupStatuses[status]; ok {
		s.updatePickup(driverID, studentID, pickup)
	}

	if eventType, ok := statusEvents[status]; ok {
		s.emitStatusEvent(trip, studentID, eventType, s.location.Current())
	}
	return nil
}

func (s *Service) saveTrip(driverID string, trip *models.Trip) error {
	return store.SetJSON(s.st, store.ActiveTripKey(driverID), trip)
}

func (s *Service) updatePickup(driverID, studentID string, status models.PickupStatus) {
	var active models.ActiveRoute
	ok, err := store.GetJSON(s.st, store.ActiveRouteKey(driverID), &active)
	if err != nil || !ok {
		return
	}
	if pickup := active.Pickup(studentID); pickup != nil {
		pickup.Status = status
	}
	if err := store.SetJSON(s.st, store.ActiveRouteKey(driverID), &active); err != nil {
		log.Printf("❌ Failed to update pickup status: %v", err)
	}
}

// emitStatusEvent builds and dispatches the notification event for one
// student. The last known driver location rides along when available.
func (s *Service) emitStatusEvent(trip *models.Trip, studentID string, eventType models.EventType, loc *models.RouteLocation) {
	ts := trip.Student(studentID)
	if ts == nil {
		return
	}
	student, err := s.dir.Student(studentID)
	if err != nil || student == nil {
		log.Printf("⚠️  Cannot resolve student %s for event %s", studentID, eventType)
		return
	}
	schoolName, _ := s.dir.SchoolName(student.SchoolID)

	event := models.NotificationEvent{
		Type:        eventType,
		StudentID:   studentID,
		StudentName: student.Name,
		Direction:   ts.Direction,
		Timestamp:   time.Now().Unix(),
		Location:    loc,
		SchoolName:  schoolName,
		Address:     student.Address,
	}
	if err := s.dispatcher.Dispatch(event); err != nil {
		log.Printf("❌ Dispatch failed for %s/%s: %v", eventType, studentID, err)
	}
}

// onLocation is the location source sink: updates the ActiveRoute
// snapshot, runs deviation and proximity checks, and fans the position
// out to the trip's guardians.
func (s *Service) onLocation(loc models.RouteLocation) {
	s.mu.Lock()
	driverID := s.activeDriverID
	driverName := s.activeDriverName
	s.mu.Unlock()
	if driverID == "" {
		return
	}

	var active models.ActiveRoute
	ok, err := store.GetJSON(s.st, store.ActiveRouteKey(driverID), &active)
	if err != nil || !ok || !active.Active {
		return
	}
	active.CurrentLocation = &loc
	if err := store.SetJSON(s.st, store.ActiveRouteKey(driverID), &active); err != nil {
		log.Printf("❌ Failed to update current location: %v", err)
	}

	s.deviation.OnLocation(loc)
	s.proximity.Check(loc, active.PendingPickups(), driverName)

	if s.fanout != nil {
		update := map[string]interface{}{
			"type": "driver_location_update",
			"data": map[string]interface{}{
				"driver_id": driverID,
				"latitude":  loc.Latitude,
				"longitude": loc.Longitude,
				"accuracy":  loc.Accuracy,
				"timestamp": loc.Timestamp,
			},
		}
		for _, p := range active.Pickups {
			if student, err := s.dir.Student(p.StudentID); err == nil && student != nil {
				if guardian, err := s.dir.Guardian(student.GuardianID); err == nil && guardian != nil && guardian.Active {
					s.fanout.PublishToUser(guardian.UserID, update)
				}
			}
		}
	}
}

// onProximity routes a proximity alert to both delivery channels.
func (s *Service) onProximity(alert tracking.ProximityAlert) {
	s.mu.Lock()
	driverID := s.activeDriverID
	s.mu.Unlock()
	if driverID == "" {
		return
	}

	trip, err := s.ActiveTrip(driverID)
	if err != nil || trip == nil {
		return
	}
	ts := trip.Student(alert.StudentID)
	student, err := s.dir.Student(alert.StudentID)
	if err != nil || student == nil || ts == nil {
		return
	}

	event := models.NotificationEvent{
		Type:        models.EventProximity,
		StudentID:   alert.StudentID,
		StudentName: student.Name,
		Direction:   ts.Direction,
		Timestamp:   time.Now().Unix(),
		Location:    &alert.Location,
		DriverName:  alert.DriverName,
		Reason:      alert.ETAText,
		DistanceM:   alert.DistanceMeters,
	}
	if err := s.dispatcher.Dispatch(event); err != nil {
		log.Printf("❌ Proximity dispatch failed for %s: %v", alert.StudentID, err)
	}

	s.pushToGuardian(student, notify.PushKindProximity, alert.DriverName,
		"Van approaching", notify.MessageFor(event))
}

// onRouteChanged emits one route-change notification per student on the
// active trip after a successful recalculation.
func (s *Service) onRouteChanged(newPath *models.RoutePath, driverName, reason string) {
	s.mu.Lock()
	driverID := s.activeDriverID
	s.mu.Unlock()
	if driverID == "" {
		return
	}

	trip, err := s.ActiveTrip(driverID)
	if err != nil || trip == nil {
		return
	}

	for _, ts := range trip.Students {
		student, err := s.dir.Student(ts.StudentID)
		if err != nil || student == nil {
			continue
		}
		event := models.NotificationEvent{
			Type:        models.EventRouteChanged,
			StudentID:   ts.StudentID,
			StudentName: student.Name,
			Direction:   ts.Direction,
			Timestamp:   time.Now().Unix(),
			DriverName:  driverName,
			Reason:      reason,
		}
		if err := s.dispatcher.Dispatch(event); err != nil {
			log.Printf("❌ Route-change dispatch failed for %s: %v", ts.StudentID, err)
		}
	}
}

func (s *Service) pushToGuardian(student *models.Student, kind notify.PushKind, driverName, title, body string) {
	guardian, err := s.dir.Guardian(student.GuardianID)
	if err != nil || guardian == nil || !guardian.Active {
		return
	}
	s.push.Notify(guardian.UserID, kind, student.ID, driverName, title, body)
}

// computePath asks the routing collaborator for the path covering the
// route, falling back to a straight line between the endpoints.
func (s *Service) computePath(ctx context.Context, active *models.ActiveRoute, students []models.Student) *models.RoutePath {
	origin, destination := routeEndpoints(active, students, s.dir)

	path, err := s.router.GetRoute(ctx, origin, destination)
	if err != nil {
		log.Printf("❌ Initial route computation failed, using straight-line fallback: %v", err)
		path = routing.StraightLine(origin, destination)
	}
	return path
}

// routeEndpoints picks the path endpoints from the trip direction: first
// stop → school for pickups, school → last stop for dropoffs.
func routeEndpoints(active *models.ActiveRoute, students []models.Student, dir Directory) (models.PathPoint, models.PathPoint) {
	first := students[0]
	last := students[len(students)-1]

	schoolPt := models.PathPoint{Latitude: first.Latitude, Longitude: first.Longitude}
	if school, err := dir.School(first.SchoolID); err == nil && school != nil {
		schoolPt = models.PathPoint{Latitude: school.Latitude, Longitude: school.Longitude}
	}

	if active.Direction == models.DirectionToHome {
		return schoolPt, models.PathPoint{Latitude: last.Latitude, Longitude: last.Longitude}
	}
	return models.PathPoint{Latitude: first.Latitude, Longitude: first.Longitude}, schoolPt
}

func pathDestination(path *models.RoutePath, active *models.ActiveRoute) models.PathPoint {
	if len(path.Points) > 0 {
		return path.Points[len(path.Points)-1]
	}
	if len(active.Pickups) > 0 {
		last := active.Pickups[len(active.Pickups)-1]
		return models.PathPoint{Latitude: last.Latitude, Longitude: last.Longitude}
	}
	return models.PathPoint{}
}

// applyStoredDeviationConfig restores persisted detector thresholds.
func (s *Service) applyStoredDeviationConfig() {
	var cfg tracking.DeviationConfig
	if ok, err := store.GetJSON(s.st, store.DeviationConfigKey, &cfg); err == nil && ok {
		s.deviation.SetConfig(cfg)
	}
}

func routeHistoryEntry(trip *models.Trip, active *models.ActiveRoute) models.RouteHistoryEntry {
	snapshot, _ := json.Marshal(active)
	return models.RouteHistoryEntry{
		ID:        uuid.NewString(),
		RouteID:   active.RouteID,
		DriverID:  active.DriverID,
		TripID:    trip.ID,
		StartedAt: active.StartedAt,
		EndedAt:   *active.EndedAt,
		Snapshot:  string(snapshot),
	}
}
