// Package notify turns domain events into guardian-addressed messages and
// hands them to delivery: the persisted per-guardian panel list, the
// cross-session broadcast, the device-push channel and local listeners.
package notify

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"vantrack-backend/internal/models"
	"vantrack-backend/internal/store"
)

// NotificationCap bounds each guardian's persisted list; the oldest
// entries beyond it are evicted.
const NotificationCap = 50

// Directory resolves a student's guardian. Satisfied by registry.Registry.
type Directory interface {
	Student(studentID string) (*models.Student, error)
	Guardian(guardianID string) (*models.Guardian, error)
}

// Broadcaster fans a dispatched notification out to the user's open
// sessions. Satisfied by broadcast.Hub.
type Broadcaster interface {
	PublishNotification(userID string, n models.GuardianNotification)
}

// Listener receives every dispatched notification in emission order.
type Listener func(userID string, n models.GuardianNotification)

// Dispatcher converts NotificationEvents into persisted
// GuardianNotifications.
type Dispatcher struct {
	store       store.Store
	dir         Directory
	broadcaster Broadcaster

	mu        sync.Mutex
	listeners []Listener
	recent    map[string]struct{} // absorbed duplicate events
}

// NewDispatcher wires the dispatcher. broadcaster may be nil in tests.
func NewDispatcher(st store.Store, dir Directory, broadcaster Broadcaster) *Dispatcher {
	return &Dispatcher{
		store:       st,
		dir:         dir,
		broadcaster: broadcaster,
		recent:      make(map[string]struct{}),
	}
}

// AddListener registers a local consumer. Listeners run synchronously in
// registration order, so within one session delivery order matches
// emission order.
func (d *Dispatcher) AddListener(fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Dispatch processes one event: render text, resolve the domain type and
// the target guardian, persist with cap eviction, fan out. Inactive
// guardians receive nothing. Duplicate events are absorbed silently.
func (d *Dispatcher) Dispatch(event models.NotificationEvent) error {
	dedupKey := fmt.Sprintf("%s|%s|%d", event.Type, event.StudentID, event.Timestamp)
	d.mu.Lock()
	if _, seen := d.recent[dedupKey]; seen {
		d.mu.Unlock()
		return nil
	}
	d.recent[dedupKey] = struct{}{}
	d.mu.Unlock()

	student, err := d.dir.Student(event.StudentID)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if student == nil {
		log.Printf("⚠️  Dropping event %s for unknown student %s", event.Type, event.StudentID)
		return nil
	}

	guardian, err := d.dir.Guardian(student.GuardianID)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if guardian == nil || !guardian.Active {
		// Inactive guardians are filtered out, not an error.
		return nil
	}

	notification := models.GuardianNotification{
		ID:          uuid.NewString(),
		Type:        models.NotificationTypeFor(event.Type),
		StudentName: event.StudentName,
		Message:     MessageFor(event),
		Timestamp:   event.Timestamp,
		Location:    event.Location,
	}

	if err := d.persist(guardian.UserID, notification); err != nil {
		return err
	}

	if d.broadcaster != nil {
		d.broadcaster.PublishNotification(guardian.UserID, notification)
	}

	d.mu.Lock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(guardian.UserID, notification)
	}

	log.Printf("📨 Dispatched %s notification %s to guardian user %s", notification.Type, notification.ID, guardian.UserID)
	return nil
}

// persist prepends the notification to the guardian's list, newest first,
// evicting past the cap.
func (d *Dispatcher) persist(userID string, n models.GuardianNotification) error {
	key := store.NotificationsKey(userID)

	var list []models.GuardianNotification
	if _, err := store.GetJSON(d.store, key, &list); err != nil {
		return fmt.Errorf("load notifications for %s: %w", userID, err)
	}

	list = append([]models.GuardianNotification{n}, list...)
	if len(list) > NotificationCap {
		list = list[:NotificationCap]
	}

	if err := store.SetJSON(d.store, key, list); err != nil {
		return fmt.Errorf("save notifications for %s: %w", userID, err)
	}
	return nil
}

// Reset clears the duplicate-absorption memory. Called on trip finish so
// a new trip can re-notify the same guardians.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = make(map[string]struct{})
}
