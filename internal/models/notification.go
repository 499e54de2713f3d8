package models

// EventType is a closed enumeration of the domain events that can reach
// the notification dispatcher.
type EventType string

const (
	EventTripStarted     EventType = "trip_started"
	EventVanArrived      EventType = "van_arrived"
	EventStudentPickedUp EventType = "student_picked_up"
	EventEmbarked        EventType = "embarked"
	EventAtSchool        EventType = "at_school"
	EventDisembarked     EventType = "disembarked"
	EventTripFinished    EventType = "trip_finished"
	EventProximity       EventType = "proximity"
	EventRouteChanged    EventType = "route_changed"
	EventDelay           EventType = "delay"
)

// NotificationType is the guardian-facing category of a notification.
// Several event types collapse onto one notification type.
type NotificationType string

const (
	NotificationTripStarted NotificationType = "trip_started"
	NotificationVanArrived  NotificationType = "van_arrived"
	NotificationEmbarked    NotificationType = "embarked"
	NotificationAtSchool    NotificationType = "at_school"
	NotificationDisembarked NotificationType = "disembarked"
	NotificationTripUpdate  NotificationType = "trip_update"
	NotificationProximity   NotificationType = "proximity"
	NotificationRouteChange NotificationType = "route_change"
	NotificationDelay       NotificationType = "delay"
)

// notificationTypes is the strict many-to-one event → notification mapping.
var notificationTypes = map[EventType]NotificationType{
	EventTripStarted:     NotificationTripStarted,
	EventVanArrived:      NotificationVanArrived,
	EventStudentPickedUp: NotificationEmbarked,
	EventEmbarked:        NotificationEmbarked,
	EventAtSchool:        NotificationAtSchool,
	EventDisembarked:     NotificationDisembarked,
	EventTripFinished:    NotificationTripUpdate,
	EventProximity:       NotificationProximity,
	EventRouteChanged:    NotificationRouteChange,
	EventDelay:           NotificationDelay,
}

// NotificationTypeFor resolves the guardian-facing type for an event type.
// Unknown event types fall back to trip_update rather than failing dispatch.
func NotificationTypeFor(event EventType) NotificationType {
	if nt, ok := notificationTypes[event]; ok {
		return nt
	}
	return NotificationTripUpdate
}

// NotificationEvent is the dispatcher's input contract. Transient, never
// persisted.
type NotificationEvent struct {
	Type        EventType      `json:"type"`
	StudentID   string         `json:"student_id"`
	StudentName string         `json:"student_name"`
	Direction   Direction      `json:"direction"`
	Timestamp   int64          `json:"timestamp"`
	Location    *RouteLocation `json:"location,omitempty"`
	SchoolName  string         `json:"school_name,omitempty"`
	Address     string         `json:"address,omitempty"`
	DriverName  string         `json:"driver_name,omitempty"`
	Reason      string         `json:"reason,omitempty"`   // route_changed only
	DistanceM   float64        `json:"distance_m,omitempty"` // proximity only
}

// GuardianNotification is a persisted, guardian-addressed message
type GuardianNotification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	StudentName string           `json:"student_name"`
	Message     string           `json:"message"`
	Timestamp   int64            `json:"timestamp"`
	Read        bool             `json:"read"`
	Location    *RouteLocation   `json:"location,omitempty"`
}

// BroadcastMessage is the typed cross-session envelope for a freshly
// dispatched notification.
type BroadcastMessage struct {
	Type         string               `json:"type"` // always "new-notification"
	Notification GuardianNotification `json:"notification"`
	Timestamp    int64                `json:"timestamp"`
}

// BroadcastTypeNewNotification tags BroadcastMessage on the wire.
const BroadcastTypeNewNotification = "new-notification"
