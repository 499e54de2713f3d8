package models

// Direction is the leg a student travels on the current trip
type Direction string

const (
	DirectionToSchool Direction = "to_school"
	DirectionToHome   Direction = "to_home"
)

// TripStatus represents the lifecycle of a trip
type TripStatus string

const (
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
)

// StudentStatus is a student's position in the pickup/dropoff sequence
type StudentStatus string

const (
	StudentStatusWaiting     StudentStatus = "waiting"
	StudentStatusVanArrived  StudentStatus = "van_arrived"
	StudentStatusEmbarked    StudentStatus = "embarked"
	StudentStatusAtSchool    StudentStatus = "at_school"
	StudentStatusDisembarked StudentStatus = "disembarked"
)

// statusChains defines the canonical ordering per direction.
// to_home skips the at_school stop.
var statusChains = map[Direction][]StudentStatus{
	DirectionToSchool: {
		StudentStatusWaiting,
		StudentStatusVanArrived,
		StudentStatusEmbarked,
		StudentStatusAtSchool,
		StudentStatusDisembarked,
	},
	DirectionToHome: {
		StudentStatusWaiting,
		StudentStatusVanArrived,
		StudentStatusEmbarked,
		StudentStatusDisembarked,
	},
}

// NextStatus returns the chain successor of status for the given direction,
// or "" when status is terminal or unknown.
func NextStatus(status StudentStatus, direction Direction) StudentStatus {
	chain := statusChains[direction]
	for i, s := range chain {
		if s == status && i+1 < len(chain) {
			return chain[i+1]
		}
	}
	return ""
}

// IsTerminal reports whether status ends the chain for the given direction.
func IsTerminal(status StudentStatus, direction Direction) bool {
	return status == StudentStatusDisembarked
}

// IsChainSuccessor reports whether to directly follows from in the chain.
// The state machine does not reject other moves (the driver UI may correct
// mistakes), but off-chain moves are logged.
func IsChainSuccessor(from, to StudentStatus, direction Direction) bool {
	return NextStatus(from, direction) == to
}

// TripStudent is one student's progress record inside a trip
type TripStudent struct {
	StudentID string        `json:"student_id"`
	Status    StudentStatus `json:"status"`
	Direction Direction     `json:"direction"`
}

// Trip is one executed run of a route
type Trip struct {
	ID        string        `json:"id"`
	RouteID   string        `json:"route_id"`
	DriverID  string        `json:"driver_id"`
	Status    TripStatus    `json:"status"`
	Students  []TripStudent `json:"students"`
	CreatedAt int64         `json:"created_at"` // Unix timestamp
	UpdatedAt int64         `json:"updated_at"` // Unix timestamp
}

// Student returns the trip record for studentID, or nil.
func (t *Trip) Student(studentID string) *TripStudent {
	for i := range t.Students {
		if t.Students[i].StudentID == studentID {
			return &t.Students[i]
		}
	}
	return nil
}

// AllTerminal reports whether every student reached the terminal status
// for its direction. Only then may the driver finish the trip.
func (t *Trip) AllTerminal() bool {
	for _, s := range t.Students {
		if !IsTerminal(s.Status, s.Direction) {
			return false
		}
	}
	return len(t.Students) > 0
}
