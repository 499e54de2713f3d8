package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus_ToSchoolChain(t *testing.T) {
	assert.Equal(t, StudentStatusVanArrived, NextStatus(StudentStatusWaiting, DirectionToSchool))
	assert.Equal(t, StudentStatusEmbarked, NextStatus(StudentStatusVanArrived, DirectionToSchool))
	assert.Equal(t, StudentStatusAtSchool, NextStatus(StudentStatusEmbarked, DirectionToSchool))
	assert.Equal(t, StudentStatusDisembarked, NextStatus(StudentStatusAtSchool, DirectionToSchool))
	assert.Equal(t, StudentStatus(""), NextStatus(StudentStatusDisembarked, DirectionToSchool))
}

func TestNextStatus_ToHomeSkipsAtSchool(t *testing.T) {
	assert.Equal(t, StudentStatusDisembarked, NextStatus(StudentStatusEmbarked, DirectionToHome))
	// at_school is not on the to_home chain at all.
	assert.Equal(t, StudentStatus(""), NextStatus(StudentStatusAtSchool, DirectionToHome))
}

func TestIsChainSuccessor(t *testing.T) {
	assert.True(t, IsChainSuccessor(StudentStatusWaiting, StudentStatusVanArrived, DirectionToSchool))
	assert.False(t, IsChainSuccessor(StudentStatusWaiting, StudentStatusEmbarked, DirectionToSchool))
	assert.False(t, IsChainSuccessor(StudentStatusEmbarked, StudentStatusAtSchool, DirectionToHome))
}

func TestTrip_AllTerminal(t *testing.T) {
	trip := &Trip{Students: []TripStudent{
		{StudentID: "s1", Status: StudentStatusDisembarked, Direction: DirectionToSchool},
		{StudentID: "s2", Status: StudentStatusEmbarked, Direction: DirectionToSchool},
	}}
	assert.False(t, trip.AllTerminal())

	trip.Students[1].Status = StudentStatusDisembarked
	assert.True(t, trip.AllTerminal())
}

func TestTrip_AllTerminalRequiresStudents(t *testing.T) {
	trip := &Trip{}
	assert.False(t, trip.AllTerminal())
}

func TestTrip_StudentLookup(t *testing.T) {
	trip := &Trip{Students: []TripStudent{
		{StudentID: "s1", Status: StudentStatusWaiting},
	}}

	got := trip.Student("s1")
	require.NotNil(t, got)

	// A mutation through the returned pointer lands in the trip.
	got.Status = StudentStatusEmbarked
	assert.Equal(t, StudentStatusEmbarked, trip.Students[0].Status)

	assert.Nil(t, trip.Student("unknown"))
}

func TestNotificationTypeFor(t *testing.T) {
	// student_picked_up and embarked collapse onto the same guardian type.
	assert.Equal(t, NotificationEmbarked, NotificationTypeFor(EventStudentPickedUp))
	assert.Equal(t, NotificationEmbarked, NotificationTypeFor(EventEmbarked))
	assert.Equal(t, NotificationProximity, NotificationTypeFor(EventProximity))
	assert.Equal(t, NotificationTripUpdate, NotificationTypeFor(EventTripFinished))
	assert.Equal(t, NotificationTripUpdate, NotificationTypeFor(EventType("made_up")))
}

func TestAccuracyBands(t *testing.T) {
	assert.Equal(t, AccuracyHigh, BandFor(10))
	assert.Equal(t, AccuracyMedium, BandFor(30))
	assert.Equal(t, AccuracyLow, BandFor(30.1))

	loc := RouteLocation{}
	assert.Equal(t, AccuracyLow, loc.Band())
}

func TestActiveRoute_PendingPickups(t *testing.T) {
	route := &ActiveRoute{Pickups: []StudentPickup{
		{StudentID: "s1", Status: PickupStatusPending},
		{StudentID: "s2", Status: PickupStatusPickedUp},
		{StudentID: "s3", Status: PickupStatusPending},
	}}

	pending := route.PendingPickups()
	require.Len(t, pending, 2)
	assert.Equal(t, "s1", pending[0].StudentID)
	assert.Equal(t, "s3", pending[1].StudentID)

	p := route.Pickup("s2")
	require.NotNil(t, p)
	assert.Equal(t, PickupStatusPickedUp, p.Status)
}

func TestActiveRoute_SnapshotRoundTrip(t *testing.T) {
	acc := 12.5
	ended := int64(1700000400)
	route := ActiveRoute{
		RouteID:    "route-1",
		DriverID:   "driver-1",
		DriverName: "Carlos",
		Direction:  DirectionToSchool,
		Active:     true,
		StartedAt:  1700000000,
		EndedAt:    &ended,
		CurrentLocation: &RouteLocation{
			Latitude: -23.5489, Longitude: -46.6388, Accuracy: &acc, Timestamp: 1700000100,
		},
		Pickups: []StudentPickup{
			{StudentID: "s1", Address: "Rua A, 10", Latitude: -23.55, Longitude: -46.64, Status: PickupStatusPending},
		},
	}

	raw, err := json.Marshal(route)
	require.NoError(t, err)

	var back ActiveRoute
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, route, back)
}
