package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vantrack-backend/internal/models"
)

func TestMessageFor_DirectionSensitive(t *testing.T) {
	toSchool := models.NotificationEvent{
		Type:        models.EventDisembarked,
		StudentName: "Ana",
		Direction:   models.DirectionToSchool,
		SchoolName:  "Escola Monte Verde",
	}
	assert.Equal(t, "Ana has left the van at Escola Monte Verde", MessageFor(toSchool))

	toHome := toSchool
	toHome.Direction = models.DirectionToHome
	assert.Equal(t, "Ana has been dropped off at home", MessageFor(toHome))
}

func TestMessageFor_SchoolNameFallback(t *testing.T) {
	e := models.NotificationEvent{
		Type:        models.EventEmbarked,
		StudentName: "Ana",
		Direction:   models.DirectionToSchool,
	}
	assert.Equal(t, "Ana is on the van heading to school", MessageFor(e))
}

func TestMessageFor_PickedUpAndEmbarkedShareText(t *testing.T) {
	base := models.NotificationEvent{
		StudentName: "Ana",
		Direction:   models.DirectionToHome,
	}
	picked := base
	picked.Type = models.EventStudentPickedUp
	embarked := base
	embarked.Type = models.EventEmbarked

	assert.Equal(t, MessageFor(picked), MessageFor(embarked))
}

func TestMessageFor_Proximity(t *testing.T) {
	e := models.NotificationEvent{
		Type:        models.EventProximity,
		StudentName: "Ana",
		DriverName:  "Carlos",
		DistanceM:   320,
		Reason:      "arriving in about a minute",
	}
	assert.Equal(t, "Carlos is 320 m away from Ana's stop, arriving in about a minute", MessageFor(e))
}

func TestMessageFor_UnknownTypeFallsBack(t *testing.T) {
	e := models.NotificationEvent{Type: "mystery", StudentName: "Ana"}
	assert.Equal(t, "Trip update for Ana", MessageFor(e))
}
