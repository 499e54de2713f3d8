package notify

import (
	"fmt"

	"vantrack-backend/internal/models"
)

// MessageFor renders the guardian-facing text for an event. Templates are
// keyed by event type and direction; unknown combinations fall back to a
// generic trip update so dispatch never fails on text.
func MessageFor(e models.NotificationEvent) string {
	switch e.Type {
	case models.EventTripStarted:
		if e.Direction == models.DirectionToHome {
			return fmt.Sprintf("The van has left %s with %s's group", schoolOr(e), e.StudentName)
		}
		return fmt.Sprintf("The van has started its route to pick up %s", e.StudentName)

	case models.EventVanArrived:
		if e.Direction == models.DirectionToHome {
			return fmt.Sprintf("The van has arrived to drop off %s", e.StudentName)
		}
		return fmt.Sprintf("The van has arrived at %s's stop", e.StudentName)

	case models.EventStudentPickedUp, models.EventEmbarked:
		if e.Direction == models.DirectionToHome {
			return fmt.Sprintf("%s is on the van heading home", e.StudentName)
		}
		return fmt.Sprintf("%s is on the van heading to %s", e.StudentName, schoolOr(e))

	case models.EventAtSchool:
		return fmt.Sprintf("%s has arrived at %s", e.StudentName, schoolOr(e))

	case models.EventDisembarked:
		if e.Direction == models.DirectionToHome {
			return fmt.Sprintf("%s has been dropped off at home", e.StudentName)
		}
		return fmt.Sprintf("%s has left the van at %s", e.StudentName, schoolOr(e))

	case models.EventTripFinished:
		return fmt.Sprintf("Today's trip with %s is complete", e.StudentName)

	case models.EventProximity:
		return fmt.Sprintf("%s is %.0f m away from %s's stop, %s",
			driverOr(e), e.DistanceM, e.StudentName, e.Reason)

	case models.EventRouteChanged:
		return fmt.Sprintf("%s changed the route: %s", driverOr(e), e.Reason)

	case models.EventDelay:
		return fmt.Sprintf("The van running %s's route is delayed: %s", e.StudentName, e.Reason)
	}

	return fmt.Sprintf("Trip update for %s", e.StudentName)
}

func schoolOr(e models.NotificationEvent) string {
	if e.SchoolName != "" {
		return e.SchoolName
	}
	return "school"
}

func driverOr(e models.NotificationEvent) string {
	if e.DriverName != "" {
		return e.DriverName
	}
	return "The driver"
}
