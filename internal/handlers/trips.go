package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"

	"vantrack-backend/internal/middleware"
	"vantrack-backend/internal/models"
	"vantrack-backend/internal/trip"
	"vantrack-backend/pkg/utils"
)

type StartRouteRequest struct {
	RouteID string `json:"route_id"`
}

// StartRoute begins a trip on the driver's configured route.
func StartRoute(db *sqlx.DB, svc *trip.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/driver/route/start")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req StartRouteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RouteID == "" {
			utils.RespondError(w, http.StatusBadRequest, "route_id is required")
			return
		}

		driverName := userClaims.Email
		var name string
		if err := db.Get(&name, "SELECT name FROM users WHERE id = $1", userClaims.UserID); err == nil && name != "" {
			driverName = name
		}

		t, err := svc.StartRoute(r.Context(), userClaims.UserID, driverName, req.RouteID)
		if err != nil {
			log.Printf("❌ Failed to start route: %v", err)
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}

		log.Printf("📤 RESPONSE: 200 - trip %s started", t.ID)
		utils.RespondData(w, t)
	}
}

// GetCurrentTrip returns the driver's active trip and route snapshots.
func GetCurrentTrip(svc *trip.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		t, err := svc.ActiveTrip(userClaims.UserID)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load trip")
			return
		}
		route, err := svc.ActiveRoute(userClaims.UserID)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load route")
			return
		}
		canFinish, _ := svc.CanFinish(userClaims.UserID)

		utils.RespondData(w, map[string]interface{}{
			"trip":       t,
			"route":      route,
			"can_finish": canFinish,
		})
	}
}

type TransitionRequest struct {
	StudentID string               `json:"student_id"`
	Status    models.StudentStatus `json:"status"`
}

// TransitionStudent applies one driver-commanded status change.
func TransitionStudent(svc *trip.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/driver/trip/transition")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StudentID == "" || req.Status == "" {
			utils.RespondError(w, http.StatusBadRequest, "student_id and status are required")
			return
		}

		t, err := svc.Transition(userClaims.UserID, req.StudentID, req.Status)
		if err != nil {
			log.Printf("❌ Transition failed: %v", err)
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}

		log.Printf("📤 RESPONSE: 200 - student %s → %s", req.StudentID, req.Status)
		utils.RespondData(w, t)
	}
}

type TransitionGroupRequest struct {
	StudentIDs []string             `json:"student_ids"`
	Status     models.StudentStatus `json:"status"`
}

// TransitionGroup applies the same status to a set of students at once,
// e.g. "everyone currently at school has disembarked".
func TransitionGroup(svc *trip.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/driver/trip/transition-group")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req TransitionGroupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.StudentIDs) == 0 || req.Status == "" {
			utils.RespondError(w, http.StatusBadRequest, "student_ids and status are required")
			return
		}

		t, err := svc.TransitionGroup(userClaims.UserID, req.StudentIDs, req.Status)
		if err != nil {
			log.Printf("❌ Group transition failed: %v", err)
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}

		log.Printf("📤 RESPONSE: 200 - %d students → %s", len(req.StudentIDs), req.Status)
		utils.RespondData(w, t)
	}
}

// FinishRoute completes the trip once every student is terminal.
func FinishRoute(svc *trip.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/driver/route/finish")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		t, err := svc.Finish(userClaims.UserID)
		if err != nil {
			log.Printf("❌ Finish failed: %v", err)
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}

		log.Printf("📤 RESPONSE: 200 - trip %s completed", t.ID)
		utils.RespondData(w, t)
	}
}

type DelayRequest struct {
	Reason string `json:"reason"`
}

// ReportDelay notifies every guardian on the active trip of a delay.
func ReportDelay(svc *trip.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req DelayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
			utils.RespondError(w, http.StatusBadRequest, "reason is required")
			return
		}

		if err := svc.ReportDelay(userClaims.UserID, req.Reason); err != nil {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		utils.RespondData(w, map[string]string{"status": "reported"})
	}
}

type LocationUpdateRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// UpdateLocation ingests a driver-posted position fix (the HTTP
// alternative to the websocket location_update message).
func UpdateLocation(svc *trip.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req LocationUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		svc.IngestLocation(userClaims.UserID, models.RouteLocation{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Accuracy:  req.Accuracy,
			Timestamp: req.Timestamp,
		})
		utils.RespondData(w, map[string]string{"status": "ok"})
	}
}
