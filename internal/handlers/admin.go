package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"

	"vantrack-backend/internal/models"
	"vantrack-backend/internal/store"
	"vantrack-backend/internal/tracking"
	"vantrack-backend/internal/trip"
	"vantrack-backend/pkg/utils"
)

// GetDeviationConfig returns the live detector thresholds.
func GetDeviationConfig(svc *trip.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.RespondData(w, svc.DeviationConfig())
	}
}

// UpdateDeviationConfig applies and persists new detector thresholds.
// Configuration is respected by the gate from the next reading on.
func UpdateDeviationConfig(svc *trip.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: PUT /api/admin/deviation-config")

		var cfg tracking.DeviationConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if cfg.ThresholdMeters <= 0 || cfg.MinIntervalSec <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "threshold_meters and min_interval_sec must be positive")
			return
		}

		if err := svc.SetDeviationConfig(cfg); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to persist config")
			return
		}
		utils.RespondData(w, svc.DeviationConfig())
	}
}

// GetActiveRoutes lists every driver's live route snapshot.
func GetActiveRoutes(db *sqlx.DB, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var driverIDs []string
		if err := db.Select(&driverIDs, "SELECT id FROM users WHERE role = 'driver'"); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		var routes []models.ActiveRoute
		for _, id := range driverIDs {
			var active models.ActiveRoute
			if ok, err := store.GetJSON(st, store.ActiveRouteKey(id), &active); err == nil && ok && active.Active {
				routes = append(routes, active)
			}
		}
		if routes == nil {
			routes = []models.ActiveRoute{}
		}
		utils.RespondData(w, routes)
	}
}
