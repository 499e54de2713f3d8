package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"

	"vantrack-backend/internal/middleware"
	"vantrack-backend/pkg/utils"
)

type RegisterTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"` // "ios" or "android"
}

// RegisterFCMToken stores a device push token for the authenticated user.
// Registering a token is the explicit user action that grants the push
// channel; a user with no tokens is never pushed to.
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/driver/fcm-token")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req RegisterTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}
		if req.DeviceType == "" {
			req.DeviceType = "android"
		}

		query := `
			INSERT INTO fcm_tokens (user_id, token, device_type, created_at, updated_at)
			VALUES ($1, $2, $3, EXTRACT(EPOCH FROM NOW())::BIGINT, EXTRACT(EPOCH FROM NOW())::BIGINT)
			ON CONFLICT (user_id, token)
			DO UPDATE SET device_type = EXCLUDED.device_type, updated_at = EXCLUDED.updated_at
		`
		if _, err := db.Exec(query, userClaims.UserID, req.Token, req.DeviceType); err != nil {
			log.Printf("❌ Failed to register FCM token: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to register token")
			return
		}

		log.Printf("✅ FCM token registered for user %s", userClaims.UserID)
		utils.RespondData(w, map[string]string{"status": "registered"})
	}
}

// UnregisterFCMToken removes a device token; the user stops receiving
// pushes on that device until they re-register.
func UnregisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req RegisterTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}

		if _, err := db.Exec("DELETE FROM fcm_tokens WHERE user_id = $1 AND token = $2", userClaims.UserID, req.Token); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to unregister token")
			return
		}
		utils.RespondData(w, map[string]string{"status": "unregistered"})
	}
}
