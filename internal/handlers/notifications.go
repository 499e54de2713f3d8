package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vantrack-backend/internal/middleware"
	"vantrack-backend/internal/models"
	"vantrack-backend/internal/store"
	"vantrack-backend/pkg/utils"
)

// GetNotifications returns the guardian's persisted panel list, newest
// first, capped at 50 by the dispatcher.
func GetNotifications(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		list := loadNotifications(st, userClaims.UserID)
		utils.RespondData(w, list)
	}
}

// MarkNotificationRead flips the read flag on one notification.
func MarkNotificationRead(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id := chi.URLParam(r, "id")
		list := loadNotifications(st, userClaims.UserID)

		found := false
		for i := range list {
			if list[i].ID == id {
				list[i].Read = true
				found = true
				break
			}
		}
		if !found {
			utils.RespondError(w, http.StatusNotFound, "Notification not found")
			return
		}

		if err := store.SetJSON(st, store.NotificationsKey(userClaims.UserID), list); err != nil {
			log.Printf("❌ Failed to save notifications: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to save")
			return
		}
		utils.RespondData(w, map[string]string{"status": "read"})
	}
}

// DeleteNotification removes one notification from the panel list.
func DeleteNotification(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id := chi.URLParam(r, "id")
		list := loadNotifications(st, userClaims.UserID)

		kept := list[:0]
		for _, n := range list {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		if len(kept) == len(list) {
			utils.RespondError(w, http.StatusNotFound, "Notification not found")
			return
		}

		if err := store.SetJSON(st, store.NotificationsKey(userClaims.UserID), kept); err != nil {
			log.Printf("❌ Failed to save notifications: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to save")
			return
		}
		utils.RespondData(w, map[string]string{"status": "deleted"})
	}
}

// MarkWelcomeSeen records that the user dismissed the welcome screen.
func MarkWelcomeSeen(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if err := store.SetJSON(st, store.WelcomeSeenKey(userClaims.UserID), true); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to save")
			return
		}
		utils.RespondData(w, map[string]bool{"welcome_seen": true})
	}
}

// GetWelcomeSeen reports whether the user has dismissed the welcome
// screen. Absent or corrupt values read as false.
func GetWelcomeSeen(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var seen bool
		store.GetJSON(st, store.WelcomeSeenKey(userClaims.UserID), &seen)
		utils.RespondData(w, map[string]bool{"welcome_seen": seen})
	}
}

// loadNotifications reads the panel list; a corrupt snapshot reads as
// empty rather than failing.
func loadNotifications(st store.Store, userID string) []models.GuardianNotification {
	var list []models.GuardianNotification
	store.GetJSON(st, store.NotificationsKey(userID), &list)
	if list == nil {
		list = []models.GuardianNotification{}
	}
	return list
}
