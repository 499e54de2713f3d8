package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantrack-backend/internal/middleware"
	"vantrack-backend/internal/models"
	"vantrack-backend/internal/store"
)

// withClaims injects authenticated claims the way the Auth middleware
// would after validating a token.
func withClaims(userID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := middleware.UserClaims{UserID: userID, Email: userID + "@test", Role: role}
			ctx := context.WithValue(r.Context(), middleware.UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func notificationsRouter(st store.Store, userID string) http.Handler {
	r := chi.NewRouter()
	r.Use(withClaims(userID, "guardian"))
	r.Get("/notifications", GetNotifications(st))
	r.Post("/notifications/{id}/read", MarkNotificationRead(st))
	r.Delete("/notifications/{id}", DeleteNotification(st))
	r.Get("/welcome-seen", GetWelcomeSeen(st))
	r.Post("/welcome-seen", MarkWelcomeSeen(st))
	return r
}

func seedNotifications(t *testing.T, st store.Store, userID string, ns ...models.GuardianNotification) {
	t.Helper()
	require.NoError(t, store.SetJSON(st, store.NotificationsKey(userID), ns))
}

type dataResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, dataResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body dataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestGetNotifications_EmptyListNotNull(t *testing.T) {
	st := store.NewMemory()
	h := notificationsRouter(st, "u1")

	rec, body := doRequest(t, h, http.MethodGet, "/notifications")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.Equal(t, "[]", string(body.Data))
}

func TestGetNotifications_ReturnsStoredList(t *testing.T) {
	st := store.NewMemory()
	seedNotifications(t, st, "u1",
		models.GuardianNotification{ID: "n-2", Type: models.NotificationEmbarked, Timestamp: 200},
		models.GuardianNotification{ID: "n-1", Type: models.NotificationTripStarted, Timestamp: 100},
	)
	h := notificationsRouter(st, "u1")

	rec, body := doRequest(t, h, http.MethodGet, "/notifications")
	assert.Equal(t, http.StatusOK, rec.Code)

	var list []models.GuardianNotification
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "n-2", list[0].ID)
}

func TestMarkNotificationRead(t *testing.T) {
	st := store.NewMemory()
	seedNotifications(t, st, "u1",
		models.GuardianNotification{ID: "n-1", Timestamp: 100},
	)
	h := notificationsRouter(st, "u1")

	rec, _ := doRequest(t, h, http.MethodPost, "/notifications/n-1/read")
	assert.Equal(t, http.StatusOK, rec.Code)

	var list []models.GuardianNotification
	_, err := store.GetJSON(st, store.NotificationsKey("u1"), &list)
	require.NoError(t, err)
	assert.True(t, list[0].Read)
}

func TestMarkNotificationRead_UnknownID(t *testing.T) {
	st := store.NewMemory()
	h := notificationsRouter(st, "u1")

	rec, body := doRequest(t, h, http.MethodPost, "/notifications/ghost/read")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "Notification not found", body.Error)
}

func TestDeleteNotification(t *testing.T) {
	st := store.NewMemory()
	seedNotifications(t, st, "u1",
		models.GuardianNotification{ID: "n-1", Timestamp: 100},
		models.GuardianNotification{ID: "n-2", Timestamp: 200},
	)
	h := notificationsRouter(st, "u1")

	rec, _ := doRequest(t, h, http.MethodDelete, "/notifications/n-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var list []models.GuardianNotification
	_, err := store.GetJSON(st, store.NotificationsKey("u1"), &list)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n-2", list[0].ID)
}

func TestDeleteNotification_UnknownID(t *testing.T) {
	st := store.NewMemory()
	seedNotifications(t, st, "u1", models.GuardianNotification{ID: "n-1"})
	h := notificationsRouter(st, "u1")

	rec, _ := doRequest(t, h, http.MethodDelete, "/notifications/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotifications_ScopedPerUser(t *testing.T) {
	st := store.NewMemory()
	seedNotifications(t, st, "u1", models.GuardianNotification{ID: "n-1"})

	// u2 sees an empty panel, and cannot touch u1's entries.
	h := notificationsRouter(st, "u2")
	rec, body := doRequest(t, h, http.MethodGet, "/notifications")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(body.Data))

	rec, _ = doRequest(t, h, http.MethodDelete, "/notifications/n-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWelcomeSeen_RoundTrip(t *testing.T) {
	st := store.NewMemory()
	h := notificationsRouter(st, "u1")

	_, body := doRequest(t, h, http.MethodGet, "/welcome-seen")
	assert.JSONEq(t, `{"welcome_seen": false}`, string(body.Data))

	rec, _ := doRequest(t, h, http.MethodPost, "/welcome-seen")
	assert.Equal(t, http.StatusOK, rec.Code)

	_, body = doRequest(t, h, http.MethodGet, "/welcome-seen")
	assert.JSONEq(t, `{"welcome_seen": true}`, string(body.Data))
}

func TestWelcomeSeen_CorruptValueReadsFalse(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Set(store.WelcomeSeenKey("u1"), []byte("{broken")))
	h := notificationsRouter(st, "u1")

	_, body := doRequest(t, h, http.MethodGet, "/welcome-seen")
	assert.JSONEq(t, `{"welcome_seen": false}`, string(body.Data))
}

func TestGetNotifications_Unauthenticated(t *testing.T) {
	st := store.NewMemory()
	r := chi.NewRouter()
	r.Get("/notifications", GetNotifications(st))

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
