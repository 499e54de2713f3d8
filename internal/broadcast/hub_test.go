package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantrack-backend/internal/models"
	"vantrack-backend/internal/store"
)

func hubFixture(t *testing.T) (*Hub, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	h := NewHub(st)
	go h.Run()
	return h, st
}

func addTestSession(t *testing.T, h *Hub, userID, role string) *Session {
	t.Helper()
	s := NewSession(userID, role, nil, h)
	h.register <- s
	require.Eventually(t, func() bool { return h.IsUserConnected(userID) },
		time.Second, time.Millisecond)
	return s
}

func recv(t *testing.T, s *Session) models.BroadcastMessage {
	t.Helper()
	select {
	case raw := <-s.send:
		var msg models.BroadcastMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("expected a message, got none")
		return models.BroadcastMessage{}
	}
}

func expectSilence(t *testing.T, s *Session) {
	t.Helper()
	select {
	case raw := <-s.send:
		t.Fatalf("expected no message, got %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_PublishReachesEverySessionOfUser(t *testing.T) {
	h, _ := hubFixture(t)
	tab1 := addTestSession(t, h, "u1", "guardian")
	tab2 := addTestSession(t, h, "u1", "guardian")
	other := addTestSession(t, h, "u2", "guardian")

	n := models.GuardianNotification{ID: "n-1", Type: models.NotificationEmbarked, Timestamp: time.Now().Unix()}
	h.PublishNotification("u1", n)

	assert.Equal(t, "n-1", recv(t, tab1).Notification.ID)
	assert.Equal(t, "n-1", recv(t, tab2).Notification.ID)
	expectSilence(t, other)
}

func TestHub_DuplicatePublishDeliveredOncePerSession(t *testing.T) {
	h, _ := hubFixture(t)
	s := addTestSession(t, h, "u1", "guardian")

	n := models.GuardianNotification{ID: "n-1", Timestamp: time.Now().Unix()}
	h.PublishNotification("u1", n)
	h.PublishNotification("u1", n)

	recv(t, s)
	expectSilence(t, s)
}

func TestHub_FallbackWatcherDeliversRecentWrite(t *testing.T) {
	h, st := hubFixture(t)
	s := addTestSession(t, h, "u1", "guardian")

	// A notification lands in the store without going through the hub,
	// e.g. dispatched while this session was still registering.
	list := []models.GuardianNotification{
		{ID: "n-fallback", Type: models.NotificationVanArrived, Timestamp: time.Now().Unix()},
	}
	require.NoError(t, store.SetJSON(st, store.NotificationsKey("u1"), list))

	msg := recv(t, s)
	assert.Equal(t, models.BroadcastTypeNewNotification, msg.Type)
	assert.Equal(t, "n-fallback", msg.Notification.ID)
}

func TestHub_BothChannelsConvergeToOneDelivery(t *testing.T) {
	h, st := hubFixture(t)
	s := addTestSession(t, h, "u1", "guardian")

	n := models.GuardianNotification{ID: "n-1", Timestamp: time.Now().Unix()}

	// Primary broadcast plus the storage write the dispatcher also makes.
	h.PublishNotification("u1", n)
	require.NoError(t, store.SetJSON(st, store.NotificationsKey("u1"), []models.GuardianNotification{n}))

	recv(t, s)
	expectSilence(t, s)
}

func TestHub_FallbackIgnoresStaleWrites(t *testing.T) {
	h, st := hubFixture(t)
	s := addTestSession(t, h, "u1", "guardian")

	// A read-flag flip rewrites the list with an old newest entry; the
	// recency window keeps it from re-announcing.
	list := []models.GuardianNotification{
		{ID: "n-old", Timestamp: time.Now().Add(-time.Minute).Unix(), Read: true},
	}
	require.NoError(t, store.SetJSON(st, store.NotificationsKey("u1"), list))

	expectSilence(t, s)
}

func TestHub_FallbackIgnoresForeignKeys(t *testing.T) {
	h, st := hubFixture(t)
	s := addTestSession(t, h, "u1", "guardian")

	require.NoError(t, st.Set("active-route:driver-1", []byte(`{}`)))
	require.NoError(t, st.Set("welcome-seen:u1", []byte(`true`)))

	expectSilence(t, s)
}

func TestHub_UnregisterRemovesSession(t *testing.T) {
	h, _ := hubFixture(t)
	s := addTestSession(t, h, "u1", "guardian")
	require.Equal(t, 1, h.SessionCount())

	h.unregister <- s
	require.Eventually(t, func() bool { return !h.IsUserConnected("u1") },
		time.Second, time.Millisecond)
	assert.Zero(t, h.SessionCount())
}

func TestHub_FullBufferDropStaysEligibleForRedelivery(t *testing.T) {
	h := NewHub(store.NewMemory())
	s := NewSession("u1", "guardian", nil, h)
	// A one-slot buffer that is already full forces the drop path.
	s.send = make(chan []byte, 1)
	s.send <- []byte(`{}`)
	h.addSession(s)

	n := models.GuardianNotification{ID: "n-1", Timestamp: time.Now().Unix()}
	msg := &Message{UserID: "u1", DedupID: n.ID, Data: models.BroadcastMessage{
		Type:         models.BroadcastTypeNewNotification,
		Notification: n,
	}}

	h.deliver(msg)
	assert.False(t, s.hasSeen("n-1"), "a dropped message must not count as seen")

	// Once the buffer drains, the fallback channel can still land it.
	<-s.send
	h.deliver(msg)
	assert.Equal(t, "n-1", recv(t, s).Notification.ID)
	assert.True(t, s.hasSeen("n-1"))
}

func TestSession_MarkSeen(t *testing.T) {
	s := NewSession("u1", "guardian", nil, nil)

	assert.True(t, s.markSeen("n-1"))
	assert.False(t, s.markSeen("n-1"))
	assert.True(t, s.markSeen("n-2"))
}

func TestNotificationsKeyUser(t *testing.T) {
	user, ok := notificationsKeyUser("notifications:u1")
	require.True(t, ok)
	assert.Equal(t, "u1", user)

	_, ok = notificationsKeyUser("notifications:")
	assert.False(t, ok)
	_, ok = notificationsKeyUser("active-trip:d1")
	assert.False(t, ok)
}
