// Package broadcast delivers dispatched notifications to every other open
// session of the same logical user without a server round-trip per
// session. Primary channel: a typed "new-notification" websocket message.
// Fallback channel: watching the persisted notification list and treating
// a sufficiently recent newest entry as newly arrived. Sessions dedupe by
// notification id, so both channels converge on the same visible list.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"vantrack-backend/internal/models"
	"vantrack-backend/internal/store"
)

// RecencyWindow bounds how old a stored notification may be for the
// fallback channel to still treat it as newly arrived.
const RecencyWindow = 5 * time.Second

// Message routes payload bytes to every session of one user.
type Message struct {
	UserID string
	Data   interface{}
	// DedupID, when set, is checked against each session's seen set
	// before delivery.
	DedupID string
}

// Hub maintains the open sessions and fans messages out to them. A user
// may hold any number of simultaneous sessions (tabs, devices).
type Hub struct {
	// Registered sessions, userID -> session set
	sessions map[string]map[*Session]bool

	broadcast  chan *Message
	register   chan *Session
	unregister chan *Session

	st store.Store

	// OnDriverLocation receives location_update messages from driver
	// sessions. Wired by the owner.
	OnDriverLocation func(driverID string, loc models.RouteLocation)

	mu sync.RWMutex

	// fallback watcher is initialized lazily on first registration
	watchOnce   sync.Once
	unwatch     func()
	nowFn       func() time.Time
}

// NewHub creates a hub over the shared store.
func NewHub(st store.Store) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Session]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		st:         st,
		nowFn:      time.Now,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case session := <-h.register:
			h.addSession(session)

		case session := <-h.unregister:
			h.removeSession(session)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) addSession(s *Session) {
	h.mu.Lock()
	if h.sessions[s.UserID] == nil {
		h.sessions[s.UserID] = make(map[*Session]bool)
	}
	h.sessions[s.UserID][s] = true
	total := h.sessionCountLocked()
	h.mu.Unlock()

	// The storage-change fallback starts with the first listener, not
	// at hub construction.
	h.watchOnce.Do(h.startFallbackWatcher)

	log.Printf("✅ [WS] Session connected: user=%s role=%s session=%s (%d total)", s.UserID, s.Role, s.ID, total)
}

func (h *Hub) removeSession(s *Session) {
	h.mu.Lock()
	if set, ok := h.sessions[s.UserID]; ok {
		if set[s] {
			delete(set, s)
			close(s.send)
			if len(set) == 0 {
				delete(h.sessions, s.UserID)
			}
		}
	}
	total := h.sessionCountLocked()
	h.mu.Unlock()

	log.Printf("🔴 [WS] Session disconnected: user=%s session=%s (%d remaining)", s.UserID, s.ID, total)
}

func (h *Hub) deliver(message *Message) {
	data, err := json.Marshal(message.Data)
	if err != nil {
		log.Printf("❌ Failed to marshal broadcast message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.sessions[message.UserID] {
		if message.DedupID != "" && session.hasSeen(message.DedupID) {
			// This session already applied the notification via the
			// other channel.
			continue
		}
		select {
		case session.send <- data:
			// Record only delivered ids: a message dropped on a full
			// buffer stays eligible for the fallback channel.
			if message.DedupID != "" {
				session.markSeen(message.DedupID)
			}
		default:
			// Session buffer full; it will be cleaned up by its pumps.
			log.Printf("⚠️ Session buffer full, dropping message for %s", message.UserID)
		}
	}
}

// PublishNotification sends a freshly dispatched notification to all of
// the user's open sessions. Primary broadcast channel.
func (h *Hub) PublishNotification(userID string, n models.GuardianNotification) {
	h.broadcast <- &Message{
		UserID:  userID,
		DedupID: n.ID,
		Data: models.BroadcastMessage{
			Type:         models.BroadcastTypeNewNotification,
			Notification: n,
			Timestamp:    time.Now().Unix(),
		},
	}
}

// PublishToUser sends an untyped payload (e.g. live driver positions) to
// all of the user's sessions. No dedup id: these are not notifications.
func (h *Hub) PublishToUser(userID string, data interface{}) {
	h.broadcast <- &Message{UserID: userID, Data: data}
}

// startFallbackWatcher subscribes to store changes on notification lists.
// A session that missed the broadcast (e.g. it was registering at
// dispatch time) still converges through this channel; id dedup absorbs
// the overlap with the primary channel.
func (h *Hub) startFallbackWatcher() {
	h.unwatch = h.st.Subscribe(func(c store.Change) {
		userID, ok := notificationsKeyUser(c.Key)
		if !ok || c.Value == nil {
			return
		}

		var list []models.GuardianNotification
		if err := json.Unmarshal(c.Value, &list); err != nil || len(list) == 0 {
			// Malformed snapshot: treat as absent.
			return
		}

		newest := list[0]
		age := h.nowFn().Unix() - newest.Timestamp
		if age < 0 || time.Duration(age)*time.Second > RecencyWindow {
			// A stale write (eviction, read-flag flip) is not an arrival.
			return
		}

		h.broadcast <- &Message{
			UserID:  userID,
			DedupID: newest.ID,
			Data: models.BroadcastMessage{
				Type:         models.BroadcastTypeNewNotification,
				Notification: newest,
				Timestamp:    h.nowFn().Unix(),
			},
		}
	})
}

// notificationsKeyUser extracts the user id from a notifications key.
func notificationsKeyUser(key string) (string, bool) {
	const prefix = "notifications:"
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return "", false
	}
	return key[len(prefix):], true
}

// SessionCount returns the number of open sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionCountLocked()
}

func (h *Hub) sessionCountLocked() int {
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

// IsUserConnected reports whether the user has at least one open session.
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID]) > 0
}
