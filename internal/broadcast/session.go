package broadcast

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vantrack-backend/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048
)

// Session is one open websocket connection of a logical user.
type Session struct {
	ID     string
	UserID string
	Role   string // "driver", "guardian" or "admin"

	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	seenMu sync.Mutex
	seen   map[string]struct{} // notification ids already applied here
}

// IncomingMessage represents a message from the client.
type IncomingMessage struct {
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewSession creates a session for an upgraded connection.
func NewSession(userID, role string, conn *websocket.Conn, hub *Hub) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, 256),
		seen:   make(map[string]struct{}),
	}
}

// hasSeen reports whether the session already applied a notification id
// through either channel.
func (s *Session) hasSeen(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// markSeen records a notification id; returns false when the session has
// already applied it through the other channel.
func (s *Session) markSeen(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// ReadPump pumps messages from the websocket connection to the hub.
func (s *Session) ReadPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Invalid message format: %v", err)
			continue
		}

		switch msg.Type {
		case "ping":
			response := map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().Format(time.RFC3339),
			}
			responseData, _ := json.Marshal(response)
			s.send <- responseData

		case "location_update":
			s.handleLocationUpdate(msg.Data)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(s.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-s.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleLocationUpdate forwards a driver position fix into the tracking
// pipeline. Guardian sessions cannot feed locations.
func (s *Session) handleLocationUpdate(data map[string]interface{}) {
	if s.Role != "driver" || s.hub.OnDriverLocation == nil {
		return
	}

	latitude, ok := data["latitude"].(float64)
	if !ok {
		log.Printf("❌ Invalid latitude in location update from %s", s.UserID)
		return
	}
	longitude, ok := data["longitude"].(float64)
	if !ok {
		log.Printf("❌ Invalid longitude in location update from %s", s.UserID)
		return
	}

	loc := models.RouteLocation{
		Latitude:  latitude,
		Longitude: longitude,
		Timestamp: time.Now().Unix(),
	}
	if a, ok := data["accuracy"].(float64); ok {
		loc.Accuracy = &a
	}
	if ts, ok := data["timestamp"].(float64); ok {
		loc.Timestamp = int64(ts)
	}

	s.hub.OnDriverLocation(s.UserID, loc)
}
