// Package store is the key-value persistence boundary. The same trip,
// notification and config logic runs against the in-memory store in tests
// and the Postgres store in production.
package store

import (
	"encoding/json"
	"fmt"
)

// Logical key builders. One value per key.
func ActiveRouteKey(driverID string) string   { return "active-route:" + driverID }
func ActiveTripKey(driverID string) string    { return "active-trip:" + driverID }
func NotificationsKey(guardianID string) string { return "notifications:" + guardianID }
func WelcomeSeenKey(userID string) string     { return "welcome-seen:" + userID }

// DeviationConfigKey holds the runtime deviation-detector configuration.
const DeviationConfigKey = "deviation-config"

// Change describes a single key write, delivered to subscribers.
type Change struct {
	Key   string
	Value []byte // nil on delete
}

// Store is a minimal get/set/subscribe key-value store.
type Store interface {
	// Get returns the raw value, or (nil, nil) when the key is absent.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Subscribe registers fn for every subsequent write. Returns an
	// unsubscribe func. Delivery is at-least-once; consumers dedupe.
	Subscribe(fn func(Change)) func()
}

// GetJSON unmarshals the value at key into out. A missing key returns
// (false, nil); a corrupt value is treated as absent per the error design.
func GetJSON(s Store, key string, out interface{}) (bool, error) {
	raw, err := s.Get(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// Malformed snapshot: fall back to empty/default state.
		return false, nil
	}
	return true, nil
}

// SetJSON marshals v and stores it at key.
func SetJSON(s Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}
	return s.Set(key, raw)
}
