package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Postgres stores every logical key in the kv_store table. Subscribers are
// process-local: cross-session convergence happens through the
// notification layer's id dedup, not through the store itself.
type Postgres struct {
	db *sqlx.DB

	mu          sync.RWMutex
	subscribers map[int]func(Change)
	nextSub     int
}

// NewPostgres wraps an existing sqlx connection.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{
		db:          db,
		subscribers: make(map[int]func(Change)),
	}
}

func (p *Postgres) Get(key string) ([]byte, error) {
	var raw []byte
	err := p.db.Get(&raw, "SELECT value FROM kv_store WHERE key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return raw, nil
}

func (p *Postgres) Set(key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, EXTRACT(EPOCH FROM NOW())::BIGINT)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := p.db.Exec(query, key, value); err != nil {
		log.Printf("❌ Error writing kv key %s: %v", key, err)
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	p.notify(Change{Key: key, Value: value})
	return nil
}

func (p *Postgres) Delete(key string) error {
	if _, err := p.db.Exec("DELETE FROM kv_store WHERE key = $1", key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	p.notify(Change{Key: key, Value: nil})
	return nil
}

func (p *Postgres) Subscribe(fn func(Change)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subscribers, id)
		p.mu.Unlock()
	}
}

func (p *Postgres) notify(c Change) {
	p.mu.RLock()
	subs := make([]func(Change), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.RUnlock()

	for _, fn := range subs {
		fn(c)
	}
}
