package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"vantrack-backend/internal/models"
)

// Connect opens and verifies the Postgres connection.
func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("🔌 Connecting to database...")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Database connection established")
	return db, nil
}

// Migrate creates the schema. Idempotent.
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('driver', 'guardian', 'admin')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS guardians (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS schools (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS students (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			guardian_id TEXT NOT NULL REFERENCES guardians(id),
			school_id TEXT NOT NULL REFERENCES schools(id),
			address TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			default_direction TEXT NOT NULL DEFAULT 'to_school' CHECK(default_direction IN ('to_school', 'to_home')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			driver_id TEXT NOT NULL REFERENCES users(id),
			direction TEXT NOT NULL CHECK(direction IN ('to_school', 'to_home')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS route_students (
			id SERIAL PRIMARY KEY,
			route_id TEXT NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
			student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			sequence_order INT NOT NULL,
			UNIQUE(route_id, student_id)
		)`,

		`CREATE TABLE IF NOT EXISTS route_history (
			id TEXT PRIMARY KEY,
			route_id TEXT NOT NULL,
			driver_id TEXT NOT NULL,
			trip_id TEXT NOT NULL,
			started_at BIGINT NOT NULL,
			ended_at BIGINT NOT NULL,
			snapshot TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			token TEXT NOT NULL,
			device_type TEXT NOT NULL DEFAULT 'android',
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			UNIQUE(user_id, token)
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Printf("✅ %d migrations applied", len(migrations))
	return nil
}

// RouteHistory persists retired route snapshots.
type RouteHistory struct {
	db *sqlx.DB
}

// NewRouteHistory wraps a database connection.
func NewRouteHistory(db *sqlx.DB) *RouteHistory {
	return &RouteHistory{db: db}
}

// Append stores one retired route.
func (h *RouteHistory) Append(entry models.RouteHistoryEntry) error {
	query := `
		INSERT INTO route_history (id, route_id, driver_id, trip_id, started_at, ended_at, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := h.db.Exec(query, entry.ID, entry.RouteID, entry.DriverID, entry.TripID,
		entry.StartedAt, entry.EndedAt, entry.Snapshot); err != nil {
		return fmt.Errorf("failed to append route history: %w", err)
	}
	return nil
}
