package database

import (
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// SeedUsers creates the demo driver, guardians and admin on first run.
func SeedUsers(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}
	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding users...")

	driverPassword, err := bcrypt.GenerateFromPassword([]byte("driver123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	guardianPassword, err := bcrypt.GenerateFromPassword([]byte("guardian123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	adminPassword, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []struct {
		id, email, name, role string
		password              []byte
	}{
		{"driver-1", "driver@vantrack.app", "Marcos Oliveira", "driver", driverPassword},
		{"guardian-user-1", "ana@vantrack.app", "Ana Souza", "guardian", guardianPassword},
		{"guardian-user-2", "carla@vantrack.app", "Carla Lima", "guardian", guardianPassword},
		{"guardian-user-3", "pedro@vantrack.app", "Pedro Santos", "guardian", guardianPassword},
		{"admin-1", "admin@vantrack.app", "Admin", "admin", adminPassword},
	}
	for _, u := range users {
		_, err := db.Exec(
			"INSERT INTO users (id, email, password, name, role) VALUES ($1, $2, $3, $4, $5)",
			u.id, u.email, string(u.password), u.name, u.role,
		)
		if err != nil {
			return err
		}
	}

	log.Printf("✅ Seeded %d users", len(users))
	return nil
}

// SeedRegistry creates the demo guardians, school, students and route.
func SeedRegistry(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM students"); err != nil {
		return err
	}
	if count > 0 {
		log.Println("✓ Registry already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding registry...")

	guardians := []struct {
		id, userID, name string
		active           bool
	}{
		{"guardian-1", "guardian-user-1", "Ana Souza", true},
		{"guardian-2", "guardian-user-2", "Carla Lima", true},
		// Inactive guardians are filtered out of every dispatch.
		{"guardian-3", "guardian-user-3", "Pedro Santos", false},
	}
	for _, g := range guardians {
		if _, err := db.Exec(
			"INSERT INTO guardians (id, user_id, name, active) VALUES ($1, $2, $3, $4)",
			g.id, g.userID, g.name, g.active,
		); err != nil {
			return err
		}
	}

	if _, err := db.Exec(
		"INSERT INTO schools (id, name, latitude, longitude) VALUES ($1, $2, $3, $4)",
		"school-1", "Escola Monte Verde", -23.5489, -46.6388,
	); err != nil {
		return err
	}

	students := []struct {
		id, name, guardianID, address string
		lat, lng                      float64
	}{
		{"student-1", "Lucas Souza", "guardian-1", "Rua das Flores 120", -23.5565, -46.6433},
		{"student-2", "Beatriz Lima", "guardian-2", "Av. Paulista 900", -23.5614, -46.6559},
		{"student-3", "Rafael Santos", "guardian-3", "Rua Augusta 45", -23.5520, -46.6452},
	}
	for _, s := range students {
		if _, err := db.Exec(
			`INSERT INTO students (id, name, guardian_id, school_id, address, latitude, longitude, default_direction)
			 VALUES ($1, $2, $3, 'school-1', $4, $5, $6, 'to_school')`,
			s.id, s.name, s.guardianID, s.address, s.lat, s.lng,
		); err != nil {
			return err
		}
	}

	routeID := uuid.NewString()
	if _, err := db.Exec(
		"INSERT INTO routes (id, name, driver_id, direction) VALUES ($1, $2, $3, $4)",
		routeID, "Morning pickup", "driver-1", "to_school",
	); err != nil {
		return err
	}
	for i, s := range students {
		if _, err := db.Exec(
			"INSERT INTO route_students (route_id, student_id, sequence_order) VALUES ($1, $2, $3)",
			routeID, s.id, i+1,
		); err != nil {
			return err
		}
	}

	log.Printf("✅ Seeded %d guardians, %d students, route %s", len(guardians), len(students), routeID)
	return nil
}
