// Package registry reads the student/guardian/school records this system
// depends on but never mutates.
package registry

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"vantrack-backend/internal/models"
)

// Registry looks up registered students, guardians and schools by id.
type Registry struct {
	db *sqlx.DB
}

// New wraps an existing database connection.
func New(db *sqlx.DB) *Registry {
	return &Registry{db: db}
}

// Student returns the student record, or nil when unknown.
func (r *Registry) Student(studentID string) (*models.Student, error) {
	var student models.Student
	err := r.db.Get(&student, "SELECT * FROM students WHERE id = $1", studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("student lookup %s: %w", studentID, err)
	}
	return &student, nil
}

// Guardian returns the guardian record, or nil when unknown.
func (r *Registry) Guardian(guardianID string) (*models.Guardian, error) {
	var guardian models.Guardian
	err := r.db.Get(&guardian, "SELECT * FROM guardians WHERE id = $1", guardianID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("guardian lookup %s: %w", guardianID, err)
	}
	return &guardian, nil
}

// SchoolName returns the school's display name, or "" when unknown.
func (r *Registry) SchoolName(schoolID string) (string, error) {
	var name string
	err := r.db.Get(&name, "SELECT name FROM schools WHERE id = $1", schoolID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("school lookup %s: %w", schoolID, err)
	}
	return name, nil
}

// School returns the full school record, or nil when unknown.
func (r *Registry) School(schoolID string) (*models.School, error) {
	var school models.School
	err := r.db.Get(&school, "SELECT * FROM schools WHERE id = $1", schoolID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("school lookup %s: %w", schoolID, err)
	}
	return &school, nil
}

// RouteStudents returns the students on a route in stop order.
func (r *Registry) RouteStudents(routeID string) ([]models.Student, error) {
	var students []models.Student
	query := `
		SELECT s.* FROM students s
		JOIN route_students rs ON rs.student_id = s.id
		WHERE rs.route_id = $1
		ORDER BY rs.sequence_order ASC
	`
	if err := r.db.Select(&students, query, routeID); err != nil {
		return nil, fmt.Errorf("route students lookup %s: %w", routeID, err)
	}
	return students, nil
}

// Route returns the route record, or nil when unknown.
func (r *Registry) Route(routeID string) (*models.Route, error) {
	var route models.Route
	err := r.db.Get(&route, "SELECT * FROM routes WHERE id = $1", routeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("route lookup %s: %w", routeID, err)
	}
	return &route, nil
}

// UserTokens returns the registered FCM tokens for a user.
func (r *Registry) UserTokens(userID string) ([]string, error) {
	var tokens []string
	if err := r.db.Select(&tokens, "SELECT token FROM fcm_tokens WHERE user_id = $1", userID); err != nil {
		return nil, fmt.Errorf("token lookup %s: %w", userID, err)
	}
	return tokens, nil
}
