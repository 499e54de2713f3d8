package models

// User is an authenticated account: driver, guardian or admin
type User struct {
	ID        string `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"-" db:"password"` // bcrypt hash
	Name      string `json:"name" db:"name"`
	Role      string `json:"role" db:"role"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
}

// UserResponse is the client-safe view of a user
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// ToUserResponse strips the password hash
func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

// Student is a registered student. Read-only for this system.
type Student struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	GuardianID       string    `json:"guardian_id" db:"guardian_id"`
	SchoolID         string    `json:"school_id" db:"school_id"`
	Address          string    `json:"address" db:"address"`
	Latitude         float64   `json:"latitude" db:"latitude"`
	Longitude        float64   `json:"longitude" db:"longitude"`
	DefaultDirection Direction `json:"default_direction" db:"default_direction"`
	CreatedAt        int64     `json:"created_at" db:"created_at"`
}

// Guardian is a student's notification target. Read-only for this system.
type Guardian struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	Name      string `json:"name" db:"name"`
	Active    bool   `json:"active" db:"active"` // inactive guardians receive nothing
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

// School carries the display name used in notification text
type School struct {
	ID        string  `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
	CreatedAt int64   `json:"created_at" db:"created_at"`
}

// FCMToken is a registered device push token
type FCMToken struct {
	ID         int    `json:"id" db:"id"`
	UserID     string `json:"user_id" db:"user_id"`
	Token      string `json:"token" db:"token"`
	DeviceType string `json:"device_type" db:"device_type"` // "ios" or "android"
	CreatedAt  int64  `json:"created_at" db:"created_at"`
	UpdatedAt  int64  `json:"updated_at" db:"updated_at"`
}
