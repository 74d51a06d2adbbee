package user

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle states for a user row. GONE is never stored: once the
// deletion cascade commits, the row itself is removed.
const (
	StatusActive   = "ACTIVE"
	StatusDeleting = "DELETING"
)

// User represents the users table
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Status       string    `gorm:"default:ACTIVE" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
