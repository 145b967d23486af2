package domain

import (
	"time"
)

// User represents a resource owner. Credential checks are delegated to the UserRepository.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialized
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserID returns the identifier of u, or "" when u is nil
func UserID(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
