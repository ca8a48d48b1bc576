// Package model defines domain entities for the application.
package model

import "time"

// User is an API consumer. The plaintext API key is never stored; only its
// visible prefix and an Argon2id hash are persisted.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	KeyPrefix    string    `json:"key_prefix"`
	KeyHash      string    `json:"-"` // Never serialize
	IsAdmin      bool      `json:"is_admin"`
	RequestCount int64     `json:"request_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToAuthContext builds the request-scoped identity for this user.
func (u *User) ToAuthContext() *AuthContext {
	return &AuthContext{
		UserID:    u.ID,
		KeyPrefix: u.KeyPrefix,
		Name:      u.Name,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
	}
}

// UserSummary is the admin-facing view of a user.
type UserSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	KeyPrefix    string    `json:"key_prefix"`
	RequestCount int64     `json:"request_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToSummary converts a User to UserSummary.
func (u *User) ToSummary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		KeyPrefix:    u.KeyPrefix,
		RequestCount: u.RequestCount,
		CreatedAt:    u.CreatedAt,
	}
}
