package model

// AuthContext holds the authenticated caller.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	UserID    string
	KeyPrefix string
	Name      string
	Email     string
	// IsAdmin reflects the flag at authentication time. Admin-only routes
	// re-check it against the store.
	IsAdmin bool
}
