// Package middleware provides HTTP middleware for the utrscan API.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/utrscan/utrscan/internal/model"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	callerKey
)

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// Client supplied ids end up in every log line for the request, so only
// short opaque tokens are accepted.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// caller is filled in by Auth once the key is verified. It lives in the
// context installed by RequestID so outer middleware (the access log) can
// read it after the handler chain returns.
type caller struct {
	mu        sync.Mutex
	userID    string
	keyPrefix string
	isAdmin   bool
}

func (c *caller) set(ac *model.AuthContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = ac.UserID
	c.keyPrefix = ac.KeyPrefix
	c.isAdmin = ac.IsAdmin
}

func (c *caller) get() (userID, keyPrefix string, isAdmin bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.keyPrefix, c.isAdmin
}

// RequestID tags each request with an id, reusing a well-formed
// X-Request-ID from the client and generating a UUID otherwise.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID.MatchString(requestID) {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = context.WithValue(ctx, callerKey, &caller{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func callerFromContext(ctx context.Context) *caller {
	c, _ := ctx.Value(callerKey).(*caller)
	return c
}

// recordCaller notes the authenticated identity for the access log.
func recordCaller(ctx context.Context, ac *model.AuthContext) {
	if c := callerFromContext(ctx); c != nil && ac != nil {
		c.set(ac)
	}
}
