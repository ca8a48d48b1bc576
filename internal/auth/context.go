package auth

import (
	"context"

	"github.com/utrscan/utrscan/internal/model"
)

type authKey struct{}

// ContextWithAuth returns ctx carrying the verified caller.
func ContextWithAuth(ctx context.Context, ac *model.AuthContext) context.Context {
	return context.WithValue(ctx, authKey{}, ac)
}

// AuthFromContext returns the verified caller, or nil for anonymous requests.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	ac, _ := ctx.Value(authKey{}).(*model.AuthContext)
	return ac
}

// UserIDFromContext returns the caller's user id, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if ac := AuthFromContext(ctx); ac != nil {
		return ac.UserID
	}
	return ""
}
