package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/utrscan/utrscan/internal/auth"
	"github.com/utrscan/utrscan/internal/metrics"
	"github.com/utrscan/utrscan/internal/model"
	"github.com/utrscan/utrscan/internal/repository"
)

const (
	// minAuthDuration is the minimum time to spend on auth to prevent timing attacks.
	minAuthDuration = 200 * time.Millisecond
)

// UserFinder is the subset of the repository used for authentication.
type UserFinder interface {
	GetUserByKeyPrefix(ctx context.Context, prefix string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthCache caches verified identities keyed by auth.CacheKey.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, ac *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Users   UserFinder
	Cache   AuthCache // optional
	Metrics metrics.Recorder
	// MinDuration overrides minAuthDuration when positive.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests.
// It extracts the API key from the X-API-Key or Authorization header,
// verifies it, and injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	floor := cfg.MinDuration
	if floor <= 0 {
		floor = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			authCtx, reason := authenticate(r, cfg)
			if authCtx == nil {
				padAuthDuration(r.Context(), start, floor)
				recorder.IncAuthFailure()
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", getClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("user_id", authCtx.UserID),
				slog.Bool("admin", authCtx.IsAdmin),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			recordCaller(r.Context(), authCtx)
			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate resolves the caller. On failure it returns a nil context and
// a short reason for the log line.
func authenticate(r *http.Request, cfg AuthConfig) (*model.AuthContext, string) {
	ctx := r.Context()

	key := extractAPIKey(r)
	if key == "" {
		return nil, "missing_key"
	}

	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, "invalid_format"
	}

	cacheKey := auth.CacheKey(key)
	if cfg.Cache != nil {
		if cached, err := cfg.Cache.GetAuthContext(ctx, cacheKey); err == nil && cached != nil {
			return cached, ""
		}
	}

	user, err := cfg.Users.GetUserByKeyPrefix(ctx, parsed.Prefix)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			cfg.Logger.Error("database error during auth",
				slog.String("error", err.Error()),
				slog.String("request_id", GetRequestID(ctx)),
			)
			return nil, "store_error"
		}
		return nil, "invalid_key"
	}

	match, err := auth.VerifyKey(key, user.KeyHash)
	if err != nil || !match {
		return nil, "invalid_key"
	}

	authCtx := user.ToAuthContext()
	if cfg.Cache != nil {
		if err := cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx); err != nil {
			cfg.Logger.Warn("auth cache write failed", slog.String("error", err.Error()))
		}
	}
	return authCtx, ""
}

// padAuthDuration sleeps until floor has elapsed since start or ctx ends.
func padAuthDuration(ctx context.Context, start time.Time, floor time.Duration) {
	remaining := floor - time.Since(start)
	if remaining <= 0 {
		return
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// RequireAdmin rejects callers whose stored user record is not an admin.
// The flag is re-read from the store so a cached identity cannot outlive a
// demotion. Must be applied after Auth.
func RequireAdmin(users UserFinder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeAuthError(w)
				return
			}

			user, err := users.GetUserByID(r.Context(), authCtx.UserID)
			switch {
			case errors.Is(err, repository.ErrUserNotFound):
				writeAuthError(w)
				return
			case err != nil:
				logger.Error("admin check failed",
					slog.String("error", err.Error()),
					slog.String("user_id", authCtx.UserID),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeJSONError(w, http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR")
				return
			case !user.IsAdmin:
				logger.Warn("admin access denied",
					slog.String("user_id", authCtx.UserID),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeJSONError(w, http.StatusForbidden, "Admin access required", "FORBIDDEN")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractAPIKey extracts the API key from the request.
// Supports both "X-API-Key: <key>" and "Authorization: Bearer <key>" headers.
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeJSONError(w, http.StatusUnauthorized, "Invalid or missing API key", "UNAUTHORIZED")
}
