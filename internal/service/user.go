package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/utrscan/utrscan/internal/auth"
	"github.com/utrscan/utrscan/internal/mailer"
	"github.com/utrscan/utrscan/internal/metrics"
	"github.com/utrscan/utrscan/internal/model"
	"github.com/utrscan/utrscan/internal/repository"
)

const (
	maxNameLength     = 100
	maxEmailLength    = 254
	maxKeyPrefixTries = 3
)

// UserService handles user management and API key issuance.
type UserService struct {
	store   UserStore
	sender  mailer.Sender
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewUserService creates a new UserService. A nil sender disables delivery.
func NewUserService(store UserStore, sender mailer.Sender, recorder metrics.Recorder, logger *slog.Logger) *UserService {
	if sender == nil {
		sender = mailer.Disabled{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{store: store, sender: sender, metrics: recorder, logger: logger}
}

// CreateUserInput defines input for creating a user.
type CreateUserInput struct {
	Name  string
	Email string
}

// CreateUserResult is returned by CreateUser. APIKey is set only when mail
// delivery is disabled; it is the only time the plaintext key is exposed.
type CreateUserResult struct {
	User      *model.User
	APIKey    string
	Delivered bool
}

// CreateUser validates input, stores a new non-admin user and delivers the
// generated key by email. If delivery fails the user is removed again so no
// unusable account is left behind.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*CreateUserResult, error) {
	name, email, err := validateUserInput(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	user, key, err := s.insertWithFreshKey(ctx, name, email)
	if err != nil {
		return nil, err
	}

	err = s.sender.SendAPIKey(ctx, user.Email, user.Name, key.Plaintext)
	switch {
	case err == nil:
		s.metrics.IncUserCreated()
		s.logger.Info("user created", "user_id", user.ID, "key_prefix", user.KeyPrefix)
		return &CreateUserResult{User: user, Delivered: true}, nil

	case errors.Is(err, mailer.ErrDisabled):
		s.metrics.IncUserCreated()
		s.logger.Warn("mail delivery disabled, returning key in response", "user_id", user.ID)
		return &CreateUserResult{User: user, APIKey: key.Plaintext}, nil
	}

	s.metrics.IncKeyDeliveryFailed()
	s.logger.Error("api key delivery failed, removing user", "user_id", user.ID, "error", err)

	// Compensate even if the request context is already gone.
	if delErr := s.store.DeleteUser(context.WithoutCancel(ctx), user.ID); delErr != nil {
		s.logger.Error("failed to remove undeliverable user", "user_id", user.ID, "error", delErr)
	}
	return nil, fmt.Errorf("%w: %w", ErrKeyDeliveryFailed, err)
}

// ensureEmailFree rejects a taken address before a key is generated. The
// unique index still catches a concurrent insert in insertWithFreshKey.
func (s *UserService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrEmailExists
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("look up email: %w", err)
	}
}

// insertWithFreshKey stores a user, regenerating the key when its short
// prefix collides with an existing one.
func (s *UserService) insertWithFreshKey(ctx context.Context, name, email string) (*model.User, *auth.GeneratedKey, error) {
	for attempt := 0; attempt < maxKeyPrefixTries; attempt++ {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			return nil, nil, fmt.Errorf("generate api key: %w", err)
		}

		user := &model.User{
			ID:        newID(),
			Name:      name,
			Email:     email,
			KeyPrefix: key.Prefix,
			KeyHash:   key.Hash,
			CreatedAt: time.Now().UTC(),
		}

		err = s.store.CreateUser(ctx, user)
		switch {
		case err == nil:
			return user, key, nil
		case errors.Is(err, repository.ErrEmailExists):
			return nil, nil, ErrEmailExists
		case errors.Is(err, repository.ErrKeyPrefixConflict):
			continue
		default:
			return nil, nil, fmt.Errorf("create user: %w", err)
		}
	}
	return nil, nil, fmt.Errorf("create user: %w", repository.ErrKeyPrefixConflict)
}

// ListUsers returns all non-admin users with their request counts.
func (s *UserService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	users, err := s.store.ListNonAdminUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]model.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToSummary())
	}
	return out, nil
}

// BootstrapInput describes the admin created on an empty store.
type BootstrapInput struct {
	Name   string
	Email  string
	APIKey string // optional; generated when empty
}

// BootstrapResult reports what BootstrapAdmin did. GeneratedKey is set only
// when a key was generated and the admin was actually created.
type BootstrapResult struct {
	Created      bool
	User         *model.User
	GeneratedKey string
}

// BootstrapAdmin creates the first admin when no users exist. It is
// idempotent and safe to run on every start.
func (s *UserService) BootstrapAdmin(ctx context.Context, input BootstrapInput) (*BootstrapResult, error) {
	name, email, err := validateUserInput(CreateUserInput{Name: input.Name, Email: input.Email})
	if err != nil {
		return nil, err
	}

	var key *auth.GeneratedKey
	if input.APIKey != "" {
		key, err = auth.FromPlaintext(input.APIKey)
	} else {
		key, err = auth.GenerateAPIKey()
	}
	if err != nil {
		return nil, fmt.Errorf("prepare admin key: %w", err)
	}

	user := &model.User{
		ID:        newID(),
		Name:      name,
		Email:     email,
		KeyPrefix: key.Prefix,
		KeyHash:   key.Hash,
		IsAdmin:   true,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.store.BootstrapAdmin(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	res := &BootstrapResult{Created: created}
	if created {
		res.User = user
		if input.APIKey == "" {
			res.GeneratedKey = key.Plaintext
		}
		s.logger.Info("bootstrap admin created", "user_id", user.ID, "key_prefix", user.KeyPrefix)
	}
	return res, nil
}

func validateUserInput(input CreateUserInput) (string, string, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", "", ErrInvalidName
	}

	email := strings.TrimSpace(input.Email)
	if len(email) > maxEmailLength {
		return "", "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", ErrInvalidEmail
	}

	return name, email, nil
}
