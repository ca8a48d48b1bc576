// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/utrscan/utrscan/internal/extractor"
	"github.com/utrscan/utrscan/internal/model"
	"github.com/utrscan/utrscan/internal/repository"
)

// Service errors.
var (
	ErrExtractionFailed  = errors.New("failed to extract transaction details")
	ErrStoreFailed       = errors.New("failed to store submission")
	ErrInvalidName       = errors.New("name is required and must be at most 100 characters")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrEmailExists       = errors.New("a user with this email already exists")
	ErrKeyDeliveryFailed = errors.New("failed to deliver API key")
	ErrInvalidDate       = errors.New("dates must be YYYY-MM-DD or RFC 3339")
	ErrInvalidRange      = errors.New("startDate must not be after endDate")
	ErrInvalidPage       = errors.New("page must be a positive integer")
	ErrInvalidLimit      = errors.New("limit must be between 1 and 100")
)

// DefaultLogRetention is how long a log entry stays queryable.
const DefaultLogRetention = 10 * 24 * time.Hour

// ImageExtractor reads transaction fields from an image.
type ImageExtractor interface {
	Extract(ctx context.Context, img extractor.Image) (*model.ExtractedData, error)
}

// SubmissionStore persists a processed submission atomically.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *model.Submission) error
}

// UserStore is the user persistence used by UserService.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListNonAdminUsers(ctx context.Context) ([]*model.User, error)
	BootstrapAdmin(ctx context.Context, user *model.User) (bool, error)
}

// LogStore lists stored logs.
type LogStore interface {
	ListLogs(ctx context.Context, filter repository.LogFilter, page, limit int) ([]*model.Log, int64, error)
}

func newID() string {
	return ulid.Make().String()
}
