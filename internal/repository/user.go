package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utrscan/utrscan/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailExists       = errors.New("email already exists")
	ErrKeyPrefixConflict = errors.New("key prefix already in use")
)

const userColumns = `id, name, email, key_prefix, key_hash, is_admin, request_count, created_at`

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, name, email, key_prefix, key_hash, is_admin, request_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.KeyPrefix,
		user.KeyHash,
		user.IsAdmin,
		user.RequestCount,
		user.CreatedAt,
	)
	if err != nil {
		return mapUserInsertError(err)
	}

	return nil
}

// BootstrapAdmin inserts user only when the users table is empty.
// Returns true when the row was written. Safe to call on every start and
// from several replicas at once.
func (r *Repository) BootstrapAdmin(ctx context.Context, user *model.User) (bool, error) {
	query := `
		INSERT INTO users (id, name, email, key_prefix, key_hash, is_admin, request_count, created_at)
		SELECT $1, $2, $3, $4, $5, TRUE, 0, $6
		WHERE NOT EXISTS (SELECT 1 FROM users)
	`

	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.KeyPrefix,
		user.KeyHash,
		user.CreatedAt,
	)
	if err != nil {
		// A concurrent bootstrap won the race.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetUserByKeyPrefix retrieves the user owning an API key prefix.
// Used during authentication before the hash is verified.
func (r *Repository) GetUserByKeyPrefix(ctx context.Context, prefix string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE key_prefix = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by key prefix: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// ListNonAdminUsers returns all non-admin users, oldest first.
func (r *Repository) ListNonAdminUsers(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_admin = FALSE ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// CountUsers returns the number of stored users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// DeleteUser removes a user. Only used to undo a creation whose key could
// not be delivered, so the user has no dependent rows yet.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// scanUser reads one users row. pgx.ErrNoRows maps to ErrUserNotFound.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.KeyPrefix,
		&user.KeyHash,
		&user.IsAdmin,
		&user.RequestCount,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func mapUserInsertError(err error) error {
	switch uniqueConstraint(err) {
	case "users_email_key":
		return ErrEmailExists
	case "users_key_prefix_key":
		return ErrKeyPrefixConflict
	case "":
		return fmt.Errorf("failed to create user: %w", err)
	default:
		return ErrEmailExists
	}
}
