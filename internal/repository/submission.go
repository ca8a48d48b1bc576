package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utrscan/utrscan/internal/model"
)

var (
	// ErrInvalidSubmission is returned when a submission is missing a record
	// or its records belong to different users.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrTransactionNotFound is returned when a transaction id is unknown.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// CreateSubmission writes the transaction, the log entry and the owner's
// request counter increment in a single database transaction. Either all
// three become visible or none do.
func (r *Repository) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	if sub == nil || sub.Transaction == nil || sub.Log == nil {
		return ErrInvalidSubmission
	}
	if sub.Transaction.UserID != sub.Log.UserID {
		return ErrInvalidSubmission
	}

	return r.withTx(ctx, func(tx pgx.Tx) error {
		txn := sub.Transaction
		_, err := tx.Exec(ctx, `
			INSERT INTO transactions (id, user_id, date, utr, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, txn.ID, txn.UserID, txn.Date, txn.UTR, txn.Amount, txn.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		lg := sub.Log
		_, err = tx.Exec(ctx, `
			INSERT INTO logs (id, user_id, date, utr, amount, is_edited, timestamp, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, lg.ID, lg.UserID, lg.Data.Date, lg.Data.UTR, lg.Data.Amount, lg.Data.IsEdited, lg.Timestamp, lg.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to insert log: %w", err)
		}

		tag, err := tx.Exec(ctx, `UPDATE users SET request_count = request_count + 1 WHERE id = $1`, txn.UserID)
		if err != nil {
			return fmt.Errorf("failed to increment request count: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// GetTransactionByID retrieves a stored transaction.
func (r *Repository) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	query := `
		SELECT id, user_id, date, utr, amount, created_at
		FROM transactions
		WHERE id = $1
	`

	var txn model.Transaction
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Date,
		&txn.UTR,
		&txn.Amount,
		&txn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

// CountTransactionsByUser returns how many transactions a user has stored.
func (r *Repository) CountTransactionsByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}
