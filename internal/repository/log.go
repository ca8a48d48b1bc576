package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utrscan/utrscan/internal/model"
)

// LogFilter narrows a log listing to one user and an optional time range.
// Start is inclusive and End exclusive.
type LogFilter struct {
	UserID string
	Start  *time.Time
	End    *time.Time
	// Now hides entries whose expiry has passed but which the purger has not
	// removed yet. Zero means time.Now().
	Now time.Time
}

// ListLogs returns one page of a user's logs, newest first, together with
// the total number of matching entries.
func (r *Repository) ListLogs(ctx context.Context, filter LogFilter, page, limit int) ([]*model.Log, int64, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	where := ` WHERE user_id = $1 AND expires_at > $2`
	args := []any{filter.UserID, now}
	argIndex := 3

	if filter.Start != nil {
		where += fmt.Sprintf(" AND timestamp >= $%d", argIndex)
		args = append(args, *filter.Start)
		argIndex++
	}

	if filter.End != nil {
		where += fmt.Sprintf(" AND timestamp < $%d", argIndex)
		args = append(args, *filter.End)
		argIndex++
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	query := `SELECT id, user_id, date, utr, amount, is_edited, timestamp, expires_at FROM logs` + where +
		fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, model.Offset(page, limit))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*model.Log, 0, limit)
	for rows.Next() {
		lg, err := scanLog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, lg)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating logs: %w", err)
	}

	return logs, total, nil
}

// PurgeExpiredLogs deletes logs whose expiry is at or before now and
// returns how many were removed.
func (r *Repository) PurgeExpiredLogs(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM logs WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanLog(row pgx.Row) (*model.Log, error) {
	var lg model.Log
	err := row.Scan(
		&lg.ID,
		&lg.UserID,
		&lg.Data.Date,
		&lg.Data.UTR,
		&lg.Data.Amount,
		&lg.Data.IsEdited,
		&lg.Timestamp,
		&lg.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &lg, nil
}
