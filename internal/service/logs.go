package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/utrscan/utrscan/internal/model"
	"github.com/utrscan/utrscan/internal/repository"
)

const dateOnly = "2006-01-02"

// LogService serves a user's own log history.
type LogService struct {
	store LogStore
}

// NewLogService creates a new LogService.
func NewLogService(store LogStore) *LogService {
	return &LogService{store: store}
}

// LogQuery holds raw query parameters for a log listing.
type LogQuery struct {
	UserID    string
	StartDate string
	EndDate   string
	Page      string
	Limit     string
}

// LogPage is one page of logs.
type LogPage struct {
	Logs       []*model.Log     `json:"logs"`
	Pagination model.Pagination `json:"pagination"`
}

// ListLogs validates q and returns the requested page, newest first.
func (s *LogService) ListLogs(ctx context.Context, q LogQuery) (*LogPage, error) {
	page, err := parsePositive(q.Page, 1, 0, ErrInvalidPage)
	if err != nil {
		return nil, err
	}
	limit, err := parsePositive(q.Limit, model.DefaultPageLimit, model.MaxPageLimit, ErrInvalidLimit)
	if err != nil {
		return nil, err
	}

	filter := repository.LogFilter{UserID: q.UserID}
	if q.StartDate != "" {
		start, _, err := parseDate(q.StartDate)
		if err != nil {
			return nil, err
		}
		filter.Start = &start
	}
	if q.EndDate != "" {
		end, bareDate, err := parseDate(q.EndDate)
		if err != nil {
			return nil, err
		}
		// A bare date covers the whole day.
		if bareDate {
			end = end.AddDate(0, 0, 1)
		} else {
			end = end.Add(time.Nanosecond)
		}
		filter.End = &end
	}
	if filter.Start != nil && filter.End != nil && !filter.Start.Before(*filter.End) {
		return nil, ErrInvalidRange
	}

	logs, total, err := s.store.ListLogs(ctx, filter, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}

	return &LogPage{
		Logs:       logs,
		Pagination: model.NewPagination(page, limit, total),
	}, nil
}

// parseDate accepts YYYY-MM-DD (UTC midnight) or RFC 3339.
func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, ErrInvalidDate
}

func parsePositive(raw string, def, maxVal int, errInvalid error) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || (maxVal > 0 && n > maxVal) {
		return 0, errInvalid
	}
	return n, nil
}
