package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utrscan/utrscan/internal/auth"
	"github.com/utrscan/utrscan/internal/handler/dto"
	"github.com/utrscan/utrscan/internal/service"
)

// LogLister returns pages of a user's logs.
type LogLister interface {
	ListLogs(ctx context.Context, q service.LogQuery) (*service.LogPage, error)
}

// LogHandler serves the caller's own log history.
type LogHandler struct {
	logs   LogLister
	logger *slog.Logger
}

// NewLogHandler creates a new LogHandler.
func NewLogHandler(logs LogLister, logger *slog.Logger) *LogHandler {
	return &LogHandler{logs: logs, logger: logger}
}

// List handles GET /api/logs?startDate&endDate&page&limit.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := h.logs.ListLogs(r.Context(), service.LogQuery{
		UserID:    auth.UserIDFromContext(r.Context()),
		StartDate: query.Get("startDate"),
		EndDate:   query.Get("endDate"),
		Page:      query.Get("page"),
		Limit:     query.Get("limit"),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLogListResponse(page.Logs, page.Pagination))
}
