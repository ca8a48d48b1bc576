package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/utrscan/utrscan/internal/handler/dto"
	"github.com/utrscan/utrscan/internal/model"
	"github.com/utrscan/utrscan/internal/service"
)

// maxUserBodyBytes bounds the JSON body of user creation.
const maxUserBodyBytes = 4 << 10

// UserManager is the admin-facing user service.
type UserManager interface {
	CreateUser(ctx context.Context, input service.CreateUserInput) (*service.CreateUserResult, error)
	ListUsers(ctx context.Context) ([]model.UserSummary, error)
}

// AdminHandler provides admin-only user management endpoints.
type AdminHandler struct {
	users  UserManager
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users UserManager, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		logger: logger,
	}
}

// CreateUser handles POST /api/admin/users.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUserBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	result, err := h.users.CreateUser(r.Context(), service.CreateUserInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	resp := dto.CreateUserResponse{
		Success: true,
		User:    result.User.ToSummary(),
	}
	if result.Delivered {
		resp.Message = "User created; API key sent to " + result.User.Email
	} else {
		resp.Message = "User created; email delivery is disabled, store this key now"
		resp.APIKey = result.APIKey
	}

	writeJSON(w, http.StatusCreated, resp)
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if users == nil {
		users = []model.UserSummary{}
	}

	writeJSON(w, http.StatusOK, dto.UserListResponse{
		Users: users,
		Total: len(users),
	})
}
