// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/utrscan/utrscan/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ProcessImageResponse is returned by POST /api/process-image.
type ProcessImageResponse struct {
	Success bool                `json:"success"`
	Data    model.ExtractedData `json:"data"`
}

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateUserResponse is returned after a user is created. APIKey is only
// present when the key could not be sent by email because mail is disabled.
type CreateUserResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	User    model.UserSummary `json:"user"`
	APIKey  string            `json:"api_key,omitempty"`
}

// UserListResponse lists non-admin users.
type UserListResponse struct {
	Users []model.UserSummary `json:"users"`
	Total int                 `json:"total"`
}

// LogResponse is a single log entry as seen by its owner.
type LogResponse struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	UTR       string    `json:"utr"`
	Amount    string    `json:"amount_in_inr"`
	IsEdited  bool      `json:"is_edited"`
	Timestamp time.Time `json:"timestamp"`
}

// LogListResponse is a page of logs.
type LogListResponse struct {
	Logs       []LogResponse    `json:"logs"`
	Pagination model.Pagination `json:"pagination"`
}

// ToLogResponse converts a Log model to LogResponse DTO.
func ToLogResponse(l *model.Log) LogResponse {
	return LogResponse{
		ID:        l.ID,
		Date:      l.Data.Date,
		UTR:       l.Data.UTR,
		Amount:    l.Data.Amount,
		IsEdited:  l.Data.IsEdited,
		Timestamp: l.Timestamp,
	}
}

// ToLogListResponse converts a slice of Log models to LogListResponse.
func ToLogListResponse(logs []*model.Log, p model.Pagination) *LogListResponse {
	items := make([]LogResponse, len(logs))
	for i, l := range logs {
		items[i] = ToLogResponse(l)
	}
	return &LogListResponse{Logs: items, Pagination: p}
}
