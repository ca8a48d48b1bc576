// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/utrscan/utrscan/internal/handler/dto"
	"github.com/utrscan/utrscan/internal/middleware"
	"github.com/utrscan/utrscan/internal/service"
)

// Handler serves the routes that do not belong to a resource.
type Handler struct {
	version string
}

// New creates a new Handler instance.
func New(version string) *Handler {
	return &Handler{version: version}
}

// Index identifies the service.
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "utrscan",
		"version": h.version,
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps service and validation errors to HTTP responses.
// Anything unrecognised is logged and reported as a 500 without detail.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, middleware.ErrImageTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Image exceeds the 5MB limit")
	case errors.Is(err, middleware.ErrMissingImage):
		writeError(w, http.StatusBadRequest, "MISSING_IMAGE", "No image file provided")
	case errors.Is(err, middleware.ErrUnsupportedImage):
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_IMAGE", "Image must be JPEG, PNG, GIF or WebP")
	case errors.Is(err, middleware.ErrMalformedUpload):
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Request must be multipart/form-data with an image field")

	case errors.Is(err, service.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "INVALID_NAME", err.Error())
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email address")
	case errors.Is(err, service.ErrEmailExists):
		writeError(w, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
	case errors.Is(err, service.ErrKeyDeliveryFailed):
		logger.Error("key_delivery_failed", "error", err, "request_id", middleware.GetRequestID(r.Context()))
		writeError(w, http.StatusBadGateway, "KEY_DELIVERY_FAILED", "Could not deliver the API key by email; the user was not created")

	case errors.Is(err, service.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "INVALID_DATE", err.Error())
	case errors.Is(err, service.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "INVALID_RANGE", err.Error())
	case errors.Is(err, service.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, "INVALID_PAGE", err.Error())
	case errors.Is(err, service.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "INVALID_LIMIT", err.Error())

	case errors.Is(err, service.ErrExtractionFailed):
		logger.Error("extraction_failed", "error", err, "request_id", middleware.GetRequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "EXTRACTION_FAILED", "Failed to process image")
	case errors.Is(err, service.ErrStoreFailed):
		logger.Error("store_failed", "error", err, "request_id", middleware.GetRequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "STORE_FAILED", "Failed to save transaction")
	default:
		logger.Error("internal_error", "error", err, "request_id", middleware.GetRequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
