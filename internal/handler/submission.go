package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utrscan/utrscan/internal/auth"
	"github.com/utrscan/utrscan/internal/extractor"
	"github.com/utrscan/utrscan/internal/handler/dto"
	"github.com/utrscan/utrscan/internal/middleware"
	"github.com/utrscan/utrscan/internal/model"
)

// Processor runs the extraction pipeline and records the result.
type Processor interface {
	Process(ctx context.Context, userID string, img extractor.Image) (*model.ExtractedData, error)
}

// SubmissionHandler handles image uploads.
type SubmissionHandler struct {
	processor     Processor
	maxUploadSize int64
	logger        *slog.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(processor Processor, maxUploadSize int64, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		processor:     processor,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// ProcessImage handles POST /api/process-image.
func (h *SubmissionHandler) ProcessImage(w http.ResponseWriter, r *http.Request) {
	img, err := middleware.ReadImageUpload(w, r, h.maxUploadSize)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	data, err := h.processor.Process(r.Context(), userID, img)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProcessImageResponse{
		Success: true,
		Data:    *data,
	})
}
