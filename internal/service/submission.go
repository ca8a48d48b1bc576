package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utrscan/utrscan/internal/extractor"
	"github.com/utrscan/utrscan/internal/metrics"
	"github.com/utrscan/utrscan/internal/model"
)

// SubmissionService runs an uploaded image through extraction and stores
// the outcome.
type SubmissionService struct {
	extractor ImageExtractor
	store     SubmissionStore
	retention time.Duration
	now       func() time.Time
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(ex ImageExtractor, store SubmissionStore, retention time.Duration, recorder metrics.Recorder, logger *slog.Logger) *SubmissionService {
	if retention <= 0 {
		retention = DefaultLogRetention
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionService{
		extractor: ex,
		store:     store,
		retention: retention,
		now:       time.Now,
		metrics:   recorder,
		logger:    logger,
	}
}

// Process extracts transaction details from img on behalf of userID and
// records one Transaction, one Log and a request count increment.
// Nothing is stored when extraction fails.
func (s *SubmissionService) Process(ctx context.Context, userID string, img extractor.Image) (*model.ExtractedData, error) {
	start := s.now()
	data, err := s.extractor.Extract(ctx, img)
	s.metrics.ObserveExtractionDuration(s.now().Sub(start))
	if err != nil {
		s.metrics.IncSubmission(metrics.StatusExtractionFailed)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	data.Normalize()

	if data.UTR == model.UnknownValue {
		s.metrics.IncUnknownUTR()
	}

	now := s.now().UTC()
	sub := &model.Submission{
		Transaction: &model.Transaction{
			ID:        newID(),
			UserID:    userID,
			Date:      data.Date,
			UTR:       data.UTR,
			Amount:    data.Amount,
			CreatedAt: now,
		},
		Log: &model.Log{
			ID:        newID(),
			UserID:    userID,
			Data:      *data,
			Timestamp: now,
			ExpiresAt: now.Add(s.retention),
		},
	}

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		s.metrics.IncSubmission(metrics.StatusStoreFailed)
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	s.metrics.IncSubmission(metrics.StatusSuccess)
	s.logger.Info("submission stored",
		"user_id", userID,
		"transaction_id", sub.Transaction.ID,
		"utr_known", data.UTR != model.UnknownValue,
	)
	return data, nil
}
