package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrscan/utrscan/internal/extractor"
	"github.com/utrscan/utrscan/internal/metrics"
	"github.com/utrscan/utrscan/internal/model"
)

var pngImage = extractor.Image{Data: []byte{1, 2, 3}, MIMEType: "image/png"}

func TestSubmissionService_Process_StoresOneTransactionAndLog(t *testing.T) {
	store := &memSubmissionStore{}
	rec := metrics.NewInMemory()
	ex := stubExtractor{data: &model.ExtractedData{Date: "01 May 2024", UTR: "412345678901", Amount: "1500"}}

	svc := NewSubmissionService(ex, store, 0, rec, nil)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	got, err := svc.Process(context.Background(), "user-1", pngImage)
	require.NoError(t, err)
	assert.Equal(t, "412345678901", got.UTR)

	require.Len(t, store.subs, 1)
	sub := store.subs[0]
	assert.Equal(t, "user-1", sub.Transaction.UserID)
	assert.Equal(t, "user-1", sub.Log.UserID)
	assert.Equal(t, "1500", sub.Transaction.Amount)
	assert.Equal(t, *got, sub.Log.Data)
	assert.Equal(t, fixed.Add(DefaultLogRetention), sub.Log.ExpiresAt)
	assert.NotEqual(t, sub.Transaction.ID, sub.Log.ID)

	assert.Equal(t, uint64(1), rec.Snapshot().SubmissionsSucceeded)
}

func TestSubmissionService_Process_NormalizesUnknowns(t *testing.T) {
	store := &memSubmissionStore{}
	rec := metrics.NewInMemory()
	ex := stubExtractor{data: &model.ExtractedData{UTR: "12345"}}

	got, err := NewSubmissionService(ex, store, time.Hour, rec, nil).Process(context.Background(), "u", pngImage)
	require.NoError(t, err)

	assert.Equal(t, model.UnknownValue, got.UTR)
	assert.Equal(t, model.UnknownValue, got.Date)
	assert.Equal(t, model.UnknownValue, got.Amount)
	assert.Equal(t, uint64(1), rec.Snapshot().UnknownUTRs)
}

func TestSubmissionService_Process_ExtractionFailureStoresNothing(t *testing.T) {
	store := &memSubmissionStore{}
	rec := metrics.NewInMemory()
	ex := stubExtractor{err: extractor.ErrModelUnavailable}

	_, err := NewSubmissionService(ex, store, 0, rec, nil).Process(context.Background(), "u", pngImage)

	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, extractor.ErrModelUnavailable)
	assert.Empty(t, store.subs)
	assert.Equal(t, uint64(1), rec.Snapshot().SubmissionsExtractionFailed)
}

func TestSubmissionService_Process_StoreFailure(t *testing.T) {
	store := &memSubmissionStore{err: errors.New("connection reset")}
	rec := metrics.NewInMemory()
	ex := stubExtractor{data: &model.ExtractedData{UTR: "412345678901"}}

	_, err := NewSubmissionService(ex, store, 0, rec, nil).Process(context.Background(), "u", pngImage)

	assert.ErrorIs(t, err, ErrStoreFailed)
	assert.Equal(t, uint64(1), rec.Snapshot().SubmissionsStoreFailed)
}
