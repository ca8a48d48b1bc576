// Package extractor turns a payment screenshot into structured transaction
// fields. Raw text comes from a TextReader, a generative Model shapes it into
// JSON, and local heuristics clean up the result.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utrscan/utrscan/internal/model"
)

// DefaultAmountThreshold is the amount above which the model is asked to
// double-check the magnitude it reported.
const DefaultAmountThreshold = 100000

var (
	// ErrModelUnavailable wraps any failure talking to the model or reader.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrTesseractUnavailable is returned when local OCR was not compiled in.
	ErrTesseractUnavailable = errors.New("tesseract support not compiled in; rebuild with -tags tesseract")
	// ErrEmptyImage is returned when no image bytes were supplied.
	ErrEmptyImage = errors.New("empty image")
)

// Image is an uploaded picture with its sniffed MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// Model sends a text prompt to a generative model and returns its reply.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextReader returns the visible text of an image.
type TextReader interface {
	ReadText(ctx context.Context, img Image) (string, error)
}

// Extractor runs the extraction pipeline. It is safe for concurrent use when
// its Model and TextReader are.
type Extractor struct {
	reader    TextReader
	model     Model
	threshold float64
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithAmountThreshold sets the verification threshold.
func WithAmountThreshold(v float64) Option {
	return func(e *Extractor) {
		if v > 0 {
			e.threshold = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor.
func New(reader TextReader, m Model, opts ...Option) *Extractor {
	e := &Extractor{
		reader:    reader,
		model:     m,
		threshold: DefaultAmountThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads img and returns normalized transaction fields. Fields that
// cannot be determined are set to model.UnknownValue.
func (e *Extractor) Extract(ctx context.Context, img Image) (*model.ExtractedData, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}

	rawText, err := e.reader.ReadText(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: read text: %v", ErrModelUnavailable, err)
	}
	rawText = strings.TrimSpace(rawText)

	data := &model.ExtractedData{}
	if rawText != "" {
		reply, err := e.model.Generate(ctx, structurePrompt(rawText))
		if err != nil {
			return nil, fmt.Errorf("%w: structure text: %v", ErrModelUnavailable, err)
		}

		parsed, err := parseModelReply(reply)
		if err != nil {
			// Unparseable replies keep going so the UTR scan can still help.
			e.logger.Warn("model reply was not valid JSON", "error", err)
		} else {
			data = parsed
		}

		if amount, ok := parseAmount(data.Amount); ok && amount > e.threshold {
			verified, err := e.verifyAmount(ctx, data.Amount, rawText)
			if err != nil {
				return nil, err
			}
			data.Amount = verified
		}
	}

	data.UTR = chooseUTR(data.UTR, rawText)
	data.Normalize()
	return data, nil
}

// verifyAmount asks the model to confirm a large amount against the raw text.
func (e *Extractor) verifyAmount(ctx context.Context, amount, rawText string) (string, error) {
	reply, err := e.model.Generate(ctx, verifyAmountPrompt(amount, rawText))
	if err != nil {
		return "", fmt.Errorf("%w: verify amount: %v", ErrModelUnavailable, err)
	}

	verdict := interpretVerification(amount, reply)
	if verdict != amount {
		e.logger.Info("amount corrected by verification", "reported", amount, "verified", verdict)
	}
	return verdict, nil
}
