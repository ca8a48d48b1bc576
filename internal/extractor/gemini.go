package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

var errEmptyReply = errors.New("empty response from model")

// Gemini implements Model and TextReader on the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// GeminiOption adjusts the underlying genai client config.
type GeminiOption func(*genai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) GeminiOption {
	return func(cc *genai.ClientConfig) {
		cc.HTTPOptions.BaseURL = url
	}
}

// NewGemini creates a Gemini client authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, modelName string, timeout time.Duration, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{client: client, model: modelName, timeout: timeout}, nil
}

// Generate sends a text-only prompt. An empty reply is an error.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.generate(ctx, []*genai.Part{{Text: prompt}})
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errEmptyReply
	}
	return text, nil
}

// ReadText sends the image and asks for its visible text. A blank image
// yields "" with no error.
func (g *Gemini) ReadText(ctx context.Context, img Image) (string, error) {
	return g.generate(ctx, []*genai.Part{
		{Text: readTextPrompt},
		{
			InlineData: &genai.Blob{
				MIMEType: img.MIMEType,
				Data:     img.Data,
			},
		},
	})
}

func (g *Gemini) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: parts,
		},
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return strings.TrimSpace(resp.Text()), nil
}
