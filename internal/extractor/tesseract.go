//go:build tesseract

package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// TesseractAvailable reports whether the binary was built with local OCR.
const TesseractAvailable = true

// Tesseract is a TextReader backed by a local Tesseract install.
type Tesseract struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// NewTesseract constructs a Tesseract-backed reader. Languages default to English.
func NewTesseract(languages ...string) (*Tesseract, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{clientFactory: gosseract.NewClient, languages: languages}, nil
}

// ReadText preprocesses img and runs OCR on it.
func (t *Tesseract) ReadText(ctx context.Context, img Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prepared, err := preprocess(img.Data)
	if err != nil {
		return "", err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(prepared); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// preprocess converts to grayscale and upscales small screenshots, which
// noticeably improves digit recognition.
func preprocess(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var gray image.Image = imaging.Grayscale(src)
	if gray.Bounds().Dy() < 1200 {
		gray = imaging.Resize(gray, 0, 1600, imaging.Lanczos)
	}
	gray = imaging.Sharpen(gray, 0.8)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
