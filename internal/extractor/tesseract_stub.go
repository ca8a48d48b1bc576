//go:build !tesseract

package extractor

import "context"

// TesseractAvailable reports whether the binary was built with local OCR.
const TesseractAvailable = false

// Tesseract is unavailable in this build.
type Tesseract struct{}

// NewTesseract always fails in builds without the tesseract tag.
func NewTesseract(...string) (*Tesseract, error) {
	return nil, ErrTesseractUnavailable
}

// ReadText always fails in builds without the tesseract tag.
func (*Tesseract) ReadText(context.Context, Image) (string, error) {
	return "", ErrTesseractUnavailable
}
