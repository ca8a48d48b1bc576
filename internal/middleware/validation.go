package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/utrscan/utrscan/internal/extractor"
)

// Upload limits.
const (
	// ImageFormField is the multipart field carrying the screenshot.
	ImageFormField = "image"

	// DefaultMaxUploadSize is the largest accepted image in bytes.
	DefaultMaxUploadSize int64 = 5 << 20

	// multipartOverhead allows for boundaries and part headers on top of
	// the file itself.
	multipartOverhead int64 = 64 << 10
)

// Upload validation errors.
var (
	ErrMissingImage     = errors.New("no image file provided")
	ErrImageTooLarge    = errors.New("image exceeds maximum upload size")
	ErrMalformedUpload  = errors.New("request is not a valid multipart form")
	ErrUnsupportedImage = extractor.ErrUnsupportedImage
)

// ReadImageUpload reads the "image" part of a multipart request and sniffs
// its format. Only JPEG, PNG, GIF and WebP are accepted; the declared
// content type is ignored.
func ReadImageUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (extractor.Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadSize
	}
	if r.ContentLength > maxBytes+multipartOverhead {
		return extractor.Image{}, ErrImageTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return extractor.Image{}, ErrImageTooLarge
		}
		return extractor.Image{}, fmt.Errorf("%w: %v", ErrMalformedUpload, err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(ImageFormField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return extractor.Image{}, ErrMissingImage
		}
		return extractor.Image{}, fmt.Errorf("%w: %v", ErrMalformedUpload, err)
	}
	defer file.Close()

	if header.Size > maxBytes {
		return extractor.Image{}, ErrImageTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return extractor.Image{}, fmt.Errorf("%w: %v", ErrMalformedUpload, err)
	}
	if int64(len(data)) > maxBytes {
		return extractor.Image{}, ErrImageTooLarge
	}
	if len(data) == 0 {
		return extractor.Image{}, ErrMissingImage
	}

	return extractor.DecodeImage(data)
}
