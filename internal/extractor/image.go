package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrUnsupportedImage is returned for uploads that are not a decodable
// JPEG, PNG, GIF or WebP.
var ErrUnsupportedImage = errors.New("unsupported image format")

// MaxImagePixels caps decoded dimensions to keep OCR memory bounded.
const MaxImagePixels = 40_000_000

var mimeByFormat = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// DecodeImage sniffs data by decoding its header and returns it with the
// matching MIME type. The client-declared content type is ignored.
func DecodeImage(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmptyImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	mime, ok := mimeByFormat[format]
	if !ok {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxImagePixels {
		return Image{}, fmt.Errorf("%w: dimensions %dx%d", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	return Image{Data: data, MIMEType: mime}, nil
}
