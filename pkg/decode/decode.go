// Package decode turns encoded surface maps into asset.Surface values.
//
// PNG, JPEG and GIF come from the standard library; WebP, BMP and TIFF from
// golang.org/x/image. Dimensions are checked before the pixel data is
// decoded so oversized images are rejected without allocating for them.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/worshipwaves/WDweb-sub002/pkg/asset"
)

// DefaultMaxPixels allows up to an 8192x8192 surface.
const DefaultMaxPixels = 8192 * 8192

var (
	// ErrTooLarge is returned when an image exceeds MaxPixels.
	ErrTooLarge = errors.New("image exceeds pixel limit")

	// ErrUnsupported is returned for data in no registered format.
	ErrUnsupported = errors.New("unsupported image format")

	// ErrEmpty is returned for zero-length input.
	ErrEmpty = errors.New("empty image data")
)

// Config tunes a Decoder.
type Config struct {
	// MaxPixels caps width*height. Zero means DefaultMaxPixels; negative disables the cap.
	MaxPixels int `mapstructure:"max_pixels" yaml:"max_pixels"`
}

// Decoder implements asset.Decoder for the registered image formats.
type Decoder struct {
	maxPixels int
}

// New creates a Decoder.
func New(config Config) *Decoder {
	limit := config.MaxPixels
	if limit == 0 {
		limit = DefaultMaxPixels
	}
	return &Decoder{maxPixels: limit}
}

// Decode decodes data into a Surface for key.
func (d *Decoder) Decode(key asset.Key, data []byte) (*asset.Surface, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupported
		}
		return nil, fmt.Errorf("read image header: %w", err)
	}
	if d.maxPixels > 0 && cfg.Width*cfg.Height > d.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}

	b := img.Bounds()
	return &asset.Surface{
		Key:    key,
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
		Bytes:  len(data),
		Image:  img,
	}, nil
}

var _ asset.Decoder = (*Decoder)(nil)
