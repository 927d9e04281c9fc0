package decode

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	return img
}

func TestDecodeFormats(t *testing.T) {
	img := testImage(8, 4)

	encoders := map[string]func(*bytes.Buffer) error{
		"png":  func(b *bytes.Buffer) error { return png.Encode(b, img) },
		"bmp":  func(b *bytes.Buffer) error { return bmp.Encode(b, img) },
		"tiff": func(b *bytes.Buffer) error { return tiff.Encode(b, img, nil) },
	}

	d := New(Config{})
	for format, encode := range encoders {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(&buf))

			s, err := d.Decode("oak/diffuse", buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, format, s.Format)
			assert.Equal(t, 8, s.Width)
			assert.Equal(t, 4, s.Height)
			assert.Equal(t, buf.Len(), s.Bytes)
			assert.NotNil(t, s.Image)
		})
	}
}

func TestDecodeRejectsLargeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(10, 10)))

	_, err := New(Config{MaxPixels: 99}).Decode("big", buf.Bytes())
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = New(Config{MaxPixels: -1}).Decode("big", buf.Bytes())
	assert.NoError(t, err)
}

func TestDecodeErrors(t *testing.T) {
	d := New(Config{})

	_, err := d.Decode("empty", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = d.Decode("text", []byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupported)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(4, 4)))
	truncated := buf.Bytes()[:buf.Len()-10]
	_, err = d.Decode("truncated", truncated)
	assert.Error(t, err)
}
