package renderer

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlipRows(t *testing.T) {
	// 1x3 image, one pixel per row
	pixels := []byte{
		1, 1, 1, 1,
		2, 2, 2, 2,
		3, 3, 3, 3,
	}
	FlipRows(pixels, 1, 3)
	assert.Equal(t, []byte{
		3, 3, 3, 3,
		2, 2, 2, 2,
		1, 1, 1, 1,
	}, pixels)
}

func TestScreenshotImage(t *testing.T) {
	// bottom row first, as read back from the device
	pixels := []byte{
		10, 20, 30, 0, 11, 21, 31, 0,
		40, 50, 60, 0, 41, 51, 61, 0,
	}
	img, err := ScreenshotImage(pixels, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	top := img.NRGBAAt(0, 0)
	assert.Equal(t, [4]uint8{40, 50, 60, 255}, [4]uint8{top.R, top.G, top.B, top.A})
	bottom := img.NRGBAAt(1, 1)
	assert.Equal(t, [4]uint8{11, 21, 31, 255}, [4]uint8{bottom.R, bottom.G, bottom.B, bottom.A})

	_, err = ScreenshotImage(pixels[:8], 2, 2)
	assert.Error(t, err)
}

func TestEncodeImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))

	tests := []struct {
		format string
		magic  []byte
	}{
		{"png", []byte("\x89PNG")},
		{"bmp", []byte("BM")},
		{"tiff", []byte("II*\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeImage(&buf, img, tt.format))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), tt.magic))
		})
	}

	assert.Error(t, EncodeImage(&bytes.Buffer{}, img, "gif"))
}
