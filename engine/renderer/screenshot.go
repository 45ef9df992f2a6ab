package renderer

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// FlipRows converts between bottom-up device rows and top-down image rows.
// pixels is width*height RGBA and is modified in place.
func FlipRows(pixels []byte, width, height int) {
	stride := width * 4
	tmp := make([]byte, stride)
	for top, bottom := 0, height-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pixels[top*stride : (top+1)*stride]
		b := pixels[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// ScreenshotImage wraps read back pixels, bottom row first, in an image with
// the top row first. Alpha is forced opaque.
func ScreenshotImage(pixels []byte, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 || len(pixels) < width*height*4 {
		return nil, fmt.Errorf("screenshot needs %dx%d pixels, got %d bytes", width, height, len(pixels))
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels[:width*height*4])
	FlipRows(img.Pix, width, height)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img, nil
}

// EncodeImage writes im in format: png, bmp or tiff.
func EncodeImage(w io.Writer, im image.Image, format string) error {
	switch format {
	case "png", "":
		return png.Encode(w, im)
	case "bmp":
		return bmp.Encode(w, im)
	case "tiff", "tif":
		return tiff.Encode(w, im, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported screenshot format '%s'", format)
}

// SaveImage encodes im into the file at path, creating its directory.
func SaveImage(im image.Image, path, format string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := EncodeImage(bw, im, format); err != nil {
		return err
	}
	return bw.Flush()
}
