package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type ImageLoader struct{}

// Extensions lists the formats registered with the image package above.
func (il *ImageLoader) Extensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff"}
}

func (il *ImageLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	typedParams, ok := params.(*metadata.ImageResourceParams)
	if !ok || typedParams == nil {
		typedParams = &metadata.ImageResourceParams{}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image '%s': %w", path, err)
	}

	data := DecodeRGBA(img, typedParams.PicMip, typedParams.FlipY)
	return &metadata.Resource{
		FullPath: path,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}

// DecodeRGBA converts any image to tightly packed RGBA8, halving it picMip
// times first.
func DecodeRGBA(img image.Image, picMip int, flipY bool) *metadata.ImageResourceData {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for i := 0; i < picMip && (w > 1 || h > 1); i++ {
		w = max(w>>1, 1)
		h = max(h>>1, 1)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), img, b, draw.Src, nil)
	}

	pixels := rgba.Pix
	if flipY {
		stride := rgba.Stride
		row := make([]byte, stride)
		for y := 0; y < h/2; y++ {
			top := pixels[y*stride : (y+1)*stride]
			bottom := pixels[(h-1-y)*stride : (h-y)*stride]
			copy(row, top)
			copy(top, bottom)
			copy(bottom, row)
		}
	}

	transparent := false
	for i := 3; i < len(pixels); i += 4 {
		if pixels[i] != 255 {
			transparent = true
			break
		}
	}

	return &metadata.ImageResourceData{
		ChannelCount:    4,
		Width:           uint32(w),
		Height:          uint32(h),
		Pixels:          pixels,
		HasTransparency: transparent,
	}
}
