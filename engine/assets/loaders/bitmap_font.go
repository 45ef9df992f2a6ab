package loaders

import (
	"fmt"
	"os"
	"sort"
	"unsafe"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// BitmapFontLoader reads AngelCode BMFont descriptors. Page images are loaded
// separately through the texture system.
type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) Extensions() []string {
	return []string{".fnt"}
}

func (fl *BitmapFontLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("unable to find bitmap font '%s': %w", path, err)
	}

	rd, err := fl.importFNTFile(path)
	if err != nil {
		return nil, err
	}

	return &metadata.Resource{
		FullPath: path,
		Data:     rd,
		DataSize: uint64(unsafe.Sizeof(metadata.FontGlyph{})) * uint64(len(rd.Glyphs)),
	}, nil
}

func (fl *BitmapFontLoader) Unload(resource *metadata.Resource) error {
	if resource.Data != nil {
		data := resource.Data.(*metadata.BitmapFontResourceData)
		data.Glyphs = nil
		data.Pages = nil
		data.Kernings = nil
		resource.Data = nil
		resource.DataSize = 0
		resource.FullPath = ""
	}
	return nil
}

func (fl *BitmapFontLoader) importFNTFile(fntFileName string) (*metadata.BitmapFontResourceData, error) {
	font, err := bmfont.Load(fntFileName)
	if err != nil {
		return nil, err
	}
	desc := font.Descriptor

	outData := &metadata.BitmapFontResourceData{
		Face:       desc.Info.Face,
		Size:       uint32(desc.Info.Size),
		LineHeight: int32(desc.Common.LineHeight),
		Baseline:   int32(desc.Common.Base),
		AtlasSizeX: int32(desc.Common.ScaleW),
		AtlasSizeY: int32(desc.Common.ScaleH),
		Glyphs:     make([]*metadata.FontGlyph, 0, len(desc.Chars)),
		Kernings:   make([]*metadata.FontKerning, 0, len(desc.Kerning)),
		Pages:      make([]*metadata.BitmapFontPage, 0, len(desc.Pages)),
	}

	for _, p := range desc.Pages {
		outData.Pages = append(outData.Pages, &metadata.BitmapFontPage{
			ID:   int8(p.ID),
			File: p.File,
		})
	}
	sort.Slice(outData.Pages, func(i, j int) bool { return outData.Pages[i].ID < outData.Pages[j].ID })

	for _, g := range desc.Chars {
		outData.Glyphs = append(outData.Glyphs, &metadata.FontGlyph{
			Codepoint: rune(g.ID),
			X:         uint16(g.X),
			Y:         uint16(g.Y),
			Width:     uint16(g.Width),
			Height:    uint16(g.Height),
			XOffset:   int16(g.XOffset),
			YOffset:   int16(g.YOffset),
			XAdvance:  int16(g.XAdvance),
			PageID:    uint8(g.Page),
		})
	}
	sort.Slice(outData.Glyphs, func(i, j int) bool { return outData.Glyphs[i].Codepoint < outData.Glyphs[j].Codepoint })

	for p, k := range desc.Kerning {
		outData.Kernings = append(outData.Kernings, &metadata.FontKerning{
			Codepoint0: rune(p.First),
			Codepoint1: rune(p.Second),
			Amount:     int16(k.Amount),
		})
	}

	return outData, nil
}
