package views

import (
	"slices"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// AddDrawSurf queues a surface for the main pass. Surfaces past the arena
// capacity are dropped.
func (v *View) AddDrawSurf(surface metadata.Surface, shader *metadata.Shader, fogIndex, entityNum int) bool {
	a := v.arena
	if len(a.DrawSurfs) == cap(a.DrawSurfs) {
		return false
	}
	a.DrawSurfs = append(a.DrawSurfs, metadata.DrawSurf{
		Sort:    metadata.ComposeSortKey(shader.SortedIndex, entityNum, fogIndex, false),
		Surface: surface,
		Lod:     metadata.SurfaceLod(surface, v.Or.ViewOrigin),
	})
	v.Counters.DrawSurfs++
	return true
}

// AddLitSurf appends a surface to the lit pass of dl. It reports false when
// the arena is full.
func (v *View) AddLitSurf(dl *metadata.Dlight, surface metadata.Surface, shader *metadata.Shader, fogIndex, entityNum int) bool {
	a := v.arena
	if len(a.LitSurfs) == cap(a.LitSurfs) {
		return false
	}
	a.LitSurfs = append(a.LitSurfs, metadata.LitSurf{
		Sort:    metadata.ComposeSortKey(shader.SortedIndex, entityNum, fogIndex, true),
		Surface: surface,
	})
	ls := &a.LitSurfs[len(a.LitSurfs)-1]
	if dl.Head == nil {
		dl.Head = ls
	} else {
		dl.Tail.Next = ls
	}
	dl.Tail = ls
	v.Counters.LitSurfs++
	return true
}

// SortDrawSurfs orders surfaces by sort key: shader sort class first, then
// entity, then fog. Equal keys keep submission order.
func SortDrawSurfs(surfs []metadata.DrawSurf) {
	slices.SortStableFunc(surfs, func(a, b metadata.DrawSurf) int {
		switch {
		case a.Sort < b.Sort:
			return -1
		case a.Sort > b.Sort:
			return 1
		}
		return 0
	})
}

// SortLitSurfs orders the lit surface list of dl by sort key and relinks it.
func SortLitSurfs(dl *metadata.Dlight) {
	var list []*metadata.LitSurf
	for ls := dl.Head; ls != nil; ls = ls.Next {
		list = append(list, ls)
	}
	if len(list) < 2 {
		return
	}
	slices.SortStableFunc(list, func(a, b *metadata.LitSurf) int {
		switch {
		case a.Sort < b.Sort:
			return -1
		case a.Sort > b.Sort:
			return 1
		}
		return 0
	})
	for i := 0; i < len(list)-1; i++ {
		list[i].Next = list[i+1]
	}
	list[len(list)-1].Next = nil
	dl.Head = list[0]
	dl.Tail = list[len(list)-1]
}

// Finish sorts the view's draw surfaces and every light's lit surfaces.
func (v *View) Finish() {
	SortDrawSurfs(v.DrawSurfs())
	for _, dl := range v.Dlights {
		SortLitSurfs(dl)
	}
}
