// SPDX-License-Identifier: MIT

package pixel

import "fmt"

// RGB8 is one palette entry.
type RGB8 struct {
	R, G, B uint8
}

// PaletteKind classifies a palette's colours, used to decide whether a
// sub-byte palette coverage can be promoted to grayscale or RGB on
// decode.
type PaletteKind uint8

const (
	PaletteRGBKind PaletteKind = iota
	PaletteGrayscaleKind
)

// Palette is an ordered colour table referenced by palette-pixel samples.
type Palette struct {
	Entries []RGB8
	// Transparent marks, per entry, whether that palette index is
	// fully transparent. A nil slice means no entry is transparent.
	Transparent []bool
}

// NewPalette builds a palette, rejecting one longer than 2^sampleWidth
// entries.
func NewPalette(entries []RGB8, sampleWidth int) (*Palette, error) {
	maxLen := 1 << uint(sampleWidth)
	if len(entries) > maxLen {
		return nil, fmt.Errorf("invalid-argument: palette has %d entries, max %d for %d-bit samples", len(entries), maxLen, sampleWidth)
	}
	return &Palette{Entries: append([]RGB8(nil), entries...)}, nil
}

// Clone returns a deep copy of the palette, as used when a raster takes
// ownership of its palette.
func (p *Palette) Clone() *Palette {
	if p == nil {
		return nil
	}
	clone := &Palette{Entries: append([]RGB8(nil), p.Entries...)}
	if p.Transparent != nil {
		clone.Transparent = append([]bool(nil), p.Transparent...)
	}
	return clone
}

// IsIndexTransparent reports whether palette index i is marked transparent.
func (p *Palette) IsIndexTransparent(i int) bool {
	if p.Transparent == nil || i < 0 || i >= len(p.Transparent) {
		return false
	}
	return p.Transparent[i]
}

// MonochromeRecolorable reports whether every non-transparent entry
// shares one colour.
func (p *Palette) MonochromeRecolorable() bool {
	var first *RGB8
	for i, e := range p.Entries {
		if p.IsIndexTransparent(i) {
			continue
		}
		if first == nil {
			f := e
			first = &f
			continue
		}
		if e != *first {
			return false
		}
	}
	return true
}

// Kind reports whether the palette is effectively grayscale (every
// entry has R=G=B) or a full RGB palette.
func (p *Palette) Kind() PaletteKind {
	for _, e := range p.Entries {
		if e.R != e.G || e.G != e.B {
			return PaletteRGBKind
		}
	}
	return PaletteGrayscaleKind
}

// Lookup returns the colour for palette index i, and whether it exists.
func (p *Palette) Lookup(i int) (RGB8, bool) {
	if i < 0 || i >= len(p.Entries) {
		return RGB8{}, false
	}
	return p.Entries[i], true
}

// IsSubset reports whether every colour in `other`, transparent entries
// included, appears somewhere in p, mapping other's index space into p's (used by
// the import pipeline's palette compatibility check). It returns the
// remap table (other index -> p index) when it is a subset, or
// ok=false otherwise.
func (p *Palette) IsSubset(other *Palette) (remap []int, ok bool) {
	remap = make([]int, len(other.Entries))
	for i, e := range other.Entries {
		found := -1
		for j, pe := range p.Entries {
			if pe == e {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, false
		}
		remap[i] = found
	}
	return remap, true
}
