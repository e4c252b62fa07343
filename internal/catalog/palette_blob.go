// SPDX-License-Identifier: MIT

package catalog

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/brawer/rasterlite2go/internal/pixel"
)

const paletteBlobMagic = 0x6c // 'l'

// encodePaletteBlob serializes a palette for storage in the
// raster_coverages.palette column: magic, entry count, then RGB triples
// and transparency flags.
func encodePaletteBlob(p *pixel.Palette) []byte {
	var buf bytes.Buffer
	buf.WriteByte(paletteBlobMagic)
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(len(p.Entries)))
	buf.Write(u16[:])
	for i, e := range p.Entries {
		buf.WriteByte(e.R)
		buf.WriteByte(e.G)
		buf.WriteByte(e.B)
		if p.IsIndexTransparent(i) {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// decodePaletteBlob is the inverse of encodePaletteBlob.
func decodePaletteBlob(data []byte) (*pixel.Palette, error) {
	if len(data) < 3 || data[0] != paletteBlobMagic {
		return nil, fmt.Errorf("bad-pixel-blob: bad palette blob")
	}
	n := int(binary.BigEndian.Uint16(data[1:3]))
	want := 3 + n*4
	if len(data) != want {
		return nil, fmt.Errorf("bad-pixel-blob: palette blob has %d bytes, want %d", len(data), want)
	}
	entries := make([]pixel.RGB8, n)
	transparent := make([]bool, n)
	pos := 3
	for i := 0; i < n; i++ {
		entries[i] = pixel.RGB8{R: data[pos], G: data[pos+1], B: data[pos+2]}
		transparent[i] = data[pos+3] != 0
		pos += 4
	}
	return &pixel.Palette{Entries: entries, Transparent: transparent}, nil
}
