// SPDX-License-Identifier: MIT

package pixel

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// pixelBlobMagic tags the short serialized form used to persist a
// coverage's no-data pixel.
const pixelBlobMagic = 0x70 // 'p'

// sampleBytes returns how many bytes on the wire one sample of this type
// occupies in the pixel blob. Sub-byte types are stored as a full byte
// for simplicity; the tile codec packs them differently on disk since
// that applies to tile payloads, not this short blob.
func sampleBytes(s SampleType) int {
	switch s {
	case SampleInt16, SampleUint16:
		return 2
	case SampleInt32, SampleUint32, SampleFloat32:
		return 4
	case SampleFloat64:
		return 8
	default:
		return 1
	}
}

// ToBlob serializes the pixel into the tagged short form used to store a
// coverage's no-data value: magic, sample, pixel, bands, then
// bands*sample_bytes, then one transparency byte.
func (p *Pixel) ToBlob() []byte {
	sb := sampleBytes(p.Shape.Sample)
	buf := bytes.NewBuffer(make([]byte, 0, 4+sb*len(p.Samples)+1))
	buf.WriteByte(pixelBlobMagic)
	buf.WriteByte(byte(p.Shape.Sample))
	buf.WriteByte(byte(p.Shape.Pixel))
	buf.WriteByte(byte(p.Shape.Bands))
	for _, s := range p.Samples {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], s)
		buf.Write(tmp[:sb])
	}
	if p.Transparent {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// PeekShape reads the declared shape out of a pixel blob's header
// without validating the sample payload length, for introspection
// callers that only have the blob and not the shape they expect it to
// hold.
func PeekShape(data []byte) (Shape, error) {
	if len(data) < 4 {
		return Shape{}, fmt.Errorf("bad-pixel-blob: blob too short (%d bytes)", len(data))
	}
	if data[0] != pixelBlobMagic {
		return Shape{}, fmt.Errorf("bad-pixel-blob: bad magic 0x%02x", data[0])
	}
	return Shape{Sample: SampleType(data[1]), Pixel: PixelType(data[2]), Bands: int(data[3])}, nil
}

// FromBlob deserializes a pixel blob, checking that its declared shape
// matches `expect`. Any length, tag or range mismatch fails with
// bad-pixel-blob.
func FromBlob(data []byte, expect Shape) (*Pixel, error) {
	sb := sampleBytes(expect.Sample)
	wantLen := 4 + sb*expect.Bands + 1
	if len(data) != wantLen {
		return nil, fmt.Errorf("bad-pixel-blob: want %d bytes, got %d", wantLen, len(data))
	}
	if data[0] != pixelBlobMagic {
		return nil, fmt.Errorf("bad-pixel-blob: bad magic 0x%02x", data[0])
	}
	sample := SampleType(data[1])
	pixelType := PixelType(data[2])
	bands := int(data[3])
	if sample != expect.Sample || pixelType != expect.Pixel || bands != expect.Bands {
		return nil, fmt.Errorf("bad-pixel-blob: shape mismatch, want %v got (%s,%s,%d)", expect, sample, pixelType, bands)
	}

	p, err := New(expect)
	if err != nil {
		return nil, fmt.Errorf("bad-pixel-blob: %w", err)
	}
	pos := 4
	for i := 0; i < bands; i++ {
		var tmp [8]byte
		copy(tmp[:], data[pos:pos+sb])
		p.Samples[i] = binary.LittleEndian.Uint64(tmp[:])
		pos += sb
	}
	p.Transparent = data[pos] != 0
	return p, nil
}
