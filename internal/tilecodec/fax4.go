// SPDX-License-Identifier: MIT

package tilecodec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

// fax4Encode compresses a 1-bit monochrome tile using a row-based
// run-length scheme in the spirit of CCITT Group 4's two-dimensional
// coding: each row is stored as its changing-element positions (the
// x-coordinates where the pixel colour flips from the row's previous
// colour), varint-encoded. No third-party Group 4 implementation was
// found anywhere in the retrieval pack, so this family is hand-rolled
// (see DESIGN.md).
func fax4Encode(r *raster.Raster) ([]byte, error) {
	if r.Shape.Pixel != pixel.Monochrome || r.Shape.Sample != pixel.Sample1Bit {
		return nil, fmt.Errorf("%w: fax4 requires 1-bit monochrome", ErrIncompatibleCompression)
	}

	var buf bytes.Buffer
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], uint32(r.Width))
	binary.BigEndian.PutUint32(header[4:8], uint32(r.Height))
	buf.Write(header)

	var varint [binary.MaxVarintLen64]byte
	for y := 0; y < r.Height; y++ {
		changes := rowChangingElements(r, y)
		n := binary.PutUvarint(varint[:], uint64(len(changes)))
		buf.Write(varint[:n])
		prev := 0
		for _, c := range changes {
			n := binary.PutUvarint(varint[:], uint64(c-prev))
			buf.Write(varint[:n])
			prev = c
		}
	}
	return buf.Bytes(), nil
}

// rowChangingElements returns the x-positions in row y where the pixel
// value differs from the value at x-1 (with an implicit white pixel at
// x=-1, matching the Group 4 convention).
func rowChangingElements(r *raster.Raster, y int) []int {
	var changes []int
	prev := uint64(0)
	for x := 0; x < r.Width; x++ {
		p, err := r.GetPixel(x, y)
		if err != nil {
			break
		}
		if p.Samples[0] != prev {
			changes = append(changes, x)
			prev = p.Samples[0]
		}
	}
	return changes
}

func fax4Decode(data []byte, shape pixel.Shape, tileW, tileH int) (*raster.Raster, error) {
	if shape.Pixel != pixel.Monochrome || shape.Sample != pixel.Sample1Bit {
		return nil, fmt.Errorf("%w: fax4 requires 1-bit monochrome", ErrIncompatibleCompression)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("bad-pixel-blob: fax4 blob too short")
	}
	w := int(binary.BigEndian.Uint32(data[0:4]))
	h := int(binary.BigEndian.Uint32(data[4:8]))
	if w != tileW || h != tileH {
		return nil, fmt.Errorf("bad-pixel-blob: fax4 tile is %dx%d, want %dx%d", w, h, tileW, tileH)
	}

	r, err := raster.New(tileW, tileH, shape, nil)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewReader(data[8:])
	for y := 0; y < tileH; y++ {
		n, err := binary.ReadUvarint(buf)
		if err != nil {
			return nil, fmt.Errorf("bad-pixel-blob: fax4 row %d header: %w", y, err)
		}
		color := uint64(0)
		pos := 0
		for i := uint64(0); i < n; i++ {
			delta, err := binary.ReadUvarint(buf)
			if err != nil {
				return nil, fmt.Errorf("bad-pixel-blob: fax4 row %d change %d: %w", y, i, err)
			}
			next := pos + int(delta)
			if next > tileW {
				return nil, fmt.Errorf("bad-pixel-blob: fax4 row %d overruns tile width", y)
			}
			for x := pos; x < next; x++ {
				p, _ := pixel.New(shape)
				p.SetSample(0, color)
				if err := r.SetPixel(x, y, p); err != nil {
					return nil, err
				}
			}
			pos = next
			color ^= 1
		}
		for x := pos; x < tileW; x++ {
			p, _ := pixel.New(shape)
			p.SetSample(0, color)
			if err := r.SetPixel(x, y, p); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}
