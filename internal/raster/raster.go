// SPDX-License-Identifier: MIT

// Package raster implements the in-memory raster buffer: a width/height
// grid of pixels sharing one shape, plus an optional transparency mask
// and an optional palette. It also implements tile priming, used to pad
// partial tiles on a section's boundary before the actual source pixels
// are written in.
package raster

import (
	"fmt"

	"github.com/brawer/rasterlite2go/internal/pixel"
)

// Raster is a row-major, tightly-packed pixel buffer.
type Raster struct {
	Width, Height int
	Shape         pixel.Shape
	Pixels        []byte // row-major, packed per Shape.Sample.BitWidth()
	Mask          []byte // optional, one byte per pixel: 0 = transparent
	Palette       *pixel.Palette
}

// rowBytes returns the number of bytes one pixel row occupies on disk,
// rounding sub-byte rows up to a whole number of bytes; samples are
// packed MSB-first within each byte.
func rowBytes(width, bands int, sample pixel.SampleType) int {
	bits := width * bands * sample.BitWidth()
	return (bits + 7) / 8
}

// New allocates a raster buffer, taking ownership of `pixels` (the
// caller must not retain a mutable reference to it afterwards). `pixels`
// may be nil, in which case a correctly-sized zeroed buffer is allocated.
func New(width, height int, shape pixel.Shape, pixels []byte) (*Raster, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid-argument: %w", err)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid-argument: width/height must be positive, got %dx%d", width, height)
	}
	if shape.Pixel == pixel.Palette && shape.Sample.SubByte() == false && shape.Sample != pixel.SampleUint8 {
		return nil, fmt.Errorf("invalid-argument: palette pixels require 1/2/4/8-bit samples, got %s", shape.Sample)
	}

	want := rowBytes(width, shape.Bands, shape.Sample) * height
	if pixels == nil {
		pixels = make([]byte, want)
	} else if len(pixels) != want {
		return nil, fmt.Errorf("invalid-argument: pixel buffer has %d bytes, want %d for %dx%d %s", len(pixels), want, width, height, shape.Sample)
	}

	return &Raster{Width: width, Height: height, Shape: shape, Pixels: pixels}, nil
}

// RowBytes returns how many bytes one row of this raster occupies.
func (r *Raster) RowBytes() int {
	return rowBytes(r.Width, r.Shape.Bands, r.Shape.Sample)
}

// EnsureMask allocates the transparency mask (all-opaque) if not present.
func (r *Raster) EnsureMask() {
	if r.Mask == nil {
		r.Mask = make([]byte, r.Width*r.Height)
		for i := range r.Mask {
			r.Mask[i] = 1
		}
	}
}

// ClonePalette returns a deep copy of the raster's palette, or nil.
func (r *Raster) ClonePalette() *pixel.Palette {
	return r.Palette.Clone()
}

// WithPalette attaches a cloned copy of p as the raster's palette.
func (r *Raster) WithPalette(p *pixel.Palette) {
	r.Palette = p.Clone()
}

// PrimeVoidTile fills the whole buffer uniformly with noData, and, if a
// mask exists, sets every mask byte to opaque. This must be called
// before writing a tile that will not fully cover tile_width x
// tile_height.
func (r *Raster) PrimeVoidTile(noData *pixel.Pixel) error {
	if noData.Shape != r.Shape {
		return fmt.Errorf("invalid-argument: no-data pixel shape %v does not match raster shape %v", noData.Shape, r.Shape)
	}
	if r.Shape.Pixel == pixel.Palette {
		return r.primeVoidTilePalette(noData)
	}
	return r.primeUniform(noData)
}

// primeVoidTilePalette is the palette-aware variant of PrimeVoidTile: it
// respects the palette's index semantics (the no-data pixel's sample is
// itself the palette index to prime with).
func (r *Raster) primeVoidTilePalette(noData *pixel.Pixel) error {
	return r.primeUniform(noData)
}

func (r *Raster) primeUniform(p *pixel.Pixel) error {
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if err := r.SetPixel(x, y, p); err != nil {
				return err
			}
		}
	}
	if r.Mask != nil {
		for i := range r.Mask {
			r.Mask[i] = 1
		}
	}
	return nil
}

// GetPixel reads the pixel at (x, y) into a new pixel.Pixel.
func (r *Raster) GetPixel(x, y int) (*pixel.Pixel, error) {
	if x < 0 || x >= r.Width || y < 0 || y >= r.Height {
		return nil, fmt.Errorf("invalid-range: (%d,%d) out of %dx%d", x, y, r.Width, r.Height)
	}
	p, err := pixel.New(r.Shape)
	if err != nil {
		return nil, err
	}
	for b := 0; b < r.Shape.Bands; b++ {
		v, err := r.readSample(x, y, b)
		if err != nil {
			return nil, err
		}
		p.Samples[b] = v
	}
	if r.Mask != nil {
		p.Transparent = r.Mask[y*r.Width+x] == 0
	}
	return p, nil
}

// SetPixel writes p into the raster at (x, y).
func (r *Raster) SetPixel(x, y int, p *pixel.Pixel) error {
	if x < 0 || x >= r.Width || y < 0 || y >= r.Height {
		return fmt.Errorf("invalid-range: (%d,%d) out of %dx%d", x, y, r.Width, r.Height)
	}
	if p.Shape != r.Shape {
		return fmt.Errorf("invalid-argument: pixel shape %v does not match raster shape %v", p.Shape, r.Shape)
	}
	for b := 0; b < r.Shape.Bands; b++ {
		if err := r.writeSample(x, y, b, p.Samples[b]); err != nil {
			return err
		}
	}
	if r.Mask != nil {
		if p.Transparent {
			r.Mask[y*r.Width+x] = 0
		} else {
			r.Mask[y*r.Width+x] = 1
		}
	}
	return nil
}

func (r *Raster) bitOffset(x, y, band int) int {
	bandsBits := r.Shape.Bands * r.Shape.Sample.BitWidth()
	return y*r.RowBytes()*8 + x*bandsBits + band*r.Shape.Sample.BitWidth()
}

func (r *Raster) readSample(x, y, band int) (uint64, error) {
	width := r.Shape.Sample.BitWidth()
	if r.Shape.Sample.SubByte() {
		bit := r.bitOffset(x, y, band)
		byteIdx := bit / 8
		shift := 8 - width - (bit % 8)
		mask := byte(1<<width) - 1
		return uint64((r.Pixels[byteIdx] >> shift) & mask), nil
	}

	byteIdx := r.bitOffset(x, y, band) / 8
	switch r.Shape.Sample {
	case pixel.SampleInt8, pixel.SampleUint8:
		return uint64(r.Pixels[byteIdx]), nil
	case pixel.SampleInt16, pixel.SampleUint16:
		return uint64(r.Pixels[byteIdx])<<8 | uint64(r.Pixels[byteIdx+1]), nil
	case pixel.SampleInt32, pixel.SampleUint32, pixel.SampleFloat32:
		var v uint64
		for i := 0; i < 4; i++ {
			v = v<<8 | uint64(r.Pixels[byteIdx+i])
		}
		return v, nil
	case pixel.SampleFloat64:
		var v uint64
		for i := 0; i < 8; i++ {
			v = v<<8 | uint64(r.Pixels[byteIdx+i])
		}
		return v, nil
	default:
		return 0, fmt.Errorf("invalid-argument: unsupported sample type %s", r.Shape.Sample)
	}
}

func (r *Raster) writeSample(x, y, band int, value uint64) error {
	width := r.Shape.Sample.BitWidth()
	if r.Shape.Sample.SubByte() {
		bit := r.bitOffset(x, y, band)
		byteIdx := bit / 8
		shift := 8 - width - (bit % 8)
		mask := byte(1<<width) - 1
		r.Pixels[byteIdx] = (r.Pixels[byteIdx] &^ (mask << shift)) | (byte(value)&mask)<<shift
		return nil
	}

	byteIdx := r.bitOffset(x, y, band) / 8
	switch r.Shape.Sample {
	case pixel.SampleInt8, pixel.SampleUint8:
		r.Pixels[byteIdx] = byte(value)
	case pixel.SampleInt16, pixel.SampleUint16:
		r.Pixels[byteIdx] = byte(value >> 8)
		r.Pixels[byteIdx+1] = byte(value)
	case pixel.SampleInt32, pixel.SampleUint32, pixel.SampleFloat32:
		for i := 0; i < 4; i++ {
			r.Pixels[byteIdx+i] = byte(value >> uint(8*(3-i)))
		}
	case pixel.SampleFloat64:
		for i := 0; i < 8; i++ {
			r.Pixels[byteIdx+i] = byte(value >> uint(8*(7-i)))
		}
	default:
		return fmt.Errorf("invalid-argument: unsupported sample type %s", r.Shape.Sample)
	}
	return nil
}
