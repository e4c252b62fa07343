// SPDX-License-Identifier: MIT

// Package tilecodec implements the tile encode/decode layer: the closed
// set of compression families a coverage may use, the odd/even blob
// pair that lets lossy codecs be recovered losslessly at full
// resolution, and the pixel-format conversions the import pipeline
// needs when a source file's native shape differs from the coverage's.
package tilecodec

import (
	"errors"
	"fmt"

	"github.com/brawer/rasterlite2go/internal/pixel"
)

// Compression identifies one of the closed set of tile compression
// families a coverage may declare.
type Compression uint8

const (
	None Compression = iota
	Deflate
	LZMA
	CCITTFax4
	GIF
	PNG
	WebPLossless
	JPEG
	WebPLossy
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Deflate:
		return "deflate"
	case LZMA:
		return "lzma"
	case CCITTFax4:
		return "fax4"
	case GIF:
		return "gif"
	case PNG:
		return "png"
	case WebPLossless:
		return "webp"
	case JPEG:
		return "jpeg"
	case WebPLossy:
		return "webp-lossy"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression parses the keyword spelling String returns (as used
// by the CLI and by SQL-callable function arguments), case-sensitively.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none":
		return None, nil
	case "deflate":
		return Deflate, nil
	case "lzma":
		return LZMA, nil
	case "fax4":
		return CCITTFax4, nil
	case "gif":
		return GIF, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebPLossless, nil
	case "jpeg":
		return JPEG, nil
	case "webp-lossy":
		return WebPLossy, nil
	default:
		return 0, fmt.Errorf("invalid-argument: unknown compression keyword %q", s)
	}
}

// HasEvenBlob reports whether this compression family produces a
// residual (even) blob alongside the primary (odd) blob.
func (c Compression) HasEvenBlob() bool {
	return c == JPEG || c == WebPLossy
}

// Permits reports whether shape is an admissible pixel shape for this
// compression family.
func (c Compression) Permits(shape pixel.Shape) bool {
	switch c {
	case None, Deflate, LZMA:
		return true
	case CCITTFax4:
		return shape.Pixel == pixel.Monochrome && shape.Sample == pixel.Sample1Bit
	case GIF:
		return shape.Pixel == pixel.Palette && (shape.Sample == pixel.Sample1Bit || shape.Sample == pixel.Sample2Bit || shape.Sample == pixel.Sample4Bit || shape.Sample == pixel.SampleUint8)
	case PNG:
		switch shape.Pixel {
		case pixel.Monochrome:
			return shape.Sample == pixel.Sample1Bit
		case pixel.Palette:
			return shape.Sample == pixel.Sample1Bit || shape.Sample == pixel.Sample2Bit || shape.Sample == pixel.Sample4Bit || shape.Sample == pixel.SampleUint8
		case pixel.Grayscale:
			return shape.Sample == pixel.SampleUint8 || shape.Sample == pixel.SampleUint16
		case pixel.RGB:
			return shape.Sample == pixel.SampleUint8
		default:
			return false
		}
	case WebPLossless, WebPLossy:
		if shape.Pixel == pixel.Grayscale || shape.Pixel == pixel.RGB {
			return shape.Sample == pixel.SampleUint8
		}
		return false
	case JPEG:
		if shape.Pixel == pixel.Grayscale || shape.Pixel == pixel.RGB {
			return shape.Sample == pixel.SampleUint8
		}
		return false
	default:
		return false
	}
}

// Scale is a power-of-two reduction factor a decode may request.
type Scale int

const (
	Scale1 Scale = 1
	Scale2 Scale = 2
	Scale4 Scale = 4
	Scale8 Scale = 8
)

func (s Scale) Valid() bool {
	return s == Scale1 || s == Scale2 || s == Scale4 || s == Scale8
}

// Blob is the pair of byte strings persisted per tile: the primary
// (odd) encoding, and, for lossy codecs, the residual (even) blob that
// a scale-1 decode needs to reproduce the original pixels exactly.
type Blob struct {
	Odd  []byte
	Even []byte
}

// ErrIncompatibleCompression is returned, wrapped with more detail, when
// a raster's pixel shape is not permitted under a compression family.
var ErrIncompatibleCompression = errors.New("incompatible-compression")

// ErrBadBandSelection is returned when a band-subset projection selects
// a band index outside the source pixel's range.
var ErrBadBandSelection = errors.New("bad-band-selection")
