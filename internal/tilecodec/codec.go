// SPDX-License-Identifier: MIT

package tilecodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/ulikunitz/xz/lzma"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

// Encode compresses r under the given compression family and quality
// (0-100, only meaningful for JPEG/lossy-WebP). It returns the odd blob
// and, for lossy families, the even residual blob needed to recover the
// exact original pixels at scale 1.
func Encode(r *raster.Raster, compression Compression, quality int) (Blob, error) {
	if !compression.Permits(r.Shape) {
		return Blob{}, fmt.Errorf("%w: %s does not permit pixel shape %v", ErrIncompatibleCompression, compression, r.Shape)
	}

	switch compression {
	case None:
		return Blob{Odd: append([]byte(nil), r.Pixels...)}, nil
	case Deflate:
		odd, err := deflateCompress(r.Pixels)
		return Blob{Odd: odd}, err
	case LZMA:
		odd, err := lzmaCompress(r.Pixels)
		return Blob{Odd: odd}, err
	case CCITTFax4:
		odd, err := fax4Encode(r)
		return Blob{Odd: odd}, err
	case GIF:
		odd, err := gifEncode(r)
		return Blob{Odd: odd}, err
	case PNG:
		odd, err := pngEncode(r)
		return Blob{Odd: odd}, err
	case WebPLossless:
		odd, err := webpEncode(r, true, quality)
		return Blob{Odd: odd}, err
	case JPEG:
		odd, err := jpegEncode(r, quality)
		if err != nil {
			return Blob{}, err
		}
		return makeLossyBlob(r, odd, func(b []byte) (*raster.Raster, error) {
			return jpegDecodeToRaster(b, r.Shape, r.Width, r.Height)
		})
	case WebPLossy:
		odd, err := webpEncode(r, false, quality)
		if err != nil {
			return Blob{}, err
		}
		return makeLossyBlob(r, odd, func(b []byte) (*raster.Raster, error) {
			return webpDecodeToRaster(b, r.Shape, r.Width, r.Height)
		})
	default:
		return Blob{}, fmt.Errorf("%w: unknown compression %v", ErrIncompatibleCompression, compression)
	}
}

// makeLossyBlob decodes the just-encoded odd blob back to pixels and
// computes the even (residual) blob so that a scale-1 decode can
// reproduce the original bytes exactly.
func makeLossyBlob(original *raster.Raster, odd []byte, decodeOdd func([]byte) (*raster.Raster, error)) (Blob, error) {
	decoded, err := decodeOdd(odd)
	if err != nil {
		return Blob{}, fmt.Errorf("dbms-insert: round-trip decode of newly-encoded tile failed: %w", err)
	}
	even, err := encodeResidual(original.Pixels, decoded.Pixels)
	if err != nil {
		return Blob{}, err
	}
	return Blob{Odd: odd, Even: even}, nil
}

// Decode reconstructs a raster from a tile blob at the requested scale.
// shape and tileW/tileH are the coverage's nominal shape and full tile
// dimensions; at scale>1 the returned raster may carry a *promoted*
// shape (monochrome -> grayscale, small-sub-byte palette -> RGB) per the
// decode-time promotion rule.
func Decode(blob Blob, compression Compression, shape pixel.Shape, tileW, tileH int, scale Scale, palette *pixel.Palette) (*raster.Raster, error) {
	if !scale.Valid() {
		return nil, fmt.Errorf("invalid-argument: scale %d is not one of 1,2,4,8", scale)
	}

	var full *raster.Raster
	var err error
	switch compression {
	case None:
		full, err = raster.New(tileW, tileH, shape, append([]byte(nil), blob.Odd...))
	case Deflate:
		full, err = decodeRaw(blob.Odd, deflateDecompress, shape, tileW, tileH)
	case LZMA:
		full, err = decodeRaw(blob.Odd, lzmaDecompress, shape, tileW, tileH)
	case CCITTFax4:
		full, err = fax4Decode(blob.Odd, shape, tileW, tileH)
	case GIF:
		full, err = gifDecode(blob.Odd, shape, tileW, tileH, palette)
	case PNG:
		full, err = pngDecode(blob.Odd, shape, tileW, tileH, palette)
	case WebPLossless:
		full, err = webpDecodeToRaster(blob.Odd, shape, tileW, tileH)
	case JPEG:
		full, err = decodeLossy(blob, shape, tileW, tileH, scale, jpegDecodeToRaster)
	case WebPLossy:
		full, err = decodeLossy(blob, shape, tileW, tileH, scale, webpDecodeToRaster)
	default:
		return nil, fmt.Errorf("%w: unknown compression %v", ErrIncompatibleCompression, compression)
	}
	if err != nil {
		return nil, err
	}

	if scale == Scale1 {
		return full, nil
	}
	return downscale(full, int(scale))
}

func decodeLossy(blob Blob, shape pixel.Shape, tileW, tileH int, scale Scale, decodeOdd func([]byte, pixel.Shape, int, int) (*raster.Raster, error)) (*raster.Raster, error) {
	decoded, err := decodeOdd(blob.Odd, shape, tileW, tileH)
	if err != nil {
		return nil, err
	}
	if scale != Scale1 {
		// Scales > 1 ignore the residual entirely: block-averaging or
		// block-mode selection already discards the precision the
		// residual would restore.
		return decoded, nil
	}
	if len(blob.Even) == 0 {
		return nil, fmt.Errorf("bad-pixel-blob: scale-1 decode of a lossy tile requires the even blob")
	}
	exact, err := applyResidual(decoded.Pixels, blob.Even)
	if err != nil {
		return nil, err
	}
	decoded.Pixels = exact
	return decoded, nil
}

func decodeRaw(data []byte, decompress func([]byte) ([]byte, error), shape pixel.Shape, w, h int) (*raster.Raster, error) {
	pixels, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("bad-pixel-blob: %w", err)
	}
	return raster.New(w, h, shape, pixels)
}

func deflateCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deflateDecompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}

func lzmaCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lzmaDecompress(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
