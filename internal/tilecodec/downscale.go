// SPDX-License-Identifier: MIT

package tilecodec

import (
	"fmt"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

// PromotedShape returns the pixel shape a raster of the given shape
// would carry after Rescale: monochrome promotes to 8-bit grayscale,
// and a sub-byte palette promotes to 8-bit RGB (via palette lookup),
// since neither can be losslessly block-averaged in its nominal shape.
// Every other shape is returned unchanged.
func PromotedShape(shape pixel.Shape) pixel.Shape {
	switch {
	case shape.Pixel == pixel.Monochrome:
		return pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Grayscale, Bands: 1}
	case shape.Pixel == pixel.Palette && shape.Sample.SubByte():
		return pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3}
	default:
		return shape
	}
}

// Rescale reduces full by the given integer factor the same way a
// decode-time scale request does: promoting monochrome/sub-byte-palette
// shapes first, then averaging (or, for discrete pixel types,
// mode-selecting) factor x factor pixel blocks.
func Rescale(full *raster.Raster, factor int) (*raster.Raster, error) {
	return downscale(full, factor)
}

// downscale reduces full by the given integer factor (2, 4 or 8),
// averaging factor x factor pixel blocks for continuous pixel types.
// Sub-byte monochrome and small palette shapes are promoted first
// (monochrome -> 8-bit grayscale, palette -> 8-bit RGB via lookup),
// since a scaled-down sub-byte tile can no longer be represented
// losslessly in its nominal sub-byte shape.
func downscale(full *raster.Raster, factor int) (*raster.Raster, error) {
	src, err := promoteForScale(full)
	if err != nil {
		return nil, err
	}
	return rescaleBlocks(src, factor)
}

// RescaleBlocks reduces r by factor, averaging (continuous types) or
// mode-selecting (discrete types) factor x factor pixel blocks, WITHOUT
// first promoting monochrome or sub-byte palette shapes. It is exported
// for the pyramid builder, which must keep every stored tile in the
// coverage's nominal shape (pyramid_level > 0 tiles are read like any
// other tile, at scale 1, so they cannot silently change shape the way
// a decode-time scale request is allowed to).
func RescaleBlocks(r *raster.Raster, factor int) (*raster.Raster, error) {
	return rescaleBlocks(r, factor)
}

func rescaleBlocks(src *raster.Raster, factor int) (*raster.Raster, error) {
	if src.Width%factor != 0 || src.Height%factor != 0 {
		return nil, fmt.Errorf("invalid-argument: tile dimensions %dx%d not divisible by scale %d", src.Width, src.Height, factor)
	}

	outW, outH := src.Width/factor, src.Height/factor
	out, err := raster.New(outW, outH, src.Shape, nil)
	if err != nil {
		return nil, err
	}
	if src.Mask != nil {
		out.EnsureMask()
	}

	continuous := src.Shape.Pixel != pixel.Palette && src.Shape.Pixel != pixel.Monochrome &&
		src.Shape.Sample != pixel.Sample1Bit && src.Shape.Sample != pixel.Sample2Bit && src.Shape.Sample != pixel.Sample4Bit
	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			var p *pixel.Pixel
			if continuous {
				p, err = averageBlock(src, ox*factor, oy*factor, factor)
			} else {
				p, err = modalBlock(src, ox*factor, oy*factor, factor)
			}
			if err != nil {
				return nil, err
			}
			if err := out.SetPixel(ox, oy, p); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func promoteForScale(r *raster.Raster) (*raster.Raster, error) {
	switch {
	case r.Shape.Pixel == pixel.Monochrome:
		return promoteMonochromeToGrayscale(r)
	case r.Shape.Pixel == pixel.Palette && r.Shape.Sample.SubByte():
		return promotePaletteToRGB(r)
	default:
		return r, nil
	}
}

func averageBlock(r *raster.Raster, x0, y0, size int) (*pixel.Pixel, error) {
	bands := r.Shape.Bands
	sums := make([]uint64, bands)
	opaque := 0
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			p, err := r.GetPixel(x0+dx, y0+dy)
			if err != nil {
				return nil, err
			}
			for b := 0; b < bands; b++ {
				sums[b] += p.Samples[b]
			}
			if !p.IsTransparent() {
				opaque++
			}
		}
	}
	out, err := pixel.New(r.Shape)
	if err != nil {
		return nil, err
	}
	n := uint64(size * size)
	for b := 0; b < bands; b++ {
		if err := out.SetSample(b, sums[b]/n); err != nil {
			return nil, err
		}
	}
	out.SetTransparent(opaque == 0)
	return out, nil
}

// modalBlock selects the most frequent sample value in a factor x
// factor block, used for discrete (palette, monochrome) pixel types
// where averaging would invent nonexistent colours.
func modalBlock(r *raster.Raster, x0, y0, size int) (*pixel.Pixel, error) {
	counts := map[uint64]int{}
	var transparentCount int
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			p, err := r.GetPixel(x0+dx, y0+dy)
			if err != nil {
				return nil, err
			}
			if p.IsTransparent() {
				transparentCount++
				continue
			}
			counts[p.Samples[0]]++
		}
	}
	out, err := pixel.New(r.Shape)
	if err != nil {
		return nil, err
	}
	if transparentCount == size*size {
		out.SetTransparent(true)
		return out, nil
	}
	var best uint64
	bestCount := -1
	for v, c := range counts {
		if c > bestCount {
			best, bestCount = v, c
		}
	}
	out.SetSample(0, best)
	return out, nil
}

func promoteMonochromeToGrayscale(r *raster.Raster) (*raster.Raster, error) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Grayscale, Bands: 1}
	out, err := raster.New(r.Width, r.Height, shape, nil)
	if err != nil {
		return nil, err
	}
	if r.Mask != nil {
		out.EnsureMask()
	}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			p, err := r.GetPixel(x, y)
			if err != nil {
				return nil, err
			}
			np, _ := pixel.New(shape)
			if p.Samples[0] == 0 {
				np.SetSample(0, 255)
			}
			np.SetTransparent(p.IsTransparent())
			if err := out.SetPixel(x, y, np); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func promotePaletteToRGB(r *raster.Raster) (*raster.Raster, error) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3}
	out, err := raster.New(r.Width, r.Height, shape, nil)
	if err != nil {
		return nil, err
	}
	if r.Mask != nil || r.Palette != nil {
		out.EnsureMask()
	}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			p, err := r.GetPixel(x, y)
			if err != nil {
				return nil, err
			}
			np, _ := pixel.New(shape)
			if r.Palette != nil {
				rgb, ok := r.Palette.Lookup(int(p.Samples[0]))
				if ok {
					np.SetSample(0, uint64(rgb.R))
					np.SetSample(1, uint64(rgb.G))
					np.SetSample(2, uint64(rgb.B))
				}
				np.SetTransparent(p.IsTransparent() || r.Palette.IsIndexTransparent(int(p.Samples[0])))
			}
			if err := out.SetPixel(x, y, np); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
