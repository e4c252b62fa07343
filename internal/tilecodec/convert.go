// SPDX-License-Identifier: MIT

package tilecodec

import (
	"fmt"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

// Convert reprojects src into the given target shape, for the limited
// set of conversions the import pipeline is allowed to perform when a
// source file's native pixel shape differs from the coverage's:
// RGB<->grayscale, palette->RGB or grayscale, monochrome->grayscale.
func Convert(src *raster.Raster, target pixel.Shape) (*raster.Raster, error) {
	if src.Shape == target {
		return src, nil
	}

	out, err := raster.New(src.Width, src.Height, target, nil)
	if err != nil {
		return nil, err
	}
	if src.Mask != nil {
		out.EnsureMask()
	}

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			sp, err := src.GetPixel(x, y)
			if err != nil {
				return nil, err
			}
			dp, err := convertPixel(sp, src.Shape, src.Palette, target)
			if err != nil {
				return nil, err
			}
			if err := out.SetPixel(x, y, dp); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func convertPixel(sp *pixel.Pixel, srcShape pixel.Shape, srcPalette *pixel.Palette, target pixel.Shape) (*pixel.Pixel, error) {
	dp, err := pixel.New(target)
	if err != nil {
		return nil, err
	}
	dp.SetTransparent(sp.IsTransparent())

	switch {
	case srcShape.Pixel == pixel.RGB && target.Pixel == pixel.Grayscale:
		dp.SetSample(0, grayFromRGB(sp.Samples[0], sp.Samples[1], sp.Samples[2]))
		return dp, nil

	case srcShape.Pixel == pixel.Grayscale && target.Pixel == pixel.RGB:
		for b := 0; b < 3; b++ {
			dp.SetSample(b, sp.Samples[0])
		}
		return dp, nil

	case srcShape.Pixel == pixel.Monochrome && target.Pixel == pixel.Grayscale:
		if sp.Samples[0] == 0 {
			dp.SetSample(0, uint64(target.Sample.MaxValue()))
		}
		return dp, nil

	case srcShape.Pixel == pixel.Palette && (target.Pixel == pixel.RGB || target.Pixel == pixel.Grayscale):
		if srcPalette == nil {
			return nil, fmt.Errorf("invalid-argument: palette conversion requires a source palette")
		}
		rgb, ok := srcPalette.Lookup(int(sp.Samples[0]))
		if !ok {
			return nil, fmt.Errorf("invalid-range: palette index %d out of range", sp.Samples[0])
		}
		dp.SetTransparent(dp.IsTransparent() || srcPalette.IsIndexTransparent(int(sp.Samples[0])))
		if target.Pixel == pixel.RGB {
			dp.SetSample(0, uint64(rgb.R))
			dp.SetSample(1, uint64(rgb.G))
			dp.SetSample(2, uint64(rgb.B))
		} else {
			dp.SetSample(0, grayFromRGB(uint64(rgb.R), uint64(rgb.G), uint64(rgb.B)))
		}
		return dp, nil

	default:
		return nil, fmt.Errorf("coverage-mismatch: no permitted conversion from %s to %s", srcShape.Pixel, target.Pixel)
	}
}

// grayFromRGB applies the channel-average convention for colour to
// grayscale conversion.
func grayFromRGB(r, g, b uint64) uint64 {
	return (r + g + b) / 3
}
