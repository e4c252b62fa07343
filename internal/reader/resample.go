// SPDX-License-Identifier: MIT

package reader

import (
	"fmt"
	"math"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

// Kernel selects the interpolation Resize uses to produce its output
// buffer. Read never resizes on its own past the pyramid level and
// scale its resolution plan already picked; Resize is the second
// primitive the caller reaches for when it wants a size the plan
// doesn't give it directly (e.g. fitting a window into an arbitrary
// thumbnail size).
type Kernel int

const (
	Nearest Kernel = iota
	Bilinear
)

// Resize reinterpolates src into a new width x height raster. Bilinear
// only applies to continuous sample types; discrete pixel types
// (palette, monochrome, and any sub-byte sample) always fall back to
// nearest-neighbour, the same rule the tile codec's own block rescaler
// uses to avoid inventing palette indices that don't exist.
func Resize(src *raster.Raster, width, height int, kernel Kernel) (*raster.Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid-argument: resize target must be positive, got %dx%d", width, height)
	}
	out, err := raster.New(width, height, src.Shape, nil)
	if err != nil {
		return nil, err
	}
	if src.Palette != nil {
		out.WithPalette(src.Palette)
	}
	if src.Mask != nil {
		out.EnsureMask()
	}

	discrete := src.Shape.Pixel == pixel.Palette || src.Shape.Pixel == pixel.Monochrome || src.Shape.Sample.SubByte()
	xScale := float64(src.Width) / float64(width)
	yScale := float64(src.Height) / float64(height)

	for y := 0; y < height; y++ {
		sy := (float64(y)+0.5)*yScale - 0.5
		for x := 0; x < width; x++ {
			sx := (float64(x)+0.5)*xScale - 0.5

			var p *pixel.Pixel
			var err error
			if kernel == Bilinear && !discrete {
				p, err = bilinearSample(src, sx, sy)
			} else {
				p, err = nearestSample(src, sx, sy)
			}
			if err != nil {
				return nil, err
			}
			if err := out.SetPixel(x, y, p); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func clampIndex(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func nearestSample(src *raster.Raster, sx, sy float64) (*pixel.Pixel, error) {
	x := clampIndex(int(math.Round(sx)), src.Width-1)
	y := clampIndex(int(math.Round(sy)), src.Height-1)
	return src.GetPixel(x, y)
}

// bilinearSample blends the four pixels surrounding (sx, sy). The
// result is transparent only if all four are; the interpolated value
// always mixes all four samples, transparent ones included, the same
// rule the tile codec's averageBlock applies to a block.
func bilinearSample(src *raster.Raster, sx, sy float64) (*pixel.Pixel, error) {
	x0 := clampIndex(int(math.Floor(sx)), src.Width-1)
	y0 := clampIndex(int(math.Floor(sy)), src.Height-1)
	x1 := clampIndex(x0+1, src.Width-1)
	y1 := clampIndex(y0+1, src.Height-1)
	fx := sx - float64(x0)
	fy := sy - float64(y0)
	if fx < 0 {
		fx = 0
	}
	if fy < 0 {
		fy = 0
	}

	p00, err := src.GetPixel(x0, y0)
	if err != nil {
		return nil, err
	}
	p10, err := src.GetPixel(x1, y0)
	if err != nil {
		return nil, err
	}
	p01, err := src.GetPixel(x0, y1)
	if err != nil {
		return nil, err
	}
	p11, err := src.GetPixel(x1, y1)
	if err != nil {
		return nil, err
	}

	out, err := pixel.New(src.Shape)
	if err != nil {
		return nil, err
	}
	for b := 0; b < src.Shape.Bands; b++ {
		v00 := floatFromSample(src.Shape.Sample, p00.Samples[b])
		v10 := floatFromSample(src.Shape.Sample, p10.Samples[b])
		v01 := floatFromSample(src.Shape.Sample, p01.Samples[b])
		v11 := floatFromSample(src.Shape.Sample, p11.Samples[b])
		top := v00*(1-fx) + v10*fx
		bottom := v01*(1-fx) + v11*fx
		v := top*(1-fy) + bottom*fy
		if err := out.SetSample(b, sampleFromFloat(src.Shape.Sample, v)); err != nil {
			return nil, err
		}
	}
	out.SetTransparent(p00.IsTransparent() && p10.IsTransparent() && p01.IsTransparent() && p11.IsTransparent())
	return out, nil
}

// floatFromSample and sampleFromFloat interpret a raw sample bit
// pattern as a signed/floating value and back, the same conversion
// table internal/stats uses internally to compute per-band statistics
// over non-float sample types.
func floatFromSample(s pixel.SampleType, v uint64) float64 {
	switch s {
	case pixel.SampleInt8:
		return float64(int8(v))
	case pixel.SampleInt16:
		return float64(int16(v))
	case pixel.SampleInt32:
		return float64(int32(v))
	case pixel.SampleFloat32:
		return float64(math.Float32frombits(uint32(v)))
	case pixel.SampleFloat64:
		return math.Float64frombits(v)
	default:
		return float64(v)
	}
}

func sampleFromFloat(s pixel.SampleType, f float64) uint64 {
	switch s {
	case pixel.SampleInt8:
		return uint64(uint8(int8(math.Round(f))))
	case pixel.SampleInt16:
		return uint64(uint16(int16(math.Round(f))))
	case pixel.SampleInt32:
		return uint64(uint32(int32(math.Round(f))))
	case pixel.SampleFloat32:
		return uint64(math.Float32bits(float32(f)))
	case pixel.SampleFloat64:
		return math.Float64bits(f)
	default:
		v := math.Round(f)
		if v < 0 {
			v = 0
		}
		if max := s.MaxValue(); max != 0 && v > float64(max) {
			v = float64(max)
		}
		return uint64(v)
	}
}
