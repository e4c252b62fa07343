// SPDX-License-Identifier: MIT

package tilecodec

import (
	"fmt"
	"image"
	"image/color"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

// RasterFromImage builds a raster of the given shape from a decoded
// stdlib image.Image; exported for the import pipeline, which decodes
// JPEG source files with image/jpeg before re-tiling them.
func RasterFromImage(img image.Image, shape pixel.Shape, palette *pixel.Palette) (*raster.Raster, error) {
	return fromImage(img, shape, palette)
}

// ToImage bridges a raster into the stdlib image.Image interface;
// exported for the export pipeline, which hands a read-back raster to
// golang.org/x/image/tiff the same way toImage hands one to the
// foreign tile codecs below.
func ToImage(r *raster.Raster) (image.Image, error) {
	return toImage(r)
}

// toImage bridges a raster into the stdlib image.Image interface, for
// handing off to the foreign codecs (PNG, GIF, JPEG, WebP) that operate
// on image.Image rather than on raw packed pixel bytes.
func toImage(r *raster.Raster) (image.Image, error) {
	switch r.Shape.Pixel {
	case pixel.Grayscale:
		if r.Shape.Sample == pixel.SampleUint16 {
			img := image.NewGray16(image.Rect(0, 0, r.Width, r.Height))
			for y := 0; y < r.Height; y++ {
				for x := 0; x < r.Width; x++ {
					p, err := r.GetPixel(x, y)
					if err != nil {
						return nil, err
					}
					img.SetGray16(x, y, color.Gray16{Y: uint16(p.Samples[0])})
				}
			}
			return img, nil
		}
		img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				p, err := r.GetPixel(x, y)
				if err != nil {
					return nil, err
				}
				img.SetGray(x, y, color.Gray{Y: uint8(p.Samples[0])})
			}
		}
		return img, nil
	case pixel.RGB:
		img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				p, err := r.GetPixel(x, y)
				if err != nil {
					return nil, err
				}
				a := uint8(255)
				if p.IsTransparent() {
					a = 0
				}
				img.SetRGBA(x, y, color.RGBA{R: uint8(p.Samples[0]), G: uint8(p.Samples[1]), B: uint8(p.Samples[2]), A: a})
			}
		}
		return img, nil
	case pixel.Monochrome:
		img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				p, err := r.GetPixel(x, y)
				if err != nil {
					return nil, err
				}
				v := uint8(0)
				if p.Samples[0] != 0 {
					v = 255
				}
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
		return img, nil
	case pixel.Palette:
		pal := make(color.Palette, len(r.Palette.Entries))
		for i, e := range r.Palette.Entries {
			a := uint8(255)
			if r.Palette.IsIndexTransparent(i) {
				a = 0
			}
			pal[i] = color.RGBA{R: e.R, G: e.G, B: e.B, A: a}
		}
		img := image.NewPaletted(image.Rect(0, 0, r.Width, r.Height), pal)
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				p, err := r.GetPixel(x, y)
				if err != nil {
					return nil, err
				}
				img.SetColorIndex(x, y, uint8(p.Samples[0]))
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: pixel type %s has no image.Image bridge", ErrIncompatibleCompression, r.Shape.Pixel)
	}
}

// fromImage is the inverse of toImage: it fills a raster of the given
// shape from a decoded image.Image.
func fromImage(img image.Image, shape pixel.Shape, palette *pixel.Palette) (*raster.Raster, error) {
	b := img.Bounds()
	r, err := raster.New(b.Dx(), b.Dy(), shape, nil)
	if err != nil {
		return nil, err
	}
	if palette != nil {
		r.WithPalette(palette)
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p, err := pixel.New(shape)
			if err != nil {
				return nil, err
			}
			ox, oy := x-b.Min.X, y-b.Min.Y
			switch shape.Pixel {
			case pixel.Grayscale:
				if shape.Sample == pixel.SampleUint16 {
					g16 := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
					p.SetSample(0, uint64(g16.Y))
				} else {
					g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
					p.SetSample(0, uint64(g.Y))
				}
			case pixel.RGB:
				rr, gg, bb, aa := img.At(x, y).RGBA()
				p.SetSample(0, uint64(rr>>8))
				p.SetSample(1, uint64(gg>>8))
				p.SetSample(2, uint64(bb>>8))
				p.SetTransparent(aa == 0)
			case pixel.Monochrome:
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				if g.Y >= 128 {
					p.SetSample(0, 1)
				}
			case pixel.Palette:
				if pi, ok := img.(*image.Paletted); ok {
					p.SetSample(0, uint64(pi.ColorIndexAt(x, y)))
				} else {
					return nil, fmt.Errorf("bad-pixel-blob: expected a paletted image")
				}
			default:
				return nil, fmt.Errorf("%w: pixel type %s has no image.Image bridge", ErrIncompatibleCompression, shape.Pixel)
			}
			if err := r.SetPixel(ox, oy, p); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}
