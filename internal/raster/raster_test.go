// SPDX-License-Identifier: MIT

package raster

import (
	"testing"

	"github.com/brawer/rasterlite2go/internal/pixel"
)

func TestNewRejectsWrongBufferSize(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3}
	if _, err := New(4, 4, shape, make([]byte, 10)); err == nil {
		t.Fatalf("expected error for mismatched buffer size")
	}
	if _, err := New(4, 4, shape, nil); err != nil {
		t.Fatalf("New with nil buffer: %v", err)
	}
}

func TestSetGetPixelRGB(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3}
	r, err := New(3, 2, shape, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, _ := pixel.New(shape)
	p.SetSample(0, 10)
	p.SetSample(1, 20)
	p.SetSample(2, 30)
	if err := r.SetPixel(1, 1, p); err != nil {
		t.Fatalf("SetPixel: %v", err)
	}
	got, err := r.GetPixel(1, 1)
	if err != nil {
		t.Fatalf("GetPixel: %v", err)
	}
	if !got.Equal(p) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}

	// Neighbouring pixels must remain untouched (zero).
	zero, _ := r.GetPixel(0, 0)
	for i, s := range zero.Samples {
		if s != 0 {
			t.Errorf("neighbour pixel band %d = %d, want 0", i, s)
		}
	}
}

func TestSetGetPixelSubByte(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.Sample4Bit, Pixel: pixel.Palette, Bands: 1}
	r, err := New(5, 3, shape, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			p, _ := pixel.New(shape)
			p.SetSample(0, uint64((x+y)%16))
			if err := r.SetPixel(x, y, p); err != nil {
				t.Fatalf("SetPixel(%d,%d): %v", x, y, err)
			}
		}
	}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			got, err := r.GetPixel(x, y)
			if err != nil {
				t.Fatalf("GetPixel(%d,%d): %v", x, y, err)
			}
			want := uint64((x + y) % 16)
			if got.Samples[0] != want {
				t.Errorf("GetPixel(%d,%d) = %d, want %d", x, y, got.Samples[0], want)
			}
		}
	}
}

func TestRowBytesPacksSubByteSamples(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.Sample1Bit, Pixel: pixel.Monochrome, Bands: 1}
	r, err := New(9, 1, shape, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := r.RowBytes(), 2; got != want {
		t.Fatalf("RowBytes() = %d, want %d", got, want)
	}
}

func TestPrimeVoidTile(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Grayscale, Bands: 1}
	r, err := New(2, 2, shape, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.EnsureMask()
	noData, err := pixel.DefaultNoData(shape)
	if err != nil {
		t.Fatalf("DefaultNoData: %v", err)
	}
	if err := r.PrimeVoidTile(noData); err != nil {
		t.Fatalf("PrimeVoidTile: %v", err)
	}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			got, _ := r.GetPixel(x, y)
			if !got.Equal(noData) {
				t.Errorf("pixel (%d,%d) = %+v, want no-data %+v", x, y, got, noData)
			}
		}
	}
	for i, m := range r.Mask {
		if m != 1 {
			t.Errorf("mask[%d] = %d, want opaque after priming", i, m)
		}
	}
}

func TestPrimeVoidTileRejectsWrongShape(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Grayscale, Bands: 1}
	r, _ := New(2, 2, shape, nil)
	wrongNoData, _ := pixel.DefaultNoData(pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3})
	if err := r.PrimeVoidTile(wrongNoData); err == nil {
		t.Fatalf("expected error for mismatched no-data shape")
	}
}

func TestWithPaletteClones(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Palette, Bands: 1}
	r, _ := New(1, 1, shape, nil)
	pal, err := pixel.NewPalette([]pixel.RGB8{{1, 2, 3}}, 8)
	if err != nil {
		t.Fatalf("NewPalette: %v", err)
	}
	r.WithPalette(pal)
	pal.Entries[0] = pixel.RGB8{9, 9, 9}
	if r.Palette.Entries[0] == pal.Entries[0] {
		t.Fatalf("WithPalette must clone, not alias, the source palette")
	}
}
