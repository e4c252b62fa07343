// SPDX-License-Identifier: MIT

package pixel

import (
	"fmt"
	"testing"
)

func ExampleShape_Validate() {
	shapes := []Shape{
		{Sample: SampleUint8, Pixel: Monochrome, Bands: 1},
		{Sample: SampleUint8, Pixel: RGB, Bands: 3},
		{Sample: SampleUint8, Pixel: RGB, Bands: 1},
		{Sample: Sample1Bit, Pixel: Grayscale, Bands: 1},
		{Sample: Sample4Bit, Pixel: Grayscale, Bands: 1},
	}
	for _, s := range shapes {
		fmt.Println(s.Validate() == nil)
	}
	// Output:
	// true
	// true
	// false
	// true
	// false
}

func TestDefaultNoData(t *testing.T) {
	tests := []struct {
		shape Shape
		want  uint64
	}{
		{Shape{Sample: SampleUint8, Pixel: Monochrome, Bands: 1}, 0},
		{Shape{Sample: SampleUint8, Pixel: Grayscale, Bands: 1}, 255},
		{Shape{Sample: SampleUint8, Pixel: RGB, Bands: 3}, 255},
		{Shape{Sample: SampleUint16, Pixel: RGB, Bands: 3}, 0},
		{Shape{Sample: SampleInt16, Pixel: DataGrid, Bands: 1}, 0},
	}
	for _, tc := range tests {
		p, err := DefaultNoData(tc.shape)
		if err != nil {
			t.Fatalf("DefaultNoData(%v): %v", tc.shape, err)
		}
		for i, s := range p.Samples {
			if s != tc.want {
				t.Errorf("DefaultNoData(%v).Samples[%d] = %d, want %d", tc.shape, i, s, tc.want)
			}
		}
	}
}

func TestPixelEqual(t *testing.T) {
	shape := Shape{Sample: SampleUint8, Pixel: RGB, Bands: 3}
	a, _ := New(shape)
	b, _ := New(shape)
	a.SetSample(0, 10)
	b.SetSample(0, 10)
	if !a.Equal(b) {
		t.Fatalf("expected equal pixels")
	}
	b.SetSample(1, 5)
	if a.Equal(b) {
		t.Fatalf("expected unequal pixels after mutation")
	}

	other, _ := New(Shape{Sample: SampleUint8, Pixel: Grayscale, Bands: 1})
	if a.Equal(other) {
		t.Fatalf("pixels of differing shape must never compare equal")
	}
}

func TestSetSampleRange(t *testing.T) {
	p, _ := New(Shape{Sample: Sample4Bit, Pixel: Palette, Bands: 1})
	if err := p.SetSample(0, 15); err != nil {
		t.Fatalf("SetSample(15) on 4-bit: %v", err)
	}
	if err := p.SetSample(0, 16); err == nil {
		t.Fatalf("SetSample(16) on 4-bit should fail")
	}
}

func TestPixelBlobRoundTrip(t *testing.T) {
	shape := Shape{Sample: SampleInt16, Pixel: DataGrid, Bands: 1}
	p, _ := New(shape)
	p.SetSample(0, uint64(uint16(int16(-9999))))
	blob := p.ToBlob()

	got, err := FromBlob(blob, shape)
	if err != nil {
		t.Fatalf("FromBlob: %v", err)
	}
	if !got.Equal(p) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}

	if _, err := FromBlob(blob, Shape{Sample: SampleUint8, Pixel: Grayscale, Bands: 1}); err == nil {
		t.Fatalf("FromBlob with mismatched shape should fail")
	}
	if _, err := FromBlob(blob[:len(blob)-1], shape); err == nil {
		t.Fatalf("FromBlob with truncated blob should fail")
	}
}

func TestPaletteSubset(t *testing.T) {
	base, _ := NewPalette([]RGB8{{0, 0, 0}, {255, 0, 0}, {0, 255, 0}, {0, 0, 255}}, 4)
	sub, _ := NewPalette([]RGB8{{0, 0, 255}, {0, 0, 0}}, 4)
	remap, ok := base.IsSubset(sub)
	if !ok {
		t.Fatalf("expected sub to be a subset of base")
	}
	if remap[0] != 3 || remap[1] != 0 {
		t.Fatalf("unexpected remap: %v", remap)
	}

	notSub, _ := NewPalette([]RGB8{{10, 10, 10}}, 4)
	if _, ok := base.IsSubset(notSub); ok {
		t.Fatalf("expected not-a-subset to fail")
	}
}

func TestParseSampleAndPixelTypeRoundTripString(t *testing.T) {
	for s := Sample1Bit; s <= SampleFloat64; s++ {
		got, err := ParseSampleType(s.String())
		if err != nil || got != s {
			t.Fatalf("ParseSampleType(%q) = %v, %v, want %v, nil", s.String(), got, err, s)
		}
	}
	for p := Monochrome; p <= DataGrid; p++ {
		got, err := ParsePixelType(p.String())
		if err != nil || got != p {
			t.Fatalf("ParsePixelType(%q) = %v, %v, want %v, nil", p.String(), got, err, p)
		}
	}
	if _, err := ParseSampleType("bogus"); err == nil {
		t.Fatalf("expected an error for an unknown sample type keyword")
	}
	if _, err := ParsePixelType("bogus"); err == nil {
		t.Fatalf("expected an error for an unknown pixel type keyword")
	}
}

func TestPaletteMonochromeRecolorable(t *testing.T) {
	p, _ := NewPalette([]RGB8{{0, 0, 0}, {0, 0, 0}}, 1)
	if !p.MonochromeRecolorable() {
		t.Fatalf("expected monochrome-recolorable palette")
	}
	p2, _ := NewPalette([]RGB8{{0, 0, 0}, {1, 0, 0}}, 1)
	if p2.MonochromeRecolorable() {
		t.Fatalf("expected non-monochrome-recolorable palette")
	}
}
