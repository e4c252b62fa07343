// SPDX-License-Identifier: MIT

package tilecodec

import (
	"bytes"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/brawer/rasterlite2go/internal/pixel"
)

func TestEncodeImage_PNG(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3}
	r := makeCheckerboard(t, shape, 4, 4)

	data, err := EncodeImage(r, "png", 0)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Fatalf("got %dx%d, want 4x4", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestEncodeImage_JPEG(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3}
	r := makeCheckerboard(t, shape, 4, 4)

	data, err := EncodeImage(r, "jpeg", 85)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("jpeg.Decode: %v", err)
	}
}

func TestEncodeImage_RejectsUnsupportedFormat(t *testing.T) {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3}
	r := makeCheckerboard(t, shape, 2, 2)
	if _, err := EncodeImage(r, "tiff", 0); err == nil {
		t.Fatalf("expected an error for an unsupported format")
	}
}
