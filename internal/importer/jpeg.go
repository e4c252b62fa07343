// SPDX-License-Identifier: MIT

package importer

import (
	"image/jpeg"
	"os"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// readJPEG decodes a JPEG source image with the standard library and
// recovers its world placement from a sidecar worldfile, following the
// JGW/JPGW/WLD fallback chain a JPEG import walks when the photo has no
// georeferencing embedded in its own headers.
func readJPEG(path string) (*raster.Raster, GeoTransform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, GeoTransform{}, err
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, GeoTransform{}, err
	}

	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3}
	r, err := tilecodec.RasterFromImage(img, shape, nil)
	if err != nil {
		return nil, GeoTransform{}, err
	}

	gt, err := readWorldFile(path)
	if err != nil {
		return nil, GeoTransform{}, err
	}
	return r, gt, nil
}
