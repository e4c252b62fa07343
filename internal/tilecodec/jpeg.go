// SPDX-License-Identifier: MIT

package tilecodec

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

func jpegEncode(r *raster.Raster, quality int) ([]byte, error) {
	img, err := toImage(r)
	if err != nil {
		return nil, err
	}
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("dbms-insert: jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

func jpegDecodeToRaster(data []byte, shape pixel.Shape, w, h int) (*raster.Raster, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bad-pixel-blob: jpeg decode: %w", err)
	}
	r, err := fromImage(img, shape, nil)
	if err != nil {
		return nil, err
	}
	if r.Width != w || r.Height != h {
		return nil, fmt.Errorf("bad-pixel-blob: decoded jpeg is %dx%d, want %dx%d", r.Width, r.Height, w, h)
	}
	return r, nil
}
