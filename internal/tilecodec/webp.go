// SPDX-License-Identifier: MIT

package tilecodec

import (
	"bytes"
	"fmt"

	"github.com/gen2brain/webp"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

func webpEncode(r *raster.Raster, lossless bool, quality int) ([]byte, error) {
	img, err := toImage(r)
	if err != nil {
		return nil, err
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	var buf bytes.Buffer
	opts := webp.Options{Lossless: lossless, Quality: float32(quality)}
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, fmt.Errorf("dbms-insert: webp encode: %w", err)
	}
	return buf.Bytes(), nil
}

func webpDecodeToRaster(data []byte, shape pixel.Shape, w, h int) (*raster.Raster, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bad-pixel-blob: webp decode: %w", err)
	}
	r, err := fromImage(img, shape, nil)
	if err != nil {
		return nil, err
	}
	if r.Width != w || r.Height != h {
		return nil, fmt.Errorf("bad-pixel-blob: decoded webp is %dx%d, want %dx%d", r.Width, r.Height, w, h)
	}
	return r, nil
}
