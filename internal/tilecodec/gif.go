// SPDX-License-Identifier: MIT

package tilecodec

import (
	"bytes"
	"fmt"
	"image/gif"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

func gifEncode(r *raster.Raster) ([]byte, error) {
	img, err := toImage(r)
	if err != nil {
		return nil, err
	}
	numColors := 256
	if r.Palette != nil {
		numColors = len(r.Palette.Entries)
	}
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: numColors}); err != nil {
		return nil, fmt.Errorf("dbms-insert: gif encode: %w", err)
	}
	return buf.Bytes(), nil
}

func gifDecode(data []byte, shape pixel.Shape, w, h int, palette *pixel.Palette) (*raster.Raster, error) {
	img, err := gif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bad-pixel-blob: gif decode: %w", err)
	}
	r, err := fromImage(img, shape, palette)
	if err != nil {
		return nil, err
	}
	if r.Width != w || r.Height != h {
		return nil, fmt.Errorf("bad-pixel-blob: decoded gif is %dx%d, want %dx%d", r.Width, r.Height, w, h)
	}
	return r, nil
}
