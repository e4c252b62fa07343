// SPDX-License-Identifier: MIT

package tilecodec

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

func pngEncode(r *raster.Raster) ([]byte, error) {
	img, err := toImage(r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("dbms-insert: png encode: %w", err)
	}
	return buf.Bytes(), nil
}

func pngDecode(data []byte, shape pixel.Shape, w, h int, palette *pixel.Palette) (*raster.Raster, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bad-pixel-blob: png decode: %w", err)
	}
	r, err := fromImage(img, shape, palette)
	if err != nil {
		return nil, err
	}
	if r.Width != w || r.Height != h {
		return nil, fmt.Errorf("bad-pixel-blob: decoded png is %dx%d, want %dx%d", r.Width, r.Height, w, h)
	}
	return r, nil
}
