// SPDX-License-Identifier: MIT

package tilecodec

import (
	"fmt"
	"strings"

	"github.com/brawer/rasterlite2go/internal/raster"
)

// EncodeImage renders r as a plain PNG or JPEG image, the format a
// caller asks a windowed read to be delivered as (a "get map image"
// request) rather than as a tile's own internal storage encoding.
// Unlike Encode, the result is never wrapped in the odd/even residual
// framing tile storage uses — it is a standalone image file.
func EncodeImage(r *raster.Raster, format string, quality int) ([]byte, error) {
	switch strings.ToLower(format) {
	case "png":
		return pngEncode(r)
	case "jpeg", "jpg":
		return jpegEncode(r, quality)
	default:
		return nil, fmt.Errorf("invalid-argument: unsupported map image format %q", format)
	}
}
