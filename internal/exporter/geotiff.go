// SPDX-License-Identifier: MIT

package exporter

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"golang.org/x/image/tiff"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// GeoTIFF tag identifiers, matching tiffReader's own constants in
// internal/importer/tiff.go so that a file WriteGeoTiff writes can be
// read back by this module's own importer.
const (
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tiffTypeDouble     = 12
)

// WriteGeoTiff writes a section's base-resolution raster as a TIFF
// with embedded GeoTIFF georeferencing tags (ModelPixelScaleTag,
// ModelTiepointTag), rather than a separate worldfile sidecar. Since no
// library in the retrieval pack encodes arbitrary custom TIFF tags
// (golang.org/x/image/tiff's Encode writes only the baseline tags it
// needs for the pixel data), the two GeoTIFF tags are spliced into the
// encoded IFD by hand, the same directory-entry layout tiffReader
// already hand-parses when importing.
func WriteGeoTiff(db *sql.DB, coverage *catalog.Coverage, sectionID int64, path string) error {
	win, err := readSection(db, coverage, sectionID)
	if err != nil {
		return err
	}
	img, err := tilecodec.ToImage(win.res.Raster)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("dbms-insert: tiff encode: %w", err)
	}

	patched, err := addGeoTags(buf.Bytes(), win.env.MinX, win.env.MaxY, win.xRes, win.yRes)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, patched, 0o644); err != nil {
		return fmt.Errorf("io-failure: writing %s: %w", path, err)
	}
	return nil
}

// addGeoTags appends a ModelPixelScaleTag/ModelTiepointTag-bearing IFD
// after data's existing content and repoints the file header at it,
// leaving the original image data and original IFD bytes untouched (and
// unreferenced) in place.
func addGeoTags(data []byte, minX, maxY, xRes, yRes float64) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("bad-pixel-blob: encoded tiff too short")
	}
	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("bad-pixel-blob: not a TIFF byte-order marker")
	}

	oldIFDOffset := order.Uint32(data[4:8])
	if int(oldIFDOffset)+2 > len(data) {
		return nil, fmt.Errorf("bad-pixel-blob: IFD offset out of range")
	}
	numEntries := order.Uint16(data[oldIFDOffset : oldIFDOffset+2])
	entriesStart := int(oldIFDOffset) + 2
	entriesEnd := entriesStart + 12*int(numEntries)
	if entriesEnd > len(data) {
		return nil, fmt.Errorf("bad-pixel-blob: IFD entries out of range")
	}
	entries := append([]byte(nil), data[entriesStart:entriesEnd]...)

	out := append([]byte(nil), data...)
	if len(out)%2 != 0 {
		out = append(out, 0)
	}

	pixelScaleOffset := uint32(len(out))
	for _, v := range []float64{xRes, yRes, 0} {
		out = appendFloat64(out, order, v)
	}
	tiepointOffset := uint32(len(out))
	for _, v := range []float64{0, 0, 0, minX, maxY, 0} {
		out = appendFloat64(out, order, v)
	}

	newIFDOffset := uint32(len(out))
	newEntries := make([]byte, 0, 12*(int(numEntries)+2))
	var countBytes [2]byte
	order.PutUint16(countBytes[:], numEntries+2)
	newEntries = append(newEntries, countBytes[:]...)
	newEntries = append(newEntries, entries...)
	newEntries = append(newEntries, geoTagEntry(order, tagModelPixelScale, 3, pixelScaleOffset)...)
	newEntries = append(newEntries, geoTagEntry(order, tagModelTiepoint, 6, tiepointOffset)...)
	var nextIFD [4]byte // 0: this is the only image in the file
	newEntries = append(newEntries, nextIFD[:]...)
	out = append(out, newEntries...)

	order.PutUint32(out[4:8], newIFDOffset)
	return out, nil
}

func appendFloat64(data []byte, order binary.ByteOrder, v float64) []byte {
	var b [8]byte
	order.PutUint64(b[:], math.Float64bits(v))
	return append(data, b[:]...)
}

// geoTagEntry builds one 12-byte TIFF directory entry of type DOUBLE
// pointing at an external array of count doubles stored at offset.
func geoTagEntry(order binary.ByteOrder, tag uint16, count uint32, offset uint32) []byte {
	b := make([]byte, 12)
	order.PutUint16(b[0:2], tag)
	order.PutUint16(b[2:4], tiffTypeDouble)
	order.PutUint32(b[4:8], count)
	order.PutUint32(b[8:12], offset)
	return b
}
