// SPDX-License-Identifier: MIT

// Package importer reads external raster files (TIFF/GeoTIFF, JPEG with
// a worldfile, and Esri ASCII Grid) and tiles them into a coverage's
// section/level/tile schema.
package importer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
)

// GeoTransform anchors a raster's pixel grid in world coordinates: the
// upper-left corner of the upper-left pixel is at (OriginX, OriginY),
// and each pixel spans (XRes, YRes) world units. SRID is the source's
// own spatial reference system identifier, when the format carries one
// (GeoTIFF keys); 0 means the source file itself is silent about its
// SRID, which is not a compatibility failure by itself — only an SRID
// that actively disagrees with the target coverage is.
type GeoTransform struct {
	OriginX, OriginY float64
	XRes, YRes       float64
	SRID             int
}

// worldFileSuffixes lists the sidecar extensions tried in order, mirroring
// the JGW/JPGW/WLD fallback chain a TIFF or JPEG importer walks when no
// georeferencing is embedded in the image file itself.
var worldFileSuffixes = []string{".tfw", ".jgw", ".jpgw", ".wld"}

// readWorldFile locates and parses the sidecar worldfile next to path,
// trying each of worldFileSuffixes in turn, and for each suffix also
// its .bz2-compressed form (e.g. ortho.tfw.bz2), so that a bulk import
// of bzip2-compressed worldfiles needs no separate decompression step.
// A worldfile is six lines: x pixel size, rotation, rotation, y pixel
// size (negative, north-up), x coordinate of the center of the
// upper-left pixel, and its y coordinate. Returned resolutions are
// always positive; OriginX/OriginY are shifted back out to the pixel's
// outer corner.
func readWorldFile(path string) (GeoTransform, error) {
	base := path[:len(path)-len(extOf(path))]
	var lastErr error
	for _, suffix := range worldFileSuffixes {
		if f, err := os.Open(base + suffix); err == nil {
			gt, err := parseWorldFile(f)
			f.Close()
			if err != nil {
				return GeoTransform{}, err
			}
			return gt, nil
		} else {
			lastErr = err
		}

		if f, err := os.Open(base + suffix + ".bz2"); err == nil {
			gt, err := parseCompressedWorldFile(f)
			f.Close()
			if err != nil {
				return GeoTransform{}, err
			}
			return gt, nil
		} else {
			lastErr = err
		}
	}
	return GeoTransform{}, fmt.Errorf("invalid-argument: no worldfile found next to %s: %w", path, lastErr)
}

func parseCompressedWorldFile(f *os.File) (GeoTransform, error) {
	r, err := bzip2.NewReader(f, &bzip2.ReaderConfig{})
	if err != nil {
		return GeoTransform{}, fmt.Errorf("io-failure: decompressing worldfile: %w", err)
	}
	defer r.Close()
	return parseWorldFileReader(r)
}

func parseWorldFile(f *os.File) (GeoTransform, error) {
	return parseWorldFileReader(f)
}

func parseWorldFileReader(r io.Reader) (GeoTransform, error) {
	scanner := bufio.NewScanner(r)
	var values [6]float64
	for i := 0; i < 6; i++ {
		if !scanner.Scan() {
			return GeoTransform{}, fmt.Errorf("invalid-argument: worldfile has fewer than 6 lines")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
		if err != nil {
			return GeoTransform{}, fmt.Errorf("invalid-argument: worldfile: %w", err)
		}
		values[i] = v
	}
	xres, yres := values[0], -values[3]
	centerX, centerY := values[4], values[5]
	return GeoTransform{
		OriginX: centerX - xres/2,
		OriginY: centerY + yres/2,
		XRes:    xres,
		YRes:    yres,
	}, nil
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i:]
}
