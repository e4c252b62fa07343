// SPDX-License-Identifier: MIT

package exporter

import (
	"database/sql"
	"fmt"
	"os"

	"golang.org/x/image/tiff"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// WriteTiff writes a section's base-resolution raster as a plain TIFF,
// with no georeferencing at all — the caller is expected to already
// know the section's extent out of band.
func WriteTiff(db *sql.DB, coverage *catalog.Coverage, sectionID int64, path string) error {
	win, err := readSection(db, coverage, sectionID)
	if err != nil {
		return err
	}
	return encodeTiffFile(path, win)
}

// WriteTiffTfw writes the same plain TIFF as WriteTiff, plus a .tfw
// worldfile sidecar carrying the section's georeferencing, the way
// rl2_export_tiff_worldfile_from_dbms pairs a TIFF with a JGW/TFW file
// instead of embedding GeoTIFF tags.
func WriteTiffTfw(db *sql.DB, coverage *catalog.Coverage, sectionID int64, path string) error {
	win, err := readSection(db, coverage, sectionID)
	if err != nil {
		return err
	}
	if err := encodeTiffFile(path, win); err != nil {
		return err
	}
	return writeWorldFile(worldFilePath(path), win.env.MinX, win.env.MaxY, win.xRes, win.yRes)
}

func encodeTiffFile(path string, win *sectionWindow) error {
	img, err := tilecodec.ToImage(win.res.Raster)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("io-failure: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("dbms-insert: tiff encode: %w", err)
	}
	return nil
}
