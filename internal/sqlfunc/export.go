// SPDX-License-Identifier: MIT

package sqlfunc

import (
	"github.com/brawer/rasterlite2go/internal/reader"
)

// writeGeoTiff is the SQL-callable equivalent of
// engine.Engine.WriteGeoTiff.
func (b *binder) writeGeoTiff(coverage string, sectionID int64, path string) int64 {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return errCode(err)
	}
	return errCode(b.e.WriteGeoTiff(c, sectionID, path))
}

// writeTiffTfw is the SQL-callable equivalent of
// engine.Engine.WriteTiffTfw.
func (b *binder) writeTiffTfw(coverage string, sectionID int64, path string) int64 {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return errCode(err)
	}
	return errCode(b.e.WriteTiffTfw(c, sectionID, path))
}

// writeTiff is the SQL-callable equivalent of engine.Engine.WriteTiff.
func (b *binder) writeTiff(coverage string, sectionID int64, path string) int64 {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return errCode(err)
	}
	return errCode(b.e.WriteTiff(c, sectionID, path))
}

// writeAsciiGrid is the SQL-callable equivalent of
// engine.Engine.WriteAsciiGrid.
func (b *binder) writeAsciiGrid(coverage string, sectionID int64, path string) int64 {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return errCode(err)
	}
	return errCode(b.e.WriteAsciiGrid(c, sectionID, path))
}

// getMapImage runs a windowed read against coverage and returns it
// re-encoded as a standalone image file (png or jpeg), or nil (SQL
// NULL) on any failure: unknown coverage, a window that doesn't match
// the requested resolution, or an unsupported output format.
func (b *binder) getMapImage(coverage string, sectionID int64, minX, minY, maxX, maxY float64, width, height int64, xres, yres float64, format string, quality int64) []byte {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return nil
	}
	req := reader.Request{
		SectionID: sectionID,
		Width:     int(width),
		Height:    int(height),
		MinX:      minX,
		MinY:      minY,
		MaxX:      maxX,
		MaxY:      maxY,
		XRes:      xres,
		YRes:      yres,
	}
	img, err := b.e.GetMapImage(c, req, format, int(quality))
	if err != nil {
		return nil
	}
	return img
}
