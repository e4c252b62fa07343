// SPDX-License-Identifier: MIT

package exporter

import (
	"bufio"
	"database/sql"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/pixel"
)

// asciiGridNoData is the sentinel written for a transparent (no-data)
// cell, the conventional ESRI default also used by rl2import.c's own
// grid exporter when the source carries no explicit NODATA_value.
const asciiGridNoData = -9999.0

// WriteAsciiGrid writes a section's base-resolution raster as an Esri
// ASCII Grid: a header (ncols, nrows, xllcorner, yllcorner, cellsize,
// NODATA_value) followed by nrows rows of ncols whitespace-separated
// values, northernmost row first — the inverse of what readASCIIGrid
// parses.
func WriteAsciiGrid(db *sql.DB, coverage *catalog.Coverage, sectionID int64, path string) error {
	if coverage.PixelType != pixel.DataGrid {
		return fmt.Errorf("invalid-argument: WriteAsciiGrid requires a data-grid coverage, got %s", coverage.PixelType)
	}

	win, err := readSection(db, coverage, sectionID)
	if err != nil {
		return err
	}
	r := win.res.Raster

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("io-failure: creating %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 64*1024)

	xll := win.env.MinX
	yll := win.env.MinY
	fmt.Fprintf(w, "ncols %d\n", r.Width)
	fmt.Fprintf(w, "nrows %d\n", r.Height)
	fmt.Fprintf(w, "xllcorner %1.10f\n", xll)
	fmt.Fprintf(w, "yllcorner %1.10f\n", yll)
	fmt.Fprintf(w, "cellsize %1.10f\n", win.xRes)
	fmt.Fprintf(w, "NODATA_value %g\n", asciiGridNoData)

	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			p, err := r.GetPixel(x, y)
			if err != nil {
				return err
			}
			value := asciiGridNoData
			if !p.IsTransparent() {
				bits, err := p.GetSample(0)
				if err != nil {
					return err
				}
				value = math.Float64frombits(bits)
			}
			if x > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("io-failure: writing %s: %w", path, err)
	}
	return nil
}
