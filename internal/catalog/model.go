// SPDX-License-Identifier: MIT

// Package catalog implements the persistent schema: the shared
// raster_coverages catalog table plus, for every coverage, its own
// family of X_sections/X_levels/X_tiles/X_tile_data tables, and the
// tile writer operations that populate them inside a caller-owned
// transaction.
//
// The per-coverage spatial index is an SQLite R*Tree virtual table, so
// any binary linking this package must build mattn/go-sqlite3 with the
// sqlite_rtree build tag (-tags sqlite_rtree).
package catalog

import (
	"fmt"
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// nameRegexp constrains coverage names to identifiers safe to splice
// into the per-coverage table names (X_sections, X_tiles, ...); coverage
// names are never passed through as SQL parameters since SQLite has no
// placeholder syntax for identifiers.
var nameRegexp = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var nameCaser = cases.Fold()

// NormalizeName canonicalizes a coverage name to NFC, case-folded form,
// so that two Unicode encodings or casings of what a caller considers
// "the same" coverage name always resolve to one identifier before it
// is spliced into a table name.
func NormalizeName(name string) string {
	return norm.NFC.String(nameCaser.String(name))
}

// ValidateName checks that name is safe to use as a coverage name. It
// must be called on an already-normalized name (see NormalizeName);
// CreateCoverage normalizes before validating.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid-argument: coverage name %q must match %s", name, nameRegexp.String())
	}
	return nil
}

// Coverage is the immutable descriptor for one raster coverage,
// persisted as one row of raster_coverages.
type Coverage struct {
	Name             string
	SampleType       pixel.SampleType
	PixelType        pixel.PixelType
	Bands            int
	Compression      tilecodec.Compression
	Quality          int
	TileWidth        int
	TileHeight       int
	SRID             int
	HRes, VRes       float64
	NoDataPixel      *pixel.Pixel
	Palette          *pixel.Palette
	StrictResolution bool
	MixedResolutions bool
	SectionPaths     bool
	SectionMD5       bool
	SectionSummary   bool
}

// Shape returns the coverage's fixed pixel shape.
func (c *Coverage) Shape() pixel.Shape {
	return pixel.Shape{Sample: c.SampleType, Pixel: c.PixelType, Bands: c.Bands}
}

// Section is one imported raster file, recorded in X_sections.
type Section struct {
	SectionID int64
	Name      string
	FilePath  string // empty unless Coverage.SectionPaths
	MD5       string // empty unless Coverage.SectionMD5
	Summary   string // empty unless Coverage.SectionSummary
	Width     int
	Height    int
	Geometry  []byte // envelope blob, as written by EncodeEnvelope
	Statistics []byte
}

// Level is one row of X_levels (single-resolution coverages) or
// X_section_levels (mixed-resolution coverages): the eight resolution
// columns at denominators 1, 2, 4, 8.
type Level struct {
	SectionID    int64 // 0 for single-resolution coverages (X_levels)
	PyramidLevel int
	XRes, YRes   [4]float64 // index 0=1x, 1=1/2, 2=1/4, 3=1/8
}

// Denominators lists the four scale denominators a Level row holds
// resolutions for, in persisted column order.
var Denominators = [4]int{1, 2, 4, 8}

// Tile is one row of X_tiles, joined 1:1 with a X_tile_data row.
type Tile struct {
	TileID       int64
	PyramidLevel int
	SectionID    int64
	Geometry     []byte
}

// TileData is the blob pair for one tile.
type TileData struct {
	TileID   int64
	Odd, Even []byte
}
