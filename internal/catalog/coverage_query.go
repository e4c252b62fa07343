// SPDX-License-Identifier: MIT

package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// ErrCoverageNotFound is returned when no raster_coverages row matches
// the requested name.
var ErrCoverageNotFound = errors.New("coverage-not-found")

// GetCoverage loads a coverage descriptor by name.
func GetCoverage(db *sql.DB, name string) (*Coverage, error) {
	row := db.QueryRow(`SELECT name, sample_type, pixel_type, num_bands, compression, quality,
		tile_width, tile_height, srid, h_res, v_res, nodata_pixel, palette,
		strict_resolution, mixed_resolutions, section_paths, section_md5, section_summary
		FROM raster_coverages WHERE name = ?`, name)

	var c Coverage
	var sampleType, pixelType, compression int
	var noDataBlob, paletteBlob []byte
	err := row.Scan(&c.Name, &sampleType, &pixelType, &c.Bands, &compression, &c.Quality,
		&c.TileWidth, &c.TileHeight, &c.SRID, &c.HRes, &c.VRes, &noDataBlob, &paletteBlob,
		&c.StrictResolution, &c.MixedResolutions, &c.SectionPaths, &c.SectionMD5, &c.SectionSummary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrCoverageNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("dbms-insert: loading coverage %q: %w", name, err)
	}

	c.SampleType = pixel.SampleType(sampleType)
	c.PixelType = pixel.PixelType(pixelType)
	c.Compression = tilecodec.Compression(compression)

	if paletteBlob != nil {
		pal, err := decodePaletteBlob(paletteBlob)
		if err != nil {
			return nil, fmt.Errorf("dbms-insert: coverage %q: %w", name, err)
		}
		c.Palette = pal
	}
	if noDataBlob != nil {
		p, err := pixel.FromBlob(noDataBlob, c.Shape())
		if err != nil {
			return nil, fmt.Errorf("dbms-insert: coverage %q: %w", name, err)
		}
		c.NoDataPixel = p
	} else {
		p, err := pixel.DefaultNoData(c.Shape())
		if err != nil {
			return nil, fmt.Errorf("dbms-insert: coverage %q: %w", name, err)
		}
		c.NoDataPixel = p
	}

	return &c, nil
}

// ListCoverages returns the names of every registered coverage.
func ListCoverages(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM raster_coverages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("dbms-insert: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("dbms-insert: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
