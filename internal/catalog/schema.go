// SPDX-License-Identifier: MIT

package catalog

import (
	"database/sql"
	"fmt"
)

const catalogTableDDL = `
CREATE TABLE IF NOT EXISTS raster_coverages (
	name TEXT PRIMARY KEY NOT NULL,
	sample_type INTEGER NOT NULL,
	pixel_type INTEGER NOT NULL,
	num_bands INTEGER NOT NULL,
	compression INTEGER NOT NULL,
	quality INTEGER NOT NULL,
	tile_width INTEGER NOT NULL,
	tile_height INTEGER NOT NULL,
	srid INTEGER NOT NULL,
	h_res DOUBLE NOT NULL,
	v_res DOUBLE NOT NULL,
	nodata_pixel BLOB,
	palette BLOB,
	strict_resolution INTEGER NOT NULL DEFAULT 0,
	mixed_resolutions INTEGER NOT NULL DEFAULT 0,
	section_paths INTEGER NOT NULL DEFAULT 0,
	section_md5 INTEGER NOT NULL DEFAULT 0,
	section_summary INTEGER NOT NULL DEFAULT 0
)`

// EnsureCatalogTable creates the shared raster_coverages table if it
// does not already exist.
func EnsureCatalogTable(db *sql.DB) error {
	if _, err := db.Exec(catalogTableDDL); err != nil {
		return fmt.Errorf("dbms-insert: creating raster_coverages: %w", err)
	}
	return nil
}

// sectionsTableDDL, levelsTableDDL etc. are templated with the
// coverage's validated name; %s is never user-supplied SQL text beyond
// what ValidateName already constrains to a bare identifier.

func sectionsTableDDL(name string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s_sections (
	section_id INTEGER PRIMARY KEY AUTOINCREMENT,
	section_name TEXT NOT NULL,
	file_path TEXT,
	md5 TEXT,
	summary TEXT,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	geometry BLOB NOT NULL,
	statistics BLOB
)`, name)
}

func levelsTableDDL(name string, mixed bool) string {
	table := name + "_levels"
	pk := "pyramid_level INTEGER PRIMARY KEY"
	if mixed {
		table = name + "_section_levels"
		pk = "section_id INTEGER NOT NULL, pyramid_level INTEGER NOT NULL"
	}
	cols := pk
	for _, denom := range Denominators {
		cols += fmt.Sprintf(", x_res_1_%d DOUBLE NOT NULL, y_res_1_%d DOUBLE NOT NULL", denom, denom)
	}
	if mixed {
		cols += fmt.Sprintf(", PRIMARY KEY (section_id, pyramid_level), FOREIGN KEY (section_id) REFERENCES %s_sections(section_id) ON DELETE CASCADE", name)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, cols)
}

func tilesTableDDL(name string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s_tiles (
	tile_id INTEGER PRIMARY KEY AUTOINCREMENT,
	pyramid_level INTEGER NOT NULL,
	section_id INTEGER NOT NULL,
	geometry BLOB NOT NULL,
	FOREIGN KEY (section_id) REFERENCES %s_sections(section_id) ON DELETE CASCADE
)`, name, name)
}

func tilesSpatialIndexDDL(name string) string {
	return fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s_tiles_rtree USING rtree(
	tile_id,
	minx, maxx,
	miny, maxy
)`, name)
}

func tileDataTableDDL(name string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s_tile_data (
	tile_id INTEGER PRIMARY KEY,
	tile_data_odd BLOB NOT NULL,
	tile_data_even BLOB,
	FOREIGN KEY (tile_id) REFERENCES %s_tiles(tile_id) ON DELETE CASCADE
)`, name, name)
}

// CreateCoverage creates a coverage's table family and registers it in
// raster_coverages, all within one transaction so that a failure leaves
// no partial schema behind.
func CreateCoverage(db *sql.DB, c *Coverage) error {
	c.Name = NormalizeName(c.Name)
	if err := ValidateName(c.Name); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("dbms-insert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(catalogTableDDL); err != nil {
		return fmt.Errorf("dbms-insert: %w", err)
	}

	ddls := []string{
		sectionsTableDDL(c.Name),
		levelsTableDDL(c.Name, c.MixedResolutions),
		tilesTableDDL(c.Name),
		tilesSpatialIndexDDL(c.Name),
		tileDataTableDDL(c.Name),
	}
	for _, ddl := range ddls {
		if _, err := tx.Exec(ddl); err != nil {
			return fmt.Errorf("dbms-insert: creating tables for coverage %q: %w", c.Name, err)
		}
	}

	var noData, palette []byte
	if c.NoDataPixel != nil {
		noData = c.NoDataPixel.ToBlob()
	}
	if c.Palette != nil {
		palette = encodePaletteBlob(c.Palette)
	}
	_, err = tx.Exec(`INSERT INTO raster_coverages
		(name, sample_type, pixel_type, num_bands, compression, quality,
		 tile_width, tile_height, srid, h_res, v_res, nodata_pixel, palette,
		 strict_resolution, mixed_resolutions, section_paths, section_md5, section_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, int(c.SampleType), int(c.PixelType), c.Bands, int(c.Compression), c.Quality,
		c.TileWidth, c.TileHeight, c.SRID, c.HRes, c.VRes, noData, palette,
		c.StrictResolution, c.MixedResolutions, c.SectionPaths, c.SectionMD5, c.SectionSummary)
	if err != nil {
		return fmt.Errorf("dbms-insert: registering coverage %q: %w", c.Name, err)
	}

	return tx.Commit()
}

// DropCoverage removes a coverage's table family and its catalog row.
func DropCoverage(db *sql.DB, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("dbms-insert: %w", err)
	}
	defer tx.Rollback()

	tables := []string{
		name + "_tile_data",
		name + "_tiles_rtree",
		name + "_tiles",
		name + "_section_levels",
		name + "_levels",
		name + "_sections",
	}
	for _, t := range tables {
		if _, err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", t)); err != nil {
			return fmt.Errorf("dbms-insert: dropping %s: %w", t, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM raster_coverages WHERE name = ?`, name); err != nil {
		return fmt.Errorf("dbms-insert: %w", err)
	}
	return tx.Commit()
}
