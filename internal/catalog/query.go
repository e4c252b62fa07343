// SPDX-License-Identifier: MIT

package catalog

import (
	"database/sql"
	"fmt"
)

// LevelRow is one resolution row as returned by QueryLevels, tagged
// with which section (or 0, for single-resolution coverages) it
// belongs to.
type LevelRow struct {
	SectionID    int64
	PyramidLevel int
	XRes, YRes   [4]float64
}

// QueryLevels returns every level row for a coverage, ordered deepest
// level first, matching the order the resolution planner scans them in.
func QueryLevels(db *sql.DB, coverage string, mixed bool) ([]LevelRow, error) {
	var query string
	if mixed {
		query = fmt.Sprintf(`SELECT section_id, pyramid_level,
			x_res_1_1, y_res_1_1, x_res_1_2, y_res_1_2,
			x_res_1_4, y_res_1_4, x_res_1_8, y_res_1_8
			FROM %s_section_levels ORDER BY pyramid_level DESC`, coverage)
	} else {
		query = fmt.Sprintf(`SELECT 0, pyramid_level,
			x_res_1_1, y_res_1_1, x_res_1_2, y_res_1_2,
			x_res_1_4, y_res_1_4, x_res_1_8, y_res_1_8
			FROM %s_levels ORDER BY pyramid_level DESC`, coverage)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("dbms-insert: %w", err)
	}
	defer rows.Close()

	var result []LevelRow
	for rows.Next() {
		var l LevelRow
		if err := rows.Scan(&l.SectionID, &l.PyramidLevel,
			&l.XRes[0], &l.YRes[0], &l.XRes[1], &l.YRes[1],
			&l.XRes[2], &l.YRes[2], &l.XRes[3], &l.YRes[3]); err != nil {
			return nil, fmt.Errorf("dbms-insert: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// GetLevelRow fetches a single level row by (sectionID, level). For
// non-mixed coverages sectionID is ignored since the resolution
// schedule is shared across all sections.
func GetLevelRow(db *sql.DB, coverage string, mixed bool, sectionID int64, level int) (LevelRow, error) {
	var row *sql.Row
	if mixed {
		row = db.QueryRow(fmt.Sprintf(`SELECT section_id, pyramid_level,
			x_res_1_1, y_res_1_1, x_res_1_2, y_res_1_2,
			x_res_1_4, y_res_1_4, x_res_1_8, y_res_1_8
			FROM %s_section_levels WHERE section_id = ? AND pyramid_level = ?`, coverage), sectionID, level)
	} else {
		row = db.QueryRow(fmt.Sprintf(`SELECT 0, pyramid_level,
			x_res_1_1, y_res_1_1, x_res_1_2, y_res_1_2,
			x_res_1_4, y_res_1_4, x_res_1_8, y_res_1_8
			FROM %s_levels WHERE pyramid_level = ?`, coverage), level)
	}

	var l LevelRow
	if err := row.Scan(&l.SectionID, &l.PyramidLevel,
		&l.XRes[0], &l.YRes[0], &l.XRes[1], &l.YRes[1],
		&l.XRes[2], &l.YRes[2], &l.XRes[3], &l.YRes[3]); err != nil {
		return LevelRow{}, fmt.Errorf("dbms-insert: loading level %d: %w", level, err)
	}
	return l, nil
}

// PurgeTilesFrom deletes every tile (and its tile_data/rtree rows) for
// sectionID at pyramid_level >= fromLevel. Used by the pyramid builder's
// force-rebuild path; it never touches pyramid_level 0, the imported
// base level.
func PurgeTilesFrom(tx *sql.Tx, coverage string, sectionID int64, fromLevel int) error {
	if fromLevel < 1 {
		return fmt.Errorf("invalid-argument: refusing to purge the base level")
	}
	rows, err := tx.Query(fmt.Sprintf(`SELECT tile_id FROM %s_tiles WHERE section_id = ? AND pyramid_level >= ?`, coverage), sectionID, fromLevel)
	if err != nil {
		return &ErrDBMSInsert{Stmt: "purge_tiles_select", Err: err}
	}
	var tileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return &ErrDBMSInsert{Stmt: "purge_tiles_select", Err: err}
		}
		tileIDs = append(tileIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &ErrDBMSInsert{Stmt: "purge_tiles_select", Err: err}
	}

	for _, id := range tileIDs {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s_tile_data WHERE tile_id = ?`, coverage), id); err != nil {
			return &ErrDBMSInsert{Stmt: "purge_tile_data", Err: err}
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s_tiles_rtree WHERE tile_id = ?`, coverage), id); err != nil {
			return &ErrDBMSInsert{Stmt: "purge_tile_rtree", Err: err}
		}
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s_tiles WHERE section_id = ? AND pyramid_level >= ?`, coverage), sectionID, fromLevel); err != nil {
		return &ErrDBMSInsert{Stmt: "purge_tiles", Err: err}
	}
	return nil
}

// QueryTiles returns every tile at the given pyramid level whose
// bounding box intersects [minx,maxx] x [miny,maxy], using the
// coverage's R*Tree spatial index. If sectionID is non-zero, results
// are further restricted to that section.
func QueryTiles(db *sql.DB, coverage string, level int, sectionID int64, minx, maxx, miny, maxy float64) ([]Tile, error) {
	query := fmt.Sprintf(`SELECT t.tile_id, t.pyramid_level, t.section_id, t.geometry
		FROM %s_tiles t
		JOIN %s_tiles_rtree r ON r.tile_id = t.tile_id
		WHERE t.pyramid_level = ?
		AND r.maxx >= ? AND r.minx <= ?
		AND r.maxy >= ? AND r.miny <= ?`, coverage, coverage)
	args := []interface{}{level, minx, maxx, miny, maxy}
	if sectionID != 0 {
		query += " AND t.section_id = ?"
		args = append(args, sectionID)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("dbms-insert: %w", err)
	}
	defer rows.Close()

	var tiles []Tile
	for rows.Next() {
		var t Tile
		if err := rows.Scan(&t.TileID, &t.PyramidLevel, &t.SectionID, &t.Geometry); err != nil {
			return nil, fmt.Errorf("dbms-insert: %w", err)
		}
		tiles = append(tiles, t)
	}
	return tiles, rows.Err()
}

// QueryTilesBySection returns every tile belonging to sectionID at the
// given pyramid level, ordered by tile_id (used by the pyramid builder,
// which needs every source tile rather than a bbox-filtered subset).
func QueryTilesBySection(db *sql.DB, coverage string, sectionID int64, level int) ([]Tile, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT tile_id, pyramid_level, section_id, geometry
		FROM %s_tiles WHERE section_id = ? AND pyramid_level = ? ORDER BY tile_id`, coverage),
		sectionID, level)
	if err != nil {
		return nil, fmt.Errorf("dbms-insert: %w", err)
	}
	defer rows.Close()

	var tiles []Tile
	for rows.Next() {
		var t Tile
		if err := rows.Scan(&t.TileID, &t.PyramidLevel, &t.SectionID, &t.Geometry); err != nil {
			return nil, fmt.Errorf("dbms-insert: %w", err)
		}
		tiles = append(tiles, t)
	}
	return tiles, rows.Err()
}

// MaxPyramidLevel returns the highest pyramid_level recorded for a
// section, or -1 if the section has no tiles at all.
func MaxPyramidLevel(db *sql.DB, coverage string, sectionID int64) (int, error) {
	row := db.QueryRow(fmt.Sprintf(`SELECT COALESCE(MAX(pyramid_level), -1) FROM %s_tiles WHERE section_id = ?`, coverage), sectionID)
	var level int
	if err := row.Scan(&level); err != nil {
		return 0, fmt.Errorf("dbms-insert: %w", err)
	}
	return level, nil
}

// GetTileData loads the odd/even blob pair for one tile.
func GetTileData(db *sql.DB, coverage string, tileID int64) (*TileData, error) {
	row := db.QueryRow(fmt.Sprintf(`SELECT tile_data_odd, tile_data_even FROM %s_tile_data WHERE tile_id = ?`, coverage), tileID)
	td := &TileData{TileID: tileID}
	if err := row.Scan(&td.Odd, &td.Even); err != nil {
		return nil, fmt.Errorf("dbms-insert: loading tile_data for tile %d: %w", tileID, err)
	}
	return td, nil
}

// GetSection loads one section row by id.
func GetSection(db *sql.DB, coverage string, sectionID int64) (*Section, error) {
	row := db.QueryRow(fmt.Sprintf(`SELECT section_id, section_name, file_path, md5, summary, width, height, geometry, statistics
		FROM %s_sections WHERE section_id = ?`, coverage), sectionID)
	var s Section
	var filePath, md5, summary sql.NullString
	if err := row.Scan(&s.SectionID, &s.Name, &filePath, &md5, &summary, &s.Width, &s.Height, &s.Geometry, &s.Statistics); err != nil {
		return nil, fmt.Errorf("dbms-insert: loading section %d: %w", sectionID, err)
	}
	s.FilePath, s.MD5, s.Summary = filePath.String, md5.String, summary.String
	return &s, nil
}
