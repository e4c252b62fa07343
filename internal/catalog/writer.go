// SPDX-License-Identifier: MIT

package catalog

import (
	"database/sql"
	"fmt"
)

// ErrDBMSInsert wraps any single-statement failure in the writer
// operations below; the transaction itself is left rollback-only and
// must be rolled back by the caller.
type ErrDBMSInsert struct {
	Stmt string
	Err  error
}

func (e *ErrDBMSInsert) Error() string {
	return fmt.Sprintf("dbms-insert: %s: %v", e.Stmt, e.Err)
}

func (e *ErrDBMSInsert) Unwrap() error { return e.Err }

// InsertSection inserts one X_sections row and returns its section_id.
// It binds to tx, which the caller must have already opened.
func InsertSection(tx *sql.Tx, coverage string, s *Section) (int64, error) {
	res, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s_sections
		(section_name, file_path, md5, summary, width, height, geometry, statistics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, coverage),
		s.Name, nullableString(s.FilePath), nullableString(s.MD5), nullableString(s.Summary),
		s.Width, s.Height, s.Geometry, s.Statistics)
	if err != nil {
		return 0, &ErrDBMSInsert{Stmt: "insert_section", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &ErrDBMSInsert{Stmt: "insert_section", Err: err}
	}
	return id, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// InsertLevel inserts or replaces one level row for a coverage. When
// mixed is true, sectionID identifies the X_section_levels row;
// otherwise the single-resolution X_levels table is used and sectionID
// is ignored. Resolutions at denominators 2/4/8 are derived by
// multiplying the base resolution.
func InsertLevel(tx *sql.Tx, coverage string, mixed bool, sectionID int64, level int, baseResX, baseResY float64) error {
	var xres, yres [4]float64
	for i, denom := range Denominators {
		xres[i] = baseResX * float64(denom)
		yres[i] = baseResY * float64(denom)
	}

	if mixed {
		_, err := tx.Exec(fmt.Sprintf(`INSERT OR REPLACE INTO %s_section_levels
			(section_id, pyramid_level,
			 x_res_1_1, y_res_1_1, x_res_1_2, y_res_1_2,
			 x_res_1_4, y_res_1_4, x_res_1_8, y_res_1_8)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, coverage),
			sectionID, level,
			xres[0], yres[0], xres[1], yres[1], xres[2], yres[2], xres[3], yres[3])
		if err != nil {
			return &ErrDBMSInsert{Stmt: "insert_level", Err: err}
		}
		return nil
	}

	_, err := tx.Exec(fmt.Sprintf(`INSERT OR REPLACE INTO %s_levels
		(pyramid_level,
		 x_res_1_1, y_res_1_1, x_res_1_2, y_res_1_2,
		 x_res_1_4, y_res_1_4, x_res_1_8, y_res_1_8)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, coverage),
		level, xres[0], yres[0], xres[1], yres[1], xres[2], yres[2], xres[3], yres[3])
	if err != nil {
		return &ErrDBMSInsert{Stmt: "insert_level", Err: err}
	}
	return nil
}

// InsertTile inserts one tile and its tile_data row as a matched pair:
// either both succeed or the caller's transaction must be rolled back
// in full, so every tile row always has a corresponding tile_data row.
func InsertTile(tx *sql.Tx, coverage string, sectionID int64, level int, geometry []byte, minx, maxx, miny, maxy float64, odd, even []byte) (int64, error) {
	res, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s_tiles (pyramid_level, section_id, geometry) VALUES (?, ?, ?)`, coverage),
		level, sectionID, geometry)
	if err != nil {
		return 0, &ErrDBMSInsert{Stmt: "insert_tile", Err: err}
	}
	tileID, err := res.LastInsertId()
	if err != nil {
		return 0, &ErrDBMSInsert{Stmt: "insert_tile", Err: err}
	}

	var evenVal interface{}
	if even != nil {
		evenVal = even
	}
	if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s_tile_data (tile_id, tile_data_odd, tile_data_even) VALUES (?, ?, ?)`, coverage),
		tileID, odd, evenVal); err != nil {
		return 0, &ErrDBMSInsert{Stmt: "insert_tile_data", Err: err}
	}

	if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s_tiles_rtree (tile_id, minx, maxx, miny, maxy) VALUES (?, ?, ?, ?, ?)`, coverage),
		tileID, minx, maxx, miny, maxy); err != nil {
		return 0, &ErrDBMSInsert{Stmt: "insert_tile_rtree", Err: err}
	}

	return tileID, nil
}

// UpdateSectionStats writes the finalized statistics blob onto a
// section row.
func UpdateSectionStats(tx *sql.Tx, coverage string, sectionID int64, statistics []byte) error {
	_, err := tx.Exec(fmt.Sprintf(`UPDATE %s_sections SET statistics = ? WHERE section_id = ?`, coverage), statistics, sectionID)
	if err != nil {
		return &ErrDBMSInsert{Stmt: "update_section_stats", Err: err}
	}
	return nil
}
