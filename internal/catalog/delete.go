// SPDX-License-Identifier: MIT

package catalog

import (
	"database/sql"
	"fmt"
)

// DeleteSection removes one section and everything that hangs off it:
// its tiles, their tile_data blobs, their rtree entries, and (for a
// mixed-resolution coverage) its per-section pyramid level rows. SQLite
// foreign keys are declared ON DELETE CASCADE for documentation, but
// this module never turns on PRAGMA foreign_keys, so the cleanup is
// spelled out explicitly here rather than relied upon implicitly.
func DeleteSection(db *sql.DB, c *Coverage, sectionID int64) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	coverage := c.Name

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("dbms-insert: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(fmt.Sprintf(`SELECT tile_id FROM %s_tiles WHERE section_id = ?`, coverage), sectionID)
	if err != nil {
		return fmt.Errorf("dbms-insert: listing tiles for section %d: %w", sectionID, err)
	}
	var tileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("dbms-insert: %w", err)
		}
		tileIDs = append(tileIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("dbms-insert: %w", err)
	}
	rows.Close()

	for _, id := range tileIDs {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s_tile_data WHERE tile_id = ?`, coverage), id); err != nil {
			return fmt.Errorf("dbms-insert: deleting tile_data %d: %w", id, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s_tiles_rtree WHERE tile_id = ?`, coverage), id); err != nil {
			return fmt.Errorf("dbms-insert: deleting rtree entry %d: %w", id, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s_tiles WHERE section_id = ?`, coverage), sectionID); err != nil {
		return fmt.Errorf("dbms-insert: deleting tiles for section %d: %w", sectionID, err)
	}
	if c.MixedResolutions {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s_section_levels WHERE section_id = ?`, coverage), sectionID); err != nil {
			return fmt.Errorf("dbms-insert: deleting section_levels for section %d: %w", sectionID, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s_sections WHERE section_id = ?`, coverage), sectionID); err != nil {
		return fmt.Errorf("dbms-insert: deleting section %d: %w", sectionID, err)
	}

	return tx.Commit()
}
