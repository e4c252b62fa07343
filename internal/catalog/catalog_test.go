// SPDX-License-Identifier: MIT

package catalog

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testCoverage(name string) *Coverage {
	return &Coverage{
		Name:        name,
		SampleType:  pixel.SampleUint8,
		PixelType:   pixel.RGB,
		Bands:       3,
		Compression: tilecodec.None,
		TileWidth:   256,
		TileHeight:  256,
		SRID:        4326,
		HRes:        0.1,
		VRes:        0.1,
	}
}

func TestValidateNameRejectsUnsafeIdentifiers(t *testing.T) {
	if err := ValidateName("ok_name1"); err != nil {
		t.Fatalf("expected ok_name1 to validate: %v", err)
	}
	for _, bad := range []string{"", "1leading", "has space", "semi;colon", "has-dash"} {
		if err := ValidateName(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestCreateAndGetCoverage(t *testing.T) {
	db := openTestDB(t)
	c := testCoverage("ortho")
	if err := CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}

	got, err := GetCoverage(db, "ortho")
	if err != nil {
		t.Fatalf("GetCoverage: %v", err)
	}
	if got.Name != "ortho" || got.Bands != 3 || got.TileWidth != 256 {
		t.Fatalf("got %+v", got)
	}
	if got.NoDataPixel == nil {
		t.Fatalf("expected a default no-data pixel to be synthesized")
	}

	if _, err := GetCoverage(db, "missing"); err == nil {
		t.Fatalf("expected coverage-not-found for unregistered coverage")
	}
}

func TestCreateCoverageWithPalette(t *testing.T) {
	db := openTestDB(t)
	c := testCoverage("paletted")
	c.PixelType = pixel.Palette
	c.Bands = 1
	c.SampleType = pixel.Sample4Bit
	pal, _ := pixel.NewPalette([]pixel.RGB8{{0, 0, 0}, {255, 255, 255}}, 4)
	c.Palette = pal

	if err := CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}
	got, err := GetCoverage(db, "paletted")
	if err != nil {
		t.Fatalf("GetCoverage: %v", err)
	}
	if got.Palette == nil || len(got.Palette.Entries) != 2 {
		t.Fatalf("palette round trip failed: %+v", got.Palette)
	}
	if got.Palette.Entries[1] != (pixel.RGB8{255, 255, 255}) {
		t.Fatalf("palette entry mismatch: %+v", got.Palette.Entries)
	}
}

func TestInsertSectionLevelAndTile(t *testing.T) {
	db := openTestDB(t)
	c := testCoverage("demo")
	if err := CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	sectionID, err := InsertSection(tx, c.Name, &Section{
		Name: "tile1", Width: 256, Height: 256, Geometry: []byte("wkb"),
	})
	if err != nil {
		t.Fatalf("InsertSection: %v", err)
	}
	if sectionID == 0 {
		t.Fatalf("expected non-zero section id")
	}

	if err := InsertLevel(tx, c.Name, false, 0, 0, 0.1, 0.1); err != nil {
		t.Fatalf("InsertLevel: %v", err)
	}

	tileID, err := InsertTile(tx, c.Name, sectionID, 0, []byte("wkb-tile"), 0, 1, 0, 1, []byte{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("InsertTile: %v", err)
	}

	if err := UpdateSectionStats(tx, c.Name, sectionID, []byte("stats-blob")); err != nil {
		t.Fatalf("UpdateSectionStats: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	levels, err := QueryLevels(db, c.Name, false)
	if err != nil {
		t.Fatalf("QueryLevels: %v", err)
	}
	if len(levels) != 1 || levels[0].XRes[0] != 0.1 || levels[0].XRes[3] != 0.8 {
		t.Fatalf("unexpected levels: %+v", levels)
	}

	tiles, err := QueryTiles(db, c.Name, 0, 0, -1, 2, -1, 2)
	if err != nil {
		t.Fatalf("QueryTiles: %v", err)
	}
	if len(tiles) != 1 || tiles[0].TileID != tileID {
		t.Fatalf("unexpected tiles: %+v", tiles)
	}

	td, err := GetTileData(db, c.Name, tileID)
	if err != nil {
		t.Fatalf("GetTileData: %v", err)
	}
	if string(td.Odd) != string([]byte{1, 2, 3}) || td.Even != nil {
		t.Fatalf("unexpected tile data: %+v", td)
	}

	section, err := GetSection(db, c.Name, sectionID)
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if string(section.Statistics) != "stats-blob" {
		t.Fatalf("stats not persisted: %q", section.Statistics)
	}
}

func TestDeleteSectionRemovesTilesAndRtreeEntries(t *testing.T) {
	db := openTestDB(t)
	c := testCoverage("deleteme")
	if err := CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	sectionID, err := InsertSection(tx, c.Name, &Section{
		Name: "s", Width: 256, Height: 256, Geometry: []byte("wkb"),
	})
	if err != nil {
		t.Fatalf("InsertSection: %v", err)
	}
	if err := InsertLevel(tx, c.Name, false, 0, 0, 0.1, 0.1); err != nil {
		t.Fatalf("InsertLevel: %v", err)
	}
	tileID, err := InsertTile(tx, c.Name, sectionID, 0, []byte("wkb-tile"), 0, 1, 0, 1, []byte{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("InsertTile: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := DeleteSection(db, c, sectionID); err != nil {
		t.Fatalf("DeleteSection: %v", err)
	}

	if _, err := GetSection(db, c.Name, sectionID); err == nil {
		t.Fatalf("expected section to be gone after DeleteSection")
	}
	if _, err := GetTileData(db, c.Name, tileID); err == nil {
		t.Fatalf("expected tile_data to be gone after DeleteSection")
	}
	tiles, err := QueryTilesBySection(db, c.Name, sectionID, 0)
	if err != nil {
		t.Fatalf("QueryTilesBySection: %v", err)
	}
	if len(tiles) != 0 {
		t.Fatalf("expected no tiles left, got %+v", tiles)
	}
	var rtreeCount int
	row := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s_tiles_rtree WHERE tile_id = ?`, c.Name), tileID)
	if err := row.Scan(&rtreeCount); err != nil {
		t.Fatalf("scanning rtree count: %v", err)
	}
	if rtreeCount != 0 {
		t.Fatalf("expected rtree entry to be removed, got count %d", rtreeCount)
	}
}

func TestDropCoverageRemovesCatalogRow(t *testing.T) {
	db := openTestDB(t)
	c := testCoverage("ephemeral")
	if err := CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}
	if err := DropCoverage(db, c.Name); err != nil {
		t.Fatalf("DropCoverage: %v", err)
	}
	if _, err := GetCoverage(db, c.Name); err == nil {
		t.Fatalf("expected coverage-not-found after drop")
	}
}
