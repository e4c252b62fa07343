// SPDX-License-Identifier: MIT

package importer

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/stats"
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

// TestImport_SingleTileASCIIGrid imports a 2x2 ASCII Grid into a
// coverage whose tile size exactly matches the grid, so no edge
// padding is needed, and checks the resulting section, level, tile and
// statistics rows.
func TestImport_SingleTileASCIIGrid(t *testing.T) {
	db := openTestDB(t)

	shape := pixel.Shape{Sample: pixel.SampleFloat64, Pixel: pixel.DataGrid, Bands: 1}
	noData, _ := pixel.New(shape)
	c := &catalog.Coverage{
		Name:        "dem",
		SampleType:  shape.Sample,
		PixelType:   shape.Pixel,
		Bands:       shape.Bands,
		Compression: tilecodec.None,
		TileWidth:   2,
		TileHeight:  2,
		SRID:        4326,
		HRes:        10,
		VRes:        10,
		NoDataPixel: noData,
	}
	if err := catalog.CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "dem.asc")
	content := "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 10\nNODATA_value -9999\n1 2\n3 -9999\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sectionID, err := Import(db, c, path, "dem-section", NoForcedSRID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	section, err := catalog.GetSection(db, c.Name, sectionID)
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if section.Width != 2 || section.Height != 2 {
		t.Fatalf("got section %dx%d, want 2x2", section.Width, section.Height)
	}
	env, err := catalog.DecodeEnvelope(section.Geometry)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	wantEnv := catalog.Envelope{MinX: 0, MinY: 0, MaxX: 20, MaxY: 20}
	if env != wantEnv {
		t.Fatalf("got section envelope %+v, want %+v", env, wantEnv)
	}

	tiles, err := catalog.QueryTilesBySection(db, c.Name, sectionID, 0)
	if err != nil {
		t.Fatalf("QueryTilesBySection: %v", err)
	}
	if len(tiles) != 1 {
		t.Fatalf("got %d tiles, want 1", len(tiles))
	}

	td, err := catalog.GetTileData(db, c.Name, tiles[0].TileID)
	if err != nil {
		t.Fatalf("GetTileData: %v", err)
	}
	tile, err := tilecodec.Decode(tilecodec.Blob{Odd: td.Odd, Even: td.Even}, tilecodec.None, shape, 2, 2, tilecodec.Scale1, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	p, err := tile.GetPixel(1, 1)
	if err != nil {
		t.Fatalf("GetPixel: %v", err)
	}
	if !p.Transparent {
		t.Fatalf("expected the NODATA cell to decode as transparent")
	}

	got, err := catalog.GetSection(db, c.Name, sectionID)
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if len(got.Statistics) == 0 {
		t.Fatalf("expected section statistics to be recorded")
	}
	st, err := stats.FromBlob(got.Statistics, c.SampleType, c.Bands)
	if err != nil {
		t.Fatalf("stats.FromBlob: %v", err)
	}
	if st.Bands[0].Count != 3 {
		t.Fatalf("got stats count %d, want 3 (one cell is no-data and excluded)", st.Bands[0].Count)
	}
}

// TestImport_PadsEdgeTiles imports a 3x3 ASCII Grid into a coverage
// with 2x2 tiles, so the grid needs a 2x2 tile grid with no-data
// padding along the right and bottom edges.
func TestImport_PadsEdgeTiles(t *testing.T) {
	db := openTestDB(t)

	shape := pixel.Shape{Sample: pixel.SampleFloat64, Pixel: pixel.DataGrid, Bands: 1}
	noData, _ := pixel.New(shape)
	c := &catalog.Coverage{
		Name:        "dem3",
		SampleType:  shape.Sample,
		PixelType:   shape.Pixel,
		Bands:       shape.Bands,
		Compression: tilecodec.None,
		TileWidth:   2,
		TileHeight:  2,
		SRID:        4326,
		HRes:        1,
		VRes:        1,
		NoDataPixel: noData,
	}
	if err := catalog.CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "dem3.asc")
	content := "ncols 3\nnrows 3\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n4 5 6\n7 8 9\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sectionID, err := Import(db, c, path, "dem3-section", NoForcedSRID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	tiles, err := catalog.QueryTilesBySection(db, c.Name, sectionID, 0)
	if err != nil {
		t.Fatalf("QueryTilesBySection: %v", err)
	}
	if len(tiles) != 4 {
		t.Fatalf("got %d tiles, want 4 (a 2x2 tile grid covering a 3x3 section)", len(tiles))
	}
}
