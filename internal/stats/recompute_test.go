// SPDX-License-Identifier: MIT

package stats

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

func openRecomputeTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func solidGrayscaleTile(t *testing.T, value uint64) *raster.Raster {
	t.Helper()
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Grayscale, Bands: 1}
	r, err := raster.New(2, 2, shape, nil)
	if err != nil {
		t.Fatalf("raster.New: %v", err)
	}
	p, _ := pixel.New(shape)
	p.SetSample(0, value)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if err := r.SetPixel(x, y, p); err != nil {
				t.Fatalf("SetPixel: %v", err)
			}
		}
	}
	return r
}

// TestRecomputeSectionStats_MatchesIncrementalAggregate inserts two
// tiles directly (bypassing the importer) and checks that the
// externally-sorted recomputation lands on the same pooled totals a
// simple in-order Aggregate pass would produce.
func TestRecomputeSectionStats_MatchesIncrementalAggregate(t *testing.T) {
	db := openRecomputeTestDB(t)
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Grayscale, Bands: 1}
	noData, _ := pixel.New(shape)
	c := &catalog.Coverage{
		Name:        "recompute",
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

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	env := catalog.Envelope{MinX: 0, MinY: 0, MaxX: 4, MaxY: 2}
	sectionID, err := catalog.InsertSection(tx, c.Name, &catalog.Section{
		Name: "s", Width: 4, Height: 2, Geometry: catalog.EncodeEnvelope(env),
	})
	if err != nil {
		t.Fatalf("InsertSection: %v", err)
	}
	if err := catalog.InsertLevel(tx, c.Name, false, 0, 0, 1, 1); err != nil {
		t.Fatalf("InsertLevel: %v", err)
	}

	tileValues := []uint64{10, 20}
	for i, v := range tileValues {
		tile := solidGrayscaleTile(t, v)
		blob, err := tilecodec.Encode(tile, c.Compression, c.Quality)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		minX := float64(i * 2)
		tileEnv := catalog.Envelope{MinX: minX, MinY: 0, MaxX: minX + 2, MaxY: 2}
		geometry := catalog.EncodeEnvelope(tileEnv)
		if _, err := catalog.InsertTile(tx, c.Name, sectionID, 0, geometry, tileEnv.MinX, tileEnv.MaxX, tileEnv.MinY, tileEnv.MaxY, blob.Odd, blob.Even); err != nil {
			t.Fatalf("InsertTile: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := RecomputeSectionStats(db, c, sectionID)
	if err != nil {
		t.Fatalf("RecomputeSectionStats: %v", err)
	}
	if len(got.Bands) != 1 {
		t.Fatalf("got %d bands, want 1", len(got.Bands))
	}
	b := got.Bands[0]
	if b.Count != 8 {
		t.Fatalf("got count %d, want 8 (two 2x2 tiles)", b.Count)
	}
	if b.Min != 10 || b.Max != 20 {
		t.Fatalf("got min/max (%g, %g), want (10, 20)", b.Min, b.Max)
	}
	wantSum := 4*10.0 + 4*20.0
	if b.Sum != wantSum {
		t.Fatalf("got sum %g, want %g", b.Sum, wantSum)
	}
}

func TestRecomputeSectionStats_EmptySectionYieldsZeroCount(t *testing.T) {
	db := openRecomputeTestDB(t)
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Grayscale, Bands: 1}
	noData, _ := pixel.New(shape)
	c := &catalog.Coverage{
		Name:        "empty",
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
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	env := catalog.Envelope{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2}
	sectionID, err := catalog.InsertSection(tx, c.Name, &catalog.Section{
		Name: "s", Width: 2, Height: 2, Geometry: catalog.EncodeEnvelope(env),
	})
	if err != nil {
		t.Fatalf("InsertSection: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := RecomputeSectionStats(db, c, sectionID)
	if err != nil {
		t.Fatalf("RecomputeSectionStats: %v", err)
	}
	if got.Bands[0].Count != 0 {
		t.Fatalf("got count %d, want 0 for a section with no tiles", got.Bands[0].Count)
	}
}
