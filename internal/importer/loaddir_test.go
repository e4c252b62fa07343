// SPDX-License-Identifier: MIT

package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dsnet/compress/bzip2"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

func writeBZ2(t *testing.T, path string, content []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()
	w, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		t.Fatalf("bzip2.NewWriter: %v", err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReadSource_DecompressesBZ2ASCIIGrid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dem.asc.bz2")
	content := "ncols 2\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 10\n1 2\n"
	writeBZ2(t, path, []byte(content))

	r, gt, err := readSource(path)
	if err != nil {
		t.Fatalf("readSource: %v", err)
	}
	if r.Width != 2 || r.Height != 1 {
		t.Fatalf("got %dx%d, want 2x1", r.Width, r.Height)
	}
	if gt.XRes != 10 {
		t.Fatalf("got XRes %g, want 10", gt.XRes)
	}
}

func TestReadWorldFile_FallsBackToCompressedSidecar(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "ortho")
	writeBZ2(t, base+".tfw.bz2", []byte("10\n0\n0\n-10\n505\n1005\n"))

	gt, err := readWorldFile(base + ".tif")
	if err != nil {
		t.Fatalf("readWorldFile: %v", err)
	}
	if gt.XRes != 10 || gt.YRes != 10 {
		t.Fatalf("got resolution (%g, %g), want (10, 10)", gt.XRes, gt.YRes)
	}
}

func TestLoadRastersFromDir_ImportsEachRecognizedFile(t *testing.T) {
	db := openTestDB(t)

	shape := pixel.Shape{Sample: pixel.SampleFloat64, Pixel: pixel.DataGrid, Bands: 1}
	noData, _ := pixel.New(shape)
	c := &catalog.Coverage{
		Name:        "batch",
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
	grid :="ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n3 4\n"
	for _, name := range []string{"a.asc", "b.asc", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(grid), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	sectionIDs, err := LoadRastersFromDir(db, c, dir)
	if err != nil {
		t.Fatalf("LoadRastersFromDir: %v", err)
	}
	if len(sectionIDs) != 2 {
		t.Fatalf("got %d sections, want 2 (readme.txt must be skipped)", len(sectionIDs))
	}
	seen := map[int64]bool{}
	for _, id := range sectionIDs {
		if id == 0 {
			t.Fatalf("got a zero section id, a goroutine's result may not have been recorded")
		}
		seen[id] = true
	}
	if len(seen) != 2 {
		t.Fatalf("got %d distinct section ids, want 2", len(seen))
	}
}

func TestLoadRastersFromDir_PropagatesImportError(t *testing.T) {
	db := openTestDB(t)

	shape := pixel.Shape{Sample: pixel.SampleFloat64, Pixel: pixel.DataGrid, Bands: 1}
	noData, _ := pixel.New(shape)
	c := &catalog.Coverage{
		Name:        "batch2",
		SampleType:  shape.Sample,
		PixelType:   shape.Pixel,
		Bands:       shape.Bands,
		Compression: tilecodec.None,
		TileWidth:   2,
		TileHeight:  2,
		SRID:        4326,
		NoDataPixel: noData,
	}
	if err := catalog.CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.asc"), []byte("not a valid grid"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadRastersFromDir(db, c, dir); err == nil {
		t.Fatalf("expected an error for a malformed ASCII grid")
	}
}
