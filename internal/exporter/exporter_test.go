// SPDX-License-Identifier: MIT

package exporter

import (
	"bufio"
	"database/sql"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/image/tiff"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/importer"
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

func rasterOf(shape pixel.Shape, w, h int, values []uint64) (*raster.Raster, error) {
	r, err := raster.New(w, h, shape, nil)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p, err := pixel.New(shape)
			if err != nil {
				return nil, err
			}
			p.SetSample(0, values[y*w+x])
			if err := r.SetPixel(x, y, p); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func demCoverage(name string) *catalog.Coverage {
	shape := pixel.Shape{Sample: pixel.SampleFloat64, Pixel: pixel.DataGrid, Bands: 1}
	noData, _ := pixel.New(shape)
	return &catalog.Coverage{
		Name:        name,
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
}

func grayscaleCoverage(name string) *catalog.Coverage {
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Grayscale, Bands: 1}
	noData, _ := pixel.New(shape)
	return &catalog.Coverage{
		Name:        name,
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
}

func importASCIIGrid(t *testing.T, db *sql.DB, c *catalog.Coverage) int64 {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dem.asc")
	content := "ncols 2\nnrows 2\nxllcorner 10\nyllcorner 20\ncellsize 1\n1 2\n3 4\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sectionID, err := importer.Import(db, c, path, "s", importer.NoForcedSRID)
	if err != nil {
		t.Fatalf("importer.Import: %v", err)
	}
	return sectionID
}

func TestWriteAsciiGrid_RoundTripsValues(t *testing.T) {
	db := openTestDB(t)
	c := demCoverage("dem")
	if err := catalog.CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}
	sectionID := importASCIIGrid(t, db, c)

	outPath := filepath.Join(t.TempDir(), "out.asc")
	if err := WriteAsciiGrid(db, c, sectionID, outPath); err != nil {
		t.Fatalf("WriteAsciiGrid: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8 (6 header + 2 data rows): %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "ncols 2") {
		t.Fatalf("unexpected first header line: %q", lines[0])
	}
	row0 := strings.Fields(lines[6])
	row1 := strings.Fields(lines[7])
	if len(row0) != 2 || len(row1) != 2 {
		t.Fatalf("unexpected data rows: %v %v", row0, row1)
	}
	v00, _ := strconv.ParseFloat(row0[0], 64)
	v11, _ := strconv.ParseFloat(row1[1], 64)
	if v00 != 1 || v11 != 4 {
		t.Fatalf("got corners %v/%v, want 1/4: rows=%v %v", v00, v11, row0, row1)
	}
}

func TestWriteAsciiGrid_RejectsNonDataGridCoverage(t *testing.T) {
	db := openTestDB(t)
	c := grayscaleCoverage("gray")
	if err := catalog.CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}
	if err := WriteAsciiGrid(db, c, 1, filepath.Join(t.TempDir(), "out.asc")); err == nil {
		t.Fatalf("expected WriteAsciiGrid to reject a non-data-grid coverage")
	}
}

func insertGrayscaleSection(t *testing.T, db *sql.DB, c *catalog.Coverage) int64 {
	t.Helper()
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
	if err := catalog.InsertLevel(tx, c.Name, false, 0, 0, 1, 1); err != nil {
		t.Fatalf("InsertLevel: %v", err)
	}
	shape := pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.Grayscale, Bands: 1}
	r, err := rasterOf(shape, 2, 2, []uint64{10, 20, 30, 40})
	if err != nil {
		t.Fatalf("rasterOf: %v", err)
	}
	blob, err := tilecodec.Encode(r, tilecodec.None, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := catalog.InsertTile(tx, c.Name, sectionID, 0, catalog.EncodeEnvelope(env), 0, 2, 0, 2, blob.Odd, blob.Even); err != nil {
		t.Fatalf("InsertTile: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return sectionID
}

func TestWriteTiff_ProducesDecodableFile(t *testing.T) {
	db := openTestDB(t)
	c := grayscaleCoverage("gray")
	if err := catalog.CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}
	sectionID := insertGrayscaleSection(t, db, c)

	path := filepath.Join(t.TempDir(), "out.tif")
	if err := WriteTiff(db, c, sectionID, path); err != nil {
		t.Fatalf("WriteTiff: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected a non-empty tiff file, err=%v size=%v", err, info)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		t.Fatalf("tiff.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("decoded image is %dx%d, want 2x2", b.Dx(), b.Dy())
	}
}

func TestWriteTiffTfw_WritesWorldfileSidecar(t *testing.T) {
	db := openTestDB(t)
	c := grayscaleCoverage("gray2")
	if err := catalog.CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}
	sectionID := insertGrayscaleSection(t, db, c)

	path := filepath.Join(t.TempDir(), "out.tif")
	if err := WriteTiffTfw(db, c, sectionID, path); err != nil {
		t.Fatalf("WriteTiffTfw: %v", err)
	}
	tfwPath := worldFilePath(path)
	data, err := os.ReadFile(tfwPath)
	if err != nil {
		t.Fatalf("expected a .tfw sidecar: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 worldfile lines, got %d: %q", len(lines), data)
	}
}

func TestWriteGeoTiff_EmbedsPatchedIFD(t *testing.T) {
	db := openTestDB(t)
	c := grayscaleCoverage("gray3")
	if err := catalog.CreateCoverage(db, c); err != nil {
		t.Fatalf("CreateCoverage: %v", err)
	}
	sectionID := insertGrayscaleSection(t, db, c)

	path := filepath.Join(t.TempDir(), "out.tif")
	if err := WriteGeoTiff(db, c, sectionID, path); err != nil {
		t.Fatalf("WriteGeoTiff: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) < 8 {
		t.Fatalf("file too short")
	}
	var order binary.ByteOrder = binary.LittleEndian
	if data[0] == 'M' {
		order = binary.BigEndian
	}
	ifd := int(order.Uint32(data[4:8]))
	if ifd+2 > len(data) {
		t.Fatalf("IFD offset %d out of range for a %d-byte file", ifd, len(data))
	}
	tags := map[uint16]bool{}
	for i := 0; i < int(order.Uint16(data[ifd:ifd+2])); i++ {
		e := ifd + 2 + 12*i
		if e+12 > len(data) {
			t.Fatalf("IFD entry %d out of range", i)
		}
		tags[order.Uint16(data[e:e+2])] = true
	}
	if !tags[tagModelPixelScale] || !tags[tagModelTiepoint] {
		t.Fatalf("IFD at offset %d lacks the ModelPixelScale/ModelTiepoint tags", ifd)
	}
}
