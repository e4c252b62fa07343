// SPDX-License-Identifier: MIT

package sqlfunc

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brawer/rasterlite2go/internal/engine"
)

// openTestConn opens an in-memory database pinned to exactly one
// physical connection (SetMaxOpenConns(1)) and registers this
// package's SQL functions on that same connection, so that every query
// run through conn afterwards sees them. A pool allowed to open a
// second connection would not: RegisterFunc binds to one driver
// connection, not to the *sql.DB as a whole.
func openTestConn(t *testing.T, allowFileIO bool) (*sql.Conn, *engine.Engine) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	e, err := engine.Open(db, engine.Config{AllowFileIO: allowFileIO})
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}

	conn, err := db.Conn(context.Background())
	if err != nil {
		t.Fatalf("db.Conn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := Register(conn, e); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return conn, e
}

func TestCreateAndDropCoverageViaSQL(t *testing.T) {
	conn, e := openTestConn(t, false)
	ctx := context.Background()

	var code int64
	row := conn.QueryRowContext(ctx, `SELECT CreateCoverage('demo', 'uint8', 'grayscale', 1, 'none', 0, 2, 2, 4326, 1.0, 1.0)`)
	if err := row.Scan(&code); err != nil {
		t.Fatalf("CreateCoverage query: %v", err)
	}
	if code != 1 {
		t.Fatalf("CreateCoverage returned %d, want 1", code)
	}

	if _, err := e.GetCoverage("demo"); err != nil {
		t.Fatalf("coverage not visible to Engine after SQL CreateCoverage: %v", err)
	}

	row = conn.QueryRowContext(ctx, `SELECT RL2_CreateCoverage('demo', 'uint8', 'grayscale', 1, 'none', 0, 2, 2, 4326, 1.0, 1.0)`)
	if err := row.Scan(&code); err != nil {
		t.Fatalf("duplicate RL2_CreateCoverage query: %v", err)
	}
	if code != 0 {
		t.Fatalf("re-creating an existing coverage returned %d, want 0 (operation failure)", code)
	}

	row = conn.QueryRowContext(ctx, `SELECT CreateCoverage('demo', 'bogus', 'grayscale', 1, 'none', 0, 2, 2, 4326, 1.0, 1.0)`)
	if err := row.Scan(&code); err != nil {
		t.Fatalf("bogus keyword query: %v", err)
	}
	if code != -1 {
		t.Fatalf("unknown sample keyword returned %d, want -1", code)
	}

	row = conn.QueryRowContext(ctx, `SELECT DropCoverage('demo')`)
	if err := row.Scan(&code); err != nil {
		t.Fatalf("DropCoverage query: %v", err)
	}
	if code != 1 {
		t.Fatalf("DropCoverage returned %d, want 1", code)
	}
	if _, err := e.GetCoverage("demo"); err == nil {
		t.Fatalf("coverage still visible to Engine after SQL DropCoverage")
	}
}

func TestPixelIntrospectionViaSQL(t *testing.T) {
	conn, _ := openTestConn(t, false)
	ctx := context.Background()

	var blob []byte
	row := conn.QueryRowContext(ctx, `SELECT CreatePixel('uint8', 'grayscale', 1)`)
	if err := row.Scan(&blob); err != nil {
		t.Fatalf("CreatePixel query: %v", err)
	}
	if len(blob) == 0 {
		t.Fatalf("CreatePixel returned an empty blob")
	}

	var pixelType, sampleType string
	if err := conn.QueryRowContext(ctx, `SELECT GetPixelType(?)`, blob).Scan(&pixelType); err != nil {
		t.Fatalf("GetPixelType query: %v", err)
	}
	if pixelType != "grayscale" {
		t.Fatalf("GetPixelType = %q, want grayscale", pixelType)
	}
	if err := conn.QueryRowContext(ctx, `SELECT GetPixelSampleType(?)`, blob).Scan(&sampleType); err != nil {
		t.Fatalf("GetPixelSampleType query: %v", err)
	}
	if sampleType != "uint8" {
		t.Fatalf("GetPixelSampleType = %q, want uint8", sampleType)
	}

	var bands int64
	if err := conn.QueryRowContext(ctx, `SELECT GetPixelNumBands(?)`, blob).Scan(&bands); err != nil {
		t.Fatalf("GetPixelNumBands query: %v", err)
	}
	if bands != 1 {
		t.Fatalf("GetPixelNumBands = %d, want 1", bands)
	}

	var transparent int64
	if err := conn.QueryRowContext(ctx, `SELECT IsTransparentPixel(?)`, blob).Scan(&transparent); err != nil {
		t.Fatalf("IsTransparentPixel query: %v", err)
	}
	if transparent != 0 {
		t.Fatalf("IsTransparentPixel on a fresh default-no-data pixel = %d, want 0", transparent)
	}

	var marked []byte
	if err := conn.QueryRowContext(ctx, `SELECT SetTransparentPixel(?, 1)`, blob).Scan(&marked); err != nil {
		t.Fatalf("SetTransparentPixel query: %v", err)
	}
	if err := conn.QueryRowContext(ctx, `SELECT IsTransparentPixel(?)`, marked).Scan(&transparent); err != nil {
		t.Fatalf("IsTransparentPixel after SetTransparentPixel query: %v", err)
	}
	if transparent != 1 {
		t.Fatalf("IsTransparentPixel after SetTransparentPixel = %d, want 1", transparent)
	}

	var equal int64
	if err := conn.QueryRowContext(ctx, `SELECT PixelEquals(?, ?)`, blob, blob).Scan(&equal); err != nil {
		t.Fatalf("PixelEquals query: %v", err)
	}
	if equal != 1 {
		t.Fatalf("PixelEquals(blob, blob) = %d, want 1", equal)
	}
	if err := conn.QueryRowContext(ctx, `SELECT PixelEquals(?, ?)`, blob, marked).Scan(&equal); err != nil {
		t.Fatalf("PixelEquals after mutation query: %v", err)
	}
	if equal != 0 {
		t.Fatalf("PixelEquals(blob, marked-transparent) = %d, want 0", equal)
	}

	var value float64
	if err := conn.QueryRowContext(ctx, `SELECT SetPixelValue(?, 0, 200.0)`, blob).Scan(&marked); err != nil {
		t.Fatalf("SetPixelValue query: %v", err)
	}
	if err := conn.QueryRowContext(ctx, `SELECT GetPixelValue(?, 0)`, marked).Scan(&value); err != nil {
		t.Fatalf("GetPixelValue query: %v", err)
	}
	if value != 200 {
		t.Fatalf("GetPixelValue after SetPixelValue = %v, want 200", value)
	}

	var valid int64
	if err := conn.QueryRowContext(ctx, `SELECT IsValidPixel(?, 'uint8', 'grayscale')`, blob).Scan(&valid); err != nil {
		t.Fatalf("IsValidPixel query: %v", err)
	}
	if valid != 1 {
		t.Fatalf("IsValidPixel = %d, want 1", valid)
	}
	if err := conn.QueryRowContext(ctx, `SELECT IsValidPixel(?, 'uint8', 'rgb')`, blob).Scan(&valid); err != nil {
		t.Fatalf("mismatched IsValidPixel query: %v", err)
	}
	if valid != 0 {
		t.Fatalf("IsValidPixel with mismatched pixel type = %d, want 0", valid)
	}

	var empty string
	if err := conn.QueryRowContext(ctx, `SELECT GetPixelType(?)`, []byte{1, 2}).Scan(&empty); err != nil {
		t.Fatalf("GetPixelType on garbage blob query: %v", err)
	}
	if empty != "" {
		t.Fatalf("GetPixelType on a too-short blob = %q, want empty", empty)
	}
}

func TestLoadRasterAndExportViaSQL(t *testing.T) {
	conn, e := openTestConn(t, true)
	ctx := context.Background()

	var code int64
	row := conn.QueryRowContext(ctx, `SELECT CreateCoverage('dem', 'float64', 'datagrid', 1, 'none', 0, 2, 2, 4326, 1.0, 1.0)`)
	if err := row.Scan(&code); err != nil || code != 1 {
		t.Fatalf("CreateCoverage: code=%d err=%v", code, err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "dem.asc")
	content := "ncols 2\nnrows 2\nxllcorner 10\nyllcorner 20\ncellsize 1\n1 2\n3 4\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	row = conn.QueryRowContext(ctx, `SELECT LoadRaster('dem', ?, 's', -1)`, path)
	if err := row.Scan(&code); err != nil || code != 1 {
		t.Fatalf("LoadRaster: code=%d err=%v", code, err)
	}

	coverage, err := e.GetCoverage("dem")
	if err != nil {
		t.Fatalf("GetCoverage: %v", err)
	}
	sectionIDs, err := func() (ids []int64, err error) {
		rows, err := conn.QueryContext(ctx, `SELECT section_id FROM dem_sections`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, rows.Err()
	}()
	if err != nil || len(sectionIDs) != 1 {
		t.Fatalf("expected exactly one imported section, got %v, err=%v", sectionIDs, err)
	}
	sectionID := sectionIDs[0]

	outPath := filepath.Join(dir, "out.asc")
	row = conn.QueryRowContext(ctx, `SELECT WriteAsciiGrid('dem', ?, ?)`, sectionID, outPath)
	if err := row.Scan(&code); err != nil || code != 1 {
		t.Fatalf("WriteAsciiGrid: code=%d err=%v", code, err)
	}
	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		t.Fatalf("expected a non-empty exported ascii grid, err=%v", err)
	}

	row = conn.QueryRowContext(ctx, `SELECT Pyramidize('dem', ?)`, sectionID)
	if err := row.Scan(&code); err != nil || code != 1 {
		t.Fatalf("Pyramidize: code=%d err=%v", code, err)
	}

	row = conn.QueryRowContext(ctx, `SELECT DeleteSection('dem', ?)`, sectionID)
	if err := row.Scan(&code); err != nil || code != 1 {
		t.Fatalf("DeleteSection: code=%d err=%v", code, err)
	}

	row = conn.QueryRowContext(ctx, `SELECT WriteAsciiGrid('dem', ?, ?)`, sectionID, outPath)
	if err := row.Scan(&code); err != nil {
		t.Fatalf("post-delete WriteAsciiGrid query: %v", err)
	}
	if code != 0 {
		t.Fatalf("exporting a deleted section returned %d, want 0", code)
	}
}

func TestExportFunctionsRefuseFileIOWhenDisabled(t *testing.T) {
	conn, _ := openTestConn(t, false)
	ctx := context.Background()

	var code int64
	row := conn.QueryRowContext(ctx, `SELECT CreateCoverage('gray', 'uint8', 'grayscale', 1, 'none', 0, 2, 2, 4326, 1.0, 1.0)`)
	if err := row.Scan(&code); err != nil || code != 1 {
		t.Fatalf("CreateCoverage: code=%d err=%v", code, err)
	}

	row = conn.QueryRowContext(ctx, `SELECT WriteTiff('gray', 1, ?)`, filepath.Join(t.TempDir(), "out.tif"))
	if err := row.Scan(&code); err != nil {
		t.Fatalf("WriteTiff query: %v", err)
	}
	if code != 0 {
		t.Fatalf("WriteTiff with AllowFileIO=false returned %d, want 0", code)
	}
}
