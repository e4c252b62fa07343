// SPDX-License-Identifier: MIT

// Package sqlfunc binds an *engine.Engine onto a live SQLite connection
// as a family of SQL-callable functions, the way librasterlite2 exposes
// its C API as SQL functions a caller invokes from a SELECT statement
// rather than from a host-language binding. Every function is
// registered under both its bare name (CreateCoverage) and the
// RL2_-prefixed alias (RL2_CreateCoverage), matching rasterlite2's own
// two spellings for the same function.
package sqlfunc

import (
	"database/sql"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/brawer/rasterlite2go/internal/engine"
)

// errCode translates a Go error into the three-way return code every
// mutating SQL-callable function in this package reports: 1 on
// success, -1 when the failure is an invalid-argument (bad shape,
// nonsensical value, incompatible keyword), 0 for every other
// operation-level failure (coverage mismatch, bad blob, I/O failure,
// codec failure, and so on).
func errCode(err error) int64 {
	if err == nil {
		return 1
	}
	if strings.HasPrefix(err.Error(), "invalid-argument") {
		return -1
	}
	return 0
}

// Register binds every function this package exposes onto conn's
// underlying driver connection. conn must be a *sql.Conn obtained from
// a *sql.DB opened with the mattn/go-sqlite3 driver; any other driver
// fails with an error rather than silently registering nothing.
//
// Value-returning introspection functions (GetPixelType, GetPixelSampleType,
// CreatePixel, GetMapImage) do not follow the 1/0/-1 convention: they
// return the requested value, or its Go zero value (empty string, nil
// blob) on failure. go-sqlite3's RegisterFunc maps a function that
// returns a non-nil error into a raised SQL exception rather than into
// a NULL column value, unlike rasterlite2's own sqlite3_result_null, so
// these bindings intentionally never return an error to the driver:
// they catch it internally and fall back to the zero value.
func Register(conn *sql.Conn, e *engine.Engine) error {
	return conn.Raw(func(raw interface{}) error {
		sc, ok := raw.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("sqlfunc: connection is not a go-sqlite3 connection (got %T)", raw)
		}
		b := &binder{conn: sc, e: e}
		return b.registerAll()
	})
}

// binder holds the state shared by every registration closure: the
// driver connection functions are bound to, and the Engine they wrap.
type binder struct {
	conn *sqlite3.SQLiteConn
	e    *engine.Engine
}

// register binds impl under name and under its RL2_-prefixed alias.
// pure tells SQLite whether repeated calls with the same arguments
// always produce the same result (true for pixel/shape introspection,
// false for anything that reads or mutates the open database).
func (b *binder) register(name string, impl interface{}, pure bool) error {
	if err := b.conn.RegisterFunc(name, impl, pure); err != nil {
		return fmt.Errorf("sqlfunc: registering %s: %w", name, err)
	}
	if err := b.conn.RegisterFunc("RL2_"+name, impl, pure); err != nil {
		return fmt.Errorf("sqlfunc: registering RL2_%s: %w", name, err)
	}
	return nil
}

func (b *binder) registerAll() error {
	registrations := []struct {
		name string
		impl interface{}
		pure bool
	}{
		{"CreatePixel", b.createPixel, true},
		{"GetPixelType", b.getPixelType, true},
		{"GetPixelSampleType", b.getPixelSampleType, true},
		{"GetPixelNumBands", b.getPixelNumBands, true},
		{"GetPixelValue", b.getPixelValue, true},
		{"SetPixelValue", b.setPixelValue, true},
		{"IsTransparentPixel", b.isTransparentPixel, true},
		{"SetTransparentPixel", b.setTransparentPixel, true},
		{"PixelEquals", b.pixelEquals, true},
		{"IsValidPixel", b.isValidPixel, true},
		{"IsValidRasterStatistics", b.isValidRasterStatistics, true},

		{"CreateCoverage", b.createCoverage, false},
		{"DropCoverage", b.dropCoverage, false},
		{"DeleteSection", b.deleteSection, false},
		{"Pyramidize", b.pyramidize, false},
		{"DePyramidize", b.dePyramidize, false},

		{"LoadRaster", b.loadRaster, false},
		{"LoadRastersFromDir", b.loadRastersFromDir, false},

		{"WriteGeoTiff", b.writeGeoTiff, false},
		{"WriteTiffTfw", b.writeTiffTfw, false},
		{"WriteTiff", b.writeTiff, false},
		{"WriteAsciiGrid", b.writeAsciiGrid, false},
		{"GetMapImage", b.getMapImage, false},
	}
	for _, r := range registrations {
		if err := b.register(r.name, r.impl, r.pure); err != nil {
			return err
		}
	}
	return nil
}
