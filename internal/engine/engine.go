// SPDX-License-Identifier: MIT

// Package engine wires the catalog, importer, pyramid builder and
// windowed reader behind a single handle, the way a caller (a CLI verb
// or a SQL UDF binding) actually wants to use this module: one object
// holding a *sql.DB, a security policy, an optional logger and optional
// metrics, instead of threading those through every call site by hand.
package engine

import (
	"database/sql"
	"log"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/exporter"
	"github.com/brawer/rasterlite2go/internal/importer"
	"github.com/brawer/rasterlite2go/internal/pyramid"
	"github.com/brawer/rasterlite2go/internal/reader"
	"github.com/brawer/rasterlite2go/internal/stats"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// Config holds the policy knobs an Engine is opened with.
type Config struct {
	// AllowFileIO mirrors rasterlite2's SPATIALITE_SECURITY=relaxed
	// escape hatch: when false (the default, "strict"), Import and
	// LoadRastersFromDir refuse to touch the filesystem at all, so that
	// a coverage exposed to untrusted SQL callers (via internal/sqlfunc)
	// cannot be used to read or write arbitrary local paths.
	AllowFileIO bool
}

// Engine is the caller-facing handle for one open database. It is safe
// for concurrent use by multiple goroutines, the same guarantee
// database/sql itself makes for *sql.DB.
type Engine struct {
	db      *sql.DB
	config  Config
	logger  *log.Logger
	metrics *Metrics
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger attaches a logger every Engine operation writes
// significant events to. A nil logger (the default if WithLogger is
// never passed) means Engine logs nothing, matching how
// cmd/qrank-builder's own package-level *log.Logger is nil until main
// assigns it.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a Metrics instance every Engine operation
// updates. A nil Metrics (the default) means Engine collects nothing.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Open wraps an already-opened *sql.DB (the caller chooses the driver
// and DSN, exactly as catalog/importer/pyramid/reader already expect)
// and ensures the shared catalog table exists.
func Open(db *sql.DB, config Config, opts ...Option) (*Engine, error) {
	if err := catalog.EnsureCatalogTable(db); err != nil {
		return nil, err
	}
	e := &Engine{db: db, config: config}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// DB returns the underlying database handle, for callers (such as
// internal/sqlfunc) that need to register SQL functions against the
// same connection pool an Engine was opened on.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// CreateCoverage registers a new coverage's table family.
func (e *Engine) CreateCoverage(c *catalog.Coverage) error {
	if err := catalog.CreateCoverage(e.db, c); err != nil {
		return err
	}
	e.logf("created coverage %q", c.Name)
	return nil
}

// DropCoverage removes a coverage's table family and catalog row.
func (e *Engine) DropCoverage(name string) error {
	if err := catalog.DropCoverage(e.db, name); err != nil {
		return err
	}
	e.logf("dropped coverage %q", name)
	return nil
}

// DeleteSection removes one section and every tile, tile_data row and
// rtree entry that hangs off it.
func (e *Engine) DeleteSection(coverage *catalog.Coverage, sectionID int64) error {
	if err := catalog.DeleteSection(e.db, coverage, sectionID); err != nil {
		return err
	}
	e.logf("deleted section %d from coverage %q", sectionID, coverage.Name)
	return nil
}

// GetCoverage loads a coverage's descriptor by name.
func (e *Engine) GetCoverage(name string) (*catalog.Coverage, error) {
	return catalog.GetCoverage(e.db, name)
}

// ListCoverages returns every registered coverage's name.
func (e *Engine) ListCoverages() ([]string, error) {
	return catalog.ListCoverages(e.db)
}

// Import reads a single raster file from disk and tiles it into a new
// section of coverage. It refuses to run unless Config.AllowFileIO is
// set, since it reads an arbitrary caller-supplied path. forcedSRID
// overrides the source's own SRID; pass importer.NoForcedSRID for none.
func (e *Engine) Import(coverage *catalog.Coverage, path, sectionName string, forcedSRID int) (int64, error) {
	if !e.config.AllowFileIO {
		return 0, errFileIODisabled
	}
	start := e.metricsStart()
	sectionID, err := importer.Import(e.db, coverage, path, sectionName, forcedSRID)
	e.metricsObserveImport(start, err)
	if err != nil {
		return 0, err
	}
	if e.metrics != nil {
		if tiles, terr := catalog.QueryTilesBySection(e.db, coverage.Name, sectionID, 0); terr == nil {
			e.metrics.TilesWritten.Add(float64(len(tiles)))
		}
	}
	e.logf("imported %s into coverage %q as section %d", path, coverage.Name, sectionID)
	return sectionID, nil
}

// LoadRastersFromDir imports every recognized raster file directly
// inside dir as a new section of coverage, fanning out across files
// concurrently. Subject to the same AllowFileIO gate as Import.
func (e *Engine) LoadRastersFromDir(coverage *catalog.Coverage, dir string) ([]int64, error) {
	if !e.config.AllowFileIO {
		return nil, errFileIODisabled
	}
	sectionIDs, err := importer.LoadRastersFromDir(e.db, coverage, dir)
	if err != nil {
		return nil, err
	}
	e.logf("imported %d section(s) from %s into coverage %q", len(sectionIDs), dir, coverage.Name)
	return sectionIDs, nil
}

// BuildPyramid builds any missing pyramid levels above a section's base
// level.
func (e *Engine) BuildPyramid(coverage *catalog.Coverage, sectionID int64) error {
	start := e.metricsStart()
	err := pyramid.Build(e.db, coverage, sectionID)
	e.metricsObservePyramid(start, err)
	if err != nil {
		return err
	}
	e.logf("built pyramid for coverage %q section %d", coverage.Name, sectionID)
	return nil
}

// RebuildPyramid forces every pyramid level above the base level to be
// regenerated from scratch, even if already present.
func (e *Engine) RebuildPyramid(coverage *catalog.Coverage, sectionID int64) error {
	start := e.metricsStart()
	err := pyramid.Rebuild(e.db, coverage, sectionID)
	e.metricsObservePyramid(start, err)
	if err != nil {
		return err
	}
	e.logf("rebuilt pyramid for coverage %q section %d", coverage.Name, sectionID)
	return nil
}

// Read executes a windowed read against coverage.
func (e *Engine) Read(coverage *catalog.Coverage, req reader.Request) (*reader.Result, error) {
	start := e.metricsStart()
	res, err := reader.Read(e.db, coverage, req)
	e.metricsObserveRead(start, err)
	if err == nil && e.metrics != nil {
		e.metrics.TilesDecoded.Add(float64(res.TilesDecoded))
	}
	return res, err
}

// GetMapImage runs a windowed read and encodes the result as a
// standalone PNG or JPEG image, the way a map-tile serving endpoint
// wants its output delivered rather than as the coverage's own tile
// storage encoding.
func (e *Engine) GetMapImage(coverage *catalog.Coverage, req reader.Request, format string, quality int) ([]byte, error) {
	res, err := e.Read(coverage, req)
	if err != nil {
		return nil, err
	}
	return tilecodec.EncodeImage(res.Raster, format, quality)
}

// RecomputeSectionStats rebuilds a section's statistics directly from
// its stored tiles.
func (e *Engine) RecomputeSectionStats(coverage *catalog.Coverage, sectionID int64) (*stats.Statistics, error) {
	return stats.RecomputeSectionStats(e.db, coverage, sectionID)
}

// WriteAsciiGrid exports a section as an Esri ASCII Grid file. Subject
// to the same AllowFileIO gate as Import, since it writes to an
// arbitrary caller-supplied path.
func (e *Engine) WriteAsciiGrid(coverage *catalog.Coverage, sectionID int64, path string) error {
	if !e.config.AllowFileIO {
		return errFileIODisabled
	}
	if err := exporter.WriteAsciiGrid(e.db, coverage, sectionID, path); err != nil {
		return err
	}
	e.logf("exported section %d of coverage %q to %s (ascii grid)", sectionID, coverage.Name, path)
	return nil
}

// WriteTiff exports a section as a plain TIFF file with no
// georeferencing at all.
func (e *Engine) WriteTiff(coverage *catalog.Coverage, sectionID int64, path string) error {
	if !e.config.AllowFileIO {
		return errFileIODisabled
	}
	if err := exporter.WriteTiff(e.db, coverage, sectionID, path); err != nil {
		return err
	}
	e.logf("exported section %d of coverage %q to %s (tiff)", sectionID, coverage.Name, path)
	return nil
}

// WriteTiffTfw exports a section as a TIFF file plus a .tfw worldfile
// sidecar carrying its georeferencing.
func (e *Engine) WriteTiffTfw(coverage *catalog.Coverage, sectionID int64, path string) error {
	if !e.config.AllowFileIO {
		return errFileIODisabled
	}
	if err := exporter.WriteTiffTfw(e.db, coverage, sectionID, path); err != nil {
		return err
	}
	e.logf("exported section %d of coverage %q to %s (tiff+tfw)", sectionID, coverage.Name, path)
	return nil
}

// WriteGeoTiff exports a section as a TIFF file with its
// georeferencing embedded directly as GeoTIFF tags.
func (e *Engine) WriteGeoTiff(coverage *catalog.Coverage, sectionID int64, path string) error {
	if !e.config.AllowFileIO {
		return errFileIODisabled
	}
	if err := exporter.WriteGeoTiff(e.db, coverage, sectionID, path); err != nil {
		return err
	}
	e.logf("exported section %d of coverage %q to %s (geotiff)", sectionID, coverage.Name, path)
	return nil
}
