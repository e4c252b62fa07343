// SPDX-License-Identifier: MIT

// Command rl2 is a thin CLI front-end over this module's raster
// storage engine: one verb per lifecycle/ingress/egress operation,
// backed by internal/engine the same way internal/sqlfunc exposes it
// to SQL callers instead of to a terminal.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/engine"
	"github.com/brawer/rasterlite2go/internal/importer"
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/reader"
	"github.com/brawer/rasterlite2go/internal/sqlfunc"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

var logger *log.Logger

func main() {
	logfile, err := createLogFile()
	if err != nil {
		log.Fatal(err)
	}
	defer logfile.Close()
	logger = log.New(logfile, "", log.Ldate|log.Ltime|log.LUTC|log.Lshortfile)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	verb := os.Args[1]
	args := os.Args[2:]

	var err2 error
	switch verb {
	case "create":
		err2 = runCreate(args)
	case "drop":
		err2 = runDrop(args)
	case "import":
		err2 = runImport(args)
	case "loaddir":
		err2 = runLoadDir(args)
	case "delete":
		err2 = runDelete(args)
	case "pyramidize":
		err2 = runPyramidize(args)
	case "list":
		err2 = runList(args)
	case "catalog":
		err2 = runCatalog(args)
	case "export":
		err2 = runExport(args)
	case "map":
		err2 = runMap(args)
	case "check":
		err2 = runCheck(args)
	case "serve":
		err2 = runServe(args)
	default:
		usage()
		os.Exit(2)
	}
	if err2 != nil {
		logger.Printf("%s failed: %v", verb, err2)
		fmt.Fprintf(os.Stderr, "rl2 %s: %v\n", verb, err2)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rl2 <create|drop|import|loaddir|delete|pyramidize|list|catalog|export|map|check|serve> [flags]")
}

// createLogFile creates (or reopens) logs/rl2.log, preserving any
// existing content, following the same pattern as
// cmd/tilerank-builder's createLogFile.
func createLogFile() (*os.File, error) {
	if err := os.MkdirAll("logs", os.ModePerm); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join("logs", "rl2.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// allowFileIO reads SPATIALITE_SECURITY exactly once, the same
// environment variable and "relaxed" spelling librasterlite2 itself
// uses to gate its own filesystem-touching SQL functions.
func allowFileIO() bool {
	return strings.EqualFold(os.Getenv("SPATIALITE_SECURITY"), "relaxed")
}

// engineMetrics is created and registered on prometheus.DefaultRegisterer
// by the first openEngine call and shared by every engine opened after
// it, since the default registerer rejects a second registration of the
// same metrics.
var engineMetrics *engine.Metrics

func openEngine(dbPath string) (*sql.DB, *engine.Engine, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("io-failure: opening %s: %w", dbPath, err)
	}
	if engineMetrics == nil {
		m, err := engine.NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		engineMetrics = m
	}
	e, err := engine.Open(db, engine.Config{AllowFileIO: allowFileIO()}, engine.WithLogger(logger), engine.WithMetrics(engineMetrics))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, e, nil
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "coverage name")
	sampleType := fs.String("sample", "uint8", "sample type keyword")
	pixelType := fs.String("pixel", "grayscale", "pixel type keyword")
	bands := fs.Int("bands", 1, "band count")
	compression := fs.String("compression", "none", "compression keyword")
	quality := fs.Int("quality", 0, "lossy compression quality, 0-100")
	tileWidth := fs.Int("tilewidth", 512, "tile width in pixels")
	tileHeight := fs.Int("tileheight", 512, "tile height in pixels")
	srid := fs.Int("srid", 4326, "spatial reference system identifier")
	hres := fs.Float64("hres", 1, "nominal horizontal resolution")
	vres := fs.Float64("vres", 1, "nominal vertical resolution")
	mixed := fs.Bool("mixed-resolutions", false, "allow sections at differing resolutions")
	fs.Parse(args)

	st, err := pixel.ParseSampleType(*sampleType)
	if err != nil {
		return err
	}
	pt, err := pixel.ParsePixelType(*pixelType)
	if err != nil {
		return err
	}
	comp, err := tilecodec.ParseCompression(*compression)
	if err != nil {
		return err
	}

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return e.CreateCoverage(&catalog.Coverage{
		Name:             *name,
		SampleType:       st,
		PixelType:        pt,
		Bands:            *bands,
		Compression:      comp,
		Quality:          *quality,
		TileWidth:        *tileWidth,
		TileHeight:       *tileHeight,
		SRID:             *srid,
		HRes:             *hres,
		VRes:             *vres,
		MixedResolutions: *mixed,
	})
}

func runDrop(args []string) error {
	fs := flag.NewFlagSet("drop", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "coverage name")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return e.DropCoverage(*name)
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "coverage name")
	file := fs.String("file", "", "path to the raster file to import")
	section := fs.String("section", "", "name for the new section")
	forceSRID := fs.Int("force-srid", importer.NoForcedSRID, "override the source's own SRID instead of requiring it to match the coverage's")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := e.GetCoverage(*name)
	if err != nil {
		return err
	}
	sectionID, err := e.Import(c, *file, *section, *forceSRID)
	if err != nil {
		return err
	}
	fmt.Printf("imported section %d\n", sectionID)
	return nil
}

func runLoadDir(args []string) error {
	fs := flag.NewFlagSet("loaddir", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "coverage name")
	dir := fs.String("dir", "", "directory of raster files to import")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := e.GetCoverage(*name)
	if err != nil {
		return err
	}
	sectionIDs, err := e.LoadRastersFromDir(c, *dir)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d section(s)\n", len(sectionIDs))
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "coverage name")
	sectionID := fs.Int64("section", 0, "section id to delete")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := e.GetCoverage(*name)
	if err != nil {
		return err
	}
	return e.DeleteSection(c, *sectionID)
}

func runPyramidize(args []string) error {
	fs := flag.NewFlagSet("pyramidize", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "coverage name")
	sectionID := fs.Int64("section", 0, "section id to pyramidize")
	rebuild := fs.Bool("rebuild", false, "force every level to be regenerated from scratch")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := e.GetCoverage(*name)
	if err != nil {
		return err
	}
	if *rebuild {
		return e.RebuildPyramid(c, *sectionID)
	}
	return e.BuildPyramid(c, *sectionID)
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	names, err := e.ListCoverages()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runCatalog(args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "coverage name")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := e.GetCoverage(*name)
	if err != nil {
		return err
	}
	fmt.Printf("name=%s sample=%s pixel=%s bands=%d compression=%s tile=%dx%d srid=%d hres=%g vres=%g mixed-resolutions=%v\n",
		c.Name, c.SampleType, c.PixelType, c.Bands, c.Compression, c.TileWidth, c.TileHeight, c.SRID, c.HRes, c.VRes, c.MixedResolutions)
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "coverage name")
	sectionID := fs.Int64("section", 0, "section id to export")
	out := fs.String("out", "", "output file path")
	format := fs.String("format", "geotiff", "geotiff, tiff+tfw, tiff, or asciigrid")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := e.GetCoverage(*name)
	if err != nil {
		return err
	}
	switch *format {
	case "geotiff":
		return e.WriteGeoTiff(c, *sectionID, *out)
	case "tiff+tfw":
		return e.WriteTiffTfw(c, *sectionID, *out)
	case "tiff":
		return e.WriteTiff(c, *sectionID, *out)
	case "asciigrid":
		return e.WriteAsciiGrid(c, *sectionID, *out)
	default:
		return fmt.Errorf("invalid-argument: unknown export format %q", *format)
	}
}

func runMap(args []string) error {
	fs := flag.NewFlagSet("map", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "coverage name")
	sectionID := fs.Int64("section", 0, "restrict to one section, 0 for the whole coverage")
	minX := fs.Float64("minx", 0, "window min X")
	minY := fs.Float64("miny", 0, "window min Y")
	maxX := fs.Float64("maxx", 0, "window max X")
	maxY := fs.Float64("maxy", 0, "window max Y")
	width := fs.Int("width", 0, "output width in pixels")
	height := fs.Int("height", 0, "output height in pixels")
	xres := fs.Float64("xres", 0, "requested horizontal resolution")
	yres := fs.Float64("yres", 0, "requested vertical resolution")
	format := fs.String("format", "png", "png or jpeg")
	quality := fs.Int("quality", 0, "jpeg quality, 0-100")
	out := fs.String("out", "", "output image file path")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := e.GetCoverage(*name)
	if err != nil {
		return err
	}
	req := reader.Request{
		SectionID: *sectionID,
		Width:     *width,
		Height:    *height,
		MinX:      *minX,
		MinY:      *minY,
		MaxX:      *maxX,
		MaxY:      *maxY,
		XRes:      *xres,
		YRes:      *yres,
	}
	img, err := e.GetMapImage(c, req, *format, *quality)
	if err != nil {
		return err
	}
	if !allowFileIO() {
		return fmt.Errorf("io-failure: writing %s requires SPATIALITE_SECURITY=relaxed", *out)
	}
	return os.WriteFile(*out, img, 0644)
}

// runCheck decodes every base-resolution tile of a coverage (or, with
// no -coverage flag, every coverage in the database), reporting how
// many tiles failed to decode. It is a best-effort structural
// integrity pass: it does not walk pyramid levels above the base, and
// it trusts stats/no-data blobs it doesn't itself revisit.
func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	name := fs.String("coverage", "", "restrict to one coverage; empty checks every coverage")
	fs.Parse(args)

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var names []string
	if *name != "" {
		names = []string{*name}
	} else {
		names, err = e.ListCoverages()
		if err != nil {
			return err
		}
	}

	var totalTiles, badTiles int
	for _, covName := range names {
		c, err := e.GetCoverage(covName)
		if err != nil {
			return err
		}

		rows, err := db.Query(fmt.Sprintf("SELECT section_id FROM %s_sections", covName))
		if err != nil {
			return fmt.Errorf("dbms-query: %w", err)
		}
		var sectionIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			sectionIDs = append(sectionIDs, id)
		}
		rows.Close()

		for _, sectionID := range sectionIDs {
			tiles, err := catalog.QueryTilesBySection(db, covName, sectionID, 0)
			if err != nil {
				return err
			}
			for _, tile := range tiles {
				totalTiles++
				data, err := catalog.GetTileData(db, covName, tile.TileID)
				if err != nil {
					badTiles++
					logger.Printf("check: coverage %q section %d tile %d: %v", covName, sectionID, tile.TileID, err)
					continue
				}
				blob := tilecodec.Blob{Odd: data.Odd, Even: data.Even}
				if _, err := tilecodec.Decode(blob, c.Compression, c.Shape(), c.TileWidth, c.TileHeight, tilecodec.Scale1, c.Palette); err != nil {
					badTiles++
					logger.Printf("check: coverage %q section %d tile %d: %v", covName, sectionID, tile.TileID, err)
				}
			}
		}
	}

	fmt.Printf("checked %d tile(s) across %d coverage(s), %d bad\n", totalTiles, len(names), badTiles)
	if badTiles > 0 {
		return fmt.Errorf("bad-tile-blob: %d of %d tiles failed to decode", badTiles, totalTiles)
	}
	return nil
}

// runServe exposes this module's functions both as SQL-callable
// functions on a long-lived connection and as a Prometheus /metrics
// endpoint, the way cmd/webserver exposes promhttp.Handler() alongside
// its own application routes.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to the SQLite database")
	port := fs.Int("port", 0, "port for serving HTTP requests")
	fs.Parse(args)

	if *port == 0 {
		*port, _ = strconv.Atoi(os.Getenv("PORT"))
	}

	db, e, err := openEngine(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	conn, err := db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("dbms-query: %w", err)
	}
	defer conn.Close()
	if err := sqlfunc.Register(conn, e); err != nil {
		return err
	}

	http.Handle("/metrics", promhttp.Handler())
	logger.Printf("rl2 serve: listening on port %d", *port)
	return http.ListenAndServe(":"+strconv.Itoa(*port), nil)
}
