// SPDX-License-Identifier: MIT

package importer

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dsnet/compress/bzip2"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
	"github.com/brawer/rasterlite2go/internal/stats"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// NoForcedSRID is the sentinel Import's forcedSRID parameter takes to
// mean "no override": the source's own SRID (if it has one) must match
// the coverage's. Mirrors rl2_load_raster's own force_srid default of
// -1 in original_source/src/rl2sql.c, since 0 is itself a value
// SpatiaLite uses for "undefined SRID" and so cannot double as "unset".
const NoForcedSRID = -1

// resolutionTolerance is the permissive-mode per-axis slack the
// compatibility check allows between a source's pixel resolution and
// the coverage's nominal one.
const resolutionTolerance = 0.01

// readSource dispatches to the format-specific reader based on the
// file's extension, mirroring the sniffing rl2import.c does before
// calling its own per-format importer: .asc is read as ASCII Grid,
// .jpg/.jpeg as JPEG and .tif/.tiff as TIFF/GeoTIFF; any other
// extension is rejected as invalid-argument. A bzip2-compressed ASCII Grid (.asc.bz2) is
// transparently expanded in memory before parsing; ASCII Grid is the
// only format this applies to, since it is the only one that is both
// self-contained (no worldfile sidecar to separately decompress) and
// plausibly dump-sized enough to warrant shipping it compressed.
func readSource(path string) (*raster.Raster, GeoTransform, error) {
	switch strings.ToLower(extOf(path)) {
	case ".asc":
		return readASCIIGrid(path)
	case ".bz2":
		if strings.ToLower(extOf(path[:len(path)-len(".bz2")])) == ".asc" {
			return readCompressedASCIIGrid(path)
		}
		return nil, GeoTransform{}, fmt.Errorf("invalid-argument: unrecognized raster file extension %q", extOf(path))
	case ".jpg", ".jpeg":
		return readJPEG(path)
	case ".tif", ".tiff":
		return readTIFF(path)
	default:
		return nil, GeoTransform{}, fmt.Errorf("invalid-argument: unrecognized raster file extension %q", extOf(path))
	}
}

func readCompressedASCIIGrid(path string) (*raster.Raster, GeoTransform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, GeoTransform{}, err
	}
	defer f.Close()
	r, err := bzip2.NewReader(f, &bzip2.ReaderConfig{})
	if err != nil {
		return nil, GeoTransform{}, fmt.Errorf("io-failure: decompressing %s: %w", path, err)
	}
	defer r.Close()
	return readASCIIGridReader(r)
}

// Import reads a raster file from disk, tiles it on the coverage's own
// tile grid, and inserts one new section (at pyramid level 0) together
// with its tiles and section-wide statistics, all inside one
// transaction. It returns the new section's id. forcedSRID overrides
// the source's own SRID (pass NoForcedSRID for none).
func Import(db *sql.DB, coverage *catalog.Coverage, path, sectionName string, forcedSRID int) (int64, error) {
	src, gt, err := readSource(path)
	if err != nil {
		return 0, err
	}

	if err := checkSRID(gt, coverage, forcedSRID, path); err != nil {
		return 0, err
	}
	if gt.XRes <= 0 || gt.YRes <= 0 {
		return 0, fmt.Errorf("invalid-argument: %s has non-positive pixel resolution (%g, %g)", path, gt.XRes, gt.YRes)
	}
	if err := checkResolution(gt, coverage, path); err != nil {
		return 0, err
	}

	shape := coverage.Shape()
	if src.Shape != shape {
		converted, err := tilecodec.Convert(src, shape)
		if err != nil {
			return 0, fmt.Errorf("coverage-mismatch: %s has shape %v, coverage %q expects %v: %w", path, src.Shape, coverage.Name, shape, err)
		}
		src = converted
	}
	if shape.Pixel == pixel.Palette {
		if err := remapSourcePalette(src, coverage); err != nil {
			return 0, err
		}
	}

	env := catalog.Envelope{
		MinX: gt.OriginX,
		MaxY: gt.OriginY,
		MaxX: gt.OriginX + float64(src.Width)*gt.XRes,
		MinY: gt.OriginY - float64(src.Height)*gt.YRes,
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	sectionID, err := catalog.InsertSection(tx, coverage.Name, &catalog.Section{
		Name:     sectionName,
		FilePath: path,
		Width:    src.Width,
		Height:   src.Height,
		Geometry: catalog.EncodeEnvelope(env),
	})
	if err != nil {
		return 0, err
	}
	if err := catalog.InsertLevel(tx, coverage.Name, coverage.MixedResolutions, sectionID, 0, gt.XRes, gt.YRes); err != nil {
		return 0, err
	}

	total := stats.New(coverage.SampleType, coverage.Bands)
	if err := tileSection(tx, coverage, src, env, gt, sectionID, total); err != nil {
		return 0, err
	}
	if err := catalog.UpdateSectionStats(tx, coverage.Name, sectionID, total.ToBlob()); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return sectionID, nil
}

// checkSRID enforces the compatibility rule that a source's SRID must
// match the coverage's, unless forcedSRID overrides it; a source that
// carries no SRID of its own (gt.SRID == 0, as for ASCII Grid, JPEG,
// and worldfile-only TIFF) is never a mismatch on its own.
func checkSRID(gt GeoTransform, coverage *catalog.Coverage, forcedSRID int, path string) error {
	effective := gt.SRID
	if forcedSRID != NoForcedSRID {
		effective = forcedSRID
	}
	if effective != 0 && effective != coverage.SRID {
		return fmt.Errorf("coverage-mismatch: %s has SRID %d, coverage %q expects %d", path, effective, coverage.Name, coverage.SRID)
	}
	return nil
}

// checkResolution enforces the compatibility rule on pixel resolution:
// a mixed-resolution coverage accepts any source resolution,
// StrictResolution requires exact equality, and otherwise each axis may
// differ from the coverage's nominal resolution by up to
// resolutionTolerance.
func checkResolution(gt GeoTransform, coverage *catalog.Coverage, path string) error {
	if coverage.MixedResolutions {
		return nil
	}
	if coverage.StrictResolution {
		if gt.XRes != coverage.HRes || gt.YRes != coverage.VRes {
			return fmt.Errorf("coverage-mismatch: %s has resolution (%g, %g), coverage %q requires exactly (%g, %g)",
				path, gt.XRes, gt.YRes, coverage.Name, coverage.HRes, coverage.VRes)
		}
		return nil
	}
	if relDiff(gt.XRes, coverage.HRes) > resolutionTolerance || relDiff(gt.YRes, coverage.VRes) > resolutionTolerance {
		return fmt.Errorf("coverage-mismatch: %s has resolution (%g, %g), coverage %q requires (%g, %g) within %.0f%%",
			path, gt.XRes, gt.YRes, coverage.Name, coverage.HRes, coverage.VRes, resolutionTolerance*100)
	}
	return nil
}

func relDiff(got, want float64) float64 {
	if want == 0 {
		if got == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(got-want) / math.Abs(want)
}

// remapSourcePalette verifies that src's palette is a subset of
// coverage.Palette and rewrites every pixel's index into the
// coverage's own index space, so that encoded tiles can be looked up
// against the one palette the coverage's catalog row records.
func remapSourcePalette(src *raster.Raster, coverage *catalog.Coverage) error {
	if coverage.Palette == nil {
		return fmt.Errorf("invalid-argument: palette coverage %q has no palette", coverage.Name)
	}
	if src.Palette == nil {
		return fmt.Errorf("coverage-mismatch: source declares a palette pixel shape but carries no palette")
	}
	remap, ok := coverage.Palette.IsSubset(src.Palette)
	if !ok {
		return fmt.Errorf("coverage-mismatch: source palette is not a subset of coverage %q's palette", coverage.Name)
	}

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			p, err := src.GetPixel(x, y)
			if err != nil {
				return err
			}
			idx, err := p.GetSample(0)
			if err != nil {
				return err
			}
			if int(idx) >= len(remap) {
				return fmt.Errorf("coverage-mismatch: palette index %d out of range for source palette", idx)
			}
			if err := p.SetSample(0, uint64(remap[idx])); err != nil {
				return err
			}
			if err := src.SetPixel(x, y, p); err != nil {
				return err
			}
		}
	}
	src.Palette = coverage.Palette.Clone()
	return nil
}

// tileSection splits src into coverage.TileWidth x coverage.TileHeight
// blocks in row-major order, padding edge tiles with the coverage's
// no-data pixel before copying in the real pixels that exist, then
// encodes and inserts each tile and folds its statistics into total.
func tileSection(tx *sql.Tx, coverage *catalog.Coverage, src *raster.Raster, env catalog.Envelope, gt GeoTransform, sectionID int64, total *stats.Statistics) error {
	tw, th := coverage.TileWidth, coverage.TileHeight
	cols := (src.Width + tw - 1) / tw
	rows := (src.Height + th - 1) / th

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x0, y0 := col*tw, row*th
			tile, err := raster.New(tw, th, src.Shape, nil)
			if err != nil {
				return err
			}
			if coverage.Palette != nil {
				tile.WithPalette(coverage.Palette)
			}
			if src.Mask != nil {
				tile.EnsureMask()
			}
			if err := tile.PrimeVoidTile(coverage.NoDataPixel); err != nil {
				return err
			}
			if err := copyInto(tile, src, x0, y0); err != nil {
				return err
			}

			tileStats, err := stats.Compute(tile)
			if err != nil {
				return err
			}
			if err := stats.Aggregate(total, tileStats); err != nil {
				return err
			}

			blob, err := tilecodec.Encode(tile, coverage.Compression, coverage.Quality)
			if err != nil {
				return err
			}

			minX := env.MinX + float64(col*tw)*gt.XRes
			maxX := minX + float64(tw)*gt.XRes
			maxY := env.MaxY - float64(row*th)*gt.YRes
			minY := maxY - float64(th)*gt.YRes
			geometry := catalog.EncodeEnvelope(catalog.Envelope{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY})

			if _, err := catalog.InsertTile(tx, coverage.Name, sectionID, 0, geometry, minX, maxX, minY, maxY, blob.Odd, blob.Even); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyInto copies every pixel of src that falls within dst's footprint
// (dst is tw x th, anchored at src pixel (x0, y0)) into dst, leaving
// whatever dst already held (the no-data prime) wherever src has no
// pixel, i.e. along a section's right and bottom edge tiles.
func copyInto(dst, src *raster.Raster, x0, y0 int) error {
	for dy := 0; dy < dst.Height; dy++ {
		sy := y0 + dy
		if sy >= src.Height {
			continue
		}
		for dx := 0; dx < dst.Width; dx++ {
			sx := x0 + dx
			if sx >= src.Width {
				continue
			}
			p, err := src.GetPixel(sx, sy)
			if err != nil {
				return err
			}
			if err := dst.SetPixel(dx, dy, p); err != nil {
				return err
			}
		}
	}
	return nil
}
