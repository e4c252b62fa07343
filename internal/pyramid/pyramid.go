// SPDX-License-Identifier: MIT

// Package pyramid builds coarser pyramid levels from the finest level of
// a section by rescaling 16x16 blocks of input tiles into single output
// tiles, one pyramid level at a time, until a section fits in a single
// tile.
package pyramid

import (
	"database/sql"
	"fmt"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// blockFactor is the per-level rescale factor: building pyramid_level
// N+1 from N reduces resolution 16x, by rescaling a 16x16 grid of input
// tiles (each individually downscaled 16x) into one output tile.
const blockFactor = 16

// Build grows a section's pyramid one level at a time, starting from
// pyramid_level 0 (the imported base level), until the top level's tile
// grid is a single tile. It resumes above whatever top level already
// exists, so it is a no-op if the pyramid is already complete.
func Build(db *sql.DB, coverage *catalog.Coverage, sectionID int64) error {
	return build(db, coverage, sectionID, false)
}

// Rebuild discards every pyramid level above the base level and builds
// the pyramid again from scratch.
func Rebuild(db *sql.DB, coverage *catalog.Coverage, sectionID int64) error {
	return build(db, coverage, sectionID, true)
}

func build(db *sql.DB, coverage *catalog.Coverage, sectionID int64, forceRebuild bool) error {
	section, err := catalog.GetSection(db, coverage.Name, sectionID)
	if err != nil {
		return err
	}
	sectionEnv, err := catalog.DecodeEnvelope(section.Geometry)
	if err != nil {
		return err
	}

	maxLevel, err := catalog.MaxPyramidLevel(db, coverage.Name, sectionID)
	if err != nil {
		return err
	}
	if maxLevel < 0 {
		return fmt.Errorf("invalid-argument: section %d has no base-level tiles to pyramidize", sectionID)
	}

	if forceRebuild && maxLevel > 0 {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := catalog.PurgeTilesFrom(tx, coverage.Name, sectionID, 1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		maxLevel = 0
	}

	level := maxLevel
	for {
		grid, err := loadTileGrid(db, coverage, sectionID, level, sectionEnv)
		if err != nil {
			return err
		}
		if grid.cols <= 1 && grid.rows <= 1 {
			return nil // a single tile already covers the whole section
		}
		if err := buildNextLevel(db, coverage, sectionID, level, sectionEnv, grid); err != nil {
			return err
		}
		level++
	}
}

// tileGrid indexes a level's tiles by their (row, col) position, derived
// from each tile's stored bounding box relative to the section origin
// (the catalog has no explicit row/col columns).
type tileGrid struct {
	rows, cols int
	byPos      map[[2]int]catalog.Tile
	xres, yres float64
}

func loadTileGrid(db *sql.DB, coverage *catalog.Coverage, sectionID int64, level int, sectionEnv catalog.Envelope) (*tileGrid, error) {
	lvl, err := catalog.GetLevelRow(db, coverage.Name, coverage.MixedResolutions, sectionID, level)
	if err != nil {
		return nil, err
	}
	xres, yres := lvl.XRes[0], lvl.YRes[0]

	tiles, err := catalog.QueryTilesBySection(db, coverage.Name, sectionID, level)
	if err != nil {
		return nil, err
	}

	grid := &tileGrid{byPos: map[[2]int]catalog.Tile{}, xres: xres, yres: yres}
	for _, t := range tiles {
		env, err := catalog.DecodeEnvelope(t.Geometry)
		if err != nil {
			return nil, err
		}
		col := roundDiv(env.MinX-sectionEnv.MinX, xres*float64(coverage.TileWidth))
		row := roundDiv(sectionEnv.MaxY-env.MaxY, yres*float64(coverage.TileHeight))
		grid.byPos[[2]int{row, col}] = t
		if row+1 > grid.rows {
			grid.rows = row + 1
		}
		if col+1 > grid.cols {
			grid.cols = col + 1
		}
	}
	return grid, nil
}

func roundDiv(a, b float64) int {
	if b == 0 {
		return 0
	}
	q := a / b
	if q < 0 {
		return int(q - 0.5)
	}
	return int(q + 0.5)
}

// buildNextLevel rescales every 16x16 block of sourceLevel's tile grid
// into a single output tile at sourceLevel+1.
func buildNextLevel(db *sql.DB, coverage *catalog.Coverage, sectionID int64, sourceLevel int, sectionEnv catalog.Envelope, grid *tileGrid) error {
	outRows := ceilDiv(grid.rows, blockFactor)
	outCols := ceilDiv(grid.cols, blockFactor)
	xresOut, yresOut := grid.xres*blockFactor, grid.yres*blockFactor

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := catalog.InsertLevel(tx, coverage.Name, coverage.MixedResolutions, sectionID, sourceLevel+1, xresOut, yresOut); err != nil {
		return err
	}

	// Pyramid tiles are read at scale 1 like any other tile, so they
	// must keep the coverage's nominal shape rather than the promoted
	// shape a decode-time scale request is allowed to return; block
	// rescaling here uses RescaleBlocks, not Rescale, for that reason.
	shape := coverage.Shape()
	for orow := 0; orow < outRows; orow++ {
		for ocol := 0; ocol < outCols; ocol++ {
			out, err := assembleOutputTile(db, coverage, shape, grid, orow, ocol)
			if err != nil {
				return err
			}

			blob, err := tilecodec.Encode(out, coverage.Compression, coverage.Quality)
			if err != nil {
				return err
			}

			minX := sectionEnv.MinX + float64(ocol*coverage.TileWidth)*xresOut
			maxX := minX + float64(coverage.TileWidth)*xresOut
			maxY := sectionEnv.MaxY - float64(orow*coverage.TileHeight)*yresOut
			minY := maxY - float64(coverage.TileHeight)*yresOut
			geometry := catalog.EncodeEnvelope(catalog.Envelope{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY})

			if _, err := catalog.InsertTile(tx, coverage.Name, sectionID, sourceLevel+1, geometry, minX, maxX, minY, maxY, blob.Odd, blob.Even); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// assembleOutputTile rescales the 16x16 block of input tiles at
// (orow,ocol) into one coverage.TileWidth x coverage.TileHeight raster.
// Input tiles missing from the grid (beyond the section's edge) rescale
// to a void sub-block instead of being read.
func assembleOutputTile(db *sql.DB, coverage *catalog.Coverage, shape pixel.Shape, grid *tileGrid, orow, ocol int) (*raster.Raster, error) {
	if coverage.TileWidth%blockFactor != 0 || coverage.TileHeight%blockFactor != 0 {
		return nil, fmt.Errorf("invalid-argument: tile size %dx%d is not a multiple of %d, required for pyramid building", coverage.TileWidth, coverage.TileHeight, blockFactor)
	}
	subW, subH := coverage.TileWidth/blockFactor, coverage.TileHeight/blockFactor

	out, err := raster.New(coverage.TileWidth, coverage.TileHeight, shape, nil)
	if err != nil {
		return nil, err
	}
	if coverage.Palette != nil {
		out.WithPalette(coverage.Palette)
	}

	for i := 0; i < blockFactor; i++ {
		for j := 0; j < blockFactor; j++ {
			row, col := orow*blockFactor+i, ocol*blockFactor+j
			sub, err := rescaledSubBlock(db, coverage, shape, grid, row, col, subW, subH)
			if err != nil {
				return nil, err
			}
			if err := blit(out, sub, j*subW, i*subH); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func rescaledSubBlock(db *sql.DB, coverage *catalog.Coverage, shape pixel.Shape, grid *tileGrid, row, col, subW, subH int) (*raster.Raster, error) {
	t, ok := grid.byPos[[2]int{row, col}]
	if !ok {
		sub, err := raster.New(subW, subH, shape, nil)
		if err != nil {
			return nil, err
		}
		if err := sub.PrimeVoidTile(coverage.NoDataPixel); err != nil {
			return nil, err
		}
		return sub, nil
	}

	td, err := catalog.GetTileData(db, coverage.Name, t.TileID)
	if err != nil {
		return nil, err
	}
	full, err := tilecodec.Decode(tilecodec.Blob{Odd: td.Odd, Even: td.Even}, coverage.Compression, shape, coverage.TileWidth, coverage.TileHeight, tilecodec.Scale1, coverage.Palette)
	if err != nil {
		return nil, err
	}
	return tilecodec.RescaleBlocks(full, blockFactor)
}

// blit copies src entirely into dst at pixel offset (x0, y0).
func blit(dst, src *raster.Raster, x0, y0 int) error {
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			p, err := src.GetPixel(x, y)
			if err != nil {
				return err
			}
			if err := dst.SetPixel(x0+x, y0+y, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func ceilDiv(a, b int) int {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}
