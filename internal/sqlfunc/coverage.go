// SPDX-License-Identifier: MIT

package sqlfunc

import (
	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// createCoverage registers a new coverage, the SQL-callable equivalent
// of engine.Engine.CreateCoverage. It takes the coverage's fixed shape,
// compression and tiling parameters as the keyword strings and numbers
// a SQL caller can pass as literals.
func (b *binder) createCoverage(name, sampleType, pixelType string, bands int64, compression string, quality, tileWidth, tileHeight, srid int64, hres, vres float64) int64 {
	st, err := pixel.ParseSampleType(sampleType)
	if err != nil {
		return errCode(err)
	}
	pt, err := pixel.ParsePixelType(pixelType)
	if err != nil {
		return errCode(err)
	}
	comp, err := tilecodec.ParseCompression(compression)
	if err != nil {
		return errCode(err)
	}
	c := &catalog.Coverage{
		Name:        name,
		SampleType:  st,
		PixelType:   pt,
		Bands:       int(bands),
		Compression: comp,
		Quality:     int(quality),
		TileWidth:   int(tileWidth),
		TileHeight:  int(tileHeight),
		SRID:        int(srid),
		HRes:        hres,
		VRes:        vres,
	}
	return errCode(b.e.CreateCoverage(c))
}

// dropCoverage is the SQL-callable equivalent of
// engine.Engine.DropCoverage.
func (b *binder) dropCoverage(name string) int64 {
	return errCode(b.e.DropCoverage(name))
}

// deleteSection is the SQL-callable equivalent of
// engine.Engine.DeleteSection.
func (b *binder) deleteSection(coverage string, sectionID int64) int64 {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return errCode(err)
	}
	return errCode(b.e.DeleteSection(c, sectionID))
}

// pyramidize is the SQL-callable equivalent of building any missing
// pyramid levels above a section's base level.
func (b *binder) pyramidize(coverage string, sectionID int64) int64 {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return errCode(err)
	}
	return errCode(b.e.BuildPyramid(c, sectionID))
}

// dePyramidize is the SQL-callable equivalent of forcing every pyramid
// level above the base level to be regenerated from scratch.
func (b *binder) dePyramidize(coverage string, sectionID int64) int64 {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return errCode(err)
	}
	return errCode(b.e.RebuildPyramid(c, sectionID))
}

// loadRaster is the SQL-callable equivalent of engine.Engine.Import.
// forceSRID overrides the source's own SRID; pass -1
// (importer.NoForcedSRID) to require it match the coverage's own SRID
// instead. Unlike rl2sql.c's LoadRaster, which registers one SQL
// function per optional-argument arity (2 through 6 parameters), this
// binding takes one fixed signature, consistent with every other
// function this package registers.
func (b *binder) loadRaster(coverage, path, sectionName string, forceSRID int64) int64 {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return errCode(err)
	}
	_, err = b.e.Import(c, path, sectionName, int(forceSRID))
	return errCode(err)
}

// loadRastersFromDir is the SQL-callable equivalent of
// engine.Engine.LoadRastersFromDir.
func (b *binder) loadRastersFromDir(coverage, dir string) int64 {
	c, err := b.e.GetCoverage(coverage)
	if err != nil {
		return errCode(err)
	}
	_, err = b.e.LoadRastersFromDir(c, dir)
	return errCode(err)
}
