// SPDX-License-Identifier: MIT

// Package reader implements the windowed reader: given a coverage and a
// georeferenced output window, it picks a pyramid level and scale via
// the resolution planner, queries the spatial index for tiles that
// intersect the window, decodes and blits each into the output buffer,
// and leaves any remaining resize down to an explicit caller-chosen
// resampling primitive.
package reader

import (
	"database/sql"
	"fmt"
	"math"
	"sort"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/planner"
	"github.com/brawer/rasterlite2go/internal/raster"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// geometryTolerance bounds how far a requested window's implied pixel
// resolution may drift from the planned level's resolution before Read
// refuses the request.
const geometryTolerance = 0.01

// Request describes one windowed read against a coverage.
type Request struct {
	// SectionID restricts the read to one section; 0 reads across every
	// section (only meaningful for mixed-resolution coverages, where
	// sections may overlap).
	SectionID int64

	Width, Height          int
	MinX, MinY, MaxX, MaxY float64

	// XRes, YRes are the resolution the caller wants; they drive the
	// level/scale plan. The window's implied resolution,
	// (MaxX-MinX)/Width and (MaxY-MinY)/Height, must match the planned
	// level's resolution within 1%.
	XRes, YRes float64

	// Bands, if non-nil, projects a multiband coverage's samples down
	// to a mono-band (len==1) or triple-band (len==3) output; any other
	// length, an out-of-range index, or a non-multiband coverage fails.
	Bands []int
}

// Result is what Read returns.
type Result struct {
	Raster  *raster.Raster
	Palette *pixel.Palette

	// TilesDecoded counts how many stored tiles intersected the window
	// and were decoded to produce Raster, for callers that want to feed
	// it into a metric.
	TilesDecoded int
}

// Read assembles a window of a coverage into one output raster, per the
// plan -> spatial-index query -> decode+clip+blit pipeline: tiles
// outside the requested window are never even decoded, and any cell the
// window asks for that no tile covers is left at the coverage's no-data
// value. Where two tiles disagree over the same destination pixel (they
// should not, since pyramid levels partition a section into disjoint
// tiles), the tile with the larger tile_id wins.
func Read(db *sql.DB, coverage *catalog.Coverage, req Request) (*Result, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("invalid-argument: output size must be positive, got %dx%d", req.Width, req.Height)
	}
	if req.MaxX <= req.MinX || req.MaxY <= req.MinY {
		return nil, fmt.Errorf("invalid-argument: window (%g,%g)-(%g,%g) is empty or inverted", req.MinX, req.MinY, req.MaxX, req.MaxY)
	}

	levels, err := catalog.QueryLevels(db, coverage.Name, coverage.MixedResolutions)
	if err != nil {
		return nil, err
	}
	if coverage.MixedResolutions && req.SectionID != 0 {
		levels = filterLevels(levels, req.SectionID)
	}
	cand, err := planner.Plan(levels, req.XRes, req.YRes)
	if err != nil {
		return nil, err
	}

	impliedXRes := (req.MaxX - req.MinX) / float64(req.Width)
	impliedYRes := (req.MaxY - req.MinY) / float64(req.Height)
	if relDiff(impliedXRes, cand.XRes) > geometryTolerance || relDiff(impliedYRes, cand.YRes) > geometryTolerance {
		return nil, fmt.Errorf("geometry-size-mismatch: window implies resolution (%g, %g) but the planned level %d/1:%d gives (%g, %g)",
			impliedXRes, impliedYRes, cand.PyramidLevel, cand.Denominator, cand.XRes, cand.YRes)
	}

	baseShape := coverage.Shape()
	outShape := baseShape
	if cand.Denominator > 1 {
		outShape = tilecodec.PromotedShape(baseShape)
	}
	if req.Bands != nil {
		outShape, err = projectShape(outShape, req.Bands)
		if err != nil {
			return nil, err
		}
	}

	var palette *pixel.Palette
	if outShape.Pixel == pixel.Palette {
		palette = coverage.Palette
	}

	out, err := raster.New(req.Width, req.Height, outShape, nil)
	if err != nil {
		return nil, err
	}
	if palette != nil {
		out.WithPalette(palette)
	}
	out.EnsureMask()
	noData, err := effectiveNoData(coverage, outShape)
	if err != nil {
		return nil, err
	}
	if err := out.PrimeVoidTile(noData); err != nil {
		return nil, err
	}

	tiles, err := catalog.QueryTiles(db, coverage.Name, cand.PyramidLevel, req.SectionID, req.MinX, req.MaxX, req.MinY, req.MaxY)
	if err != nil {
		return nil, err
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].TileID < tiles[j].TileID })

	scale := tilecodec.Scale(cand.Denominator)
	for _, t := range tiles {
		if err := blitTile(db, coverage, t, baseShape, scale, req, cand, out); err != nil {
			return nil, err
		}
	}

	return &Result{Raster: out, Palette: palette, TilesDecoded: len(tiles)}, nil
}

// blitTile decodes one tile at the planned scale and copies the part of
// it that falls inside out's footprint, converting to out's pixel shape
// (band projection) along the way.
func blitTile(db *sql.DB, coverage *catalog.Coverage, t catalog.Tile, baseShape pixel.Shape, scale tilecodec.Scale, req Request, cand planner.Candidate, out *raster.Raster) error {
	env, err := catalog.DecodeEnvelope(t.Geometry)
	if err != nil {
		return err
	}
	td, err := catalog.GetTileData(db, coverage.Name, t.TileID)
	if err != nil {
		return err
	}
	decoded, err := tilecodec.Decode(tilecodec.Blob{Odd: td.Odd, Even: td.Even}, coverage.Compression, baseShape, coverage.TileWidth, coverage.TileHeight, scale, coverage.Palette)
	if err != nil {
		return err
	}

	colOffset := int(math.Round((env.MinX - req.MinX) / cand.XRes))
	rowOffset := int(math.Round((req.MaxY - env.MaxY) / cand.YRes))

	for dy := 0; dy < decoded.Height; dy++ {
		oy := rowOffset + dy
		if oy < 0 || oy >= out.Height {
			continue
		}
		for dx := 0; dx < decoded.Width; dx++ {
			ox := colOffset + dx
			if ox < 0 || ox >= out.Width {
				continue
			}
			p, err := decoded.GetPixel(dx, dy)
			if err != nil {
				return err
			}
			if req.Bands != nil {
				p, err = projectPixel(p, out.Shape, req.Bands)
				if err != nil {
					return err
				}
			}
			if err := out.SetPixel(ox, oy, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// projectShape derives the output shape for a band-subset projection:
// a single selected band becomes grayscale (or datagrid, for a
// non-integer sample type), three become RGB.
func projectShape(shape pixel.Shape, bands []int) (pixel.Shape, error) {
	if shape.Pixel != pixel.Multiband {
		return pixel.Shape{}, fmt.Errorf("invalid-argument: band-subset projection requires a multiband coverage, got %s", shape.Pixel)
	}
	for _, b := range bands {
		if b < 0 || b >= shape.Bands {
			return pixel.Shape{}, fmt.Errorf("%w: band %d out of range for a %d-band coverage", tilecodec.ErrBadBandSelection, b, shape.Bands)
		}
	}
	switch len(bands) {
	case 1:
		return pixel.Shape{Sample: shape.Sample, Pixel: pixel.Grayscale, Bands: 1}, nil
	case 3:
		return pixel.Shape{Sample: shape.Sample, Pixel: pixel.RGB, Bands: 3}, nil
	default:
		return pixel.Shape{}, fmt.Errorf("bad-band-selection: band projection needs 1 or 3 bands, got %d", len(bands))
	}
}

// projectPixel extracts bands from a multiband pixel into a new pixel
// of the given (already-validated) projected shape.
func projectPixel(p *pixel.Pixel, shape pixel.Shape, bands []int) (*pixel.Pixel, error) {
	out, err := pixel.New(shape)
	if err != nil {
		return nil, err
	}
	for i, b := range bands {
		v, err := p.GetSample(b)
		if err != nil {
			return nil, err
		}
		if err := out.SetSample(i, v); err != nil {
			return nil, err
		}
	}
	out.SetTransparent(p.IsTransparent())
	return out, nil
}

// effectiveNoData returns the no-data pixel to prime the output buffer
// with, reshaping the coverage's own no-data pixel when a scale
// promotion or band projection changed the output shape.
func effectiveNoData(coverage *catalog.Coverage, outShape pixel.Shape) (*pixel.Pixel, error) {
	if coverage.NoDataPixel != nil && coverage.NoDataPixel.Shape == outShape {
		return coverage.NoDataPixel, nil
	}
	return pixel.DefaultNoData(outShape)
}

func filterLevels(levels []catalog.LevelRow, sectionID int64) []catalog.LevelRow {
	var out []catalog.LevelRow
	for _, l := range levels {
		if l.SectionID == sectionID {
			out = append(out, l)
		}
	}
	return out
}

func relDiff(a, b float64) float64 {
	if b == 0 {
		if a == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(a-b) / math.Abs(b)
}
