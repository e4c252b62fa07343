// SPDX-License-Identifier: MIT

// Package exporter writes a coverage section back out to the
// filesystem, the mirror image of internal/importer: Esri ASCII Grid,
// plain TIFF, TIFF with a worldfile sidecar, and GeoTIFF with embedded
// georeferencing tags.
package exporter

import (
	"database/sql"
	"fmt"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/reader"
)

// sectionWindow is a section's full-resolution footprint: the raster
// content plus enough georeferencing to write a worldfile or embed
// GeoTIFF tags.
type sectionWindow struct {
	res    *reader.Result
	env    catalog.Envelope
	xRes   float64
	yRes   float64
}

// readSection assembles a section's base-resolution raster by running
// one windowed read over its full envelope, the same primitive
// GetMapImage and every CLI export verb sit on top of.
func readSection(db *sql.DB, coverage *catalog.Coverage, sectionID int64) (*sectionWindow, error) {
	section, err := catalog.GetSection(db, coverage.Name, sectionID)
	if err != nil {
		return nil, err
	}
	env, err := catalog.DecodeEnvelope(section.Geometry)
	if err != nil {
		return nil, err
	}

	levels, err := catalog.QueryLevels(db, coverage.Name, coverage.MixedResolutions)
	if err != nil {
		return nil, err
	}
	xRes, yRes, found := 0.0, 0.0, false
	for _, l := range levels {
		if l.PyramidLevel != 0 {
			continue
		}
		if coverage.MixedResolutions && l.SectionID != sectionID {
			continue
		}
		xRes, yRes, found = l.XRes[0], l.YRes[0], true
		break
	}
	if !found {
		return nil, fmt.Errorf("invalid-argument: section %d has no base pyramid level", sectionID)
	}

	req := reader.Request{
		SectionID: sectionID,
		Width:     section.Width,
		Height:    section.Height,
		MinX:      env.MinX, MinY: env.MinY, MaxX: env.MaxX, MaxY: env.MaxY,
		XRes: xRes, YRes: yRes,
	}
	res, err := reader.Read(db, coverage, req)
	if err != nil {
		return nil, err
	}
	return &sectionWindow{res: res, env: env, xRes: xRes, yRes: yRes}, nil
}
