// SPDX-License-Identifier: MIT

// Package planner implements the resolution planner: given a requested
// (x_res, y_res), it picks the finest admissible pyramid level/scale
// combination out of the coverage's level table.
package planner

import (
	"fmt"
	"math"

	"github.com/brawer/rasterlite2go/internal/catalog"
)

// Candidate is one admissible (level, scale) pair the planner can pick.
type Candidate struct {
	SectionID    int64
	PyramidLevel int
	Denominator  int // 1, 2, 4 or 8
	XRes, YRes   float64
}

// RealScale is the candidate's total resolution factor relative to the
// coverage's base resolution, used to rank candidates from coarsest to
// finest.
func (c Candidate) RealScale() float64 {
	return math.Pow(16, float64(c.PyramidLevel)) * float64(c.Denominator)
}

// Plan selects the finest admissible candidate for a requested
// (xReq, yReq) resolution out of levels, which must already be ordered
// deepest-level-first (catalog.QueryLevels's own order). A candidate is
// admissible iff both its resolutions are no coarser than requested. If
// no admissible candidate exists, Plan falls back to the base level at
// scale 1.
func Plan(levels []catalog.LevelRow, xReq, yReq float64) (Candidate, error) {
	if len(levels) == 0 {
		return Candidate{}, fmt.Errorf("invalid-argument: no levels to plan against")
	}

	var best *Candidate
	for _, l := range levels {
		for i, denom := range catalog.Denominators {
			c := Candidate{
				SectionID:    l.SectionID,
				PyramidLevel: l.PyramidLevel,
				Denominator:  denom,
				XRes:         l.XRes[i],
				YRes:         l.YRes[i],
			}
			if c.XRes <= xReq && c.YRes <= yReq {
				if best == nil || c.RealScale() < best.RealScale() {
					cc := c
					best = &cc
				}
			}
		}
	}

	if best != nil {
		return *best, nil
	}

	// No admissible candidate: request is finer than the base level on
	// at least one axis. Fall back to the base level (pyramid_level 0,
	// the finest resolution a coverage has) at scale 1.
	base := levels[0]
	for _, l := range levels {
		if l.PyramidLevel < base.PyramidLevel {
			base = l
		}
	}
	return Candidate{
		SectionID:    base.SectionID,
		PyramidLevel: base.PyramidLevel,
		Denominator:  1,
		XRes:         base.XRes[0],
		YRes:         base.YRes[0],
	}, nil
}
