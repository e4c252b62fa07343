// SPDX-License-Identifier: MIT

package stats

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/lanrat/extsort"
	"golang.org/x/sync/errgroup"

	"github.com/brawer/rasterlite2go/internal/catalog"
	"github.com/brawer/rasterlite2go/internal/tilecodec"
)

// RecomputeSectionStats rebuilds a section's statistics from its tiles
// directly, rather than trusting whatever running total Import folded
// the tiles into. It decodes every level-0 tile of the section, sorts
// the per-tile statistics by tile id with an external merge sort before
// aggregating, so the result never depends on the order tiles are read
// back from the database and so coverages too large to hold every
// tile's decoded pixels in memory at once can still be recomputed: only
// one decoded tile is ever live at a time, and the sort spills to disk.
func RecomputeSectionStats(db *sql.DB, coverage *catalog.Coverage, sectionID int64) (*Statistics, error) {
	tiles, err := catalog.QueryTilesBySection(db, coverage.Name, sectionID, 0)
	if err != nil {
		return nil, err
	}

	shape := coverage.Shape()
	ch := make(chan string, 256)
	config := extsort.DefaultConfig()
	sorter, outChan, sortErrChan := extsort.Strings(ch, config)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer close(ch)
		for _, t := range tiles {
			td, err := catalog.GetTileData(db, coverage.Name, t.TileID)
			if err != nil {
				return err
			}
			tile, err := tilecodec.Decode(tilecodec.Blob{Odd: td.Odd, Even: td.Even}, coverage.Compression, shape, coverage.TileWidth, coverage.TileHeight, tilecodec.Scale1, coverage.Palette)
			if err != nil {
				return err
			}
			tileStats, err := Compute(tile)
			if err != nil {
				return err
			}
			// Zero-padded so that extsort's byte-lexicographic sort
			// orders lines the same as a numeric sort by tile_id.
			line := fmt.Sprintf("%020d\t%s", t.TileID, base64.StdEncoding.EncodeToString(tileStats.ToBlob()))
			select {
			case ch <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	total := New(shape.Sample, shape.Bands)
	g.Go(func() error {
		sorter.Sort(ctx)
		for line := range outChan {
			tab := strings.IndexByte(line, '\t')
			if tab < 0 {
				continue
			}
			blob, err := base64.StdEncoding.DecodeString(line[tab+1:])
			if err != nil {
				return fmt.Errorf("bad-pixel-blob: recomputing stats for section %d: %w", sectionID, err)
			}
			tileStats, err := FromBlob(blob, shape.Sample, shape.Bands)
			if err != nil {
				return err
			}
			if err := Aggregate(total, tileStats); err != nil {
				return err
			}
		}
		return <-sortErrChan
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dbms-insert: recomputing statistics for section %d: %w", sectionID, err)
	}
	return total, nil
}
