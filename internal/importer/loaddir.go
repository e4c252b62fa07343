// SPDX-License-Identifier: MIT

package importer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brawer/rasterlite2go/internal/catalog"
)

// recognizedExts lists the extensions LoadRastersFromDir treats as
// raster files to import, as opposed to worldfile sidecars or other
// files it should silently skip.
var recognizedExts = map[string]bool{
	".asc": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
}

func isRasterFile(name string) bool {
	ext := strings.ToLower(extOf(name))
	if ext == ".bz2" {
		ext = strings.ToLower(extOf(name[:len(name)-len(".bz2")]))
	}
	return recognizedExts[ext]
}

// LoadRastersFromDir imports every recognized raster file directly
// inside dir as a new section of coverage, one file per section, named
// after the file's base name without extension. Each file is imported
// by its own call to Import, which opens and commits its own
// transaction; this is the one place the package runs imports
// concurrently, fanning out one goroutine per file the same way
// cmd/qrank-builder fans out one goroutine per independent dump file.
// A failure on one file does not stop the others: every import runs to
// completion, the first failure is returned to the caller, and sections
// committed by the other goroutines are not rolled back.
func LoadRastersFromDir(db *sql.DB, coverage *catalog.Coverage, dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("io-failure: reading %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isRasterFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	results := make([]int64, len(paths))
	var g errgroup.Group
	var mu sync.Mutex
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			name := strings.TrimSuffix(filepath.Base(path), extOf(path))
			sectionID, err := Import(db, coverage, path, name, NoForcedSRID)
			if err != nil {
				return fmt.Errorf("importing %s: %w", path, err)
			}
			mu.Lock()
			results[i] = sectionID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
