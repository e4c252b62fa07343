// SPDX-License-Identifier: MIT

package exporter

import (
	"fmt"
	"os"
)

// writeWorldFile emits the six-line ESRI worldfile sidecar next to a
// just-written TIFF: x pixel size, rotation, rotation, y pixel size
// (negative, north-up), then the world coordinates of the center of
// the upper-left pixel — the same layout readWorldFile/original
// rl2import.c's write_jgw_worldfile parses and produces.
func writeWorldFile(path string, minX, maxY, xRes, yRes float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("io-failure: creating worldfile %s: %w", path, err)
	}
	defer f.Close()

	centerX := minX + xRes/2
	centerY := maxY - yRes/2
	if _, err := fmt.Fprintf(f, "%1.16f\n0.0\n0.0\n-%1.16f\n%1.16f\n%1.16f\n",
		xRes, yRes, centerX, centerY); err != nil {
		return fmt.Errorf("io-failure: writing worldfile %s: %w", path, err)
	}
	return nil
}

// worldFilePath derives the .tfw sidecar path for a TIFF output file.
func worldFilePath(path string) string {
	ext := ""
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			ext = path[i:]
			break
		}
		if path[i] == '/' {
			break
		}
	}
	if ext == "" {
		return path + ".tfw"
	}
	return path[:len(path)-len(ext)] + ".tfw"
}
