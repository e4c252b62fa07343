// SPDX-License-Identifier: MIT

package importer

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWorldFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestReadWorldFile_PrefersTFWOverOtherSuffixes(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "ortho")
	writeWorldFile(t, base+".tfw", "10\n0\n0\n-10\n505\n1005\n")
	writeWorldFile(t, base+".jgw", "20\n0\n0\n-20\n1005\n2005\n")

	gt, err := readWorldFile(base + ".tif")
	if err != nil {
		t.Fatalf("readWorldFile: %v", err)
	}
	if gt.XRes != 10 || gt.YRes != 10 {
		t.Fatalf("got resolution (%g, %g), want (10, 10); .tfw should win over .jgw", gt.XRes, gt.YRes)
	}
}

func TestReadWorldFile_FallsBackToWLD(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "photo")
	writeWorldFile(t, base+".wld", "5\n0\n0\n-5\n102.5\n202.5\n")

	gt, err := readWorldFile(base + ".jpg")
	if err != nil {
		t.Fatalf("readWorldFile: %v", err)
	}
	if gt.XRes != 5 || gt.YRes != 5 {
		t.Fatalf("got resolution (%g, %g), want (5, 5)", gt.XRes, gt.YRes)
	}
	// Worldfile's 5th/6th lines give the center of the upper-left pixel;
	// OriginX/OriginY must be shifted out to that pixel's outer corner.
	if gt.OriginX != 100 || gt.OriginY != 205 {
		t.Fatalf("got origin (%g, %g), want (100, 205)", gt.OriginX, gt.OriginY)
	}
}

func TestReadWorldFile_NoSidecarFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := readWorldFile(filepath.Join(dir, "missing.tif")); err == nil {
		t.Fatalf("expected an error when no worldfile sidecar exists")
	}
}

func TestParseWorldFile_RejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.tfw")
	writeWorldFile(t, path, "10\n0\n0\n")

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if _, err := parseWorldFile(f); err == nil {
		t.Fatalf("expected an error for a worldfile with fewer than 6 lines")
	}
}

func TestExtOf(t *testing.T) {
	cases := map[string]string{
		"/a/b/c.tif":  ".tif",
		"noext":       "",
		"a.b/c.d.asc": ".asc",
	}
	for path, want := range cases {
		if got := extOf(path); got != want {
			t.Errorf("extOf(%q) = %q, want %q", path, got, want)
		}
	}
}
