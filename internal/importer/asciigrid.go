// SPDX-License-Identifier: MIT

package importer

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

// asciiGridShape is the fixed shape every Esri ASCII Grid is imported
// as: a single band of 64-bit floating point elevation/measurement
// data, matching the format's own unbounded decimal precision.
var asciiGridShape = pixel.Shape{Sample: pixel.SampleFloat64, Pixel: pixel.DataGrid, Bands: 1}

// lineReader is a bufio.Scanner with a one-line pushback, used to parse
// the ASCII grid's variable-length header (NODATA_value is optional)
// without needing to know in advance how many header lines there are.
type lineReader struct {
	scanner *bufio.Scanner
	pending *string
}

func newLineReader(r io.Reader) *lineReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &lineReader{scanner: s}
}

func (l *lineReader) next() (string, bool) {
	if l.pending != nil {
		line := *l.pending
		l.pending = nil
		return line, true
	}
	if !l.scanner.Scan() {
		return "", false
	}
	return l.scanner.Text(), true
}

func (l *lineReader) pushBack(line string) {
	l.pending = &line
}

// readASCIIGrid parses an Esri ASCII Grid: a six- or seven-line header
// (ncols, nrows, xllcorner/xllcenter, yllcorner/yllcenter, cellsize,
// optional NODATA_value) followed by nrows rows of ncols whitespace
// separated numbers, the first row being the northernmost.
func readASCIIGrid(path string) (*raster.Raster, GeoTransform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, GeoTransform{}, err
	}
	defer f.Close()
	return readASCIIGridReader(f)
}

// readASCIIGridReader parses an Esri ASCII Grid from an already-open
// stream, letting readSource transparently feed it a bzip2.Reader for
// .asc.bz2 input instead of a plain *os.File.
func readASCIIGridReader(r io.Reader) (*raster.Raster, GeoTransform, error) {
	lr := newLineReader(r)

	var ncols, nrows int
	var xll, yll, cellsize float64
	var haveNcols, haveNrows, haveXll, haveYll, haveCellsize bool
	var xllCenter, yllCenter bool
	var nodata float64
	haveNodata := false

	recognized := map[string]bool{
		"ncols": true, "nrows": true, "xllcorner": true, "xllcenter": true,
		"yllcorner": true, "yllcenter": true, "cellsize": true, "nodata_value": true,
	}

headerLoop:
	for {
		line, ok := lr.next()
		if !ok {
			return nil, GeoTransform{}, fmt.Errorf("invalid-argument: ASCII grid header truncated")
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || !recognized[strings.ToLower(fields[0])] {
			lr.pushBack(line)
			break
		}
		key, rawValue := strings.ToLower(fields[0]), fields[1]

		switch key {
		case "ncols":
			if ncols, err = strconv.Atoi(rawValue); err != nil {
				return nil, GeoTransform{}, fmt.Errorf("invalid-argument: ASCII grid ncols: %w", err)
			}
			haveNcols = true
		case "nrows":
			if nrows, err = strconv.Atoi(rawValue); err != nil {
				return nil, GeoTransform{}, fmt.Errorf("invalid-argument: ASCII grid nrows: %w", err)
			}
			haveNrows = true
		default:
			parsed, perr := strconv.ParseFloat(rawValue, 64)
			if perr != nil {
				return nil, GeoTransform{}, fmt.Errorf("invalid-argument: ASCII grid %s: %w", key, perr)
			}
			switch key {
			case "xllcorner":
				xll, haveXll = parsed, true
			case "xllcenter":
				xll, haveXll, xllCenter = parsed, true, true
			case "yllcorner":
				yll, haveYll = parsed, true
			case "yllcenter":
				yll, haveYll, yllCenter = parsed, true, true
			case "cellsize":
				cellsize, haveCellsize = parsed, true
			case "nodata_value":
				nodata, haveNodata = parsed, true
				break headerLoop
			}
		}
	}

	if !haveNcols || !haveNrows || !haveXll || !haveYll || !haveCellsize || ncols <= 0 || nrows <= 0 || cellsize <= 0 {
		return nil, GeoTransform{}, fmt.Errorf("invalid-argument: incomplete ASCII grid header")
	}
	if xllCenter {
		xll -= cellsize / 2
	}
	if yllCenter {
		yll -= cellsize / 2
	}

	shape := asciiGridShape
	r, err := raster.New(ncols, nrows, shape, nil)
	if err != nil {
		return nil, GeoTransform{}, err
	}
	p, err := pixel.New(shape)
	if err != nil {
		return nil, GeoTransform{}, err
	}
	if haveNodata {
		r.EnsureMask()
	}

	for y := 0; y < nrows; y++ {
		line, ok := lr.next()
		if !ok {
			return nil, GeoTransform{}, fmt.Errorf("invalid-argument: ASCII grid has fewer than %d data rows", nrows)
		}
		fields := strings.Fields(line)
		if len(fields) != ncols {
			return nil, GeoTransform{}, fmt.Errorf("invalid-argument: ASCII grid row %d has %d values, want %d", y, len(fields), ncols)
		}
		for x, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, GeoTransform{}, fmt.Errorf("invalid-argument: ASCII grid value: %w", err)
			}
			p.SetSample(0, math.Float64bits(v))
			p.SetTransparent(haveNodata && v == nodata)
			if err := r.SetPixel(x, y, p); err != nil {
				return nil, GeoTransform{}, err
			}
		}
	}

	gt := GeoTransform{
		OriginX: xll,
		OriginY: yll + float64(nrows)*cellsize,
		XRes:    cellsize,
		YRes:    cellsize,
	}
	return r, gt, nil
}
