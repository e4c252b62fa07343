// SPDX-License-Identifier: MIT

package importer

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

// TIFF tag identifiers used by tiffReader, restricted to the baseline
// and GeoTIFF tags a coverage importer needs.
const (
	tagImageWidth         = 256
	tagImageHeight        = 257
	tagBitsPerSample      = 258
	tagCompression        = 259
	tagPhotometric        = 262
	tagStripOffsets       = 273
	tagSamplesPerPixel    = 277
	tagRowsPerStrip       = 278
	tagStripByteCounts    = 279
	tagTileWidth          = 322
	tagTileLength         = 323
	tagTileOffsets        = 324
	tagTileByteCounts     = 325
	tagColorMap           = 320
	tagSampleFormat       = 339
	tagModelPixelScale    = 33550
	tagModelTiepoint      = 33922
	tagGeoKeyDirectory    = 34735
)

const (
	compressionNone    = 1
	compressionDeflate = 8
	compressionAdobe   = 32946 // Adobe-style deflate, same codec as 8
)

const photometricPalette = 3

// GeoKey identifiers inside a GeoKeyDirectoryTag that name the source's
// spatial reference system, per the GeoTIFF key registry: either a
// full projected CRS or a geographic (lat/lon) one.
const (
	geoKeyProjectedCSType = 3072
	geoKeyGeographicType  = 2048
)

// tiffReader walks a TIFF/GeoTIFF's first IFD, generalizing the
// tag-by-tag IFD walk taught by the TIFF reader embedded in the
// retrieval pack's osmviews builder (manual binary.Read over each
// 12-byte directory entry, LONG vs SHORT value decoding) to also cover
// strip-organized images, multi-band (RGB) samples, and the GeoTIFF
// pixel-scale/tiepoint tags that anchor a raster in world coordinates.
type tiffReader struct {
	r     io.ReadSeeker
	order binary.ByteOrder

	width, height               uint32
	tileWidth, tileHeight        uint32 // 0 if strip-organized
	rowsPerStrip                 uint32
	bitsPerSample                uint32
	samplesPerPixel              uint32
	sampleFormat                 uint32 // 1=uint, 2=int, 3=float
	photometric                  uint32
	compression                  uint32
	offsets, byteCounts          []uint32
	colorMap                     []uint32

	pixelScaleX, pixelScaleY float64
	tiepointI, tiepointJ     float64
	tiepointX, tiepointY     float64
	hasGeoTransform          bool
	srid                     int
}

func readTIFF(path string) (*raster.Raster, GeoTransform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, GeoTransform{}, err
	}
	defer f.Close()

	t := &tiffReader{r: f, sampleFormat: 1, samplesPerPixel: 1, bitsPerSample: 8, compression: compressionNone}
	if err := t.readFirstIFD(); err != nil {
		return nil, GeoTransform{}, err
	}

	shape, err := t.shape()
	if err != nil {
		return nil, GeoTransform{}, err
	}

	r, err := raster.New(int(t.width), int(t.height), shape, nil)
	if err != nil {
		return nil, GeoTransform{}, err
	}
	if shape.Pixel == pixel.Palette {
		pal, err := t.buildPalette(shape.Sample.BitWidth())
		if err != nil {
			return nil, GeoTransform{}, err
		}
		r.WithPalette(pal)
	}

	if t.tileWidth > 0 {
		if err := t.fillTiled(r, shape); err != nil {
			return nil, GeoTransform{}, err
		}
	} else {
		if err := t.fillStriped(r, shape); err != nil {
			return nil, GeoTransform{}, err
		}
	}

	gt, err := t.geoTransform(path)
	if err != nil {
		return nil, GeoTransform{}, err
	}
	return r, gt, nil
}

func (t *tiffReader) shape() (pixel.Shape, error) {
	var sample pixel.SampleType
	switch {
	case t.sampleFormat == 3 && t.bitsPerSample == 32:
		sample = pixel.SampleFloat32
	case t.sampleFormat == 3 && t.bitsPerSample == 64:
		sample = pixel.SampleFloat64
	case t.sampleFormat == 2 && t.bitsPerSample == 8:
		sample = pixel.SampleInt8
	case t.sampleFormat == 2 && t.bitsPerSample == 16:
		sample = pixel.SampleInt16
	case t.sampleFormat == 2 && t.bitsPerSample == 32:
		sample = pixel.SampleInt32
	case t.bitsPerSample == 1:
		sample = pixel.Sample1Bit
	case t.bitsPerSample == 2:
		sample = pixel.Sample2Bit
	case t.bitsPerSample == 4:
		sample = pixel.Sample4Bit
	case t.bitsPerSample == 8:
		sample = pixel.SampleUint8
	case t.bitsPerSample == 16:
		sample = pixel.SampleUint16
	case t.bitsPerSample == 32:
		sample = pixel.SampleUint32
	default:
		return pixel.Shape{}, fmt.Errorf("invalid-argument: unsupported TIFF sample depth %d (format %d)", t.bitsPerSample, t.sampleFormat)
	}

	switch {
	case t.photometric == photometricPalette && t.samplesPerPixel == 1:
		return pixel.Shape{Sample: sample, Pixel: pixel.Palette, Bands: 1}, nil
	case t.samplesPerPixel == 3:
		return pixel.Shape{Sample: pixel.SampleUint8, Pixel: pixel.RGB, Bands: 3}, nil
	case t.samplesPerPixel == 1 && t.bitsPerSample == 1:
		return pixel.Shape{Sample: pixel.Sample1Bit, Pixel: pixel.Monochrome, Bands: 1}, nil
	case t.samplesPerPixel == 1 && (sample == pixel.SampleFloat32 || sample == pixel.SampleFloat64 || sample == pixel.SampleInt16 || sample == pixel.SampleInt32):
		return pixel.Shape{Sample: sample, Pixel: pixel.DataGrid, Bands: 1}, nil
	case t.samplesPerPixel == 1:
		return pixel.Shape{Sample: sample, Pixel: pixel.Grayscale, Bands: 1}, nil
	case t.samplesPerPixel > 3:
		return pixel.Shape{Sample: sample, Pixel: pixel.Multiband, Bands: int(t.samplesPerPixel)}, nil
	default:
		return pixel.Shape{}, fmt.Errorf("invalid-argument: unsupported TIFF band count %d", t.samplesPerPixel)
	}
}

func (t *tiffReader) readFirstIFD() error {
	var header [4]byte
	if _, err := io.ReadFull(t.r, header[:]); err != nil {
		return err
	}
	switch {
	case bytes.Equal(header[:], []byte{'I', 'I', 42, 0}):
		t.order = binary.LittleEndian
	case bytes.Equal(header[:], []byte{'M', 'M', 0, 42}):
		t.order = binary.BigEndian
	default:
		return fmt.Errorf("invalid-argument: not a TIFF file")
	}

	var ifdOffset uint32
	if err := binary.Read(t.r, t.order, &ifdOffset); err != nil {
		return err
	}
	if _, err := t.r.Seek(int64(ifdOffset), io.SeekStart); err != nil {
		return err
	}

	var numEntries uint16
	if err := binary.Read(t.r, t.order, &numEntries); err != nil {
		return err
	}

	var ifd bytes.Buffer
	if _, err := io.CopyN(&ifd, t.r, int64(numEntries)*12); err != nil {
		return err
	}

	for i := uint16(0); i < numEntries; i++ {
		var tag, typ uint16
		var count uint32
		var raw [4]byte
		if err := binary.Read(&ifd, t.order, &tag); err != nil {
			return err
		}
		if err := binary.Read(&ifd, t.order, &typ); err != nil {
			return err
		}
		if err := binary.Read(&ifd, t.order, &count); err != nil {
			return err
		}
		if _, err := io.ReadFull(&ifd, raw[:]); err != nil {
			return err
		}

		if err := t.applyTag(tag, typ, count, raw); err != nil {
			return err
		}
	}
	return nil
}

// applyTag dispatches one IFD entry, where raw is the directory entry's
// 4-byte value/offset field exactly as it appears in the file: either
// count inline values (when they fit in 4 bytes) or a file offset
// pointing at an external array, per the TIFF 6.0 directory format.
func (t *tiffReader) applyTag(tag, typ uint16, count uint32, raw [4]byte) error {
	// A SHORT-typed scalar occupies only the first two of the four
	// value-field bytes; reading all four as one Uint32 would be off by
	// a factor of 2^16 on big-endian files, where the significant bytes
	// sit at the front of the field rather than the back.
	var value uint32
	if typ == 3 {
		value = uint32(t.order.Uint16(raw[:2]))
	} else {
		value = t.order.Uint32(raw[:])
	}
	switch tag {
	case tagImageWidth:
		t.width = value
	case tagImageHeight:
		t.height = value
	case tagBitsPerSample:
		a, err := t.readUint32Array(typ, count, raw)
		if err != nil {
			return err
		}
		t.bitsPerSample = a[0]
	case tagCompression:
		t.compression = value
	case tagPhotometric:
		t.photometric = value
	case tagSamplesPerPixel:
		t.samplesPerPixel = value
	case tagSampleFormat:
		t.sampleFormat = value
	case tagRowsPerStrip:
		t.rowsPerStrip = value
	case tagTileWidth:
		t.tileWidth = value
	case tagTileLength:
		t.tileHeight = value
	case tagStripOffsets:
		a, err := t.readUint32Array(typ, count, raw)
		if err != nil {
			return err
		}
		t.offsets = a
	case tagStripByteCounts:
		a, err := t.readUint32Array(typ, count, raw)
		if err != nil {
			return err
		}
		t.byteCounts = a
	case tagTileOffsets:
		a, err := t.readUint32Array(typ, count, raw)
		if err != nil {
			return err
		}
		t.offsets = a
	case tagTileByteCounts:
		a, err := t.readUint32Array(typ, count, raw)
		if err != nil {
			return err
		}
		t.byteCounts = a
	case tagModelPixelScale:
		a, err := t.readDoubleArray(value, 3)
		if err != nil {
			return err
		}
		t.pixelScaleX, t.pixelScaleY = a[0], a[1]
	case tagModelTiepoint:
		a, err := t.readDoubleArray(value, 6)
		if err != nil {
			return err
		}
		t.tiepointI, t.tiepointJ = a[0], a[1]
		t.tiepointX, t.tiepointY = a[3], a[4]
		t.hasGeoTransform = true
	case tagColorMap:
		a, err := t.readUint32Array(typ, count, raw)
		if err != nil {
			return err
		}
		t.colorMap = a
	case tagGeoKeyDirectory:
		a, err := t.readUint32Array(typ, count, raw)
		if err != nil {
			return err
		}
		t.srid = sridFromGeoKeys(a)
	}
	return nil
}

// sridFromGeoKeys extracts an EPSG code out of a parsed GeoKeyDirectory
// (KeyDirectoryVersion, KeyRevision, MinorRevision, NumberOfKeys,
// followed by NumberOfKeys (KeyID, TIFFTagLocation, Count, Value)
// quadruplets), preferring a projected CRS key over a geographic one.
// It returns 0 if neither key is present or inline.
func sridFromGeoKeys(keys []uint32) int {
	if len(keys) < 4 {
		return 0
	}
	numKeys := int(keys[3])
	srid := 0
	for i := 0; i < numKeys; i++ {
		base := 4 + i*4
		if base+3 >= len(keys) {
			break
		}
		keyID, location, value := keys[base], keys[base+1], keys[base+3]
		if location != 0 {
			continue // value lives in another tag; not needed for SRID keys
		}
		switch keyID {
		case geoKeyProjectedCSType:
			return int(value)
		case geoKeyGeographicType:
			srid = int(value)
		}
	}
	return srid
}

// buildPalette reconstructs a pixel.Palette from a TIFF ColorMap tag,
// whose three 2^bitWidth-entry red/green/blue tables are packed
// back-to-back and scaled to the full 16-bit range regardless of the
// image's own sample depth.
func (t *tiffReader) buildPalette(bitWidth int) (*pixel.Palette, error) {
	n := 1 << uint(bitWidth)
	if len(t.colorMap) < 3*n {
		return nil, fmt.Errorf("invalid-argument: TIFF ColorMap has %d entries, want %d", len(t.colorMap), 3*n)
	}
	entries := make([]pixel.RGB8, n)
	for i := 0; i < n; i++ {
		entries[i] = pixel.RGB8{
			R: uint8(t.colorMap[i] >> 8),
			G: uint8(t.colorMap[n+i] >> 8),
			B: uint8(t.colorMap[2*n+i] >> 8),
		}
	}
	return pixel.NewPalette(entries, bitWidth)
}

// readUint32Array reads an array of LONG (type 4) or SHORT (type 3)
// values, used for StripOffsets/ByteCounts, BitsPerSample and their
// tiled equivalents, which are stored inline in the directory entry's
// 4-byte value field when they fit, or else at an external offset.
func (t *tiffReader) readUint32Array(typ uint16, count uint32, raw [4]byte) ([]uint32, error) {
	elemSize := 4
	if typ == 3 {
		elemSize = 2
	}
	if int(count)*elemSize <= 4 {
		result := make([]uint32, count)
		for i := range result {
			if typ == 3 {
				result[i] = uint32(t.order.Uint16(raw[i*2:]))
			} else {
				result[i] = t.order.Uint32(raw[:])
			}
		}
		return result, nil
	}

	offset := t.order.Uint32(raw[:])
	pos, err := t.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	defer t.r.Seek(pos, io.SeekStart)

	if _, err := t.r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	result := make([]uint32, count)
	for i := range result {
		if typ == 3 {
			var v uint16
			if err := binary.Read(t.r, t.order, &v); err != nil {
				return nil, err
			}
			result[i] = uint32(v)
		} else {
			if err := binary.Read(t.r, t.order, &result[i]); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

func (t *tiffReader) readDoubleArray(offset uint32, count int) ([]float64, error) {
	pos, err := t.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	defer t.r.Seek(pos, io.SeekStart)

	if _, err := t.r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	result := make([]float64, count)
	for i := range result {
		var bits uint64
		if err := binary.Read(t.r, t.order, &bits); err != nil {
			return nil, err
		}
		result[i] = math.Float64frombits(bits)
	}
	return result, nil
}

func (t *tiffReader) decompress(data []byte) ([]byte, error) {
	switch t.compression {
	case compressionNone:
		return data, nil
	case compressionDeflate, compressionAdobe:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("invalid-argument: unsupported TIFF compression %d", t.compression)
	}
}

func (t *tiffReader) readBlock(index int) ([]byte, error) {
	if _, err := t.r.Seek(int64(t.offsets[index]), io.SeekStart); err != nil {
		return nil, err
	}
	raw := make([]byte, t.byteCounts[index])
	if _, err := io.ReadFull(t.r, raw); err != nil {
		return nil, err
	}
	return t.decompress(raw)
}

func (t *tiffReader) fillTiled(r *raster.Raster, shape pixel.Shape) error {
	cols := int((t.width + t.tileWidth - 1) / t.tileWidth)
	rows := int((t.height + t.tileHeight - 1) / t.tileHeight)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			index := row*cols + col
			data, err := t.readBlock(index)
			if err != nil {
				return err
			}
			if err := blitRawBlock(r, shape, data, t.order, col*int(t.tileWidth), row*int(t.tileHeight), int(t.tileWidth), int(t.tileHeight)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *tiffReader) fillStriped(r *raster.Raster, shape pixel.Shape) error {
	rowsPerStrip := int(t.rowsPerStrip)
	if rowsPerStrip == 0 {
		rowsPerStrip = int(t.height)
	}
	for i, y0 := 0, 0; y0 < int(t.height); i, y0 = i+1, y0+rowsPerStrip {
		data, err := t.readBlock(i)
		if err != nil {
			return err
		}
		h := rowsPerStrip
		if y0+h > int(t.height) {
			h = int(t.height) - y0
		}
		if err := blitRawBlock(r, shape, data, t.order, 0, y0, int(t.width), h); err != nil {
			return err
		}
	}
	return nil
}

// blitRawBlock writes a block of raw, uncompressed, row-major samples
// (as the TIFF file orders them: big-/little-endian per t.order, packed
// tightly with no row padding for the bit depths this reader supports)
// into r starting at pixel (x0, y0), clipping to r's own bounds so a
// TIFF tile that overhangs the image edge does not write out of range.
func blitRawBlock(r *raster.Raster, shape pixel.Shape, data []byte, order binary.ByteOrder, x0, y0, w, h int) error {
	bitsPerPixel := shape.Bands * shape.Sample.BitWidth()
	rowBits := w * bitsPerPixel
	rowBytes := (rowBits + 7) / 8

	p, err := pixel.New(shape)
	if err != nil {
		return err
	}
	for by := 0; by < h; by++ {
		y := y0 + by
		if y >= r.Height {
			continue
		}
		rowStart := by * rowBytes
		for bx := 0; bx < w; bx++ {
			x := x0 + bx
			if x >= r.Width {
				continue
			}
			for b := 0; b < shape.Bands; b++ {
				v, err := readRawSample(data, rowStart, bx, b, shape, order)
				if err != nil {
					return err
				}
				if err := p.SetSample(b, v); err != nil {
					return err
				}
			}
			if err := r.SetPixel(x, y, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// readRawSample extracts one sample at (column bx, band b) from a
// tightly packed row starting at data[rowStart:], matching TIFF's
// baseline (non-planar) interleaved-sample layout.
func readRawSample(data []byte, rowStart, bx, b int, shape pixel.Shape, order binary.ByteOrder) (uint64, error) {
	bits := shape.Sample.BitWidth()
	switch bits {
	case 1, 2, 4:
		sampleIndex := bx*shape.Bands + b
		bitOffset := sampleIndex * bits
		byteIndex := rowStart + bitOffset/8
		if byteIndex >= len(data) {
			return 0, fmt.Errorf("bad-pixel-blob: TIFF block truncated")
		}
		shift := 8 - bits - (bitOffset % 8)
		mask := uint64(1<<uint(bits)) - 1
		return (uint64(data[byteIndex]) >> uint(shift)) & mask, nil
	case 8:
		idx := rowStart + (bx*shape.Bands+b)*1
		if idx >= len(data) {
			return 0, fmt.Errorf("bad-pixel-blob: TIFF block truncated")
		}
		return uint64(data[idx]), nil
	case 16:
		idx := rowStart + (bx*shape.Bands+b)*2
		if idx+2 > len(data) {
			return 0, fmt.Errorf("bad-pixel-blob: TIFF block truncated")
		}
		return uint64(order.Uint16(data[idx:])), nil
	case 32:
		idx := rowStart + (bx*shape.Bands+b)*4
		if idx+4 > len(data) {
			return 0, fmt.Errorf("bad-pixel-blob: TIFF block truncated")
		}
		bits32 := order.Uint32(data[idx:])
		if shape.Sample == pixel.SampleFloat32 {
			return uint64(math.Float32bits(math.Float32frombits(bits32))), nil
		}
		return uint64(bits32), nil
	default:
		return 0, fmt.Errorf("invalid-argument: unsupported sample bit width %d", bits)
	}
}

func (t *tiffReader) geoTransform(path string) (GeoTransform, error) {
	if t.hasGeoTransform && t.pixelScaleX != 0 && t.pixelScaleY != 0 {
		originX := t.tiepointX - t.tiepointI*t.pixelScaleX
		originY := t.tiepointY + t.tiepointJ*t.pixelScaleY
		return GeoTransform{OriginX: originX, OriginY: originY, XRes: t.pixelScaleX, YRes: t.pixelScaleY, SRID: t.srid}, nil
	}
	gt, err := readWorldFile(path)
	if err != nil {
		return GeoTransform{}, err
	}
	gt.SRID = t.srid
	return gt, nil
}
