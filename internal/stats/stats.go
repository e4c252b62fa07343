// SPDX-License-Identifier: MIT

// Package stats computes, aggregates and persists per-band raster
// statistics: count, min, max, sum, a 256-bin histogram, and the
// pooled sum-of-squared-deviations needed to merge per-tile variance
// into a section-wide figure.
package stats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/raster"
)

const histogramBins = 256

// BandStats accumulates the statistics for a single band.
type BandStats struct {
	Count      uint64
	Min, Max   float64
	Sum        float64
	SumSqDiff  float64 // pooled sum of squared deviations from the mean
	Histogram  [histogramBins]uint64
}

// Statistics is the per-coverage-entity (tile or section) aggregate:
// one BandStats per band.
type Statistics struct {
	SampleType pixel.SampleType
	Bands      []BandStats
}

// New allocates an empty Statistics for the given number of bands, with
// Min/Max seeded so that the first observed sample always replaces them.
func New(sampleType pixel.SampleType, bands int) *Statistics {
	s := &Statistics{SampleType: sampleType, Bands: make([]BandStats, bands)}
	for i := range s.Bands {
		s.Bands[i].Min = math.Inf(1)
		s.Bands[i].Max = math.Inf(-1)
	}
	return s
}

// Compute scans every non-transparent pixel of a decoded tile and
// returns its per-band statistics. Discrete pixel types (palette,
// monochrome) use the sample value itself as the histogram bin;
// continuous types rescale into [0,256) using the band's own min/max,
// which this function discovers in a first pass before histogramming
// in a second.
func Compute(r *raster.Raster) (*Statistics, error) {
	bands := r.Shape.Bands
	s := New(r.Shape.Sample, bands)
	discrete := r.Shape.Pixel == pixel.Palette || r.Shape.Pixel == pixel.Monochrome

	type sample struct {
		band  int
		value float64
	}
	var samples []sample

	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			p, err := r.GetPixel(x, y)
			if err != nil {
				return nil, err
			}
			if p.IsTransparent() {
				continue
			}
			for b := 0; b < bands; b++ {
				v := sampleToFloat(r.Shape.Sample, p.Samples[b])
				bs := &s.Bands[b]
				bs.Count++
				bs.Sum += v
				if v < bs.Min {
					bs.Min = v
				}
				if v > bs.Max {
					bs.Max = v
				}
				if discrete {
					bin := int(p.Samples[b])
					if bin >= 0 && bin < histogramBins {
						bs.Histogram[bin]++
					}
				} else {
					samples = append(samples, sample{band: b, value: v})
				}
			}
		}
	}

	if !discrete {
		for _, sm := range samples {
			bs := &s.Bands[sm.band]
			bin := histogramBin(sm.value, bs.Min, bs.Max)
			bs.Histogram[bin]++
		}
		for b := range s.Bands {
			bs := &s.Bands[b]
			if bs.Count == 0 {
				continue
			}
			mean := bs.Sum / float64(bs.Count)
			var sq float64
			for _, sm := range samples {
				if sm.band != b {
					continue
				}
				d := sm.value - mean
				sq += d * d
			}
			bs.SumSqDiff = sq
		}
	}

	for b := range s.Bands {
		if s.Bands[b].Count == 0 {
			s.Bands[b].Min = 0
			s.Bands[b].Max = 0
		}
	}

	return s, nil
}

func histogramBin(v, min, max float64) int {
	if max <= min {
		return 0
	}
	bin := int(math.Floor(histogramBins * (v - min) / (max - min)))
	if bin < 0 {
		return 0
	}
	if bin >= histogramBins {
		return histogramBins - 1
	}
	return bin
}

func sampleToFloat(s pixel.SampleType, v uint64) float64 {
	switch s {
	case pixel.SampleInt8:
		return float64(int8(v))
	case pixel.SampleInt16:
		return float64(int16(v))
	case pixel.SampleInt32:
		return float64(int32(v))
	case pixel.SampleFloat32:
		return float64(math.Float32frombits(uint32(v)))
	case pixel.SampleFloat64:
		return math.Float64frombits(v)
	default:
		return float64(v)
	}
}

// Aggregate merges a tile's (or section's) per-band statistics into an
// already-initialized running total, using a pooled sum-of-squared-
// deviations (Welford-style) merge so that the result does not depend
// on merge order.
func Aggregate(total *Statistics, tile *Statistics) error {
	if len(total.Bands) != len(tile.Bands) {
		return fmt.Errorf("invalid-argument: band count mismatch, %d vs %d", len(total.Bands), len(tile.Bands))
	}
	for b := range total.Bands {
		a, t := &total.Bands[b], &tile.Bands[b]
		if t.Count == 0 {
			continue
		}
		if a.Count == 0 {
			*a = *t
			continue
		}

		na, nb := float64(a.Count), float64(t.Count)
		meanA := a.Sum / na
		meanB := t.Sum / nb
		delta := meanB - meanA
		combinedSqDiff := a.SumSqDiff + t.SumSqDiff + delta*delta*na*nb/(na+nb)

		a.Count += t.Count
		a.Sum += t.Sum
		a.SumSqDiff = combinedSqDiff
		if t.Min < a.Min {
			a.Min = t.Min
		}
		if t.Max > a.Max {
			a.Max = t.Max
		}
		for i := range a.Histogram {
			a.Histogram[i] += t.Histogram[i]
		}
	}
	return nil
}

const statsBlobMagic = 0x73 // 's'

// ToBlob serializes Statistics into a tagged binary blob.
func (s *Statistics) ToBlob() []byte {
	var buf bytes.Buffer
	buf.WriteByte(statsBlobMagic)
	buf.WriteByte(byte(s.SampleType))
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(s.Bands)))
	buf.Write(u32[:])
	for _, b := range s.Bands {
		writeUint64(&buf, b.Count)
		writeFloat64(&buf, b.Min)
		writeFloat64(&buf, b.Max)
		writeFloat64(&buf, b.Sum)
		writeFloat64(&buf, b.SumSqDiff)
		for _, h := range b.Histogram {
			writeUint64(&buf, h)
		}
	}
	return buf.Bytes()
}

// FromBlob deserializes a Statistics blob, validating its declared
// (sample type, bands) against the expected pair.
func FromBlob(data []byte, expectSample pixel.SampleType, expectBands int) (*Statistics, error) {
	r := bytes.NewReader(data)
	magic, err := r.ReadByte()
	if err != nil || magic != statsBlobMagic {
		return nil, fmt.Errorf("bad-pixel-blob: bad statistics blob magic")
	}
	sampleByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("bad-pixel-blob: truncated statistics blob")
	}
	sample := pixel.SampleType(sampleByte)
	var u32 [4]byte
	if _, err := r.Read(u32[:]); err != nil {
		return nil, fmt.Errorf("bad-pixel-blob: truncated statistics blob")
	}
	bands := int(binary.BigEndian.Uint32(u32[:]))
	if sample != expectSample || bands != expectBands {
		return nil, fmt.Errorf("bad-pixel-blob: statistics shape mismatch, want (%s,%d) got (%s,%d)", expectSample, expectBands, sample, bands)
	}

	s := New(sample, bands)
	for b := 0; b < bands; b++ {
		bs := &s.Bands[b]
		var err error
		if bs.Count, err = readUint64(r); err != nil {
			return nil, err
		}
		if bs.Min, err = readFloat64(r); err != nil {
			return nil, err
		}
		if bs.Max, err = readFloat64(r); err != nil {
			return nil, err
		}
		if bs.Sum, err = readFloat64(r); err != nil {
			return nil, err
		}
		if bs.SumSqDiff, err = readFloat64(r); err != nil {
			return nil, err
		}
		for i := range bs.Histogram {
			if bs.Histogram[i], err = readUint64(r); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	writeUint64(buf, math.Float64bits(v))
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return 0, fmt.Errorf("bad-pixel-blob: truncated statistics blob: %w", err)
	}
	return binary.BigEndian.Uint64(tmp[:]), nil
}

func readFloat64(r *bytes.Reader) (float64, error) {
	v, err := readUint64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}
