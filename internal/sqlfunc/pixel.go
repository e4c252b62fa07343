// SPDX-License-Identifier: MIT

package sqlfunc

import (
	"github.com/brawer/rasterlite2go/internal/pixel"
	"github.com/brawer/rasterlite2go/internal/stats"
)

// createPixel builds the default no-data pixel for (sampleType,
// pixelType, bands) and returns it in the short serialized form a
// coverage's no-data column stores, or nil (SQL NULL) if the keywords
// or band count don't describe a valid shape.
func (b *binder) createPixel(sampleType, pixelType string, bands int64) []byte {
	st, err := pixel.ParseSampleType(sampleType)
	if err != nil {
		return nil
	}
	pt, err := pixel.ParsePixelType(pixelType)
	if err != nil {
		return nil
	}
	shape := pixel.Shape{Sample: st, Pixel: pt, Bands: int(bands)}
	p, err := pixel.DefaultNoData(shape)
	if err != nil {
		return nil
	}
	return p.ToBlob()
}

// getPixelType reports the pixel-type keyword declared in a pixel
// blob's header, or "" if the blob is too short or bears the wrong
// magic tag.
func (b *binder) getPixelType(blob []byte) string {
	shape, err := pixel.PeekShape(blob)
	if err != nil {
		return ""
	}
	return shape.Pixel.String()
}

// getPixelSampleType reports the sample-type keyword declared in a
// pixel blob's header, or "" if the blob is too short or bears the
// wrong magic tag.
func (b *binder) getPixelSampleType(blob []byte) string {
	shape, err := pixel.PeekShape(blob)
	if err != nil {
		return ""
	}
	return shape.Sample.String()
}

// getPixelNumBands reports the band count declared in a pixel blob's
// header, or 0 if the blob is too short or bears the wrong magic tag.
func (b *binder) getPixelNumBands(blob []byte) int64 {
	shape, err := pixel.PeekShape(blob)
	if err != nil {
		return 0
	}
	return int64(shape.Bands)
}

// getPixelValue reports one band's numeric value out of a pixel blob,
// or 0 if the blob is malformed or band is out of range.
func (b *binder) getPixelValue(blob []byte, band int64) float64 {
	shape, err := pixel.PeekShape(blob)
	if err != nil {
		return 0
	}
	p, err := pixel.FromBlob(blob, shape)
	if err != nil {
		return 0
	}
	v, err := p.GetSample(int(band))
	if err != nil {
		return 0
	}
	return shape.Sample.ToFloat(v)
}

// setPixelValue returns a copy of blob with one band's value replaced,
// or nil if the blob is malformed, band is out of range, or value
// doesn't fit the declared sample type.
func (b *binder) setPixelValue(blob []byte, band int64, value float64) []byte {
	shape, err := pixel.PeekShape(blob)
	if err != nil {
		return nil
	}
	p, err := pixel.FromBlob(blob, shape)
	if err != nil {
		return nil
	}
	if err := p.SetSample(int(band), shape.Sample.FromFloat(value)); err != nil {
		return nil
	}
	return p.ToBlob()
}

// isTransparentPixel reports a pixel blob's transparency flag: 1 if
// set, 0 if clear; a malformed blob also gives 0, since errCode maps
// bad-pixel-blob errors to 0.
func (b *binder) isTransparentPixel(blob []byte) int64 {
	shape, err := pixel.PeekShape(blob)
	if err != nil {
		return errCode(err)
	}
	p, err := pixel.FromBlob(blob, shape)
	if err != nil {
		return errCode(err)
	}
	if p.IsTransparent() {
		return 1
	}
	return 0
}

// setTransparentPixel returns a copy of blob with its transparency
// flag set per transparent (nonzero = set), or nil if blob is
// malformed.
func (b *binder) setTransparentPixel(blob []byte, transparent int64) []byte {
	shape, err := pixel.PeekShape(blob)
	if err != nil {
		return nil
	}
	p, err := pixel.FromBlob(blob, shape)
	if err != nil {
		return nil
	}
	p.SetTransparent(transparent != 0)
	return p.ToBlob()
}

// pixelEquals reports whether two pixel blobs hold equal shape, bands
// and transparency: 1 equal, 0 unequal or either blob malformed.
func (b *binder) pixelEquals(a, c []byte) int64 {
	shapeA, err := pixel.PeekShape(a)
	if err != nil {
		return errCode(err)
	}
	pa, err := pixel.FromBlob(a, shapeA)
	if err != nil {
		return errCode(err)
	}
	shapeC, err := pixel.PeekShape(c)
	if err != nil {
		return errCode(err)
	}
	pc, err := pixel.FromBlob(c, shapeC)
	if err != nil {
		return errCode(err)
	}
	if pa.Equal(pc) {
		return 1
	}
	return 0
}

// isValidPixel reports whether blob is a well-formed pixel blob whose
// declared shape matches the given keywords and satisfies the
// sample/pixel/bands invariants.
func (b *binder) isValidPixel(blob []byte, sampleType, pixelType string) int64 {
	st, err := pixel.ParseSampleType(sampleType)
	if err != nil {
		return errCode(err)
	}
	pt, err := pixel.ParsePixelType(pixelType)
	if err != nil {
		return errCode(err)
	}
	shape, err := pixel.PeekShape(blob)
	if err != nil {
		return errCode(err)
	}
	if shape.Sample != st || shape.Pixel != pt {
		return 0
	}
	if err := shape.Validate(); err != nil {
		return 0
	}
	if _, err := pixel.FromBlob(blob, shape); err != nil {
		return errCode(err)
	}
	return 1
}

// isValidRasterStatistics reports whether blob is a well-formed
// statistics blob for a coverage with the given sample type and band
// count.
func (b *binder) isValidRasterStatistics(blob []byte, sampleType string, bands int64) int64 {
	st, err := pixel.ParseSampleType(sampleType)
	if err != nil {
		return errCode(err)
	}
	if _, err := stats.FromBlob(blob, st, int(bands)); err != nil {
		return errCode(err)
	}
	return 1
}
