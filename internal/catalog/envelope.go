// SPDX-License-Identifier: MIT

package catalog

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Envelope is an axis-aligned bounding box in the coverage's SRID.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

const envelopeBlobMagic = 0x65 // 'e'

// EncodeEnvelope serializes an Envelope into the bytes stored in a
// tile's or section's geometry column. No general-purpose WKB/geometry
// library exists anywhere in the retrieval pack, so this is a minimal
// hand-rolled tagged envelope format rather than a full geometry
// encoding (see DESIGN.md); it carries exactly what the spatial index
// and the reader need: an axis-aligned bounding box.
func EncodeEnvelope(e Envelope) []byte {
	buf := make([]byte, 1+8*4)
	buf[0] = envelopeBlobMagic
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(e.MinX))
	binary.BigEndian.PutUint64(buf[9:17], math.Float64bits(e.MinY))
	binary.BigEndian.PutUint64(buf[17:25], math.Float64bits(e.MaxX))
	binary.BigEndian.PutUint64(buf[25:33], math.Float64bits(e.MaxY))
	return buf
}

// DecodeEnvelope is the inverse of EncodeEnvelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) != 33 || data[0] != envelopeBlobMagic {
		return Envelope{}, fmt.Errorf("bad-pixel-blob: bad envelope blob")
	}
	return Envelope{
		MinX: math.Float64frombits(binary.BigEndian.Uint64(data[1:9])),
		MinY: math.Float64frombits(binary.BigEndian.Uint64(data[9:17])),
		MaxX: math.Float64frombits(binary.BigEndian.Uint64(data[17:25])),
		MaxY: math.Float64frombits(binary.BigEndian.Uint64(data[25:33])),
	}, nil
}
