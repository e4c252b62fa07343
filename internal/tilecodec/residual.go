// SPDX-License-Identifier: MIT

package tilecodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// encodeResidual computes the byte-wise difference (modulo 256) between
// the raster's original pixel bytes and the decode of the odd blob, then compresses
// it losslessly. Differences cluster around zero for any reasonable
// lossy codec, so a general-purpose compressor is enough to make the
// even blob small in practice.
func encodeResidual(original, decoded []byte) ([]byte, error) {
	if len(original) != len(decoded) {
		return nil, fmt.Errorf("dbms-insert: residual length mismatch, %d vs %d", len(original), len(decoded))
	}
	diff := make([]byte, len(original))
	for i := range original {
		diff[i] = original[i] - decoded[i]
	}

	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.BestCompression)
	if _, err := w.Write(diff); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// applyResidual recombines a lossy decode with its residual blob to
// reproduce the original pixel bytes exactly.
func applyResidual(decoded, residual []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(residual))
	diff, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("bad-pixel-blob: corrupt residual blob: %w", err)
	}
	if len(diff) != len(decoded) {
		return nil, fmt.Errorf("bad-pixel-blob: residual length %d does not match decoded length %d", len(diff), len(decoded))
	}
	out := make([]byte, len(decoded))
	for i := range decoded {
		out[i] = decoded[i] + diff[i]
	}
	return out, nil
}
