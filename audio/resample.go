package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	soxr "github.com/zaf/resample"
)

// Resample converts a drained recording from the capture rate to the
// canonical rate. This runs on the drain path, never inside the capture
// callback, so allocation is fine here.
func Resample(samples []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}

	in := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(in[i*2:], uint16(int16(v*32767)))
	}

	var out bytes.Buffer
	r, err := soxr.New(&out, float64(fromRate), float64(toRate), 1, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	if _, err := r.Write(in); err != nil {
		r.Close()
		return nil, fmt.Errorf("resample write: %w", err)
	}
	// Close flushes the tail of the conversion window.
	if err := r.Close(); err != nil {
		return nil, fmt.Errorf("resample flush: %w", err)
	}

	outBytes := out.Bytes()
	result := make([]float32, len(outBytes)/2)
	for i := range result {
		s := int16(binary.LittleEndian.Uint16(outBytes[i*2:]))
		result[i] = float32(s) / 32768.0
	}
	return result, nil
}
