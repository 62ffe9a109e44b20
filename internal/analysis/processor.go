// SPDX-License-Identifier: MIT
package analysis

import "audioviz/internal/ringbuf"

// Interfaces shared by the ingestor, the analyzer and the transform. The
// analyzer depends only on these so it can be driven by synthetic buffers
// and transforms in tests.

// BufferSet exposes per-channel sample history for reading.
type BufferSet interface {
	NumChannels() int
	Channel(i int) *ringbuf.Buffer
}

// FrequencyBin is one slot of a transform result.
type FrequencyBin struct {
	Frequency float64 // Centre frequency in Hz.
	Volume    float32 // Amplitude after gain.
}

// Transform turns a fixed-size window of samples into frequency bins.
// Implementations must be deterministic: the same window always yields the
// same bins.
type Transform interface {
	// Size is the number of samples Apply expects.
	Size() int
	// Bins is the number of bins Apply writes.
	Bins() int
	// Apply evaluates the transform over samples (len == Size) into dst
	// (len == Bins).
	Apply(dst []FrequencyBin, samples []float32)
	// BinFrequency returns the centre frequency (Hz) of bin i.
	BinFrequency(i int) float64
}
