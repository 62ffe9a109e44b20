// SPDX-License-Identifier: MIT
/*
Package transport delivers pipeline frames to the outside world.

Every renderer implements pipeline.Renderer. Render is called from the
pipeline's consumer goroutine once per tick and must not block on slow
clients; renderers that talk to the network queue or drop instead.
*/
package transport

import (
	"errors"
	"math"

	"audioviz/internal/analysis"
	"audioviz/internal/pipeline"
)

// FrameMessage is the JSON form of a frame.
type FrameMessage struct {
	Sequence  uint32               `json:"seq"`
	Timestamp int64                `json:"ts"` // Nanoseconds since epoch
	Ready     bool                 `json:"ready"`
	Silent    bool                 `json:"silent"`
	Peak      float32              `json:"peak"`
	Spectrum  []float32            `json:"spectrum"`
	Waveform  []float32            `json:"waveform"`
	Bands     []analysis.BandLevel `json:"bands,omitempty"`
}

// NewFrameMessage converts f for JSON encoding. Slices are shared with f
// unless they hold NaN or infinite values, which JSON cannot carry; those
// are copied with every non-finite value replaced by 0.
func NewFrameMessage(f pipeline.Frame) FrameMessage {
	waveform := finiteSlice(f.Waveform)
	if waveform == nil {
		waveform = []float32{}
	}
	return FrameMessage{
		Sequence:  f.Sequence,
		Timestamp: f.Timestamp.UnixNano(),
		Ready:     f.Ready(),
		Silent:    f.Silent,
		Peak:      finite(f.Peak),
		Spectrum:  finiteSlice(f.Spectrum),
		Waveform:  waveform,
		Bands:     finiteBands(f.Bands),
	}
}

func finite(v float32) float32 {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0
	}
	return v
}

func finiteSlice(values []float32) []float32 {
	for i, v := range values {
		if finite(v) == v {
			continue
		}
		out := make([]float32, len(values))
		copy(out, values[:i])
		for j := i; j < len(values); j++ {
			out[j] = finite(values[j])
		}
		return out
	}
	return values
}

func finiteBands(bands []analysis.BandLevel) []analysis.BandLevel {
	for i, b := range bands {
		if !math.IsNaN(b.Level) && !math.IsInf(b.Level, 0) {
			continue
		}
		out := make([]analysis.BandLevel, len(bands))
		copy(out, bands)
		for j := i; j < len(out); j++ {
			if math.IsNaN(out[j].Level) || math.IsInf(out[j].Level, 0) {
				out[j].Level = 0
			}
		}
		return out
	}
	return bands
}

// Multi fans each frame out to several renderers. Every renderer sees every
// frame; errors are joined.
type Multi []pipeline.Renderer

func (m Multi) Render(f pipeline.Frame) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure Multi satisfies the interface
var _ pipeline.Renderer = Multi(nil)
