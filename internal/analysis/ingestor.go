// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"audioviz/internal/ringbuf"
)

// IngestStats summarises one Ingest call.
type IngestStats struct {
	Frames    int // Complete frames appended.
	Discarded int // Samples of a trailing partial frame that were dropped.
	Evicted   int // Samples evicted across all channels to respect the bound.
}

// Ingestor de-interleaves sample chunks into one bounded history per channel.
// It is the only writer of its buffers and must be driven from a single
// goroutine.
type Ingestor struct {
	buffers []*ringbuf.Buffer
}

var _ BufferSet = (*Ingestor)(nil)

// NewIngestor allocates cfg.Channels buffers of cfg.FFTResolution samples each.
func NewIngestor(cfg Config) (*Ingestor, error) {
	if cfg.Channels < 1 {
		return nil, fmt.Errorf("channel count must be at least 1, got %d", cfg.Channels)
	}
	if cfg.FFTResolution <= 0 {
		return nil, fmt.Errorf("fft resolution must be positive, got %d", cfg.FFTResolution)
	}

	buffers := make([]*ringbuf.Buffer, cfg.Channels)
	for i := range buffers {
		buffers[i] = ringbuf.New(cfg.FFTResolution)
	}
	return &Ingestor{buffers: buffers}, nil
}

// Ingest appends every complete frame of chunk to the channel buffers. Sample
// j of a frame goes to channel j. A trailing partial frame is dropped. Once
// a buffer is full its oldest samples are evicted, so after Ingest returns
// every buffer holds at most FFTResolution samples. An empty chunk is a no-op.
func (in *Ingestor) Ingest(chunk []float32) IngestStats {
	stride := len(in.buffers)
	frames := len(chunk) / stride
	stats := IngestStats{
		Frames:    frames,
		Discarded: len(chunk) - frames*stride,
	}

	for f := range frames {
		frame := chunk[f*stride : (f+1)*stride]
		for ch, sample := range frame {
			if in.buffers[ch].Push(sample) {
				stats.Evicted++
			}
		}
	}
	return stats
}

// NumChannels implements BufferSet.
func (in *Ingestor) NumChannels() int { return len(in.buffers) }

// Channel implements BufferSet.
func (in *Ingestor) Channel(i int) *ringbuf.Buffer { return in.buffers[i] }

// Reset clears all channel history.
func (in *Ingestor) Reset() {
	for _, b := range in.buffers {
		b.Reset()
	}
}
