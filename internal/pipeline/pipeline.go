// SPDX-License-Identifier: MIT
/*
Package pipeline connects a capture stream to the analysis stage.

The producer side (Deliver, StreamError) is called from the audio thread and
only snapshots chunks into an unbounded queue. Everything that touches the
channel buffers happens in Tick, on the consumer goroutine:

	capture callback -> queue -> Tick: drain, ingest, analyse -> Renderer
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"audioviz/internal/analysis"
	"audioviz/internal/audio"
	"audioviz/internal/log"
	"audioviz/internal/metrics"
	"audioviz/internal/queue"
)

// DefaultTickInterval is roughly one display refresh at 60 Hz.
const DefaultTickInterval = 16 * time.Millisecond

// Frame is the output of one consumer tick. Frames are never mutated after
// Tick returns, so renderers may hold on to them.
type Frame struct {
	Sequence  uint32
	Timestamp time.Time
	// Spectrum is nil until every channel holds a full FFT window.
	Spectrum []float32
	Waveform []float32
	Bands    []analysis.BandLevel
	// Peak is the largest absolute sample drained during the tick.
	Peak float32
	// Silent is set when the noise gate stayed closed for the whole tick.
	Silent bool
}

// Ready reports whether the frame carries a spectrum.
func (f Frame) Ready() bool { return f.Spectrum != nil }

// Renderer consumes frames.
type Renderer interface {
	Render(frame Frame) error
	Close() error
}

// Options holds the optional collaborators of a Pipeline.
type Options struct {
	TickInterval time.Duration
	// Bands are summarised from each ready spectrum. Nil uses
	// analysis.DefaultBands; an empty non-nil slice disables them.
	Bands    []analysis.FrequencyBand
	Gate     *audio.Gate
	Recorder *audio.Recorder
	Metrics  *metrics.Metrics
}

// Pipeline owns the hand-off queue and the analysis state.
type Pipeline struct {
	cfg      analysis.Config
	opts     Options
	queue    *queue.Queue
	ingestor *analysis.Ingestor
	analyzer *analysis.Analyzer

	// Requested waveform resolution, 0 for natural. Written by any
	// goroutine, applied at the start of each tick.
	resolution atomic.Int64

	sequence  uint32
	recordErr error
}

var _ audio.Sink = (*Pipeline)(nil)

// New builds the pipeline for a stream with cfg.Channels channels at
// cfg.SampleRate.
func New(cfg analysis.Config, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Bands == nil {
		opts.Bands = analysis.DefaultBands
	}

	ingestor, err := analysis.NewIngestor(cfg)
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.NewAnalyzer(cfg, ingestor)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		opts:     opts,
		queue:    queue.New(),
		ingestor: ingestor,
		analyzer: analyzer,
	}
	p.SetResolution(cfg.Resolution)

	log.Debugf("Pipeline: %d channels @ %.0f Hz, fft %d (%d bins), %s window, tick %s",
		cfg.Channels, cfg.SampleRate, cfg.FFTResolution, cfg.NumBins(), cfg.Window, opts.TickInterval)
	return p, nil
}

// Config returns the analysis configuration the pipeline was built with.
func (p *Pipeline) Config() analysis.Config { return p.cfg }

// BinFrequency returns the centre frequency of spectrum bin i.
func (p *Pipeline) BinFrequency(i int) float64 { return p.analyzer.BinFrequency(i) }

// Deliver snapshots chunk into the queue. It never blocks and never fails;
// chunks delivered after Close are dropped.
func (p *Pipeline) Deliver(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	if err := p.queue.Push(slices.Clone(chunk)); err != nil {
		return
	}
	p.opts.Metrics.ChunkEnqueued()
}

// StreamError records a transient capture error. The stream keeps running.
func (p *Pipeline) StreamError(err error) {
	log.Warnf("Audio stream error: %v", err)
	p.opts.Metrics.StreamError()
}

// SetResolution requests a new waveform resolution. Safe for concurrent use;
// the change takes effect on the next tick.
func (p *Pipeline) SetResolution(r analysis.Resolution) {
	n, _ := r.Fixed()
	p.resolution.Store(int64(n))
}

// Resolution returns the most recently requested waveform resolution.
func (p *Pipeline) Resolution() analysis.Resolution {
	return analysis.Fixed(int(p.resolution.Load()))
}

// Tick drains every queued chunk in order, ingests it, and analyses the
// resulting history. It must only be called from one goroutine.
func (p *Pipeline) Tick() Frame {
	start := time.Now()
	p.analyzer.SetResolution(p.Resolution())
	p.opts.Metrics.SetQueueDepth(p.queue.Len())

	var peak float32
	open := false
	p.queue.Drain(func(chunk []float32) {
		stats := p.ingestor.Ingest(chunk)
		p.opts.Metrics.RecordIngest(stats.Discarded, stats.Evicted)

		peak = max(peak, audio.Peak(chunk))
		if p.opts.Gate != nil && p.opts.Gate.Open(chunk) {
			open = true
		}
		p.record(chunk)
	})

	p.sequence++
	frame := Frame{
		Sequence:  p.sequence,
		Timestamp: start,
		Waveform:  p.analyzer.Waveform(),
		Peak:      peak,
		Silent:    p.opts.Gate != nil && p.opts.Gate.Enabled() && !open,
	}

	if spectrum, ok := p.analyzer.Spectrum(); ok {
		frame.Spectrum = spectrum
		if len(p.opts.Bands) > 0 {
			frame.Bands = analysis.Bands(spectrum, p.analyzer.BinFrequency, p.opts.Bands)
		}
	}

	p.opts.Metrics.RecordTick(frame.Ready(), time.Since(start))
	return frame
}

func (p *Pipeline) record(chunk []float32) {
	if p.opts.Recorder == nil {
		return
	}
	err := p.opts.Recorder.Write(chunk)
	// Log only transitions so a failing disk does not flood the log.
	if err != nil && p.recordErr == nil {
		log.Errorf("Recording to %s failed: %v", p.opts.Recorder.Path(), err)
	}
	p.recordErr = err
}

// Run ticks at the configured interval and renders each frame until ctx is
// cancelled. Render errors are counted and never fatal. A nil
// renderer only drives the analysis.
func (p *Pipeline) Run(ctx context.Context, renderer Renderer) error {
	ticker := time.NewTicker(p.opts.TickInterval)
	defer ticker.Stop()

	var lastErr string

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			frame := p.Tick()
			if renderer == nil {
				continue
			}
			err := renderer.Render(frame)
			p.opts.Metrics.RecordRender(err)
			// Repeats of the same failure, e.g. an unreachable UDP target,
			// are only logged once.
			switch {
			case err == nil:
				lastErr = ""
			case err.Error() != lastErr:
				lastErr = err.Error()
				log.Warnf("Render of frame %d failed: %v", frame.Sequence, err)
			}
		}
	}
}

// Close stops accepting chunks. Chunks already queued can still be drained
// by Tick.
func (p *Pipeline) Close() {
	p.queue.Close()
}
