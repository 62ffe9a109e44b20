// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
)

// Analyzer derives the channel-averaged spectrum and the waveform snapshot
// from the history held in a BufferSet. It never mutates the buffers and
// keeps no state between calls other than scratch space, so every result is
// a pure function of the buffer contents and the configured resolution.
//
// An Analyzer is not safe for concurrent use; drive it from the goroutine
// that ingests samples.
type Analyzer struct {
	buffers    BufferSet
	transform  Transform
	resolution Resolution

	// Scratch space reused across calls.
	window  []float32
	bins    []FrequencyBin
	average []float32
}

// NewAnalyzer builds an Analyzer with an FFT transform configured from cfg.
func NewAnalyzer(cfg Config, buffers BufferSet) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analyzer configuration: %w", err)
	}
	transform, err := NewFFTTransform(cfg.FFTResolution, cfg.SampleRate, cfg.Window, cfg.Volume)
	if err != nil {
		return nil, err
	}
	return NewAnalyzerWithTransform(buffers, transform, cfg.Resolution), nil
}

// NewAnalyzerWithTransform builds an Analyzer around an existing transform.
// The transform's Size is the analysis window length.
func NewAnalyzerWithTransform(buffers BufferSet, transform Transform, resolution Resolution) *Analyzer {
	return &Analyzer{
		buffers:    buffers,
		transform:  transform,
		resolution: resolution,
		window:     make([]float32, transform.Size()),
		bins:       make([]FrequencyBin, transform.Bins()),
		average:    make([]float32, transform.Bins()),
	}
}

// Resolution returns the current waveform resolution.
func (a *Analyzer) Resolution() Resolution { return a.resolution }

// SetResolution changes the waveform resolution for subsequent calls. The
// spectrum is unaffected.
func (a *Analyzer) SetResolution(r Resolution) { a.resolution = r }

// NumBins returns the length of a spectrum.
func (a *Analyzer) NumBins() int { return a.transform.Bins() }

// BinFrequency returns the centre frequency (Hz) of spectrum bin i.
func (a *Analyzer) BinFrequency(i int) float64 { return a.transform.BinFrequency(i) }

// Ready reports whether every channel holds a full analysis window.
func (a *Analyzer) Ready() bool {
	n := a.buffers.NumChannels()
	if n == 0 {
		return false
	}
	size := a.transform.Size()
	for ch := range n {
		if a.buffers.Channel(ch).Len() < size {
			return false
		}
	}
	return true
}

// Spectrum returns a newly allocated channel-averaged spectrum, or false when
// not every channel holds a full window yet.
func (a *Analyzer) Spectrum() ([]float32, bool) {
	dst := make([]float32, a.transform.Bins())
	if !a.SpectrumInto(dst) {
		return nil, false
	}
	return dst, true
}

// SpectrumInto writes the channel-averaged spectrum into dst, which must have
// NumBins elements. It returns false, leaving dst untouched, when the
// analyzer is not ready. Bin i of the result is the unweighted mean of bin
// i across all channels, each channel transformed over its most recent
// window of samples.
func (a *Analyzer) SpectrumInto(dst []float32) bool {
	if len(dst) != len(a.average) {
		panic(fmt.Sprintf("analysis: SpectrumInto needs %d bins, got %d", len(a.average), len(dst)))
	}
	if !a.Ready() {
		return false
	}

	clear(a.average)
	n := a.buffers.NumChannels()
	for ch := range n {
		a.buffers.Channel(ch).CopyTail(a.window)
		a.transform.Apply(a.bins, a.window)
		for i, bin := range a.bins {
			a.average[i] += bin.Volume
		}
	}

	count := float32(n)
	for i, sum := range a.average {
		dst[i] = sum / count
	}
	return true
}

// Waveform returns a newly allocated waveform snapshot.
func (a *Analyzer) Waveform() []float32 {
	return a.AppendWaveform(nil)
}

// AppendWaveform appends the waveform snapshot to dst and returns the
// extended slice.
//
// The snapshot covers the most recent samples common to all channels,
// averaged across channels in chronological order. With a Fixed resolution
// of n the snapshot holds exactly n values: at most the n most recent
// samples, right-padded with zeros when less history exists. With Natural
// resolution it holds one value per buffered sample. Nothing is appended when
// there are no channels or no samples.
func (a *Analyzer) AppendWaveform(dst []float32) []float32 {
	n := a.buffers.NumChannels()
	if n == 0 {
		return dst
	}

	minLen := a.buffers.Channel(0).Len()
	for ch := 1; ch < n; ch++ {
		minLen = min(minLen, a.buffers.Channel(ch).Len())
	}
	if minLen == 0 {
		return dst
	}

	outLen, numSamples := minLen, minLen
	if r, ok := a.resolution.Fixed(); ok {
		outLen = r
		numSamples = min(minLen, r)
	}

	count := float32(n)
	for idx := minLen - numSamples; idx < minLen; idx++ {
		var sum float32
		for ch := range n {
			sum += a.buffers.Channel(ch).At(idx)
		}
		dst = append(dst, sum/count)
	}

	for range outLen - numSamples {
		dst = append(dst, 0)
	}
	return dst
}
