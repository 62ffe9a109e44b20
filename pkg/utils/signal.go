// SPDX-License-Identifier: MIT
// Package utils provides synthetic signals and capture helpers for tests.
package utils

import (
	"math"
	"sync"
)

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental with two harmonics, peaking
// just below full scale.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateRamp returns size samples counting up from start by step.
func GenerateRamp(size int, start, step float32) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		buffer[i] = start + float32(i)*step
	}
	return buffer
}

// Interleave merges per-channel signals into one interleaved stream. The
// result is as long as the shortest channel allows.
func Interleave(channels ...[]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	for _, ch := range channels[1:] {
		frames = min(frames, len(ch))
	}

	out := make([]float32, 0, frames*len(channels))
	for f := range frames {
		for _, ch := range channels {
			out = append(out, ch[f])
		}
	}
	return out
}

// FindPeakBin returns the index of the largest value within
// [startBin, endBin], clamping the range to the slice.
func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// ChunkRecorder collects delivered chunks and stream errors. It satisfies
// the capture sink contract and is safe for concurrent use.
type ChunkRecorder struct {
	mu     sync.Mutex
	chunks [][]float32
	errs   []error
}

// Deliver stores a copy of chunk.
func (r *ChunkRecorder) Deliver(chunk []float32) {
	c := make([]float32, len(chunk))
	copy(c, chunk)
	r.mu.Lock()
	r.chunks = append(r.chunks, c)
	r.mu.Unlock()
}

// StreamError stores err.
func (r *ChunkRecorder) StreamError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

// Samples returns every delivered sample in delivery order.
func (r *ChunkRecorder) Samples() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float32
	for _, c := range r.chunks {
		out = append(out, c...)
	}
	return out
}

// Chunks returns the number of delivered chunks.
func (r *ChunkRecorder) Chunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Errors returns the stream errors received so far.
func (r *ChunkRecorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
