// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	applog "audioviz/internal/log"
	"audioviz/pkg/bitint"
)

// fftWorkspace holds pre-allocated buffers for one FFT evaluation.
type fftWorkspace struct {
	input     []float64    // Windowed input signal.
	fftOutput []complex128 // Complex coefficients.
	window    []float64    // Window coefficients.
}

// FFTTransform is a real-input FFT at the native resolution of its window.
// It is not safe for concurrent use.
type FFTTransform struct {
	fft        *fourier.FFT
	size       int
	sampleRate float64
	volume     float64
	workspace  fftWorkspace
}

var _ Transform = (*FFTTransform)(nil)

// NewFFTTransform builds a transform over size samples. Any positive size is
// accepted; powers of two are fastest.
func NewFFTTransform(size int, sampleRate float64, windowType WindowFunc, volume float64) (*FFTTransform, error) {
	if size <= 0 {
		return nil, fmt.Errorf("fft size must be positive, got %d", size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if !bitint.IsPowerOfTwo(size) {
		applog.Debugf("Analysis: FFT size %d is not a power of two (next is %d), using mixed-radix transform",
			size, bitint.NextPowerOfTwo(size))
	}

	// Real input yields N/2 + 1 complex values.
	bins := size/2 + 1

	applog.Debugf("Analysis: Initializing FFTTransform (Size: %d, SampleRate: %.1f Hz, Window: %v)",
		size, sampleRate, windowType)

	return &FFTTransform{
		fft:        fourier.NewFFT(size),
		size:       size,
		sampleRate: sampleRate,
		volume:     volume,
		workspace: fftWorkspace{
			input:     make([]float64, size),
			fftOutput: make([]complex128, bins),
			window:    windowCoefficients(size, windowType),
		},
	}, nil
}

// Size implements Transform.
func (t *FFTTransform) Size() int { return t.size }

// Bins implements Transform.
func (t *FFTTransform) Bins() int { return len(t.workspace.fftOutput) }

// Apply implements Transform. It panics if samples or dst have the wrong length.
func (t *FFTTransform) Apply(dst []FrequencyBin, samples []float32) {
	if len(samples) != t.size || len(dst) != len(t.workspace.fftOutput) {
		panic(fmt.Sprintf("analysis: Apply called with %d samples / %d bins, want %d / %d",
			len(samples), len(dst), t.size, len(t.workspace.fftOutput)))
	}

	for i, s := range samples {
		t.workspace.input[i] = float64(s) * t.workspace.window[i]
	}

	t.fft.Coefficients(t.workspace.fftOutput, t.workspace.input)

	for i, c := range t.workspace.fftOutput {
		dst[i] = FrequencyBin{
			Frequency: t.BinFrequency(i),
			Volume:    float32(cmplx.Abs(c) * t.volume),
		}
	}
}

// BinFrequency returns the centre frequency (Hz) of bin i, or 0 when i is out
// of range.
func (t *FFTTransform) BinFrequency(i int) float64 {
	if i < 0 || i >= len(t.workspace.fftOutput) {
		return 0
	}
	return t.fft.Freq(i) * t.sampleRate
}
