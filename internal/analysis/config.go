// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"strconv"
)

// Limits applied by Config.Validate. Any positive window length is
// accepted; the upper bound keeps the buffers of a mistyped value in check.
const (
	MinFFTResolution = 1
	MaxFFTResolution = 1 << 15
)

// Resolution selects the length of the waveform output. The zero value is
// Natural, meaning the output length follows the buffered history.
type Resolution struct {
	n int
}

// Natural returns the resolution that follows the buffered history length.
func Natural() Resolution { return Resolution{} }

// Fixed returns a resolution producing exactly n output samples. Values below
// one are treated as Natural.
func Fixed(n int) Resolution {
	if n <= 0 {
		return Resolution{}
	}
	return Resolution{n: n}
}

// Fixed reports the fixed output length and true, or 0 and false for Natural.
func (r Resolution) Fixed() (int, bool) {
	return r.n, r.n > 0
}

// IsNatural reports whether r follows the buffered history length.
func (r Resolution) IsNatural() bool { return r.n == 0 }

func (r Resolution) String() string {
	if r.n == 0 {
		return "natural"
	}
	return strconv.Itoa(r.n)
}

// Config holds the analyzer configuration. Everything except Resolution is
// immutable once an Ingestor/Analyzer pair has been built from it.
type Config struct {
	FFTResolution int        // Samples per channel fed to one transform evaluation.
	Resolution    Resolution // Waveform output length.
	SampleRate    float64    // Input sample rate in Hz.
	Channels      int        // Interleaving stride of incoming chunks.
	Window        WindowFunc // Window applied before the transform.
	Volume        float64    // Gain applied to bin amplitudes.
}

// DefaultConfig returns a configuration matching a typical stereo capture at
// 48kHz with a 3072 sample analysis window.
func DefaultConfig() Config {
	return Config{
		FFTResolution: 1024 * 3,
		Resolution:    Natural(),
		SampleRate:    48000,
		Channels:      2,
		Window:        Hann,
		Volume:        1.0,
	}
}

// NumBins returns the number of frequency bins a transform over
// FFTResolution samples yields.
func (c Config) NumBins() int {
	return c.FFTResolution/2 + 1
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.FFTResolution < MinFFTResolution || c.FFTResolution > MaxFFTResolution {
		errs = append(errs, fmt.Errorf("fft resolution must be within [%d, %d], got %d",
			MinFFTResolution, MaxFFTResolution, c.FFTResolution))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %f", c.SampleRate))
	}
	if c.Channels < 1 {
		errs = append(errs, fmt.Errorf("channel count must be at least 1, got %d", c.Channels))
	}
	if c.Volume <= 0 {
		errs = append(errs, fmt.Errorf("volume must be positive, got %f", c.Volume))
	}
	return errors.Join(errs...)
}
