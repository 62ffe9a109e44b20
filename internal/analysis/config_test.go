// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolution(t *testing.T) {
	n, ok := Natural().Fixed()
	assert.False(t, ok)
	assert.Zero(t, n)
	assert.True(t, Natural().IsNatural())
	assert.True(t, Resolution{}.IsNatural(), "zero value is Natural")
	assert.Equal(t, "natural", Natural().String())

	n, ok = Fixed(256).Fixed()
	assert.True(t, ok)
	assert.Equal(t, 256, n)
	assert.Equal(t, "256", Fixed(256).String())

	assert.True(t, Fixed(0).IsNatural())
	assert.True(t, Fixed(-3).IsNatural())
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3072, cfg.FFTResolution)
	assert.Equal(t, 1537, cfg.NumBins())
	assert.True(t, cfg.Resolution.IsNatural())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"FFT too small", func(c *Config) { c.FFTResolution = MinFFTResolution - 1 }},
		{"FFT too large", func(c *Config) { c.FFTResolution = MaxFFTResolution + 1 }},
		{"Zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"No channels", func(c *Config) { c.Channels = 0 }},
		{"Zero volume", func(c *Config) { c.Volume = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBands(t *testing.T) {
	// Bin i sits at i*100 Hz.
	binFreq := func(i int) float64 { return float64(i) * 100 }
	spectrum := make([]float32, 50)
	spectrum[1] = 3 // 100 Hz, bass
	spectrum[2] = 4 // 200 Hz, bass
	spectrum[45] = 2

	levels := Bands(spectrum, binFreq, DefaultBands)
	require.Len(t, levels, len(DefaultBands))

	byName := map[string]float64{}
	for _, l := range levels {
		byName[l.Name] = l.Level
	}

	assert.Zero(t, byName["sub"], "no bins between 20 and 60 Hz")
	assert.InDelta(t, math.Sqrt((9.0+16.0)/2), byName["bass"], 1e-9)
	assert.Zero(t, byName["lowMid"])
	// Treble holds bins 40..49, one of which is non-zero.
	assert.InDelta(t, math.Sqrt(4.0/10), byName["treble"], 1e-9)
}

func TestBandsEmptySpectrum(t *testing.T) {
	assert.Nil(t, Bands(nil, func(int) float64 { return 0 }, DefaultBands))
}
