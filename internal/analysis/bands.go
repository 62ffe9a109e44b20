// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FrequencyBand names a frequency range of the spectrum.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64 // exclusive
}

// BandLevel is the RMS amplitude of the spectrum bins falling in a band.
type BandLevel struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// DefaultBands covers the audible range in six bands. The treble band is
// open-ended and absorbs everything up to Nyquist.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// Bands reduces spectrum to one RMS level per band. binFreq maps a bin index
// to its centre frequency. Bins outside every band are ignored, and bands
// without bins report zero. A nil or empty spectrum yields nil.
func Bands(spectrum []float32, binFreq func(int) float64, bands []FrequencyBand) []BandLevel {
	if len(spectrum) == 0 {
		return nil
	}

	members := make([][]float64, len(bands))
	for i, v := range spectrum {
		freq := binFreq(i)
		for b, band := range bands {
			if freq >= band.LowHz && freq < band.HighHz {
				members[b] = append(members[b], float64(v))
				break
			}
		}
	}

	levels := make([]BandLevel, len(bands))
	for b, band := range bands {
		levels[b].Name = band.Name
		if n := len(members[b]); n > 0 {
			levels[b].Level = math.Sqrt(floats.Dot(members[b], members[b]) / float64(n))
		}
	}
	return levels
}
