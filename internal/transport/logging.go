// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"strings"

	"audioviz/internal/analysis"
	"audioviz/internal/log"
	"audioviz/internal/pipeline"
)

// LoggingRenderer writes a one-line summary of every Nth frame to the debug
// log. It is the renderer used for headless runs.
type LoggingRenderer struct {
	every   uint32
	binFreq func(int) float64
}

// NewLoggingRenderer logs one frame in every `every` (at least 1). binFreq
// maps spectrum bins to Hz for the dominant-frequency column and may be nil.
func NewLoggingRenderer(every int, binFreq func(int) float64) *LoggingRenderer {
	log.Infof("Transport: Using LoggingRenderer")
	return &LoggingRenderer{every: uint32(max(every, 1)), binFreq: binFreq}
}

// Render never fails.
func (r *LoggingRenderer) Render(f pipeline.Frame) error {
	if f.Sequence%r.every != 0 {
		return nil
	}
	if !f.Ready() {
		log.Debugf("Frame %d: waiting for history (%d waveform points, peak %.3f)",
			f.Sequence, len(f.Waveform), f.Peak)
		return nil
	}

	bin, mag := dominantBin(f.Spectrum)
	freq := 0.0
	if r.binFreq != nil {
		freq = r.binFreq(bin)
	}
	log.Debugf("Frame %d: peak %.3f, silent %t, dominant %.1f Hz (bin %d, %.2f), %s",
		f.Sequence, f.Peak, f.Silent, freq, bin, mag, bandSummary(f.Bands))
	return nil
}

func (r *LoggingRenderer) Close() error {
	log.Debugf("LoggingRenderer: Close called")
	return nil
}

// dominantBin skips DC.
func dominantBin(spectrum []float32) (int, float32) {
	best, mag := 0, float32(0)
	for i := 1; i < len(spectrum); i++ {
		if spectrum[i] > mag {
			best, mag = i, spectrum[i]
		}
	}
	return best, mag
}

func bandSummary(bands []analysis.BandLevel) string {
	if len(bands) == 0 {
		return "no bands"
	}
	var sb strings.Builder
	for i, b := range bands {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%.2f", b.Name, b.Level)
	}
	return sb.String()
}
