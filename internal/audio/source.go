// SPDX-License-Identifier: MIT
/*
Package audio defines the capture capability consumed by the visualizer and
the backend-independent pieces around it:
- Source/Sink, the contract between a capture backend and its consumer
- WAVSource, file replay for offline runs and tests
- Recorder, WAV capture of the ingested stream
- Gate, a peak-level silence detector

Thread Safety:
- A Source invokes its Sink from a single producer goroutine or audio thread
- Chunks handed to Sink.Deliver are only valid for the duration of the call
*/
package audio

import (
	"errors"
	"fmt"
	"io"
)

// ErrNoDevice is returned when no usable input device can be found.
var ErrNoDevice = errors.New("audio: no input device")

// Format describes the interleaved stream a Source produces.
type Format struct {
	Channels   int
	SampleRate float64
}

func (f Format) String() string {
	return fmt.Sprintf("%d ch @ %.0f Hz", f.Channels, f.SampleRate)
}

// Sink receives interleaved float32 chunks from a Source. Deliver must not
// retain chunk after it returns.
type Sink interface {
	Deliver(chunk []float32)
	StreamError(err error)
}

// Source is a running or startable capture stream.
type Source interface {
	Format() Format
	Start(sink Sink) error
	Close() error
}

// Device represents an audio device as reported by a backend.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefault         bool
}

// Kind reports whether the device captures, plays back, or both.
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "Unknown"
	}
}

// PrintDevices writes a human readable device table to w.
func PrintDevices(w io.Writer, backend string, devices []Device) {
	fmt.Fprintf(w, "\nAvailable Audio Devices (%s)\n\n", backend)

	if len(devices) == 0 {
		fmt.Fprintln(w, "    none")
		return
	}

	for _, d := range devices {
		marker := ""
		if d.IsDefault {
			marker = " *default*"
		}
		fmt.Fprintf(w, "[%d] %s (%s)%s\n", d.ID, d.Name, d.Kind(), marker)
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		if d.DefaultSampleRate > 0 {
			fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		}
		fmt.Fprintln(w)
	}
}
