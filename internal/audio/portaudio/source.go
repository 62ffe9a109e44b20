// SPDX-License-Identifier: MIT
/*
Package portaudio captures from a PortAudio input device.

The stream callback runs on a PortAudio thread. It hands each buffer to the
sink without converting or allocating; the sink copies what it keeps.
*/
package portaudio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"audioviz/internal/audio"
	"audioviz/internal/log"
)

// ErrInputOverflow is reported to the sink when the device dropped input
// because the callback fell behind.
var ErrInputOverflow = errors.New("portaudio: input overflow")

// Config selects and configures the capture device.
type Config struct {
	DeviceID        int
	Monitor         bool
	Channels        int     // 0 uses up to two of the device's channels
	SampleRate      float64 // 0 uses the device default
	FramesPerBuffer int
	LowLatency      bool
}

// Source is an audio.Source backed by a PortAudio input stream.
type Source struct {
	device          *pa.DeviceInfo
	format          audio.Format
	latency         time.Duration
	framesPerBuffer int

	mu     sync.Mutex
	stream *pa.Stream
	sink   audio.Sink
}

var _ audio.Source = (*Source)(nil)

// New resolves the input device. PortAudio must be initialised.
func New(cfg Config) (*Source, error) {
	device, err := InputDevice(cfg.DeviceID, cfg.Monitor)
	if err != nil {
		return nil, err
	}
	return newSource(device, cfg)
}

func newSource(device *pa.DeviceInfo, cfg Config) (*Source, error) {
	if device.MaxInputChannels < 1 {
		return nil, fmt.Errorf("%w: %s has no input channels", audio.ErrNoDevice, device.Name)
	}

	channels := cfg.Channels
	if channels <= 0 {
		channels = min(device.MaxInputChannels, 2)
	}
	if channels > device.MaxInputChannels {
		return nil, fmt.Errorf("device %s supports %d input channels, %d requested",
			device.Name, device.MaxInputChannels, channels)
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = device.DefaultSampleRate
	}

	framesPerBuffer := cfg.FramesPerBuffer
	if framesPerBuffer <= 0 {
		framesPerBuffer = audio.DefaultFramesPerBuffer
	}

	s := &Source{
		device:          device,
		format:          audio.Format{Channels: channels, SampleRate: sampleRate},
		framesPerBuffer: framesPerBuffer,
	}
	if cfg.LowLatency {
		s.latency = device.DefaultLowInputLatency
	} else {
		s.latency = device.DefaultHighInputLatency
	}
	return s, nil
}

func (s *Source) Format() audio.Format { return s.format }

// DeviceName returns the name of the selected device.
func (s *Source) DeviceName() string { return s.device.Name }

// Start opens and starts the input stream.
func (s *Source) Start(sink audio.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return errors.New("portaudio source already started")
	}

	params := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Channels: s.format.Channels,
			Device:   s.device,
			Latency:  s.latency,
		},
		Output: pa.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: s.framesPerBuffer,
		SampleRate:      s.format.SampleRate,
	}

	s.sink = sink
	stream, err := pa.OpenStream(params, s.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream on %s: %w", s.device.Name, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream on %s: %w", s.device.Name, err)
	}
	s.stream = stream

	log.Infof("Capturing from %s (%s, latency %s)", s.device.Name, s.format, s.latency)
	return nil
}

// Close stops and closes the stream. It is safe to call on a source that
// was never started.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}

	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	s.stream = nil
	return errors.Join(stopErr, closeErr)
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Uses the buffer PortAudio owns, no allocations
func (s *Source) processInputStream(in []float32, _ pa.StreamCallbackTimeInfo, flags pa.StreamCallbackFlags) {
	if flags&pa.InputOverflow != 0 {
		s.sink.StreamError(ErrInputOverflow)
	}
	s.sink.Deliver(in)
}
