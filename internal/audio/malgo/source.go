// SPDX-License-Identifier: MIT
// Package malgo captures through miniaudio, either from an input device or,
// where the host supports it, as a loopback of the default output.
package malgo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	ma "github.com/gen2brain/malgo"

	"audioviz/internal/audio"
	"audioviz/internal/log"
)

// ErrDeviceStopped is reported to the sink when the device stops without
// Close being called, e.g. when it is unplugged.
var ErrDeviceStopped = errors.New("malgo: capture device stopped")

// Config selects and configures the capture device.
type Config struct {
	// DeviceName matches a capture device by exact name, then by substring.
	// Empty or "default" selects the default device.
	DeviceName      string
	Monitor         bool
	Loopback        bool
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
}

// Source is an audio.Source backed by a miniaudio capture device.
type Source struct {
	ctx    *ma.AllocatedContext
	device *ma.Device
	name   string
	format audio.Format

	sink    audio.Sink
	samples []float32 // Callback conversion buffer
	closing atomic.Bool

	mu      sync.Mutex
	started bool
	closed  bool
}

var _ audio.Source = (*Source)(nil)

// New initialises a miniaudio context and the capture device. The device is
// not started until Start.
func New(cfg Config) (*Source, error) {
	ctx, err := ma.InitContext(nil, ma.ContextConfig{}, func(message string) {
		log.Debugf("miniaudio: %s", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}

	s := &Source{ctx: ctx}
	if err := s.initDevice(cfg); err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, err
	}
	return s, nil
}

func (s *Source) initDevice(cfg Config) error {
	kind := ma.Capture
	if cfg.Loopback {
		kind = ma.Loopback
	}

	deviceConfig := ma.DefaultDeviceConfig(kind)
	deviceConfig.Capture.Format = ma.FormatF32
	deviceConfig.Capture.Channels = uint32(max(cfg.Channels, 0))
	deviceConfig.SampleRate = uint32(max(cfg.SampleRate, 0))
	deviceConfig.PeriodSizeInFrames = uint32(max(cfg.FramesPerBuffer, 0))
	deviceConfig.Alsa.NoMMap = 1

	// Loopback always captures the default output.
	s.name = "default output (loopback)"
	if !cfg.Loopback {
		infos, err := s.ctx.Devices(ma.Capture)
		if err != nil {
			return fmt.Errorf("failed to enumerate capture devices: %w", err)
		}
		idx, err := selectDevice(toDevices(infos), cfg.DeviceName, cfg.Monitor)
		if err != nil {
			return err
		}
		deviceConfig.Capture.DeviceID = infos[idx].ID.Pointer()
		s.name = infos[idx].Name()
	}

	device, err := ma.InitDevice(s.ctx.Context, deviceConfig, ma.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device %s: %w", s.name, err)
	}
	if device.CaptureFormat() != ma.FormatF32 {
		device.Uninit()
		return fmt.Errorf("capture device %s does not deliver float32 samples", s.name)
	}

	s.device = device
	s.format = audio.Format{
		Channels:   int(device.CaptureChannels()),
		SampleRate: float64(device.SampleRate()),
	}
	return nil
}

func (s *Source) Format() audio.Format { return s.format }

// DeviceName returns the name of the selected device.
func (s *Source) DeviceName() string { return s.name }

// Start begins capture into sink.
func (s *Source) Start(sink audio.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("malgo source closed")
	}
	if s.started {
		return errors.New("malgo source already started")
	}

	s.sink = sink
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device %s: %w", s.name, err)
	}
	s.started = true

	log.Infof("Capturing from %s (%s)", s.name, s.format)
	return nil
}

// Close stops the device and releases the miniaudio context.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.closing.Store(true)

	var stopErr error
	if s.started {
		stopErr = s.device.Stop()
	}
	s.device.Uninit()

	ctxErr := s.ctx.Uninit()
	s.ctx.Free()
	return errors.Join(stopErr, ctxErr)
}

// onData runs on the miniaudio thread.
func (s *Source) onData(_, input []byte, frameCount uint32) {
	n := int(frameCount) * s.format.Channels
	if cap(s.samples) < n {
		s.samples = make([]float32, n)
	}
	s.samples = decodeF32(s.samples[:0], input[:min(len(input), n*4)])
	s.sink.Deliver(s.samples)
}

func (s *Source) onStop() {
	if s.closing.Load() {
		return
	}
	if sink := s.sink; sink != nil {
		sink.StreamError(ErrDeviceStopped)
	}
}

// decodeF32 appends the little-endian float32 samples in src to dst.
func decodeF32(dst []float32, src []byte) []float32 {
	for i := 0; i+4 <= len(src); i += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(src[i:])))
	}
	return dst
}

// Devices lists the capture devices miniaudio can see.
func Devices() ([]audio.Device, error) {
	ctx, err := ma.InitContext(nil, ma.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(ma.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	return toDevices(infos), nil
}

func toDevices(infos []ma.DeviceInfo) []audio.Device {
	devices := make([]audio.Device, len(infos))
	for i := range infos {
		devices[i] = audio.Device{
			ID:               i,
			Name:             infos[i].Name(),
			MaxInputChannels: 1, // miniaudio only reports formats after a full device query
			IsDefault:        infos[i].IsDefault == 1,
		}
	}
	return devices
}

// selectDevice returns the index of the device to capture from.
func selectDevice(devices []audio.Device, name string, monitor bool) (int, error) {
	if len(devices) == 0 {
		return 0, audio.ErrNoDevice
	}

	if monitor {
		for i, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), "monitor") {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: no output monitor found", audio.ErrNoDevice)
	}

	if name == "" || name == "default" {
		for i, d := range devices {
			if d.IsDefault {
				return i, nil
			}
		}
		// No default found, use first device
		return 0, nil
	}

	for i, d := range devices {
		if d.Name == name {
			return i, nil
		}
	}
	for i, d := range devices {
		if strings.Contains(d.Name, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no capture device matches %q", audio.ErrNoDevice, name)
}
