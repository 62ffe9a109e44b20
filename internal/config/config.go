// SPDX-License-Identifier: MIT
// Package config loads the visualizer configuration: built-in defaults, then
// an optional YAML file, then ENV_* overrides, then command line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"slices"
	"time"

	"audioviz/internal/analysis"
	"audioviz/internal/audio"
	"audioviz/internal/log"
	"audioviz/internal/transport/udp"
)

// Capture backends.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendWAV       = "wav"
)

var backends = []string{BackendPortAudio, BackendMalgo, BackendWAV}

// Defaults.
const (
	DefaultBackend         = BackendPortAudio
	DefaultDeviceID        = -1 // System default input
	DefaultFramesPerBuffer = 512
	DefaultFFTResolution   = 1024 * 3
	DefaultWindow          = "hann"
	DefaultTickInterval    = 16 * time.Millisecond
	DefaultWebSocketAddr   = "127.0.0.1:8080"
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultMetricsAddr     = "127.0.0.1:9464"
	DefaultRecordingDir    = "./recordings"
	DefaultLogEvery        = 60
)

// Config represents the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"`
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Render    RenderConfig    `yaml:"render"`
	Recording RecordingConfig `yaml:"recording"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AudioConfig selects the capture source.
type AudioConfig struct {
	Backend         string  `yaml:"backend"`           // portaudio, malgo or wav
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index, -1 for default
	DeviceName      string  `yaml:"device_name"`       // miniaudio device name or substring
	Monitor         bool    `yaml:"monitor"`           // Capture what the system plays
	Loopback        bool    `yaml:"loopback"`          // miniaudio loopback of the default output
	SampleRate      float64 `yaml:"sample_rate"`       // 0 uses the device default
	InputChannels   int     `yaml:"input_channels"`    // 0 uses up to two device channels
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Callback size
	LowLatency      bool    `yaml:"low_latency"`
	WAVFile         string  `yaml:"wav_file"`       // Replayed by the wav backend
	Loop            bool    `yaml:"loop"`           // Restart the file at EOF
	GateThreshold   float64 `yaml:"gate_threshold"` // 0 disables the noise gate
}

// AnalysisConfig configures the spectrum and waveform.
type AnalysisConfig struct {
	FFTResolution int     `yaml:"fft_resolution"`
	Resolution    int     `yaml:"resolution"` // Waveform length, 0 follows the history
	Window        string  `yaml:"window"`
	Volume        float64 `yaml:"volume"`
	Bands         bool    `yaml:"bands"`
}

// RenderConfig selects where frames go. Every enabled renderer sees every
// frame.
type RenderConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	WebSocketAddr    string        `yaml:"websocket_addr"` // Empty disables
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	Terminal         bool          `yaml:"terminal"`
	LogEvery         int           `yaml:"log_every"` // Log every Nth frame, 0 disables
}

// RecordingConfig enables WAV capture of the input stream.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	// OutputFile overrides the generated file name.
	OutputFile string `yaml:"output_file"`
}

// Path returns the file to record into.
func (r RecordingConfig) Path(now time.Time) string {
	if r.OutputFile != "" {
		return r.OutputFile
	}
	name := "recording-" + now.UTC().Format("02-01-2006-150405") + ".wav"
	return filepath.Join(r.OutputDir, name)
}

// MetricsConfig exposes Prometheus metrics over HTTP.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			InputDevice:     DefaultDeviceID,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Analysis: AnalysisConfig{
			FFTResolution: DefaultFFTResolution,
			Window:        DefaultWindow,
			Volume:        1.0,
			Bands:         true,
		},
		Render: RenderConfig{
			TickInterval:     DefaultTickInterval,
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTarget,
			LogEvery:         DefaultLogEvery,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
		},
		Metrics: MetricsConfig{
			ListenAddr: DefaultMetricsAddr,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	a := c.Audio
	if !slices.Contains(backends, a.Backend) {
		errs = append(errs, fmt.Errorf("audio.backend must be one of %v, got %q", backends, a.Backend))
	}
	if a.Backend == BackendWAV && a.WAVFile == "" {
		errs = append(errs, errors.New("audio.wav_file must be set for the wav backend"))
	}
	if a.InputDevice < DefaultDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device must be >= %d, got %d", DefaultDeviceID, a.InputDevice))
	}
	if a.SampleRate < 0 || a.InputChannels < 0 || a.FramesPerBuffer < 0 {
		errs = append(errs, errors.New("audio.sample_rate, input_channels and frames_per_buffer must not be negative"))
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.gate_threshold must be within [0, 1], got %f", a.GateThreshold))
	}

	an := c.Analysis
	if an.FFTResolution < analysis.MinFFTResolution || an.FFTResolution > analysis.MaxFFTResolution {
		errs = append(errs, fmt.Errorf("analysis.fft_resolution must be within [%d, %d], got %d",
			analysis.MinFFTResolution, analysis.MaxFFTResolution, an.FFTResolution))
	}
	if an.Resolution < 0 {
		errs = append(errs, fmt.Errorf("analysis.resolution must not be negative, got %d", an.Resolution))
	}
	if _, err := analysis.ParseWindowFunc(an.Window); err != nil {
		errs = append(errs, fmt.Errorf("analysis.window: %w", err))
	}
	if an.Volume <= 0 {
		errs = append(errs, fmt.Errorf("analysis.volume must be positive, got %f", an.Volume))
	}

	r := c.Render
	if r.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("render.tick_interval must be positive, got %s", r.TickInterval))
	}
	if r.UDPEnabled {
		if _, _, err := net.SplitHostPort(r.UDPTargetAddress); err != nil {
			errs = append(errs, fmt.Errorf("render.udp_target_address %q appears invalid: %w", r.UDPTargetAddress, err))
		}
		// Natural resolution snapshots one FFT window of history.
		samples := an.FFTResolution
		if an.Resolution > 0 {
			samples = an.Resolution
		}
		if size := udp.FrameSize(an.FFTResolution/2+1, samples); size > udp.MaxPacketSize {
			errs = append(errs, fmt.Errorf("render.udp_enabled: frames of fft_resolution %d and resolution %d need %d bytes, above the %d byte datagram limit",
				an.FFTResolution, an.Resolution, size, udp.MaxPacketSize))
		}
	}
	if r.LogEvery < 0 {
		errs = append(errs, fmt.Errorf("render.log_every must not be negative, got %d", r.LogEvery))
	}

	if c.Recording.Enabled && c.Recording.OutputDir == "" && c.Recording.OutputFile == "" {
		errs = append(errs, errors.New("recording.output_dir or recording.output_file must be set when recording"))
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics.listen_addr must be set when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// ToAnalysisConfig combines the analysis settings with the format the
// source actually delivers.
func (c *Config) ToAnalysisConfig(format audio.Format) (analysis.Config, error) {
	window, err := analysis.ParseWindowFunc(c.Analysis.Window)
	if err != nil {
		return analysis.Config{}, err
	}
	cfg := analysis.Config{
		FFTResolution: c.Analysis.FFTResolution,
		Resolution:    analysis.Fixed(c.Analysis.Resolution),
		SampleRate:    format.SampleRate,
		Channels:      format.Channels,
		Window:        window,
		Volume:        c.Analysis.Volume,
	}
	if err := cfg.Validate(); err != nil {
		return analysis.Config{}, err
	}
	return cfg, nil
}

// Bands returns the frequency bands to summarise, or an empty slice when
// band levels are disabled.
func (c *Config) Bands() []analysis.FrequencyBand {
	if !c.Analysis.Bands {
		return []analysis.FrequencyBand{}
	}
	return analysis.DefaultBands
}
