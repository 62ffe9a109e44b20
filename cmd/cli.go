// SPDX-License-Identifier: MIT
// Package cmd parses the command line into a validated configuration.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"audioviz/internal/build"
	"audioviz/internal/config"
)

// Command is what main should do after parsing.
type Command string

const (
	CommandNone Command = "" // Help or version was printed
	CommandRun  Command = "run"
	CommandList Command = "list"
)

// Options is the result of ParseArgs.
type Options struct {
	Command Command
	Config  *config.Config
}

// flagValues holds raw flag values. They are only copied into the config
// when the flag was set, so file and environment values survive.
type flagValues struct {
	configPath string

	backend         string
	device          int
	deviceName      string
	monitor         bool
	loopback        bool
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	wavFile         string
	loop            bool
	gate            float64

	fft        int
	resolution int
	window     string
	volume     float64
	noBands    bool

	tick     time.Duration
	ws       string
	udp      string
	terminal bool
	logEvery int

	record  bool
	output  string
	metrics string
	verbose bool
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	info := build.Get()
	opts := &Options{}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(fv.configPath)
			if err != nil {
				return err
			}
			fv.apply(cmd.Flags().Changed, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			opts.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the capture devices of the selected backend",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandList
		},
	}
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&fv.configPath, "config", "f", "", "Configuration file (default "+config.DefaultPath+" when present)")
	pf.StringVar(&fv.backend, "backend", config.DefaultBackend, "Capture backend: portaudio, malgo or wav")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false, "Show verbose output")

	// Capture
	f := rootCmd.Flags()
	f.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"PortAudio input device ID. Use the 'list' command to see available devices.")
	f.StringVar(&fv.deviceName, "device-name", "", "miniaudio capture device name or substring")
	f.BoolVarP(&fv.monitor, "monitor", "m", false, "Capture the system output through a monitor device")
	f.BoolVar(&fv.loopback, "loopback", false, "Capture the default output through miniaudio loopback")
	f.IntVarP(&fv.channels, "channels", "c", 0, "Number of channels to capture (0 = device default, up to 2)")
	f.Float64VarP(&fv.sampleRate, "sample-rate", "s", 0, "Sample rate in Hz (0 = device default)")
	f.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per callback buffer (affects latency)")
	f.BoolVarP(&fv.lowLatency, "low-latency", "l", false, "Use low latency mode for real-time processing")
	f.StringVar(&fv.wavFile, "wav", "", "Replay a WAV file instead of capturing (selects the wav backend)")
	f.BoolVar(&fv.loop, "loop", false, "Restart the WAV file when it ends")
	f.Float64Var(&fv.gate, "gate", 0, "Noise gate threshold in [0, 1] (0 = disabled)")

	// Analysis
	f.IntVar(&fv.fft, "fft", config.DefaultFFTResolution, "Samples per channel in each FFT window")
	f.IntVarP(&fv.resolution, "resolution", "n", 0, "Waveform output length (0 = natural)")
	f.StringVar(&fv.window, "window", config.DefaultWindow, "FFT window function")
	f.Float64Var(&fv.volume, "volume", 1.0, "Gain applied to spectrum magnitudes")
	f.BoolVar(&fv.noBands, "no-bands", false, "Do not compute frequency band levels")

	// Output
	f.DurationVar(&fv.tick, "tick", config.DefaultTickInterval, "Analysis and render interval")
	f.StringVar(&fv.ws, "ws", config.DefaultWebSocketAddr, "WebSocket listen address (empty disables)")
	f.StringVar(&fv.udp, "udp", "", "Send binary frames over UDP to host:port")
	f.BoolVarP(&fv.terminal, "terminal", "t", false, "Draw the live meter in the terminal")
	f.IntVar(&fv.logEvery, "log-every", config.DefaultLogEvery, "Log a summary of every Nth frame at debug level (0 disables)")

	// Recording Configuration
	f.BoolVarP(&fv.record, "record", "r", false, "Record the captured stream to a WAV file")
	f.StringVarP(&fv.output, "output", "o", "",
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav in the recording directory")

	f.StringVar(&fv.metrics, "metrics", "", "Serve Prometheus metrics on this address")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return opts, nil
}

// apply copies every flag that was set on the command line into cfg.
func (fv *flagValues) apply(changed func(string) bool, cfg *config.Config) {
	set := func(name string, fn func()) {
		if changed(name) {
			fn()
		}
	}

	set("backend", func() { cfg.Audio.Backend = fv.backend })
	set("verbose", func() {
		if fv.verbose {
			cfg.LogLevel = "debug"
		}
	})

	set("device", func() { cfg.Audio.InputDevice = fv.device })
	set("device-name", func() { cfg.Audio.DeviceName = fv.deviceName })
	set("monitor", func() { cfg.Audio.Monitor = fv.monitor })
	set("loopback", func() { cfg.Audio.Loopback = fv.loopback })
	set("channels", func() { cfg.Audio.InputChannels = fv.channels })
	set("sample-rate", func() { cfg.Audio.SampleRate = fv.sampleRate })
	set("frames-per-buffer", func() { cfg.Audio.FramesPerBuffer = fv.framesPerBuffer })
	set("low-latency", func() { cfg.Audio.LowLatency = fv.lowLatency })
	set("wav", func() {
		cfg.Audio.WAVFile = fv.wavFile
		if !changed("backend") {
			cfg.Audio.Backend = config.BackendWAV
		}
	})
	set("loop", func() { cfg.Audio.Loop = fv.loop })
	set("gate", func() { cfg.Audio.GateThreshold = fv.gate })

	set("fft", func() { cfg.Analysis.FFTResolution = fv.fft })
	set("resolution", func() { cfg.Analysis.Resolution = fv.resolution })
	set("window", func() { cfg.Analysis.Window = fv.window })
	set("volume", func() { cfg.Analysis.Volume = fv.volume })
	set("no-bands", func() { cfg.Analysis.Bands = !fv.noBands })

	set("tick", func() { cfg.Render.TickInterval = fv.tick })
	set("ws", func() { cfg.Render.WebSocketAddr = fv.ws })
	set("udp", func() {
		cfg.Render.UDPEnabled = fv.udp != ""
		if fv.udp != "" {
			cfg.Render.UDPTargetAddress = fv.udp
		}
	})
	set("terminal", func() { cfg.Render.Terminal = fv.terminal })
	set("log-every", func() { cfg.Render.LogEvery = fv.logEvery })

	set("record", func() { cfg.Recording.Enabled = fv.record })
	set("output", func() {
		cfg.Recording.OutputFile = fv.output
		cfg.Recording.Enabled = cfg.Recording.Enabled || fv.output != ""
	})
	set("metrics", func() {
		cfg.Metrics.Enabled = fv.metrics != ""
		if fv.metrics != "" {
			cfg.Metrics.ListenAddr = fv.metrics
		}
	})
}
