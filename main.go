// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"audioviz/cmd"
	"audioviz/internal/audio"
	"audioviz/internal/audio/malgo"
	"audioviz/internal/audio/portaudio"
	"audioviz/internal/build"
	"audioviz/internal/config"
	"audioviz/internal/log"
	"audioviz/internal/metrics"
	"audioviz/internal/pipeline"
	"audioviz/internal/transport"
	"audioviz/internal/transport/udp"
	"audioviz/internal/tui"
)

// main runs in three phases:
//
//  1. Startup: build info, arguments, the capture source and every renderer.
//  2. Streaming: the capture callback feeds the pipeline, which analyses and
//     renders on its own ticker until a signal arrives or the user quits.
//  3. Shutdown: in reverse order of startup. Chunks the source delivers
//     after the pipeline is closed are dropped.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("Development build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Command == cmd.CommandNone {
		return
	}

	cfg := opts.Config
	if err := log.SetLevelString(cfg.LogLevel); err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.LevelDebug)
	}

	switch opts.Command {
	case cmd.CommandList:
		if err := listDevices(os.Stdout, cfg.Audio.Backend); err != nil {
			log.Fatalf("%v", err)
		}
	case cmd.CommandRun:
		if err := run(cfg); err != nil {
			log.Fatalf("%v", err)
		}
	}
}

func listDevices(w io.Writer, backend string) error {
	switch backend {
	case config.BackendPortAudio:
		if err := portaudio.Initialize(); err != nil {
			return err
		}
		defer portaudio.Terminate()
		devices, err := portaudio.Devices()
		if err != nil {
			return err
		}
		audio.PrintDevices(w, "PortAudio", devices)
	case config.BackendMalgo:
		devices, err := malgo.Devices()
		if err != nil {
			return err
		}
		audio.PrintDevices(w, "miniaudio", devices)
	default:
		return fmt.Errorf("the %s backend has no devices to list", backend)
	}
	return nil
}

// openSource returns the configured source and a function releasing any
// backend state it needed.
func openSource(cfg *config.Config) (audio.Source, func(), error) {
	a := cfg.Audio
	switch a.Backend {
	case config.BackendPortAudio:
		if err := portaudio.Initialize(); err != nil {
			return nil, nil, err
		}
		src, err := portaudio.New(portaudio.Config{
			DeviceID:        a.InputDevice,
			Monitor:         a.Monitor,
			Channels:        a.InputChannels,
			SampleRate:      a.SampleRate,
			FramesPerBuffer: a.FramesPerBuffer,
			LowLatency:      a.LowLatency,
		})
		if err != nil {
			portaudio.Terminate()
			return nil, nil, err
		}
		log.Infof("Using PortAudio device %s", src.DeviceName())
		return src, func() { _ = portaudio.Terminate() }, nil

	case config.BackendMalgo:
		src, err := malgo.New(malgo.Config{
			DeviceName:      a.DeviceName,
			Monitor:         a.Monitor,
			Loopback:        a.Loopback,
			Channels:        a.InputChannels,
			SampleRate:      a.SampleRate,
			FramesPerBuffer: a.FramesPerBuffer,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil

	case config.BackendWAV:
		src, err := audio.OpenWAV(a.WAVFile, audio.WAVOptions{
			FramesPerBuffer: a.FramesPerBuffer,
			Paced:           true,
			Loop:            a.Loop,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", a.Backend)
}

func startMetrics(addr string) (*metrics.Metrics, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Infof("Serving metrics on http://%s/metrics", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server error: %v", err)
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
	return m, stop, nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, release, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audio source: %w", err)
	}
	defer release()
	defer source.Close()

	analysisCfg, err := cfg.ToAnalysisConfig(source.Format())
	if err != nil {
		return fmt.Errorf("source format %s: %w", source.Format(), err)
	}

	pipeOpts := pipeline.Options{
		TickInterval: cfg.Render.TickInterval,
		Bands:        cfg.Bands(),
	}

	if cfg.Metrics.Enabled {
		m, stopMetrics, err := startMetrics(cfg.Metrics.ListenAddr)
		if err != nil {
			return err
		}
		defer stopMetrics()
		pipeOpts.Metrics = m
	}

	if cfg.Audio.GateThreshold > 0 {
		pipeOpts.Gate = audio.NewGate(cfg.Audio.GateThreshold)
	}

	if cfg.Recording.Enabled {
		path := cfg.Recording.Path(time.Now())
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
		rec, err := audio.NewRecorder(path, source.Format())
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Errorf("Error closing recording: %v", err)
				return
			}
			log.Infof("Recording saved to %s (%d frames)", rec.Path(), rec.Frames())
		}()
		pipeOpts.Recorder = rec
	}

	p, err := pipeline.New(analysisCfg, pipeOpts)
	if err != nil {
		return err
	}
	defer p.Close()

	renderers, term, err := buildRenderers(cfg, p)
	if err != nil {
		return err
	}
	defer func() {
		if err := renderers.Close(); err != nil {
			log.Warnf("Error closing renderers: %v", err)
		}
	}()

	if err := source.Start(p); err != nil {
		return fmt.Errorf("failed to start audio source: %w", err)
	}
	log.Infof("Streaming %s, fft %d, tick %s", source.Format(), analysisCfg.FFTResolution, cfg.Render.TickInterval)

	if wav, ok := source.(*audio.WAVSource); ok && !cfg.Audio.Loop {
		go func() {
			select {
			case <-wav.Done():
				log.Infof("Replay of %s finished", cfg.Audio.WAVFile)
				stop()
			case <-ctx.Done():
			}
		}()
	}

	if term == nil {
		return p.Run(ctx, renderers)
	}

	// The terminal owns the screen; log lines would tear it.
	prev := log.SetOutput(io.Discard)
	defer log.SetOutput(prev)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = p.Run(runCtx, renderers)
	}()

	termErr := term.Run(ctx)
	cancel()
	wg.Wait()
	return errors.Join(termErr, runErr)
}

func buildRenderers(cfg *config.Config, p *pipeline.Pipeline) (transport.Multi, *tui.Terminal, error) {
	var (
		renderers transport.Multi
		term      *tui.Terminal
	)
	fail := func(err error) (transport.Multi, *tui.Terminal, error) {
		_ = renderers.Close()
		return nil, nil, err
	}

	r := cfg.Render
	if r.WebSocketAddr != "" {
		ws, err := transport.NewWebSocketRenderer(r.WebSocketAddr)
		if err != nil {
			return fail(err)
		}
		renderers = append(renderers, ws)
	}
	if r.UDPEnabled {
		pub, err := udp.NewPublisher(r.UDPTargetAddress)
		if err != nil {
			return fail(err)
		}
		renderers = append(renderers, pub)
	}
	if r.LogEvery > 0 {
		renderers = append(renderers, transport.NewLoggingRenderer(r.LogEvery, p.BinFrequency))
	}
	if r.Terminal {
		term = tui.NewTerminal(p, p.BinFrequency)
		renderers = append(renderers, term)
	}
	return renderers, term, nil
}
