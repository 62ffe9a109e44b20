// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioviz/internal/config"
)

func TestParseArgsDefaults(t *testing.T) {
	opts, err := ParseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, CommandRun, opts.Command)
	require.NotNil(t, opts.Config)
	assert.Equal(t, config.Default(), *opts.Config)
}

func TestParseArgsFlags(t *testing.T) {
	opts, err := ParseArgs([]string{
		"--fft", "1024",
		"-n", "256",
		"--udp", "127.0.0.1:9999",
		"--ws", "",
		"-t",
		"--tick", "10ms",
		"--gate", "0.1",
		"--metrics", ":9100",
		"-v",
	})
	require.NoError(t, err)

	cfg := opts.Config
	assert.Equal(t, 1024, cfg.Analysis.FFTResolution)
	assert.Equal(t, 256, cfg.Analysis.Resolution)
	assert.True(t, cfg.Render.UDPEnabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Render.UDPTargetAddress)
	assert.Empty(t, cfg.Render.WebSocketAddr)
	assert.True(t, cfg.Render.Terminal)
	assert.Equal(t, 10*time.Millisecond, cfg.Render.TickInterval)
	assert.Equal(t, 0.1, cfg.Audio.GateThreshold)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseArgsOnlyChangedFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  fft_resolution: 2048\n  window: hamming\n"), 0644))

	opts, err := ParseArgs([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, 2048, opts.Config.Analysis.FFTResolution, "the flag default does not clobber the file")
	assert.Equal(t, "hamming", opts.Config.Analysis.Window)

	opts, err = ParseArgs([]string{"-f", path, "--fft", "512"})
	require.NoError(t, err)
	assert.Equal(t, 512, opts.Config.Analysis.FFTResolution)
	assert.Equal(t, "hamming", opts.Config.Analysis.Window)
}

func TestParseArgsWAVSelectsBackend(t *testing.T) {
	opts, err := ParseArgs([]string{"--wav", "demo.wav", "--loop"})
	require.NoError(t, err)
	assert.Equal(t, config.BackendWAV, opts.Config.Audio.Backend)
	assert.Equal(t, "demo.wav", opts.Config.Audio.WAVFile)
	assert.True(t, opts.Config.Audio.Loop)
}

func TestParseArgsRecording(t *testing.T) {
	opts, err := ParseArgs([]string{"-o", "take.wav"})
	require.NoError(t, err)
	assert.True(t, opts.Config.Recording.Enabled, "an output file implies recording")
	assert.Equal(t, "take.wav", opts.Config.Recording.OutputFile)
}

func TestParseArgsList(t *testing.T) {
	opts, err := ParseArgs([]string{"list", "--backend", "malgo"})
	require.NoError(t, err)
	assert.Equal(t, CommandList, opts.Command)
	assert.Equal(t, config.BackendMalgo, opts.Config.Audio.Backend)
}

func TestParseArgsVersion(t *testing.T) {
	opts, err := ParseArgs([]string{"--version"})
	require.NoError(t, err)
	assert.Equal(t, CommandNone, opts.Command)
	assert.Nil(t, opts.Config)
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"Unknown flag", []string{"--bogus"}},
		{"Invalid FFT size", []string{"--fft", "0"}},
		{"Bad backend", []string{"--backend", "jack"}},
		{"Bad UDP address", []string{"--udp", "nowhere"}},
		{"Unexpected argument", []string{"extra"}},
		{"Missing config file", []string{"--config", "does-not-exist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			assert.Error(t, err)
		})
	}
}
