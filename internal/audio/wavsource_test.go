// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioviz/pkg/utils"
)

func TestOpenWAVErrors(t *testing.T) {
	_, err := OpenWAV(filepath.Join(t.TempDir(), "missing.wav"), WAVOptions{})
	require.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a riff file"), 0o600))
	_, err = OpenWAV(garbage, WAVOptions{})
	require.Error(t, err)
}

func TestWAVSourceReplay(t *testing.T) {
	wave := utils.GenerateRamp(2000, -0.5, 0.0005)
	path := writeTestWAV(t, 2, wave)

	src, err := OpenWAV(path, WAVOptions{FramesPerBuffer: 128})
	require.NoError(t, err)
	assert.Equal(t, Format{Channels: 2, SampleRate: testSampleRate}, src.Format())

	sink := &utils.ChunkRecorder{}
	require.NoError(t, src.Start(sink))
	require.Error(t, src.Start(sink), "second Start should fail")

	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}
	require.NoError(t, src.Close())

	got := sink.Samples()
	require.Len(t, got, len(wave))
	for i := range wave {
		assert.InDelta(t, wave[i], got[i], 1.0/16384, "sample %d", i)
	}
	// 1000 frames at no more than 128 frames per chunk.
	assert.GreaterOrEqual(t, sink.Chunks(), 8)
	assert.Empty(t, sink.Errors())
}

func TestWAVSourceLoop(t *testing.T) {
	wave := utils.GenerateSineWave(256, testSampleRate, 440, 0.5)
	path := writeTestWAV(t, 1, wave)

	src, err := OpenWAV(path, WAVOptions{FramesPerBuffer: 64, Loop: true})
	require.NoError(t, err)

	sink := &utils.ChunkRecorder{}
	require.NoError(t, src.Start(sink))
	require.Eventually(t, func() bool {
		return len(sink.Samples()) >= 3*len(wave)
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, src.Close())

	got := sink.Samples()
	for i := len(wave); i < 2*len(wave); i++ {
		assert.InDelta(t, got[i-len(wave)], got[i], 1e-9, "looped sample %d", i)
	}
}

func TestWAVSourcePacedStopsOnClose(t *testing.T) {
	// One second of audio delivered in 10ms chunks.
	path := writeTestWAV(t, 1, utils.GenerateSineWave(testSampleRate, testSampleRate, 440, 0.5))

	src, err := OpenWAV(path, WAVOptions{FramesPerBuffer: testSampleRate / 100, Paced: true})
	require.NoError(t, err)

	sink := &utils.ChunkRecorder{}
	require.NoError(t, src.Start(sink))
	require.Eventually(t, func() bool { return sink.Chunks() >= 2 }, 5*time.Second, time.Millisecond)

	require.NoError(t, src.Close())
	assert.Less(t, sink.Chunks(), 100, "Close should interrupt paced replay")

	select {
	case <-src.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}

func TestWAVSourceCloseWithoutStart(t *testing.T) {
	path := writeTestWAV(t, 1, []float32{0.1, 0.2})
	src, err := OpenWAV(path, WAVOptions{})
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
}

func TestSampleScale(t *testing.T) {
	tests := []struct {
		bitDepth int
		raw      int
		want     float64
	}{
		{8, 0, -1},
		{8, 128, 0},
		{16, 16384, 0.5},
		{16, -32768, -1},
		{24, 1 << 22, 0.5},
		{32, -(1 << 30), -0.5},
	}
	for _, tt := range tests {
		scale, offset := sampleScale(tt.bitDepth)
		assert.InDelta(t, tt.want, float64(tt.raw-offset)*scale, 1e-12, "%d-bit", tt.bitDepth)
	}
}

func TestPrintDevices(t *testing.T) {
	var sb strings.Builder
	PrintDevices(&sb, "test", []Device{
		{ID: 0, Name: "Mic", MaxInputChannels: 2, DefaultSampleRate: 48000, IsDefault: true},
		{ID: 1, Name: "Speakers", MaxOutputChannels: 2},
	})
	out := sb.String()
	assert.Contains(t, out, "[0] Mic (Input) *default*")
	assert.Contains(t, out, "[1] Speakers (Output)")
	assert.Contains(t, out, "48000 Hz")

	sb.Reset()
	PrintDevices(&sb, "test", nil)
	assert.Contains(t, sb.String(), "none")
}
