// SPDX-License-Identifier: MIT
package tui

import (
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioviz/internal/analysis"
	"audioviz/internal/pipeline"
)

type fakeController struct {
	res analysis.Resolution
}

func (c *fakeController) Resolution() analysis.Resolution     { return c.res }
func (c *fakeController) SetResolution(r analysis.Resolution) { c.res = r }

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestQuitKey(t *testing.T) {
	term := NewTerminal(&fakeController{}, nil)
	m, cmd := update(t, term.Model(), keyPress("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestResolutionKeys(t *testing.T) {
	ctrl := &fakeController{}
	term := NewTerminal(ctrl, nil)
	require.NoError(t, term.Render(pipeline.Frame{Sequence: 1, Waveform: make([]float32, 40)}))

	m := term.Model()
	m, _ = update(t, m, refreshMsg{})

	m, _ = update(t, m, keyPress("+"))
	assert.Equal(t, analysis.Fixed(80), ctrl.res, "natural doubles from the current waveform length")

	m, _ = update(t, m, keyPress("="))
	assert.Equal(t, analysis.Fixed(160), ctrl.res)

	m, _ = update(t, m, keyPress("-"))
	assert.Equal(t, analysis.Fixed(80), ctrl.res)

	_, _ = update(t, m, keyPress("n"))
	assert.True(t, ctrl.res.IsNatural())
}

func TestStepResolutionClamps(t *testing.T) {
	tests := []struct {
		name    string
		res     analysis.Resolution
		current int
		up      bool
		want    analysis.Resolution
	}{
		{"Natural without history", analysis.Natural(), 0, true, analysis.Fixed(minStepResolution)},
		{"Halve below minimum", analysis.Fixed(20), 0, false, analysis.Fixed(minStepResolution)},
		{"Double above maximum", analysis.Fixed(maxStepResolution), 0, true, analysis.Fixed(maxStepResolution)},
		{"Fixed ignores history", analysis.Fixed(100), 3000, true, analysis.Fixed(200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stepResolution(tt.res, tt.current, tt.up))
		})
	}
}

func TestRefreshPicksUpLatestFrame(t *testing.T) {
	term := NewTerminal(&fakeController{}, nil)
	m := term.Model()
	assert.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Waiting for audio")

	require.NoError(t, term.Render(pipeline.Frame{Sequence: 1}))
	require.NoError(t, term.Render(pipeline.Frame{Sequence: 2, Waveform: []float32{0.5}, Silent: true}))

	m, cmd := update(t, m, refreshMsg{})
	assert.NotNil(t, cmd, "refresh reschedules itself")
	view := m.View()
	assert.Contains(t, view, "frame 2")
	assert.Contains(t, view, "resolution natural")
	assert.Contains(t, view, "SILENT")
	assert.Contains(t, view, "Buffering history")
}

func TestViewReadyFrame(t *testing.T) {
	term := NewTerminal(&fakeController{res: analysis.Fixed(64)}, func(i int) float64 { return float64(i) * 100 })
	require.NoError(t, term.Render(pipeline.Frame{
		Sequence: 9,
		Spectrum: []float32{5, 0, 1, 0.5, 0},
		Waveform: []float32{0, 1},
		Bands:    []analysis.BandLevel{{Name: "bass", Level: 0.25}},
	}))

	m, _ := update(t, term.Model(), tea.WindowSizeMsg{Width: 40, Height: 30})
	m, _ = update(t, m, refreshMsg{})

	view := m.View()
	assert.Contains(t, view, "resolution 64")
	assert.Contains(t, view, "100 Hz")
	assert.Contains(t, view, "400 Hz")
	assert.Contains(t, view, "bass 0.25")
	assert.Contains(t, view, "█")
}

func TestSpectrumBars(t *testing.T) {
	bars := spectrumBars([]float32{100, 1, 0.5, 0}, 10, 4)
	rows := strings.Split(bars, "\n")
	require.Len(t, rows, 4)
	assert.Equal(t, "█  ", rows[0], "DC is skipped, the loudest bin fills the height")
	assert.Equal(t, "██ ", rows[3])

	assert.Empty(t, spectrumBars([]float32{1}, 10, 4))
	silent := spectrumBars([]float32{0, 0, 0}, 10, 2)
	assert.Equal(t, "  \n  ", silent)

	assert.Equal(t, " █\n █", spectrumBars([]float32{0, float32(math.NaN()), 1}, 10, 2))
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []float32{1, 2}, columns([]float32{1, -2}, 10))
	assert.Equal(t, []float32{3, 4}, columns([]float32{1, -3, 2, 4}, 2))
	assert.Nil(t, columns(nil, 10))
	assert.Nil(t, columns([]float32{1}, 0))

	nan, inf := float32(math.NaN()), float32(math.Inf(-1))
	assert.Equal(t, []float32{0, 0.5, 2}, columns([]float32{nan, 0.5, inf, nan, 2}, 3))
}

func TestWaveformStrip(t *testing.T) {
	assert.Equal(t, " ▄██", waveformStrip([]float32{0, 0.5, -1, 3}, 10))
	assert.Empty(t, waveformStrip(nil, 10))

	nan := float32(math.NaN())
	assert.NotPanics(t, func() {
		assert.Equal(t, "▁ ▄", waveformStrip([]float32{0.1, nan, 0.5}, 3))
	})
	assert.Equal(t, "  ", waveformStrip([]float32{float32(math.Inf(1)), nan}, 2))
}
