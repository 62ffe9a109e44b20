// SPDX-License-Identifier: MIT
// Package tui draws a live spectrum and waveform meter in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"audioviz/internal/analysis"
	"audioviz/internal/pipeline"
)

const (
	// Resolution keys step between these bounds.
	minStepResolution = 16
	maxStepResolution = analysis.MaxFFTResolution

	refreshInterval = 33 * time.Millisecond
	spectrumHeight  = 12
	defaultWidth    = 80
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	silentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E06C75")).
			Bold(true)
)

var levelGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// Controller is the part of the pipeline the keyboard drives.
type Controller interface {
	Resolution() analysis.Resolution
	SetResolution(analysis.Resolution)
}

type keyMap struct {
	Finer   key.Binding
	Coarser key.Binding
	Natural key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Finer, k.Coarser, k.Natural, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Finer:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "double resolution")),
	Coarser: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "halve resolution")),
	Natural: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "natural resolution")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Terminal is a pipeline.Renderer that hands frames to a Bubble Tea program.
// Render only publishes the latest frame; the program redraws on its own
// schedule, so a slow terminal never stalls the pipeline.
type Terminal struct {
	ctrl    Controller
	binFreq func(int) float64
	latest  atomic.Pointer[pipeline.Frame]
}

// NewTerminal builds a terminal renderer. binFreq labels the spectrum axis
// and may be nil.
func NewTerminal(ctrl Controller, binFreq func(int) float64) *Terminal {
	return &Terminal{ctrl: ctrl, binFreq: binFreq}
}

func (t *Terminal) Render(f pipeline.Frame) error {
	t.latest.Store(&f)
	return nil
}

func (t *Terminal) Close() error { return nil }

// Model returns a fresh Bubble Tea model reading from t.
func (t *Terminal) Model() Model {
	return Model{
		ctrl:    t.ctrl,
		binFreq: t.binFreq,
		latest:  &t.latest,
		keys:    defaultKeys,
		help:    help.New(),
		width:   defaultWidth,
	}
}

// Run draws until the user quits or ctx is cancelled. Cancellation is not an
// error.
func (t *Terminal) Run(ctx context.Context, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(t.Model(), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type refreshMsg time.Time

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Model is the Bubble Tea model of the meter.
type Model struct {
	ctrl    Controller
	binFreq func(int) float64
	latest  *atomic.Pointer[pipeline.Frame]
	frame   *pipeline.Frame

	keys     keyMap
	help     help.Model
	width    int
	quitting bool
}

func (m Model) Init() tea.Cmd {
	return refresh()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 1)
		m.help.Width = msg.Width

	case refreshMsg:
		if f := m.latest.Load(); f != nil {
			m.frame = f
		}
		return m, refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Finer):
			m.ctrl.SetResolution(stepResolution(m.ctrl.Resolution(), m.waveformLen(), true))
		case key.Matches(msg, m.keys.Coarser):
			m.ctrl.SetResolution(stepResolution(m.ctrl.Resolution(), m.waveformLen(), false))
		case key.Matches(msg, m.keys.Natural):
			m.ctrl.SetResolution(analysis.Natural())
		}
	}
	return m, nil
}

func (m Model) waveformLen() int {
	if m.frame == nil {
		return 0
	}
	return len(m.frame.Waveform)
}

// stepResolution doubles or halves r. Natural starts from the length the
// waveform currently has.
func stepResolution(r analysis.Resolution, current int, up bool) analysis.Resolution {
	n, ok := r.Fixed()
	if !ok {
		n = current
	}
	if up {
		n *= 2
	} else {
		n /= 2
	}
	return analysis.Fixed(min(max(n, minStepResolution), maxStepResolution))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Audio Visualizer"))
	sb.WriteString("\n\n")

	if m.frame == nil {
		sb.WriteString(infoStyle.Render("Waiting for audio..."))
		sb.WriteString("\n\n")
		sb.WriteString(m.help.View(m.keys))
		return sb.String()
	}

	f := m.frame
	status := fmt.Sprintf("frame %d • resolution %s • peak %.3f", f.Sequence, m.ctrl.Resolution(), f.Peak)
	sb.WriteString(infoStyle.Render(status))
	if f.Silent {
		sb.WriteString(" " + silentStyle.Render("SILENT"))
	}
	sb.WriteString("\n\n")

	if f.Ready() {
		sb.WriteString(barStyle.Render(spectrumBars(f.Spectrum, m.width, spectrumHeight)))
		sb.WriteString("\n")
		sb.WriteString(infoStyle.Render(m.axisLabel(len(f.Spectrum))))
		sb.WriteString("\n")
		if len(f.Bands) > 0 {
			sb.WriteString(bandLine(f.Bands))
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString(infoStyle.Render("Buffering history..."))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(waveformStrip(f.Waveform, m.width))
	sb.WriteString("\n\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m Model) axisLabel(bins int) string {
	if m.binFreq == nil || bins < 2 {
		return ""
	}
	lo := fmt.Sprintf("%.0f Hz", m.binFreq(1))
	hi := fmt.Sprintf("%.0f Hz", m.binFreq(bins-1))
	gap := max(m.width-len(lo)-len(hi), 1)
	return lo + strings.Repeat(" ", gap) + hi
}

// columns reduces values to at most width columns, keeping the largest
// magnitude of each group.
func columns(values []float32, width int) []float32 {
	if width <= 0 || len(values) == 0 {
		return nil
	}
	n := min(len(values), width)
	out := make([]float32, n)
	for c := range out {
		lo := c * len(values) / n
		hi := max((c+1)*len(values)/n, lo+1)
		for _, v := range values[lo:hi] {
			a := math.Abs(float64(v))
			if math.IsNaN(a) || math.IsInf(a, 0) {
				continue
			}
			out[c] = max(out[c], float32(a))
		}
	}
	return out
}

// spectrumBars draws bins 1..N (DC is skipped) as vertical bars scaled to the
// loudest column.
func spectrumBars(spectrum []float32, width, height int) string {
	if len(spectrum) < 2 {
		return ""
	}
	cols := columns(spectrum[1:], width)
	var peak float32
	for _, v := range cols {
		peak = max(peak, v)
	}

	heights := make([]int, len(cols))
	if peak > 0 {
		for i, v := range cols {
			heights[i] = int(math.Round(float64(v/peak) * float64(height)))
		}
	}

	rows := make([]string, height)
	line := make([]rune, len(cols))
	for r := range rows {
		level := height - r
		for i, h := range heights {
			line[i] = ' '
			if h >= level {
				line[i] = '█'
			}
		}
		rows[r] = string(line)
	}
	return strings.Join(rows, "\n")
}

// waveformStrip draws one row of the absolute amplitude, full scale at 1.0.
func waveformStrip(waveform []float32, width int) string {
	cols := columns(waveform, width)
	top := len(levelGlyphs) - 1
	line := make([]rune, len(cols))
	for i, v := range cols {
		idx := min(max(int(math.Round(float64(v)*float64(top))), 0), top)
		line[i] = levelGlyphs[idx]
	}
	return string(line)
}

func bandLine(bands []analysis.BandLevel) string {
	parts := make([]string, len(bands))
	for i, b := range bands {
		parts[i] = fmt.Sprintf("%s %.2f", b.Name, b.Level)
	}
	return infoStyle.Render(strings.Join(parts, "  "))
}

// Ensure Terminal satisfies the interface
var _ pipeline.Renderer = (*Terminal)(nil)
