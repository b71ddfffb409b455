// Package ui renders live readings in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/0xlemi/intonote/internal/analyzer"
	"github.com/0xlemi/intonote/internal/engine"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// how long a note must be seen before it replaces the displayed one
	noteStabilityThreshold = 300 * time.Millisecond
	// notes not seen for this long are forgotten
	noteHistoryTTL = 2 * time.Second

	tickInterval = 100 * time.Millisecond
)

// Controls is the part of the analyzer the UI polls and toggles.
type Controls interface {
	Metrics() analyzer.PerformanceMetrics
	SetEnabled(enabled bool)
	ResetMetrics()
}

// Header describes the fixed session settings shown under the title.
type Header struct {
	Reference string // e.g. "A3 (220.00 Hz)"
	System    string
	Scale     string
	Source    string
}

// TickMsg represents a timer tick
type TickMsg time.Time

// ReadingMsg carries the latest reading of a batch.
type ReadingMsg struct {
	Reading engine.Reading
	PeakHz  float64
	LevelDB float64
}

// ClearMsg reports a batch without a pitch.
type ClearMsg struct {
	LevelDB float64
}

// Model is the bubbletea model of the watch screen.
type Model struct {
	header   Header
	controls Controls

	current      *engine.Reading
	stable       *engine.Reading
	notesHistory map[string]time.Time // first sighting of each note name
	peakHz       float64
	levelDB      float64

	metrics analyzer.PerformanceMetrics
	enabled bool
	width   int

	now func() time.Time
}

// NewModel creates the watch model. controls may be nil.
func NewModel(header Header, controls Controls) Model {
	return Model{
		header:       header,
		controls:     controls,
		notesHistory: make(map[string]time.Time),
		levelDB:      -100,
		enabled:      true,
		now:          time.Now,
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Init starts the polling tick.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles keys, ticks and readings.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.enabled = !m.enabled
			if m.controls != nil {
				m.controls.SetEnabled(m.enabled)
			}
			if !m.enabled {
				m.current, m.stable = nil, nil
			}
		case "r":
			if m.controls != nil {
				m.controls.ResetMetrics()
				m.metrics = m.controls.Metrics()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case TickMsg:
		now := time.Time(msg)
		for note, seen := range m.notesHistory {
			if now.Sub(seen) > noteHistoryTTL {
				delete(m.notesHistory, note)
			}
		}
		if m.controls != nil {
			m.metrics = m.controls.Metrics()
		}
		return m, tick()

	case ReadingMsg:
		r := msg.Reading
		m.current = &r
		m.peakHz = msg.PeakHz
		m.levelDB = msg.LevelDB

		name := r.Note.String()
		now := m.now()
		if _, ok := m.notesHistory[name]; !ok {
			m.notesHistory[name] = now
		}
		if m.stable == nil || m.stable.Note.String() == name ||
			now.Sub(m.notesHistory[name]) >= noteStabilityThreshold {
			m.stable = &r
		}

	case ClearMsg:
		m.current, m.stable = nil, nil
		m.peakHz = 0
		m.levelDB = msg.LevelDB
		clear(m.notesHistory)
	}

	return m, nil
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("intonote - interval trainer"))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("ref %s | %s | %s | %s",
		m.header.Reference, m.header.System, m.header.Scale, m.header.Source)))
	b.WriteString("\n\n")

	switch r := m.stable; {
	case !m.enabled:
		b.WriteString(infoStyle.Render("Detection paused (space to resume)"))
	case r == nil:
		b.WriteString(infoStyle.Render("Listening for audio..."))
	default:
		b.WriteString(renderNote(r.Note.Name, r.Note.Octave))
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf("Frequency: %.2f Hz | Clarity: %.2f | Note cents: %+.1f",
			r.Pitch.Frequency, r.Pitch.Clarity, r.Note.Cents)))
		b.WriteString("\n")
		b.WriteString(intervalStyle.Render(fmt.Sprintf("Interval: %s (%s)", r.Interval, intervalName(r.Interval.Semitones))))
		b.WriteString("\n")
		b.WriteString(CentsMeter(r.Interval.Cents, m.meterWidth()))
		if c := m.current; c != nil && c.Note.String() != r.Note.String() {
			b.WriteString("\n")
			b.WriteString(infoStyle.Render(fmt.Sprintf("hearing %s...", c.Note)))
		}
		if m.peakHz > 0 {
			b.WriteString("\n")
			b.WriteString(infoStyle.Render(fmt.Sprintf("Spectral peak: %.2f Hz", m.peakHz)))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderMetrics())
	b.WriteString("\n\n")
	b.WriteString(infoStyle.Render("space pause | r reset metrics | q quit"))
	return b.String()
}

// meterWidth shrinks the cents meter to fit narrow terminals.
func (m Model) meterWidth() int {
	if m.width > 0 && m.width-12 < meterWidth {
		return m.width - 12
	}
	return meterWidth
}

func (m Model) renderMetrics() string {
	mt := m.metrics
	status := okStyle.Render("OK")
	if !mt.MeetsRequirements() {
		status = warnStyle.Render("SLOW")
	}
	return infoStyle.Render(fmt.Sprintf(
		"Level %.1f dB | latency avg %.2f ms (min %.2f, max %.2f) | detect %.0f us | cycles %d | success %.0f%% | violations %d ",
		m.levelDB, mt.AverageLatencyMs, mt.MinLatencyMs, mt.MaxLatencyMs, mt.DetectionTimeUs,
		mt.AnalysisCycles, 100*mt.SuccessRate, mt.LatencyViolations)) + status
}

var intervalNames = [12]string{
	"unison", "minor 2nd", "major 2nd", "minor 3rd", "major 3rd", "perfect 4th",
	"tritone", "perfect 5th", "minor 6th", "major 6th", "minor 7th", "major 7th",
}

// intervalName names the interval class with its octave displacement,
// e.g. "perfect 5th +1 oct".
func intervalName(semitones int) string {
	class := ((semitones % 12) + 12) % 12
	octaves := (semitones - class) / 12
	if octaves == 0 {
		return intervalNames[class]
	}
	return fmt.Sprintf("%s %+d oct", intervalNames[class], octaves)
}
