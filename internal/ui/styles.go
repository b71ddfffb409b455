package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const meterWidth = 41

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	intervalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA"))

	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00C853"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5252"))

	inTuneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00C853"))
	offTuneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))

	// one color per natural note, sharps are split between neighbours
	noteColors = map[string]string{
		"C": "#E8D6B0",
		"D": "#A020F0",
		"E": "#FFFF00",
		"F": "#FFA500",
		"G": "#00FF00",
		"A": "#FF0000",
		"B": "#0000FF",
	}

	nextNatural = map[string]string{
		"C": "D", "D": "E", "E": "F", "F": "G", "G": "A", "A": "B", "B": "C",
	}
)

func noteBox(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(color)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333"))
}

// renderNote draws the note name in its color; sharps get the colors of
// both neighbouring naturals.
func renderNote(name string, octave int) string {
	base := name[:1]
	if !strings.HasSuffix(name, "#") {
		return noteBox(noteColors[base]).Padding(2, 4).Render(fmt.Sprintf("%s%d", name, octave))
	}

	left := noteBox(noteColors[base]).
		BorderRight(false).
		PaddingLeft(2).PaddingRight(1).PaddingTop(2).PaddingBottom(2)
	right := noteBox(noteColors[nextNatural[base]]).
		BorderLeft(false).
		PaddingLeft(1).PaddingRight(2).PaddingTop(2).PaddingBottom(2)
	return lipgloss.JoinHorizontal(lipgloss.Top, left.Render(base), right.Render(fmt.Sprintf("#%d", octave)))
}

// CentsMeter draws a horizontal needle for a deviation in [-50, +50] cents.
// Values beyond the range pin the needle to the edge.
func CentsMeter(cents float64, width int) string {
	style := offTuneStyle
	if math.Abs(cents) <= 5 {
		style = inTuneStyle
	}
	return style.Render(fmt.Sprintf("[%s] %+.1fc", string(meterCells(cents, width)), cents))
}

// meterCells returns an odd number of cells, at least 3, with the centre
// mark and the needle.
func meterCells(cents float64, width int) []rune {
	width = max(width, 3)
	if width%2 == 0 {
		width++
	}
	centre := width / 2
	clamped := math.Max(-50, math.Min(50, cents))
	pos := centre + int(math.Round(clamped/50*float64(centre)))

	cells := make([]rune, width)
	for i := range cells {
		cells[i] = '-'
	}
	cells[centre] = '|'
	cells[pos] = '●'
	return cells
}
