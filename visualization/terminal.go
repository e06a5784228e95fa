// Package visualization renders simulation state for people: a terminal dashboard of a snapshot, and Graphviz
// diagrams of the state machine definitions.
package visualization

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/core"
	"github.com/anggasct/crossing/pkg/zone"
)

const (
	// innerWidth is the number of columns between the frame borders
	innerWidth = 78
	// laneIndent aligns the construction lane under the middle of the frame
	laneIndent = 30
	// queuePreview is the number of waiting vehicles shown per queue row
	queuePreview = 8

	ansiReset     = "\033[0m"
	ansiRed       = "\033[1;31m"
	ansiGreen     = "\033[1;32m"
	ansiYellow    = "\033[1;33m"
	ansiClearHome = "\033[2J\033[H"
)

// TerminalOptions configures the dashboard
type TerminalOptions struct {
	// Color enables ANSI colors; disable it when the output is not a terminal
	Color bool
	// ClearScreen moves the cursor home and clears the screen before each frame
	ClearScreen bool
	// EventLines is the height of the recent events panel
	EventLines int
	// Title is shown in the frame header
	Title string
}

// DefaultTerminalOptions returns the options used by the interactive dashboard
func DefaultTerminalOptions() TerminalOptions {
	return TerminalOptions{
		Color:       true,
		ClearScreen: true,
		EventLines:  8,
		Title:       "ONE-LANE CROSSING SIMULATION (Press Ctrl+C to exit)",
	}
}

// Terminal draws a framed text dashboard of a simulation snapshot
type Terminal struct {
	options TerminalOptions
}

// NewTerminal creates a dashboard renderer
func NewTerminal(options ...TerminalOptions) *Terminal {
	opts := DefaultTerminalOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	if opts.EventLines < 0 {
		opts.EventLines = 0
	}
	return &Terminal{options: opts}
}

// Render writes one frame for snap to w.
func (t *Terminal) Render(w io.Writer, snap crossing.Snapshot) error {
	_, err := io.WriteString(w, t.Frame(snap))
	return err
}

// Frame returns one frame for snap.
func (t *Terminal) Frame(snap crossing.Snapshot) string {
	var b strings.Builder
	if t.options.ClearScreen {
		b.WriteString(ansiClearHome)
	}

	border := "+" + strings.Repeat("-", innerWidth) + "+\n"
	separator := "|" + strings.Repeat("-", innerWidth) + "|\n"

	b.WriteString(border)
	b.WriteString(t.centered(t.options.Title, ansiYellow))
	b.WriteString(separator)
	b.WriteString(t.header(snap))
	b.WriteString(separator)
	b.WriteString(t.queueRow("WEST QUEUE:", snap.Queues[core.West]))
	b.WriteString(t.line(strings.Repeat(" ", laneIndent)+"|== CONSTRUCTION ==|", ""))
	b.WriteString(t.lane(snap.Zone))
	b.WriteString(t.queueRow("EAST QUEUE:", snap.Queues[core.East]))
	b.WriteString(border)
	b.WriteString(t.line(" Recent Events:", ""))
	for _, event := range t.eventLines(snap.Events) {
		b.WriteString(t.line(" "+event, ""))
	}
	b.WriteString(border)
	return b.String()
}

func (t *Terminal) header(snap crossing.Snapshot) string {
	var r row
	r.plain(" Green Light: ")
	r.styled(t, ansiGreen, fmt.Sprintf("%-4s", snap.Privileged))
	r.plain(fmt.Sprintf(" | EAST Q: %02d | WEST Q: %02d | Tick: %2ds",
		len(snap.Queues[core.East]), len(snap.Queues[core.West]), snap.Ticks))
	return r.framed()
}

func (t *Terminal) queueRow(label string, vehicles []core.Vehicle) string {
	var r row
	r.plain(" " + label)
	for i := 0; i < queuePreview; i++ {
		switch {
		case i >= len(vehicles):
			r.plain("      ")
		case vehicles[i].IsEmergency():
			r.styled(t, ansiRed, "[AMB]")
			r.plain(" ")
		default:
			r.plain("[" + vehicles[i].ID.String() + "] ")
		}
	}
	return r.framed()
}

func (t *Terminal) lane(view zone.View) string {
	bySlot := make(map[int]zone.Occupant, len(view.Occupants))
	for _, occ := range view.Occupants {
		bySlot[occ.Slot] = occ
	}

	var r row
	r.plain(strings.Repeat(" ", laneIndent) + "|")
	for i := 0; i < view.Capacity; i++ {
		occ, ok := bySlot[i]
		if !ok {
			r.plain("       ")
			continue
		}
		bar := progressBar(occ.Progress, view.Steps)
		if occ.Vehicle.IsEmergency() {
			r.styled(t, ansiRed, "[AMB]["+bar+"]")
			r.plain(" ")
			continue
		}
		r.plain(fmt.Sprintf(" %s[%s] ", occ.Vehicle.ID, bar))
	}
	return r.framed()
}

func (t *Terminal) eventLines(events []string) []string {
	n := t.options.EventLines
	if len(events) > n {
		events = events[len(events)-n:]
	}
	out := make([]string, n)
	copy(out, events)
	return out
}

func (t *Terminal) centered(text, style string) string {
	width := utf8.RuneCountInString(text)
	left := (innerWidth - width) / 2
	if left < 0 {
		left = 0
	}
	var r row
	r.plain(strings.Repeat(" ", left))
	r.styled(t, style, text)
	return r.framed()
}

func (t *Terminal) line(text, style string) string {
	var r row
	r.styled(t, style, text)
	return r.framed()
}

func progressBar(progress, steps int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > steps {
		progress = steps
	}
	return strings.Repeat("=", progress) + strings.Repeat(" ", steps-progress)
}

// row accumulates one framed line and tracks its visible width separately from the escape sequences it contains.
type row struct {
	b       strings.Builder
	visible int
}

func (r *row) plain(s string) {
	room := innerWidth - r.visible
	if room <= 0 {
		return
	}
	if n := utf8.RuneCountInString(s); n > room {
		s = string([]rune(s)[:room])
	}
	r.b.WriteString(s)
	r.visible += utf8.RuneCountInString(s)
}

func (r *row) styled(t *Terminal, style, s string) {
	if !t.options.Color || style == "" {
		r.plain(s)
		return
	}
	r.b.WriteString(style)
	r.plain(s)
	r.b.WriteString(ansiReset)
}

func (r *row) framed() string {
	return "|" + r.b.String() + strings.Repeat(" ", innerWidth-r.visible) + "|\n"
}
