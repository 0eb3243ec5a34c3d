package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// TurnCounts holds the number of finished turns by outcome.
type TurnCounts struct {
	OK      int
	Partial int
	Failed  int
}

// Footer renders the status bar and keyboard hints.
type Footer struct {
	sessionID string
	message   string
	success   bool
	width     int
	counts    TurnCounts

	// Styles
	successStyle   lipgloss.Style
	errorStyle     lipgloss.Style
	warnStyle      lipgloss.Style
	hintStyle      lipgloss.Style
	separatorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		separatorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")),
	}
}

// SetSession sets the session shown in the footer and clears the counts.
func (f *Footer) SetSession(id string) {
	f.sessionID = id
	f.counts = TurnCounts{}
}

// SetMessage sets the status message.
func (f *Footer) SetMessage(message string, success bool) {
	f.message = message
	f.success = success
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// Counts returns the turn counts for the current session.
func (f *Footer) Counts() TurnCounts {
	return f.counts
}

// RecordTurn counts one finished turn.
func (f *Footer) RecordTurn(partial, failed bool) {
	switch {
	case failed:
		f.counts.Failed++
	case partial:
		f.counts.Partial++
	default:
		f.counts.OK++
	}
}

// View renders the footer.
func (f *Footer) View() string {
	sep := f.separatorStyle.Render(" │ ")

	left := f.hintStyle.Render("session " + shortID(f.sessionID))
	if total := f.counts.OK + f.counts.Partial + f.counts.Failed; total > 0 {
		counts := fmt.Sprintf("✓%d", f.counts.OK)
		if f.counts.Partial > 0 {
			counts += f.warnStyle.Render(fmt.Sprintf(" ◐%d", f.counts.Partial))
		}
		if f.counts.Failed > 0 {
			counts += f.errorStyle.Render(fmt.Sprintf(" ✗%d", f.counts.Failed))
		}
		left += sep + counts
	}

	if f.message != "" {
		if f.success {
			left += sep + f.successStyle.Render(f.message)
		} else {
			left += sep + f.errorStyle.Render(f.message)
		}
	}

	return left + sep + f.keyboardHints()
}

// keyboardHints returns the key hints.
func (f *Footer) keyboardHints() string {
	return f.hintStyle.Render("pgup/pgdn scroll │ /new /forget │ ctrl+c quit")
}

// shortID trims long session IDs for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
