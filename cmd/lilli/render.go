package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ryanmello/lilli/internal/synth"
	"github.com/ryanmello/lilli/pkg/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	noteStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("243"))
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// renderResponse prints a reply with section titles and notes styled.
func renderResponse(w io.Writer, resp models.FinalResponse) {
	titles := make(map[string]bool, len(resp.Outputs))
	for _, o := range resp.Outputs {
		titles[synth.Title(o.Handler)+":"] = true
	}

	for _, line := range strings.Split(resp.Message, "\n") {
		switch {
		case titles[line]:
			line = titleStyle.Render(line)
		case line == synth.PartialBanner:
			line = bannerStyle.Render(line)
		case strings.HasPrefix(line, "Note: "), strings.HasPrefix(line, "Not completed: "):
			line = noteStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
