// internal/ansi/render.go

package ansi

import (
	"html"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HTML renders spans for embedding in a page. Text is always escaped; spans
// with any active attribute are wrapped in a styled <span>.
func HTML(spans []Span) string {
	var b strings.Builder
	for _, sp := range spans {
		text := html.EscapeString(sp.Text)
		if sp.Style.IsZero() {
			b.WriteString(text)
			continue
		}
		b.WriteString(`<span style="`)
		b.WriteString(css(sp.Style))
		b.WriteString(`">`)
		b.WriteString(text)
		b.WriteString("</span>")
	}
	return b.String()
}

func css(s Style) string {
	var decls []string
	if s.FG != "" {
		decls = append(decls, "color:"+string(s.FG))
	}
	if s.BG != "" {
		decls = append(decls, "background-color:"+string(s.BG))
	}
	if s.Bold {
		decls = append(decls, "font-weight:bold")
	}
	if s.Underline {
		decls = append(decls, "text-decoration:underline")
	}
	return strings.Join(decls, ";")
}

// Terminal renders spans with lipgloss for display inside a TUI.
func Terminal(spans []Span) string {
	var b strings.Builder
	for _, sp := range spans {
		if sp.Style.IsZero() {
			b.WriteString(sp.Text)
			continue
		}
		// Style each line on its own; lipgloss pads multi-line blocks to a
		// common width.
		st := lipglossStyle(sp.Style)
		for i, line := range strings.Split(sp.Text, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(st.Render(line))
			}
		}
	}
	return b.String()
}

// Plain concatenates span text with all styling dropped.
func Plain(spans []Span) string {
	var b strings.Builder
	for _, sp := range spans {
		b.WriteString(sp.Text)
	}
	return b.String()
}

func lipglossStyle(s Style) lipgloss.Style {
	st := lipgloss.NewStyle()
	if s.FG != "" {
		st = st.Foreground(lipgloss.Color(s.FG))
	}
	if s.BG != "" {
		st = st.Background(lipgloss.Color(s.BG))
	}
	if s.Bold {
		st = st.Bold(true)
	}
	if s.Underline {
		st = st.Underline(true)
	}
	return st
}
