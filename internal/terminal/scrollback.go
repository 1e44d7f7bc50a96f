// internal/terminal/scrollback.go

package terminal

import (
	"citspace/internal/ansi"
)

// Scrollback is the append-only record of everything written to the
// terminal surface. It only shrinks through Clear.
type Scrollback struct {
	spans []ansi.Span
}

func NewScrollback() *Scrollback {
	return &Scrollback{}
}

// Append adds spans in order. Empty spans are skipped.
func (s *Scrollback) Append(spans ...ansi.Span) {
	for _, sp := range spans {
		if sp.Text == "" {
			continue
		}
		s.spans = append(s.spans, sp)
	}
}

// AppendLine writes text followed by a newline in the given style.
func (s *Scrollback) AppendLine(text string, style ansi.Style) {
	s.Append(ansi.Span{Text: text + "\n", Style: style})
}

// Clear truncates the buffer to empty.
func (s *Scrollback) Clear() {
	s.spans = nil
}

// Len returns the number of spans held.
func (s *Scrollback) Len() int {
	return len(s.spans)
}

// Spans returns the buffer contents. The slice must not be modified.
func (s *Scrollback) Spans() []ansi.Span {
	return s.spans
}

// Plain returns the unstyled text, as copied to the clipboard.
func (s *Scrollback) Plain() string {
	return ansi.Plain(s.spans)
}

// HTML returns the buffer rendered as escaped, styled markup.
func (s *Scrollback) HTML() string {
	return ansi.HTML(s.spans)
}

// Terminal returns the buffer rendered for a TUI viewport.
func (s *Scrollback) Terminal() string {
	return ansi.Terminal(s.spans)
}
