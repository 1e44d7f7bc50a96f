// internal/ansi/processor.go
//
// Package ansi turns raw terminal output into styled spans. It recognizes
// the escape sequence classes a remote shell emits (CSI, OSC, single
// character ESC and charset selection), keeps only SGR styling, and shows
// stray C0 control bytes in caret notation.

package ansi

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// Processor converts inbound chunks into spans. It carries the SGR state
// from one chunk to the next, so a color opened in one chunk applies to text
// arriving in a later one. A Processor belongs to one session and is not
// safe for concurrent use.
type Processor struct {
	style Style
}

func NewProcessor() *Processor {
	return &Processor{}
}

// Style returns the SGR state currently in effect.
func (p *Processor) Style() Style {
	return p.style
}

// Reset returns the style state to its defaults.
func (p *Processor) Reset() {
	p.style = Style{}
}

// Process scans one chunk and returns the spans to append to the scrollback.
// It never fails; malformed or truncated sequences are either dropped or kept
// as literal text.
func (p *Processor) Process(chunk string) []Span {
	tokens := scan(chunk)

	var (
		spans  []Span
		hadSGR bool
	)
	for _, tok := range tokens {
		if tok.isSGR {
			hadSGR = true
			p.style.apply(tok.sgr)
			continue
		}
		spans = append(spans, Span{Text: tok.text, Style: p.style})
	}

	if !hadSGR {
		// Nothing styled arrived in this chunk. The scanner has already
		// removed every sequence it knows; strip once more so nothing
		// unexpected reaches the surface.
		for i := range spans {
			if strings.IndexByte(spans[i].Text, esc) >= 0 {
				spans[i].Text = xansi.Strip(spans[i].Text)
			}
		}
	}
	return spans
}
