// internal/ansi/scanner.go

package ansi

import (
	"strconv"
	"strings"
)

// scanState is the position of the scanner inside an escape sequence.
type scanState int

const (
	stateGround scanState = iota
	stateEscape
	stateCSI
	stateOSC
	stateOSCEscape
	stateCharset
)

const (
	esc = 0x1b
	bel = 0x07
	del = 0x7f

	// maxSequence bounds how many bytes a CSI may collect before it is
	// treated as garbage and emitted literally.
	maxSequence = 64
)

// token is one unit produced by the scanner: either printable text or the
// parameter list of an SGR sequence.
type token struct {
	text  string
	sgr   []int
	isSGR bool
}

// scanner splits one chunk into text and SGR tokens, dropping every other
// control sequence and substituting C0 control bytes with caret notation.
// A sequence still open at the end of the chunk is emitted as literal text
// without its ESC byte.
type scanner struct {
	state scanState
	text  strings.Builder
	seq   strings.Builder
	out   []token
}

func scan(chunk string) []token {
	var s scanner
	for i := 0; i < len(chunk); i++ {
		s.step(chunk[i])
	}
	s.finish()
	return s.out
}

func (s *scanner) step(b byte) {
	switch s.state {
	case stateGround:
		s.ground(b)

	case stateEscape:
		switch {
		case b == '[':
			s.state = stateCSI
			s.seq.Reset()
		case b == ']':
			s.state = stateOSC
			s.seq.Reset()
		case b >= 0x20 && b <= 0x2f:
			// Charset selection and other nF escapes: intermediates up to a
			// final byte.
			s.state = stateCharset
		case b == esc:
			// A second ESC abandons the first.
		case b >= 0x30 && b <= 0x7e:
			// Single-character escapes (save/restore cursor, keypad modes,
			// reverse index, reset) carry nothing renderable.
			s.state = stateGround
		default:
			s.state = stateGround
			s.ground(b)
		}

	case stateCSI:
		switch {
		case b >= 0x40 && b <= 0x7e:
			s.state = stateGround
			s.endCSI(b)
		case b >= 0x20 && b <= 0x3f:
			s.seq.WriteByte(b)
			if s.seq.Len() > maxSequence {
				s.abort("[")
			}
		case b == esc:
			s.abort("[")
			s.state = stateEscape
		default:
			s.abort("[")
			s.ground(b)
		}

	case stateOSC:
		switch b {
		case bel:
			s.state = stateGround
		case esc:
			s.state = stateOSCEscape
		default:
			s.seq.WriteByte(b)
		}

	case stateOSCEscape:
		if b == '\\' {
			s.state = stateGround
			return
		}
		// Any other byte ends the OSC and starts a fresh escape.
		s.state = stateEscape
		s.step(b)

	case stateCharset:
		switch {
		case b >= 0x20 && b <= 0x2f:
		case b >= 0x30 && b <= 0x7e:
			s.state = stateGround
		default:
			s.state = stateGround
			s.ground(b)
		}
	}
}

// ground handles a byte outside any escape sequence.
func (s *scanner) ground(b byte) {
	switch {
	case b == esc:
		s.state = stateEscape
	case b == '\t':
		s.text.WriteString("    ")
	case b == '\n' || b == '\r':
		s.text.WriteByte(b)
	case b == 0x00 || b == del:
	case b < 0x20:
		s.text.WriteByte('^')
		s.text.WriteByte(b + 0x40)
	default:
		s.text.WriteByte(b)
	}
}

// endCSI closes a control sequence. Only plain SGR survives; private-mode
// toggles, cursor movement, erase, scroll region and line editing are dropped.
func (s *scanner) endCSI(final byte) {
	params := s.seq.String()
	s.seq.Reset()
	if final != 'm' || isPrivate(params) {
		return
	}
	s.flushText()
	s.out = append(s.out, token{sgr: parseParams(params), isSGR: true})
}

// abort emits an unfinished sequence as literal text.
func (s *scanner) abort(prefix string) {
	s.text.WriteString(prefix)
	s.text.WriteString(s.seq.String())
	s.seq.Reset()
	s.state = stateGround
}

func (s *scanner) finish() {
	switch s.state {
	case stateCSI:
		s.abort("[")
	case stateOSC, stateOSCEscape:
		s.abort("]")
	}
	s.state = stateGround
	s.flushText()
}

func (s *scanner) flushText() {
	if s.text.Len() == 0 {
		return
	}
	s.out = append(s.out, token{text: s.text.String()})
	s.text.Reset()
}

func isPrivate(params string) bool {
	if params == "" {
		return false
	}
	switch params[0] {
	case '?', '<', '=', '>':
		return true
	}
	// Intermediate bytes make it something other than SGR.
	return strings.ContainsAny(params, " !\"#$%&'()*+,-./")
}

// badParam stands in for a field that is not a usable number, so no code
// matches it.
const badParam = -1

// parseParams reads a ';' (or ':') separated list. Empty fields are 0.
func parseParams(params string) []int {
	fields := strings.Split(strings.ReplaceAll(params, ":", ";"), ";")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			out = append(out, 0)
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			n = badParam
		}
		out = append(out, n)
	}
	return out
}
