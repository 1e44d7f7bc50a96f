// internal/terminal/history.go

package terminal

// notBrowsing is the history cursor value when the user is typing a fresh
// line rather than recalling an old one.
const notBrowsing = -1

// History keeps submitted commands for ArrowUp/ArrowDown recall.
type History struct {
	entries []string
	cursor  int
}

func NewHistory() *History {
	return &History{cursor: notBrowsing}
}

// Add records a submitted command unless it repeats the previous entry, and
// stops browsing. It reports whether the command was stored.
func (h *History) Add(cmd string) bool {
	h.cursor = notBrowsing
	if cmd == "" {
		return false
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return false
	}
	h.entries = append(h.entries, cmd)
	return true
}

// Up moves toward older entries and stops at the oldest. ok is false when
// there is nothing to recall.
func (h *History) Up() (cmd string, ok bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == notBrowsing:
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Down moves toward newer entries. Moving past the newest leaves browsing
// and returns an empty line. ok is false when not browsing.
func (h *History) Down() (cmd string, ok bool) {
	if h.cursor == notBrowsing {
		return "", false
	}
	if h.cursor < len(h.entries)-1 {
		h.cursor++
		return h.entries[h.cursor], true
	}
	h.cursor = notBrowsing
	return "", true
}

// Entries returns the stored commands, oldest first.
func (h *History) Entries() []string {
	return h.entries
}

// Cursor returns the browsing position, or -1 when not browsing.
func (h *History) Cursor() int {
	return h.cursor
}

// Reset discards all entries.
func (h *History) Reset() {
	h.entries = nil
	h.cursor = notBrowsing
}
