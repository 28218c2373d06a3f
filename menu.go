package skt

import (
	"fmt"
	"io"

	"golang.org/x/term"

	"github.com/skt-project/skt-server/openpgpengine"
)

// pageSize is the number of catalog entries shown per menu page (spec.md
// §4.6's keystroke protocol: digits 1-8 select an entry on the current
// page, 9 advances the page).
const pageSize = 8

// Action is the menu's interpretation of a single keystroke.
type Action int

const (
	// ActionNone means the key was not recognized; optionally logged at
	// high verbosity, but otherwise ignored.
	ActionNone Action = iota
	// ActionQuit means Ctrl-C, Ctrl-D, q, Q, or Esc: initiate Closing.
	ActionQuit
	// ActionSelect means a digit 1-8 was pressed while Ready: commit to
	// Active and begin exporting the selected catalog entry.
	ActionSelect
	// ActionPageNext means digit 9: advance the cursor by pageSize,
	// wrapping to 0 past the end of the catalog.
	ActionPageNext
	// ActionSendFile means digit 0: reserved for a "send a file" feature
	// that is not implemented. Must be accepted without crashing (spec.md
	// §4.6).
	ActionSendFile
)

// ClassifyKey interprets one raw keystroke byte. selection is only
// meaningful when the returned Action is ActionSelect, and is the
// zero-based offset into the current page (0-7).
func ClassifyKey(b byte) (action Action, selection int) {
	switch b {
	case 0x03, 0x04, 'q', 'Q', 0x1b:
		return ActionQuit, 0
	case '9':
		return ActionPageNext, 0
	case '0':
		return ActionSendFile, 0
	}
	if b >= '1' && b <= '8' {
		return ActionSelect, int(b - '1')
	}
	return ActionNone, 0
}

// Menu renders paginated pages of the Key Catalog and tracks the
// pagination cursor invariant from spec.md §3: always a multiple of
// pageSize, always less than len(catalog) (or 0 when the catalog is
// empty).
type Menu struct {
	keys   []openpgpengine.KeyInfo
	cursor int
	out    io.Writer
}

// NewMenu constructs a Menu over keys, writing rendered pages to out.
func NewMenu(keys []openpgpengine.KeyInfo, out io.Writer) *Menu {
	return &Menu{keys: keys, out: out}
}

// Cursor returns the current pagination cursor.
func (m *Menu) Cursor() int {
	return m.cursor
}

// Advance moves to the next page, wrapping to 0 once the cursor would
// reach or pass the end of the catalog -- the pagination law from
// spec.md §8: "pressing 9 ⌈len/8⌉ times returns to 0".
func (m *Menu) Advance() {
	if m.cursor+pageSize >= len(m.keys) {
		m.cursor = 0
		return
	}
	m.cursor += pageSize
}

// Selected resolves a 0-7 selection on the current page to a catalog
// entry, or false if the page has no such entry (a short final page).
func (m *Menu) Selected(offset int) (openpgpengine.KeyInfo, bool) {
	idx := m.cursor + offset
	if idx < 0 || idx >= len(m.keys) {
		return openpgpengine.KeyInfo{}, false
	}
	return m.keys[idx], true
}

// Render writes the current page to the menu's output, per spec.md's
// invariant I3: displayed exactly on entry to Ready and after each
// pagination keypress.
func (m *Menu) Render() error {
	end := m.cursor + pageSize
	if end > len(m.keys) {
		end = len(m.keys)
	}
	for i := m.cursor; i < end; i++ {
		k := m.keys[i]
		userID := ""
		if len(k.UserIDs) > 0 {
			userID = k.UserIDs[0]
		}
		if _, err := fmt.Fprintf(m.out, "%d) %s %s\n", i-m.cursor+1, k.Fingerprint, userID); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(m.out, "9) more   q) quit")
	return err
}

// Terminal is a scoped acquisition of raw, non-echoing, single-keystroke
// terminal mode (C7), grounded on golang.org/x/term's raw-mode wrapper --
// the same package the rest of the retrieval pack (perkeep-perkeep,
// cezamee-Yoda) reaches for whenever it needs isatty/raw-mode handling,
// which the teacher itself never needed (obfs4 has no terminal UI).
type Terminal struct {
	fd       int
	oldState *term.State
}

// ErrTerminalUnavailable is returned when raw mode cannot be acquired.
// Per spec.md §7, this degrades the session to passive-only rather than
// failing outright.
var ErrTerminalUnavailable = fmt.Errorf("skt: terminal raw mode unavailable")

// NewTerminal acquires raw mode on fd. Restore MUST be called on every
// exit path (the scoped-acquisition-with-guaranteed-release contract from
// spec.md §4.7).
func NewTerminal(fd int) (*Terminal, error) {
	if !term.IsTerminal(fd) {
		return nil, ErrTerminalUnavailable
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTerminalUnavailable, err)
	}
	return &Terminal{fd: fd, oldState: old}, nil
}

// Restore returns the terminal to its prior mode.
func (t *Terminal) Restore() error {
	if t == nil || t.oldState == nil {
		return nil
	}
	return term.Restore(t.fd, t.oldState)
}

// ReadByte reads exactly one keystroke byte from r.
func ReadByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
