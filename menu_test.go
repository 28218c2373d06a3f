package skt

import (
	"bytes"
	"testing"

	"github.com/skt-project/skt-server/openpgpengine"
)

func makeCatalog(n int) []openpgpengine.KeyInfo {
	keys := make([]openpgpengine.KeyInfo, n)
	for i := range keys {
		keys[i] = openpgpengine.KeyInfo{
			Fingerprint: fmtFingerprint(i),
			UserIDs:     []string{fmtFingerprint(i)},
		}
	}
	return keys
}

func fmtFingerprint(i int) string {
	return string(rune('A' + i%26))
}

func TestPaginationLawWrapsAfterCeilDivisionPresses(t *testing.T) {
	m := NewMenu(makeCatalog(20), &bytes.Buffer{})
	presses := (20 + pageSize - 1) / pageSize // ceil(20/8) = 3
	for i := 0; i < presses; i++ {
		m.Advance()
	}
	if m.Cursor() != 0 {
		t.Fatalf("cursor after %d advances = %d, want 0", presses, m.Cursor())
	}
}

func TestPaginationCursorAlwaysMultipleOf8(t *testing.T) {
	m := NewMenu(makeCatalog(20), &bytes.Buffer{})
	for i := 0; i < 10; i++ {
		if m.Cursor()%pageSize != 0 {
			t.Fatalf("cursor %d is not a multiple of %d", m.Cursor(), pageSize)
		}
		m.Advance()
	}
}

func TestPaginationSequence(t *testing.T) {
	m := NewMenu(makeCatalog(20), &bytes.Buffer{})
	want := []int{8, 16, 0, 8}
	for i, w := range want {
		m.Advance()
		if m.Cursor() != w {
			t.Fatalf("advance %d: cursor = %d, want %d", i, m.Cursor(), w)
		}
	}
}

func TestClassifyKey(t *testing.T) {
	cases := []struct {
		b          byte
		wantAction Action
		wantSel    int
	}{
		{0x03, ActionQuit, 0},
		{0x04, ActionQuit, 0},
		{'q', ActionQuit, 0},
		{'Q', ActionQuit, 0},
		{0x1b, ActionQuit, 0},
		{'1', ActionSelect, 0},
		{'8', ActionSelect, 7},
		{'9', ActionPageNext, 0},
		{'0', ActionSendFile, 0},
		{'x', ActionNone, 0},
	}
	for _, tc := range cases {
		action, sel := ClassifyKey(tc.b)
		if action != tc.wantAction || (action == ActionSelect && sel != tc.wantSel) {
			t.Errorf("ClassifyKey(%q) = (%v, %d), want (%v, %d)", tc.b, action, sel, tc.wantAction, tc.wantSel)
		}
	}
}

func TestSelectedRespectsShortFinalPage(t *testing.T) {
	m := NewMenu(makeCatalog(20), &bytes.Buffer{})
	m.Advance()
	m.Advance() // cursor = 16, only 4 entries (16-19) on this page
	if _, ok := m.Selected(3); !ok {
		t.Fatal("Selected(3) on a 4-entry final page should succeed")
	}
	if _, ok := m.Selected(4); ok {
		t.Fatal("Selected(4) on a 4-entry final page should fail")
	}
}

func TestRenderWritesPageAndFooter(t *testing.T) {
	var buf bytes.Buffer
	m := NewMenu(makeCatalog(3), &buf)
	if err := m.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("1) ")) {
		t.Fatalf("Render output missing entry 1: %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("9) more")) {
		t.Fatalf("Render output missing footer: %q", out)
	}
}
