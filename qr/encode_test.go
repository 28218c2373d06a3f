package qr

import "testing"

func TestChooseVersionPicksSmallestFit(t *testing.T) {
	cases := []struct {
		length, wantVersion int
	}{
		{1, 1},
		{maxByteCapacity(1), 1},
		{maxByteCapacity(1) + 1, 2},
		{maxByteCapacity(9), 9},
		{maxByteCapacity(9) + 1, 10},
	}
	for _, tc := range cases {
		v, err := chooseVersion(tc.length)
		if err != nil {
			t.Fatalf("chooseVersion(%d): %v", tc.length, err)
		}
		if v != tc.wantVersion {
			t.Errorf("chooseVersion(%d) = %d, want %d", tc.length, v, tc.wantVersion)
		}
	}
}

func TestChooseVersionTooLong(t *testing.T) {
	if _, err := chooseVersion(maxByteCapacity(10) + 1); err == nil {
		t.Fatal("expected ErrTooLong for oversized input")
	}
}

func TestEncodeProducesSquareSymbol(t *testing.T) {
	data := []byte("OPENPGP+SKT://0123456789ABCDEF0123456789ABCDEF@192.0.2.1:9001")
	code, err := Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(code.Modules) != code.Size {
		t.Fatalf("Modules has %d rows, want %d", len(code.Modules), code.Size)
	}
	for i, row := range code.Modules {
		if len(row) != code.Size {
			t.Fatalf("row %d has %d columns, want %d", i, len(row), code.Size)
		}
	}
}

func TestEncodeFinderPatternsAreDarkRing(t *testing.T) {
	code, err := Encode([]byte("short"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	checkFinder := func(topRow, topCol int) {
		for r := 0; r < 7; r++ {
			for c := 0; c < 7; c++ {
				want := r == 0 || r == 6 || c == 0 || c == 6 || (r >= 2 && r <= 4 && c >= 2 && c <= 4)
				got := code.Modules[topRow+r][topCol+c]
				if got != want {
					t.Errorf("finder(%d,%d) module (%d,%d) = %v, want %v", topRow, topCol, r, c, got, want)
				}
			}
		}
	}
	checkFinder(0, 0)
	checkFinder(0, code.Size-7)
	checkFinder(code.Size-7, 0)
}

func TestRenderHasQuietZoneBorder(t *testing.T) {
	code, err := Encode([]byte("x"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := code.Render()
	if len(out) == 0 {
		t.Fatal("Render produced no output")
	}
	for _, c := range out[:code.Size+2*quietZone] {
		if c != ' ' && c != '\n' {
			t.Fatalf("expected top quiet-zone row to be blank, found %q", c)
		}
	}
}

func TestMaxByteCapacityIncreasesWithVersion(t *testing.T) {
	prev := 0
	for v := 1; v <= 10; v++ {
		cap := maxByteCapacity(v)
		if cap <= prev {
			t.Errorf("maxByteCapacity(%d) = %d, want > %d", v, cap, prev)
		}
		prev = cap
	}
}
