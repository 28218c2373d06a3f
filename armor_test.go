package skt

import (
	"bytes"
	"testing"
)

const sampleBody = "xYYEeAoBnnBQ...sample-body...\n"

func wellFormedBlock(lineEnding string) string {
	return armorHeader + lineEnding + sampleBody + armorTrailer + lineEnding
}

func TestArmorFramerSingleBlockWholeInOneFeed(t *testing.T) {
	var f ArmorFramer
	f.Feed([]byte(wellFormedBlock("\n")))

	block, ok, err := f.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatal("expected a complete block")
	}
	if !bytes.Equal(block, []byte(wellFormedBlock("\n"))) {
		t.Fatalf("block = %q, want %q", block, wellFormedBlock("\n"))
	}
	if f.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", f.Pending())
	}
}

func TestArmorFramerCRLF(t *testing.T) {
	var f ArmorFramer
	f.Feed([]byte(wellFormedBlock("\r\n")))

	_, ok, err := f.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
}

func TestArmorFramerArbitraryChunking(t *testing.T) {
	full := []byte(wellFormedBlock("\n"))
	var f ArmorFramer
	var got []byte
	for i := 0; i < len(full); i++ {
		f.Feed(full[i : i+1])
		block, ok, err := f.Next()
		if err != nil {
			t.Fatalf("Next at byte %d: %v", i, err)
		}
		if ok {
			got = block
		}
	}
	if !bytes.Equal(got, full) {
		t.Fatalf("reassembled block = %q, want %q", got, full)
	}
}

func TestArmorFramerMultipleConcatenatedBlocks(t *testing.T) {
	full := wellFormedBlock("\n") + wellFormedBlock("\r\n")
	var f ArmorFramer
	f.Feed([]byte(full))

	var blocks [][]byte
	for {
		block, ok, err := f.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		blocks = append(blocks, block)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if !bytes.Equal(blocks[0], []byte(wellFormedBlock("\n"))) {
		t.Fatalf("block 0 = %q", blocks[0])
	}
	if !bytes.Equal(blocks[1], []byte(wellFormedBlock("\r\n"))) {
		t.Fatalf("block 1 = %q", blocks[1])
	}
}

func TestArmorFramerMalformedHeader(t *testing.T) {
	var f ArmorFramer
	f.Feed([]byte("hello world\n"))
	_, _, err := f.Next()
	if err != ErrMalformedArmor {
		t.Fatalf("Next error = %v, want %v", err, ErrMalformedArmor)
	}
}

func TestArmorFramerHeaderWithoutLineTerminator(t *testing.T) {
	var f ArmorFramer
	f.Feed([]byte(armorHeader + "X"))
	_, _, err := f.Next()
	if err != ErrMalformedArmor {
		t.Fatalf("Next error = %v, want %v", err, ErrMalformedArmor)
	}
}

func TestArmorFramerWaitsOnPartialTrailer(t *testing.T) {
	full := []byte(wellFormedBlock("\n"))
	partial := full[:len(full)-1] // withhold the final line terminator byte

	var f ArmorFramer
	f.Feed(partial)
	_, ok, err := f.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatal("expected framer to wait for the trailing line terminator")
	}

	f.Feed(full[len(full)-1:])
	_, ok, err = f.Next()
	if err != nil || !ok {
		t.Fatalf("Next after completing block: ok=%v err=%v", ok, err)
	}
}
