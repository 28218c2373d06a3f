package qr

import "strings"

// quietZone is the number of light modules of margin drawn on every side
// of the symbol: the 2-module margin print_qrcode() in the original
// implementation renders before handing the bitmap to the terminal, which
// is narrower than the 4-module quiet zone ISO/IEC 18004 specifies.
const quietZone = 2

// Render draws the symbol as half-block Unicode characters: each printed
// character cell covers two module rows and is a full block, an upper half
// block (U+2580), a lower half block or a space depending on which of the
// two modules are dark, halving the terminal rows needed to show the code
// compared to one character per module.
func (c *Code) Render() string {
	padded := c.withQuietZone()
	height := len(padded)
	width := len(padded[0])

	var b strings.Builder
	for row := 0; row < height; row += 2 {
		for col := 0; col < width; col++ {
			top := padded[row][col]
			bottom := false
			if row+1 < height {
				bottom = padded[row+1][col]
			}
			b.WriteRune(halfBlockRune(top, bottom))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (c *Code) withQuietZone() [][]bool {
	size := c.Size + 2*quietZone
	out := make([][]bool, size)
	for r := range out {
		out[r] = make([]bool, size)
	}
	for r := 0; r < c.Size; r++ {
		for col := 0; col < c.Size; col++ {
			out[r+quietZone][col+quietZone] = c.Modules[r][col]
		}
	}
	return out
}

// halfBlockRune picks the Unicode block element representing one module of
// dark-on-light on top and dark-on-light on bottom, rendered in a terminal
// that paints foreground-dark on a light background: a dark module means
// the character's corresponding half must appear filled.
func halfBlockRune(top, bottom bool) rune {
	switch {
	case top && bottom:
		return '█' // full block
	case top && !bottom:
		return '▀' // upper half block
	case !top && bottom:
		return '▄' // lower half block
	default:
		return ' '
	}
}
