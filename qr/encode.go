package qr

import "fmt"

// Code is an encoded QR Code symbol: a square grid of modules, true meaning
// a dark (set) module.
type Code struct {
	Size    int
	Modules [][]bool
}

// ErrTooLong is returned when data does not fit in any supported version
// (1 through 10) at error correction level L.
type ErrTooLong int

func (e ErrTooLong) Error() string {
	return fmt.Sprintf("qr: %d bytes exceeds the largest supported symbol (version 10, level L)", int(e))
}

// Encode builds a QR Code symbol for data in byte mode at error correction
// level L, choosing the smallest version (1-10) that fits.
func Encode(data []byte) (*Code, error) {
	version, err := chooseVersion(len(data))
	if err != nil {
		return nil, err
	}

	bits := encodeData(data, version)
	codewords := bitsToCodewords(bits)
	finalCodewords := interleaveBlocks(codewords, version)

	m := newMatrixBuilder(version)
	m.placeFunctionPatterns()
	dataBits := bytesToBitList(finalCodewords)
	dataBits = append(dataBits, make([]bool, remainderBits(version))...)

	bestMask := -1
	var bestModules [][]bool
	bestPenalty := -1
	for mask := 0; mask < 8; mask++ {
		candidate := m.clone()
		candidate.placeData(dataBits, mask)
		candidate.placeFormatInfo(mask)
		if version >= 7 {
			candidate.placeVersionInfo(version)
		}
		penalty := candidate.penaltyScore()
		if bestMask == -1 || penalty < bestPenalty {
			bestMask = mask
			bestPenalty = penalty
			bestModules = candidate.value
		}
	}
	_ = bestMask

	return &Code{Size: m.size, Modules: bestModules}, nil
}

func chooseVersion(dataLen int) (int, error) {
	for v := 1; v <= 10; v++ {
		if dataLen <= maxByteCapacity(v) {
			return v, nil
		}
	}
	return 0, ErrTooLong(dataLen)
}

// encodeData builds the full bit sequence for a byte-mode segment: mode
// indicator, character count, data, terminator, bit padding, and codeword
// padding, sized to exactly fill the chosen version's data capacity.
func encodeData(data []byte, version int) []bool {
	var bits []bool

	appendBits := func(value, length int) {
		for i := length - 1; i >= 0; i-- {
			bits = append(bits, (value>>uint(i))&1 == 1)
		}
	}

	appendBits(0b0100, 4) // byte mode indicator
	appendBits(len(data), characterCountBits(version))
	for _, b := range data {
		appendBits(int(b), 8)
	}

	capacityBits := versionLayouts[version-1].totalDataCodewords() * 8

	// Terminator: up to 4 zero bits.
	for i := 0; i < 4 && len(bits) < capacityBits; i++ {
		bits = append(bits, false)
	}
	// Pad to a byte boundary.
	for len(bits)%8 != 0 {
		bits = append(bits, false)
	}
	// Pad bytes, alternating 0xEC and 0x11, until the symbol is full.
	padBytes := [2]byte{0xec, 0x11}
	for i := 0; len(bits) < capacityBits; i++ {
		appendBits(int(padBytes[i%2]), 8)
	}

	return bits
}

func bitsToCodewords(bits []bool) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		var b byte
		for j := 0; j < 8; j++ {
			b <<= 1
			if bits[i*8+j] {
				b |= 1
			}
		}
		out[i] = b
	}
	return out
}

func bytesToBitList(data []byte) []bool {
	bits := make([]bool, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (b>>uint(i))&1 == 1)
		}
	}
	return bits
}

// interleaveBlocks splits codewords into the version's Reed-Solomon blocks,
// computes each block's error-correction codewords, and interleaves data
// and EC codewords the way the symbol's bitstream expects: data codewords
// column-by-column across blocks, then EC codewords the same way.
func interleaveBlocks(codewords []byte, version int) []byte {
	layout := versionLayouts[version-1]

	type block struct {
		data []byte
		ec   []byte
	}

	var blocks []block
	offset := 0
	addBlocks := func(count, size int) {
		for i := 0; i < count; i++ {
			d := codewords[offset : offset+size]
			offset += size
			ec := reedSolomonRemainder(d, layout.ecPerBlock)
			blocks = append(blocks, block{data: d, ec: ec})
		}
	}
	addBlocks(layout.group1Blocks, layout.group1Data)
	addBlocks(layout.group2Blocks, layout.group2Data)

	var out []byte
	maxData := layout.group1Data
	if layout.group2Data > maxData {
		maxData = layout.group2Data
	}
	for i := 0; i < maxData; i++ {
		for _, b := range blocks {
			if i < len(b.data) {
				out = append(out, b.data[i])
			}
		}
	}
	for i := 0; i < layout.ecPerBlock; i++ {
		for _, b := range blocks {
			out = append(out, b.ec[i])
		}
	}
	return out
}
