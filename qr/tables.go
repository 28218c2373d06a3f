package qr

// tables.go holds the fixed per-version structural constants from
// ISO/IEC 18004 needed for error correction level L, versions 1-10: block
// layout, alignment pattern centers, and remainder bit counts.

// blockLayout describes how a version's data codewords are split across
// Reed-Solomon blocks at EC level L.
type blockLayout struct {
	ecPerBlock   int
	group1Blocks int
	group1Data   int
	group2Blocks int
	group2Data   int
}

// versionLayouts is indexed by version-1 (versions 1 through 10).
var versionLayouts = [10]blockLayout{
	{7, 1, 19, 0, 0},   // v1
	{10, 1, 34, 0, 0},  // v2
	{15, 1, 55, 0, 0},  // v3
	{20, 1, 80, 0, 0},  // v4
	{26, 1, 108, 0, 0}, // v5
	{18, 2, 68, 0, 0},  // v6
	{20, 2, 78, 0, 0},  // v7
	{24, 2, 97, 0, 0},  // v8
	{30, 2, 116, 0, 0}, // v9
	{18, 2, 68, 2, 69}, // v10
}

func (l blockLayout) totalDataCodewords() int {
	return l.group1Blocks*l.group1Data + l.group2Blocks*l.group2Data
}

func (l blockLayout) totalBlocks() int {
	return l.group1Blocks + l.group2Blocks
}

func (l blockLayout) totalCodewords() int {
	return l.totalDataCodewords() + l.totalBlocks()*l.ecPerBlock
}

// alignmentCenters gives the alignment-pattern center coordinates for
// versions 2-10 (version 1 has none).
var alignmentCenters = map[int][]int{
	2:  {6, 18},
	3:  {6, 22},
	4:  {6, 26},
	5:  {6, 30},
	6:  {6, 34},
	7:  {6, 22, 38},
	8:  {6, 24, 42},
	9:  {6, 26, 46},
	10: {6, 28, 50},
}

// remainderBits is the count of unused bits after the last codeword that
// must be padded with zero when reading the bitstream into the matrix.
func remainderBits(version int) int {
	switch {
	case version == 1:
		return 0
	case version >= 2 && version <= 6:
		return 7
	default: // 7-10
		return 0
	}
}

func matrixSize(version int) int {
	return 17 + 4*version
}

// characterCountBits is the length, in bits, of the byte-mode character
// count indicator for a given version.
func characterCountBits(version int) int {
	if version <= 9 {
		return 8
	}
	return 16
}

// maxByteCapacity returns the largest byte-mode payload (post data-encoding
// overhead) that fits in this version at EC level L, used by
// chooseVersion to find the smallest fitting version.
func maxByteCapacity(version int) int {
	layout := versionLayouts[version-1]
	totalDataBits := layout.totalDataCodewords() * 8
	overheadBits := 4 + characterCountBits(version) // mode indicator + count
	if totalDataBits < overheadBits {
		return 0
	}
	return (totalDataBits - overheadBits) / 8
}

// BCH constants for format (15-bit) and version (18-bit) information, as
// specified in ISO/IEC 18004 Annex C/D.
const (
	formatGeneratorPoly = 0x537
	formatMask          = 0x5412
	versionGeneratorPoly = 0x1f25
)

// eccLevelL is the 2-bit error-correction-level indicator for level L used
// in the 5-bit format data field (ecc-level bits followed by 3 mask bits).
const eccLevelL = 1
