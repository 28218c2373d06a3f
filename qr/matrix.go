package qr

// matrixBuilder assembles a QR Code's module grid: function patterns
// (finder, separator, timing, alignment, dark module, format/version info
// reservations) followed by the masked data bitstream.
type matrixBuilder struct {
	size     int
	version  int
	value    [][]bool
	reserved [][]bool
}

func newMatrixBuilder(version int) *matrixBuilder {
	size := matrixSize(version)
	m := &matrixBuilder{size: size, version: version}
	m.value = make([][]bool, size)
	m.reserved = make([][]bool, size)
	for i := range m.value {
		m.value[i] = make([]bool, size)
		m.reserved[i] = make([]bool, size)
	}
	return m
}

func (m *matrixBuilder) clone() *matrixBuilder {
	c := &matrixBuilder{size: m.size, version: m.version}
	c.value = make([][]bool, m.size)
	c.reserved = make([][]bool, m.size)
	for i := range m.value {
		c.value[i] = append([]bool{}, m.value[i]...)
		c.reserved[i] = append([]bool{}, m.reserved[i]...)
	}
	return c
}

func (m *matrixBuilder) set(row, col int, v bool) {
	m.value[row][col] = v
	m.reserved[row][col] = true
}

func (m *matrixBuilder) reserve(row, col int) {
	m.reserved[row][col] = true
}

func (m *matrixBuilder) placeFunctionPatterns() {
	m.placeFinder(0, 0)
	m.placeFinder(0, m.size-7)
	m.placeFinder(m.size-7, 0)

	m.placeAlignmentPatterns()
	m.placeTiming()
	m.placeDarkModule()
	m.reserveFormatInfoArea()
	if m.version >= 7 {
		m.reserveVersionInfoArea()
	}
}

// placeFinder draws a 7x7 finder pattern with its one-module light
// separator border, anchored with its outer top-left corner at
// (topRow-1, topCol-1) when room allows (the separator extends outside the
// finder itself, clipped at the symbol edge).
func (m *matrixBuilder) placeFinder(topRow, topCol int) {
	for r := -1; r <= 7; r++ {
		for c := -1; c <= 7; c++ {
			row, col := topRow+r, topCol+c
			if row < 0 || row >= m.size || col < 0 || col >= m.size {
				continue
			}
			if r < 0 || r > 6 || c < 0 || c > 6 {
				m.set(row, col, false) // separator
				continue
			}
			dark := r == 0 || r == 6 || c == 0 || c == 6 || (r >= 2 && r <= 4 && c >= 2 && c <= 4)
			m.set(row, col, dark)
		}
	}
}

func (m *matrixBuilder) placeTiming() {
	for i := 8; i < m.size-8; i++ {
		dark := i%2 == 0
		if !m.reserved[6][i] {
			m.set(6, i, dark)
		}
		if !m.reserved[i][6] {
			m.set(i, 6, dark)
		}
	}
}

func (m *matrixBuilder) placeAlignmentPatterns() {
	centers := alignmentCenters[m.version]
	for _, r := range centers {
		for _, c := range centers {
			if m.reserved[r][c] {
				continue // overlaps a finder pattern's area
			}
			for dr := -2; dr <= 2; dr++ {
				for dc := -2; dc <= 2; dc++ {
					dark := dr == -2 || dr == 2 || dc == -2 || dc == 2 || (dr == 0 && dc == 0)
					m.set(r+dr, c+dc, dark)
				}
			}
		}
	}
}

func (m *matrixBuilder) placeDarkModule() {
	m.set(4*m.version+9, 8, true)
}

func (m *matrixBuilder) reserveFormatInfoArea() {
	for i := 0; i <= 8; i++ {
		m.reserve(8, i)
		m.reserve(i, 8)
	}
	for i := m.size - 8; i < m.size; i++ {
		m.reserve(8, i)
		m.reserve(i, 8)
	}
}

func (m *matrixBuilder) reserveVersionInfoArea() {
	for i := 0; i < 6; i++ {
		for j := 0; j < 3; j++ {
			m.reserve(i, m.size-11+j)
			m.reserve(m.size-11+j, i)
		}
	}
}

func bchDigitLength(n int) int {
	length := 0
	for n != 0 {
		length++
		n >>= 1
	}
	return length
}

func bchTypeInfo(data int) int {
	d := data << 10
	for bchDigitLength(d)-bchDigitLength(formatGeneratorPoly) >= 0 {
		d ^= formatGeneratorPoly << uint(bchDigitLength(d)-bchDigitLength(formatGeneratorPoly))
	}
	return ((data << 10) | d) ^ formatMask
}

func bchTypeNumber(data int) int {
	d := data << 12
	for bchDigitLength(d)-bchDigitLength(versionGeneratorPoly) >= 0 {
		d ^= versionGeneratorPoly << uint(bchDigitLength(d)-bchDigitLength(versionGeneratorPoly))
	}
	return (data << 12) | d
}

func (m *matrixBuilder) placeFormatInfo(mask int) {
	data := (eccLevelL << 3) | mask
	bits := bchTypeInfo(data)
	bitAt := func(i int) bool {
		return (bits>>uint(i))&1 == 1
	}

	// Copy A: around the top-left finder pattern.
	rows := []int{0, 1, 2, 3, 4, 5, 7, 8}
	for i, r := range rows {
		m.set(r, 8, bitAt(i))
	}
	cols := []int{8, 7, 5, 4, 3, 2, 1, 0}
	for i, c := range cols {
		m.set(8, c, bitAt(i+7))
	}
	// Bit 7 was written twice above (rows index 7 -> row8,col8, and cols
	// index 0 -> row8,col8); both encode the same bit so this is safe.

	// Copy B: split across the top-right and bottom-left finder patterns.
	for i := 0; i < 8; i++ {
		m.set(8, m.size-1-i, bitAt(i))
	}
	for i := 8; i < 15; i++ {
		m.set(m.size-15+i, 8, bitAt(i))
	}
}

func (m *matrixBuilder) placeVersionInfo(version int) {
	bits := bchTypeNumber(version)
	bitAt := func(i int) bool {
		return (bits>>uint(i))&1 == 1
	}
	for i := 0; i < 18; i++ {
		row := i / 3
		col := i % 3
		m.set(row, m.size-11+col, bitAt(i))
		m.set(m.size-11+col, row, bitAt(i))
	}
}

// dataModulePositions returns the coordinates of every non-reserved module
// in the zigzag order the bitstream is placed in: two-column-wide strips
// moving bottom-to-top then top-to-bottom, right to left, skipping the
// vertical timing column.
func (m *matrixBuilder) dataModulePositions() [][2]int {
	var positions [][2]int
	upward := true
	for col := m.size - 1; col > 0; col -= 2 {
		if col == 6 {
			col-- // skip the timing column
		}
		if upward {
			for row := m.size - 1; row >= 0; row-- {
				positions = appendIfFree(positions, m, row, col)
				positions = appendIfFree(positions, m, row, col-1)
			}
		} else {
			for row := 0; row < m.size; row++ {
				positions = appendIfFree(positions, m, row, col)
				positions = appendIfFree(positions, m, row, col-1)
			}
		}
		upward = !upward
	}
	return positions
}

func appendIfFree(positions [][2]int, m *matrixBuilder, row, col int) [][2]int {
	if m.reserved[row][col] {
		return positions
	}
	return append(positions, [2]int{row, col})
}

func maskFunc(mask, row, col int) bool {
	switch mask {
	case 0:
		return (row+col)%2 == 0
	case 1:
		return row%2 == 0
	case 2:
		return col%3 == 0
	case 3:
		return (row+col)%3 == 0
	case 4:
		return (row/2+col/3)%2 == 0
	case 5:
		return (row*col)%2+(row*col)%3 == 0
	case 6:
		return ((row*col)%2+(row*col)%3)%2 == 0
	default:
		return ((row+col)%2+(row*col)%3)%2 == 0
	}
}

func (m *matrixBuilder) placeData(bits []bool, mask int) {
	positions := m.dataModulePositions()
	for i, pos := range positions {
		var bit bool
		if i < len(bits) {
			bit = bits[i]
		}
		row, col := pos[0], pos[1]
		if maskFunc(mask, row, col) {
			bit = !bit
		}
		m.value[row][col] = bit
		m.reserved[row][col] = true
	}
}

// penaltyScore implements the four ISO/IEC 18004 mask-evaluation rules;
// the mask with the lowest total score is chosen as the symbol's mask.
func (m *matrixBuilder) penaltyScore() int {
	return m.penaltyRule1() + m.penaltyRule2() + m.penaltyRule3() + m.penaltyRule4()
}

func (m *matrixBuilder) penaltyRule1() int {
	score := 0
	countRuns := func(get func(i int) bool) {
		run := 1
		for i := 1; i < m.size; i++ {
			if get(i) == get(i-1) {
				run++
				continue
			}
			if run >= 5 {
				score += 3 + (run - 5)
			}
			run = 1
		}
		if run >= 5 {
			score += 3 + (run - 5)
		}
	}
	for r := 0; r < m.size; r++ {
		row := r
		countRuns(func(c int) bool { return m.value[row][c] })
	}
	for c := 0; c < m.size; c++ {
		col := c
		countRuns(func(r int) bool { return m.value[r][col] })
	}
	return score
}

func (m *matrixBuilder) penaltyRule2() int {
	score := 0
	for r := 0; r < m.size-1; r++ {
		for c := 0; c < m.size-1; c++ {
			v := m.value[r][c]
			if m.value[r][c+1] == v && m.value[r+1][c] == v && m.value[r+1][c+1] == v {
				score += 3
			}
		}
	}
	return score
}

func (m *matrixBuilder) penaltyRule3() int {
	pattern := []bool{true, false, true, true, true, false, true, false, false, false, false}
	matches := func(get func(i int) bool) bool {
		for i, want := range pattern {
			if get(i) != want {
				return false
			}
		}
		return true
	}

	score := 0
	for r := 0; r < m.size; r++ {
		row := r
		for c := 0; c+len(pattern) <= m.size; c++ {
			col := c
			if matches(func(i int) bool { return m.value[row][col+i] }) {
				score += 40
			}
		}
	}
	for c := 0; c < m.size; c++ {
		col := c
		for r := 0; r+len(pattern) <= m.size; r++ {
			row := r
			if matches(func(i int) bool { return m.value[row+i][col] }) {
				score += 40
			}
		}
	}
	return score
}

func (m *matrixBuilder) penaltyRule4() int {
	dark := 0
	total := m.size * m.size
	for r := 0; r < m.size; r++ {
		for c := 0; c < m.size; c++ {
			if m.value[r][c] {
				dark++
			}
		}
	}
	percent := dark * 100 / total
	prevMultiple := (percent / 5) * 5
	nextMultiple := prevMultiple + 5
	n1 := abs(prevMultiple-50) / 5
	n2 := abs(nextMultiple-50) / 5
	if n1 < n2 {
		return n1 * 10
	}
	return n2 * 10
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
