package dataset

import (
	"fmt"
	"math/bits"
)

// BitMatrix is a fixed-shape two-dimensional boolean matrix packed into
// uint64 words, row-major. It is written during construction and read-only
// afterwards.
//
// Out-of-range access is a programming error, not an input error: Get and
// Set panic instead of returning an error.
type BitMatrix struct {
	rows, cols int
	stride     int // words per row
	words      []uint64
}

// NewBitMatrix creates an all-false matrix with the given shape.
func NewBitMatrix(rows, cols int) *BitMatrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("bitmatrix: invalid shape %dx%d", rows, cols))
	}
	stride := (cols + 63) / 64
	return &BitMatrix{
		rows:   rows,
		cols:   cols,
		stride: stride,
		words:  make([]uint64, rows*stride),
	}
}

// NewBitMatrixFromRows creates a matrix from a slice of equally sized rows.
func NewBitMatrixFromRows(rows [][]bool) *BitMatrix {
	if len(rows) == 0 {
		return NewBitMatrix(0, 0)
	}
	m := NewBitMatrix(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			panic(fmt.Sprintf("bitmatrix: row %d has %d columns, want %d", i, len(row), m.cols))
		}
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m
}

// Dims returns the number of rows and columns.
func (m *BitMatrix) Dims() (rows, cols int) {
	return m.rows, m.cols
}

// Get returns the bit at (row, col). Panics if out of range.
func (m *BitMatrix) Get(row, col int) bool {
	m.check(row, col)
	return m.words[row*m.stride+col/64]&(1<<(uint(col)%64)) != 0
}

// Set writes the bit at (row, col). Panics if out of range.
func (m *BitMatrix) Set(row, col int, v bool) {
	m.check(row, col)
	if v {
		m.words[row*m.stride+col/64] |= 1 << (uint(col) % 64)
	} else {
		m.words[row*m.stride+col/64] &^= 1 << (uint(col) % 64)
	}
}

// RowCount returns the number of set bits in columns [0, cols) of a row.
func (m *BitMatrix) RowCount(row, cols int) int {
	count := 0
	for j := 0; j < cols; j++ {
		if m.Get(row, j) {
			count++
		}
	}
	return count
}

// rowPrefixKey returns the first cols bits of a row packed into a string.
// Rows with identical feature values produce identical keys, which is how
// equivalence classes of samples are discovered.
func (m *BitMatrix) rowPrefixKey(row, cols int) string {
	m.check(row, 0)
	if cols > m.cols {
		panic(fmt.Sprintf("bitmatrix: prefix %d exceeds %d columns", cols, m.cols))
	}
	nw := (cols + 63) / 64
	buf := make([]byte, nw*8)
	base := row * m.stride
	for w := 0; w < nw; w++ {
		word := m.words[base+w]
		if w == nw-1 && cols%64 != 0 {
			word &= (1 << (uint(cols) % 64)) - 1
		}
		for b := 0; b < 8; b++ {
			buf[w*8+b] = byte(word >> (8 * b))
		}
	}
	return string(buf)
}

// PopCount returns the total number of set bits in the matrix.
func (m *BitMatrix) PopCount() int {
	total := 0
	for _, w := range m.words {
		total += bits.OnesCount64(w)
	}
	return total
}

func (m *BitMatrix) check(row, col int) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic(fmt.Sprintf("bitmatrix: access (%d, %d) out of range %dx%d", row, col, m.rows, m.cols))
	}
}
