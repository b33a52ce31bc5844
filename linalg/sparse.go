// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Pattern is the non-zero structure of a sparse matrix in compressed column
// form. Row indices are strictly increasing within each column.
type Pattern struct {
	rows, cols int
	colPtr     []int
	rowIdx     []int
}

// PatternError reports a non-zero entry that lies outside a fixed pattern.
type PatternError struct {
	Row, Col int
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("linalg: entry (%d,%d) outside sparsity pattern", e.Row, e.Col)
}

// NewPattern validates and wraps a compressed column structure.
func NewPattern(rows, cols int, colPtr, rowIdx []int) (*Pattern, error) {
	switch {
	case rows < 0 || cols < 0:
		return nil, errors.New("linalg: negative dimension")
	case len(colPtr) != cols+1:
		return nil, errors.New("linalg: column pointer length must be cols+1")
	case colPtr[0] != 0 || colPtr[cols] != len(rowIdx):
		return nil, errors.New("linalg: column pointer not match row indices")
	}
	for j := 0; j < cols; j++ {
		if colPtr[j] > colPtr[j+1] || colPtr[j+1] > len(rowIdx) {
			return nil, errors.New("linalg: column pointer must be non-decreasing")
		}
	}
	for j := 0; j < cols; j++ {
		for p := colPtr[j]; p < colPtr[j+1]; p++ {
			if r := rowIdx[p]; r < 0 || r >= rows || (p > colPtr[j] && r <= rowIdx[p-1]) {
				return nil, fmt.Errorf("linalg: invalid row index %d in column %d", r, j)
			}
		}
	}
	return &Pattern{rows: rows, cols: cols, colPtr: slices.Clone(colPtr), rowIdx: slices.Clone(rowIdx)}, nil
}

// PatternFromBool builds a pattern from a row-major boolean mask.
func PatternFromBool(rows, cols int, mask []bool) *Pattern {
	if len(mask) != rows*cols {
		panic("linalg: mask length not match dimension")
	}
	p := &Pattern{rows: rows, cols: cols, colPtr: make([]int, cols+1)}
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			if mask[i*cols+j] {
				p.rowIdx = append(p.rowIdx, i)
			}
		}
		p.colPtr[j+1] = len(p.rowIdx)
	}
	return p
}

// EmptyPattern returns a rows×cols pattern without entries.
func EmptyPattern(rows, cols int) *Pattern {
	return &Pattern{rows: rows, cols: cols, colPtr: make([]int, cols+1)}
}

func (p *Pattern) Dims() (r, c int) { return p.rows, p.cols }

// Nnz returns the number of structural non-zeros.
func (p *Pattern) Nnz() int { return len(p.rowIdx) }

// ColPtr returns the column pointers. The slice must not be modified.
func (p *Pattern) ColPtr() []int { return p.colPtr }

// RowIdx returns the row indices. The slice must not be modified.
func (p *Pattern) RowIdx() []int { return p.rowIdx }

// find returns the storage position of (i,j) or -1.
func (p *Pattern) find(i, j int) int {
	lo, hi := p.colPtr[j], p.colPtr[j+1]
	k := lo + sort.SearchInts(p.rowIdx[lo:hi], i)
	if k < hi && p.rowIdx[k] == i {
		return k
	}
	return -1
}

// Contains reports whether (i,j) is a structural non-zero.
func (p *Pattern) Contains(i, j int) bool {
	if uint(i) >= uint(p.rows) || uint(j) >= uint(p.cols) {
		return false
	}
	return p.find(i, j) >= 0
}

// Equal reports whether both patterns describe the same structure.
func (p *Pattern) Equal(o *Pattern) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.rows == o.rows && p.cols == o.cols &&
		slices.Equal(p.colPtr, o.colPtr) && slices.Equal(p.rowIdx, o.rowIdx)
}

// Clone returns a deep copy of p.
func (p *Pattern) Clone() *Pattern {
	return &Pattern{rows: p.rows, cols: p.cols, colPtr: slices.Clone(p.colPtr), rowIdx: slices.Clone(p.rowIdx)}
}

// CSC is a compressed sparse column matrix. Stored entries may hold zero
// values, the structure is what the pattern says.
type CSC struct {
	Pattern
	val []float64
}

// NewCSC creates a sparse matrix from compressed column arrays.
func NewCSC(rows, cols int, colPtr, rowIdx []int, val []float64) (*CSC, error) {
	p, err := NewPattern(rows, cols, colPtr, rowIdx)
	if err != nil {
		return nil, err
	}
	if len(val) != len(rowIdx) {
		return nil, errors.New("linalg: values length not match row indices")
	}
	return &CSC{Pattern: *p, val: slices.Clone(val)}, nil
}

// NewCSCPattern creates a zero-valued matrix with the structure of p.
func NewCSCPattern(p *Pattern) *CSC {
	return &CSC{Pattern: *p.Clone(), val: make([]float64, p.Nnz())}
}

// CSCFromDense keeps the non-zero elements of d.
func CSCFromDense(d *Dense) *CSC {
	r, c := d.Dims()
	m := &CSC{Pattern: Pattern{rows: r, cols: c, colPtr: make([]int, c+1)}}
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			if v := d.At(i, j); v != 0 {
				m.rowIdx = append(m.rowIdx, i)
				m.val = append(m.val, v)
			}
		}
		m.colPtr[j+1] = len(m.rowIdx)
	}
	return m
}

// Values returns the stored values aligned with RowIdx.
func (m *CSC) Values() []float64 { return m.val }

// Structure returns a copy of the non-zero pattern.
func (m *CSC) Structure() *Pattern { return m.Pattern.Clone() }

// Embed re-expresses m on the structure p. Entries of p absent from m are
// zero. A non-zero value of m outside p yields a *PatternError.
func (m *CSC) Embed(p *Pattern) (*CSC, error) {
	if m.rows != p.rows || m.cols != p.cols {
		return nil, errors.New("linalg: dimension mismatch")
	}
	out := NewCSCPattern(p)
	for j := 0; j < m.cols; j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			i, v := m.rowIdx[k], m.val[k]
			pos := p.find(i, j)
			if pos < 0 {
				if v != 0 {
					return nil, &PatternError{Row: i, Col: j}
				}
				continue
			}
			out.val[pos] = v
		}
	}
	return out, nil
}

// Symmetric compares every stored entry with its transposed position.
func (m *CSC) Symmetric(tol float64) bool {
	if m.rows != m.cols {
		return false
	}
	for j := 0; j < m.cols; j++ {
		for p := m.colPtr[j]; p < m.colPtr[j+1]; p++ {
			if i := m.rowIdx[p]; i != j && !nearlyEqual(m.val[p], m.At(j, i), tol) {
				return false
			}
		}
	}
	return true
}

func (m *CSC) At(i, j int) float64 {
	if uint(i) >= uint(m.rows) || uint(j) >= uint(m.cols) {
		panic("linalg: index out of range")
	}
	if k := m.find(i, j); k >= 0 {
		return m.val[k]
	}
	return 0
}

func (m *CSC) MulVecTo(dst []float64, trans bool, x []float64) {
	if trans {
		checkLen(m.cols, dst)
		checkLen(m.rows, x)
		for j := range dst {
			s := 0.0
			for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
				s += m.val[k] * x[m.rowIdx[k]]
			}
			dst[j] = s
		}
		return
	}
	checkLen(m.rows, dst)
	checkLen(m.cols, x)
	clear(dst)
	for j, xj := range x {
		if xj == 0 {
			continue
		}
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			dst[m.rowIdx[k]] += m.val[k] * xj
		}
	}
}

func (m *CSC) ColAbsMax(dst []float64) {
	checkLen(m.cols, dst)
	for j := range dst {
		dst[j] = math.Max(dst[j], floats.Norm(m.val[m.colPtr[j]:m.colPtr[j+1]], math.Inf(1)))
	}
}

func (m *CSC) RowAbsMax(dst []float64) {
	checkLen(m.rows, dst)
	for k, i := range m.rowIdx {
		dst[i] = math.Max(dst[i], math.Abs(m.val[k]))
	}
}

func (m *CSC) ScaleRowsCols(r, c []float64) {
	if r != nil {
		checkLen(m.rows, r)
	}
	if c != nil {
		checkLen(m.cols, c)
	}
	for j := 0; j < m.cols; j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			if r != nil {
				m.val[k] *= r[m.rowIdx[k]]
			}
			if c != nil {
				m.val[k] *= c[j]
			}
		}
	}
}

func (m *CSC) Scale(f float64) { floats.Scale(f, m.val) }

func (m *CSC) AddTo(dst *Dense) {
	if r, c := dst.Dims(); r != m.rows || c != m.cols {
		panic("linalg: dimension mismatch")
	}
	for j := 0; j < m.cols; j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			dst.data[m.rowIdx[k]*dst.cols+j] += m.val[k]
		}
	}
}

func (m *CSC) AddGramTo(dst *Dense, alpha float64) {
	if r, c := dst.Dims(); r != m.cols || c != m.cols {
		panic("linalg: dimension mismatch")
	}
	// (MᵀM)ᵢⱼ only couples columns sharing a row, so walk the transpose.
	t := m.transpose()
	for i := 0; i < t.cols; i++ {
		lo, hi := t.colPtr[i], t.colPtr[i+1]
		for p := lo; p < hi; p++ {
			row := dst.Row(t.rowIdx[p])
			for q := lo; q < hi; q++ {
				row[t.rowIdx[q]] += alpha * t.val[p] * t.val[q]
			}
		}
	}
}

func (m *CSC) GramDiag(dst []float64, alpha float64) {
	checkLen(m.cols, dst)
	for j := range dst {
		col := m.val[m.colPtr[j]:m.colPtr[j+1]]
		dst[j] += alpha * floats.Dot(col, col)
	}
}

func (m *CSC) Diag(dst []float64) {
	checkLen(min(m.rows, m.cols), dst)
	for i := range dst {
		dst[i] = m.At(i, i)
	}
}

func (m *CSC) transpose() *CSC {
	t := &CSC{
		Pattern: Pattern{rows: m.cols, cols: m.rows, colPtr: make([]int, m.rows+1), rowIdx: make([]int, len(m.rowIdx))},
		val:     make([]float64, len(m.val)),
	}
	for _, i := range m.rowIdx {
		t.colPtr[i+1]++
	}
	for i := 0; i < m.rows; i++ {
		t.colPtr[i+1] += t.colPtr[i]
	}
	next := slices.Clone(t.colPtr[:m.rows])
	for j := 0; j < m.cols; j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			p := next[m.rowIdx[k]]
			t.rowIdx[p], t.val[p] = j, m.val[k]
			next[m.rowIdx[k]]++
		}
	}
	return t
}

func (m *CSC) CloneMatrix() Matrix { return m.Clone() }

// Clone returns a deep copy of m.
func (m *CSC) Clone() *CSC {
	return &CSC{Pattern: *m.Pattern.Clone(), val: slices.Clone(m.val)}
}

// Equal reports whether both matrices share structure and stored values.
func (m *CSC) Equal(o *CSC) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Pattern.Equal(&o.Pattern) && floats.Equal(m.val, o.val)
}
