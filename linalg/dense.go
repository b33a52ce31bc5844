// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Dense is a row-major dense matrix. Matrices with zero rows are allowed and
// stand for an absent constraint block.
type Dense struct {
	rows, cols int
	data       []float64
}

// NewDense creates an r×c matrix backed by data in row-major order.
// A nil data allocates a zero matrix.
func NewDense(r, c int, data []float64) *Dense {
	if r < 0 || c < 0 {
		panic("linalg: negative dimension")
	}
	if data == nil {
		data = make([]float64, r*c)
	}
	if len(data) != r*c {
		panic("linalg: data length not match dimension")
	}
	return &Dense{rows: r, cols: c, data: data}
}

// NewDenseRows creates a matrix from a slice of equally long rows.
func NewDenseRows(c int, rows [][]float64) (*Dense, bool) {
	m := NewDense(len(rows), c, nil)
	for i, row := range rows {
		if len(row) != c {
			return nil, false
		}
		copy(m.data[i*c:], row)
	}
	return m, true
}

// Identity returns the n×n identity matrix.
func Identity(n int) *Dense {
	m := NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

func (m *Dense) Dims() (r, c int) { return m.rows, m.cols }

func (m *Dense) Symmetric(tol float64) bool {
	if m.rows != m.cols {
		return false
	}
	n := m.cols
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !nearlyEqual(m.data[i*n+j], m.data[j*n+i], tol) {
				return false
			}
		}
	}
	return true
}

func (m *Dense) At(i, j int) float64 {
	if uint(i) >= uint(m.rows) || uint(j) >= uint(m.cols) {
		panic("linalg: index out of range")
	}
	return m.data[i*m.cols+j]
}

func (m *Dense) Set(i, j int, v float64) {
	if uint(i) >= uint(m.rows) || uint(j) >= uint(m.cols) {
		panic("linalg: index out of range")
	}
	m.data[i*m.cols+j] = v
}

// RawData returns the backing slice in row-major order.
func (m *Dense) RawData() []float64 { return m.data }

// Row returns a view of row i.
func (m *Dense) Row(i int) []float64 { return m.data[i*m.cols : (i+1)*m.cols] }

func (m *Dense) MulVecTo(dst []float64, trans bool, x []float64) {
	if trans {
		checkLen(m.cols, dst)
		checkLen(m.rows, x)
		clear(dst)
		for i := 0; i < m.rows; i++ {
			if x[i] != 0 {
				floats.AddScaled(dst, x[i], m.Row(i))
			}
		}
		return
	}
	checkLen(m.rows, dst)
	checkLen(m.cols, x)
	for i := range dst {
		dst[i] = floats.Dot(m.Row(i), x)
	}
}

func (m *Dense) ColAbsMax(dst []float64) {
	checkLen(m.cols, dst)
	for i := 0; i < m.rows; i++ {
		for j, v := range m.Row(i) {
			dst[j] = math.Max(dst[j], math.Abs(v))
		}
	}
}

func (m *Dense) RowAbsMax(dst []float64) {
	checkLen(m.rows, dst)
	for i := range dst {
		dst[i] = math.Max(dst[i], floats.Norm(m.Row(i), math.Inf(1)))
	}
}

func (m *Dense) ScaleRowsCols(r, c []float64) {
	if r != nil {
		checkLen(m.rows, r)
	}
	if c != nil {
		checkLen(m.cols, c)
	}
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		if c != nil {
			floats.Mul(row, c)
		}
		if r != nil {
			floats.Scale(r[i], row)
		}
	}
}

func (m *Dense) Scale(f float64) { floats.Scale(f, m.data) }

func (m *Dense) AddTo(dst *Dense) {
	if dst.rows != m.rows || dst.cols != m.cols {
		panic("linalg: dimension mismatch")
	}
	floats.Add(dst.data, m.data)
}

func (m *Dense) AddGramTo(dst *Dense, alpha float64) {
	if dst.rows != m.cols || dst.cols != m.cols {
		panic("linalg: dimension mismatch")
	}
	for k := 0; k < m.rows; k++ {
		row := m.Row(k)
		for i, v := range row {
			if v != 0 {
				floats.AddScaled(dst.Row(i), alpha*v, row)
			}
		}
	}
}

func (m *Dense) GramDiag(dst []float64, alpha float64) {
	checkLen(m.cols, dst)
	for k := 0; k < m.rows; k++ {
		for j, v := range m.Row(k) {
			dst[j] += alpha * v * v
		}
	}
}

func (m *Dense) Diag(dst []float64) {
	checkLen(min(m.rows, m.cols), dst)
	for i := range dst {
		dst[i] = m.data[i*m.cols+i]
	}
}

func (m *Dense) CloneMatrix() Matrix { return m.Clone() }

// Clone returns a deep copy of m.
func (m *Dense) Clone() *Dense {
	return &Dense{rows: m.rows, cols: m.cols, data: append([]float64(nil), m.data...)}
}

// Equal reports whether both matrices have the same shape and elements.
func (m *Dense) Equal(o *Dense) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.rows == o.rows && m.cols == o.cols && floats.Equal(m.data, o.data)
}
