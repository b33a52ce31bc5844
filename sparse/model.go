// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/proxqp/linalg"
	"github.com/curioloop/proxqp/qp"
	"gonum.org/v1/gonum/floats"
)

// Model holds the data of a sparse QP
//
//	minimize   ½xᵀHx + gᵀx
//	subject to Ax = b
//	           l ≤ Cx ≤ u
//
// in compressed sparse column form. H stores both triangles.
// The *Nnz fields record the structural non-zero count of each matrix.
type Model struct {
	H *linalg.CSC
	G []float64
	A *linalg.CSC
	B []float64
	C *linalg.CSC
	L []float64
	U []float64

	Dim, NEq, NIn, NTotal int
	HNnz, ANnz, CNnz      int
}

// NewModel creates a model on the given structures with zero values and
// unbounded inequality rows.
func NewModel(h, a, c *linalg.Pattern) *Model {
	n, _ := h.Dims()
	nEq, _ := a.Dims()
	nIn, _ := c.Dims()
	m := &Model{
		H: linalg.NewCSCPattern(h),
		G: make([]float64, n),
		A: linalg.NewCSCPattern(a),
		B: make([]float64, nEq),
		C: linalg.NewCSCPattern(c),
		L: make([]float64, nIn),
		U: make([]float64, nIn),

		Dim: n, NEq: nEq, NIn: nIn, NTotal: nEq + nIn,
		HNnz: h.Nnz(), ANnz: a.Nnz(), CNnz: c.Nnz(),
	}
	for i := range m.L {
		m.L[i] = math.Inf(-1)
		m.U[i] = math.Inf(1)
	}
	return m
}

func (m *Model) Dims() (n, nEq, nIn int) { return m.Dim, m.NEq, m.NIn }

func (m *Model) Matrices() (h, a, c linalg.Matrix) { return m.H, m.A, m.C }

func (m *Model) Vectors() (g, b, l, u []float64) { return m.G, m.B, m.L, m.U }

func (m *Model) check() error {
	n, nEq, nIn := m.Dim, m.NEq, m.NIn
	switch {
	case n <= 0 || nEq < 0 || nIn < 0:
		return &qp.ConstructionError{Field: "dim", Reason: fmt.Sprintf("(%d,%d,%d) out of range", n, nEq, nIn)}
	case m.NTotal != nEq+nIn:
		return &qp.ConstructionError{Field: "n_total", Reason: fmt.Sprintf("is %d, want %d", m.NTotal, nEq+nIn)}
	case m.H == nil || m.A == nil || m.C == nil:
		return &qp.ConstructionError{Field: "model", Reason: "has nil matrix"}
	case m.HNnz != m.H.Nnz():
		return &qp.ConstructionError{Field: "H_nnz", Reason: fmt.Sprintf("is %d, want %d", m.HNnz, m.H.Nnz())}
	case m.ANnz != m.A.Nnz():
		return &qp.ConstructionError{Field: "A_nnz", Reason: fmt.Sprintf("is %d, want %d", m.ANnz, m.A.Nnz())}
	case m.CNnz != m.C.Nnz():
		return &qp.ConstructionError{Field: "C_nnz", Reason: fmt.Sprintf("is %d, want %d", m.CNnz, m.C.Nnz())}
	}
	for _, err := range []error{
		qp.CheckMatrix("H", m.H, n, n),
		qp.CheckSymmetric("H", m.H),
		qp.CheckMatrix("A", m.A, nEq, n),
		qp.CheckMatrix("C", m.C, nIn, n),
		qp.CheckVector("g", m.G, n),
		qp.CheckVector("b", m.B, nEq),
		qp.CheckVector("l", m.L, nIn),
		qp.CheckVector("u", m.U, nIn),
	} {
		if err != nil {
			return err
		}
	}
	return qp.CheckBounds(m.L, m.U)
}

func (m *Model) validate() error {
	if err := m.check(); err != nil {
		return err
	}
	for _, err := range []error{
		qp.CheckFinite("H", m.H),
		qp.CheckFinite("A", m.A),
		qp.CheckFinite("C", m.C),
	} {
		if err != nil {
			return err
		}
	}
	for _, v := range []struct {
		name string
		val  []float64
	}{{"g", m.G}, {"b", m.B}} {
		if i := slices.IndexFunc(v.val, func(x float64) bool { return math.IsInf(x, 0) }); i >= 0 {
			return &qp.ConstructionError{Field: v.name, Reason: fmt.Sprintf("has infinite value at %d", i)}
		}
	}
	return nil
}

// IsValid reports whether the matrices and vectors agree with the dimensions,
// the non-zero counts match the structures and l ≤ u holds elementwise.
func (m *Model) IsValid() bool { return m.check() == nil }

// Equal reports whether both models have the same dimensions, structures and values.
func (m *Model) Equal(o *Model) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Dim == o.Dim && m.NEq == o.NEq && m.NIn == o.NIn && m.NTotal == o.NTotal &&
		m.HNnz == o.HNnz && m.ANnz == o.ANnz && m.CNnz == o.CNnz &&
		m.H.Equal(o.H) && m.A.Equal(o.A) && m.C.Equal(o.C) &&
		floats.Equal(m.G, o.G) && floats.Equal(m.B, o.B) &&
		floats.Equal(m.L, o.L) && floats.Equal(m.U, o.U)
}

// Clone returns a deep copy of m.
func (m *Model) Clone() *Model {
	c := *m
	c.H, c.A, c.C = m.H.Clone(), m.A.Clone(), m.C.Clone()
	c.G, c.B = slices.Clone(m.G), slices.Clone(m.B)
	c.L, c.U = slices.Clone(m.L), slices.Clone(m.U)
	return &c
}

// assign copies the fields set in d into the model. With embed set the
// matrices are expressed on the current structures, otherwise they replace
// them.
func (m *Model) assign(d qp.Data[*linalg.CSC], embed bool) error {
	n, nEq, nIn := m.Dim, m.NEq, m.NIn
	for _, f := range []struct {
		name string
		dst  **linalg.CSC
		nnz  *int
		src  qp.Optional[*linalg.CSC]
		rows int
	}{
		{"H", &m.H, &m.HNnz, d.H, n},
		{"A", &m.A, &m.ANnz, d.A, nEq},
		{"C", &m.C, &m.CNnz, d.C, nIn},
	} {
		v, ok := f.src.Get()
		if !ok {
			continue
		}
		if v == nil {
			return &qp.ConstructionError{Field: f.name, Reason: "is nil"}
		}
		if err := qp.CheckMatrix(f.name, v, f.rows, n); err != nil {
			return err
		}
		if !embed {
			*f.dst, *f.nnz = v.Clone(), v.Nnz()
			continue
		}
		e, err := v.Embed(&(*f.dst).Pattern)
		if err != nil {
			var pe *linalg.PatternError
			if errors.As(err, &pe) {
				return &qp.SparsityError{Matrix: f.name, Row: pe.Row, Col: pe.Col}
			}
			return err
		}
		*f.dst = e
	}
	for _, f := range []struct {
		name string
		dst  *[]float64
		src  qp.Optional[[]float64]
		size int
	}{
		{"g", &m.G, d.G, n},
		{"b", &m.B, d.B, nEq},
		{"l", &m.L, d.L, nIn},
		{"u", &m.U, d.U, nIn},
	} {
		v, ok := f.src.Get()
		if !ok {
			continue
		}
		if err := qp.CheckVector(f.name, v, f.size); err != nil {
			return err
		}
		*f.dst = slices.Clone(v)
	}
	return m.validate()
}
