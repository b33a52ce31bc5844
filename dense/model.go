// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/proxqp/linalg"
	"github.com/curioloop/proxqp/qp"
	"gonum.org/v1/gonum/floats"
)

// Model holds the data of a dense QP
//
//	minimize   ½xᵀHx + gᵀx
//	subject to Ax = b
//	           l ≤ Cx ≤ u
//
// with x ∈ ℝⁿ, n_eq equality rows and n_in inequality rows.
// An infinite bound stands for an absent one.
type Model struct {
	H *linalg.Dense // n×n symmetric cost matrix
	G []float64     // Cost vector
	A *linalg.Dense // n_eq×n equality matrix
	B []float64     // Equality right-hand side
	C *linalg.Dense // n_in×n inequality matrix
	L []float64     // Lower bounds of Cx
	U []float64     // Upper bounds of Cx

	Dim    int // Primal dimension n
	NEq    int // Number of equality constraints
	NIn    int // Number of inequality constraints
	NTotal int // NEq + NIn
}

// NewModel creates a model with zero matrices and vectors and unbounded
// inequality rows.
func NewModel(n, nEq, nIn int) *Model {
	m := &Model{
		H: linalg.NewDense(n, n, nil),
		G: make([]float64, n),
		A: linalg.NewDense(nEq, n, nil),
		B: make([]float64, nEq),
		C: linalg.NewDense(nIn, n, nil),
		L: make([]float64, nIn),
		U: make([]float64, nIn),

		Dim: n, NEq: nEq, NIn: nIn, NTotal: nEq + nIn,
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

// check verifies the dimensions and the bounds.
func (m *Model) check() error {
	n, nEq, nIn := m.Dim, m.NEq, m.NIn
	switch {
	case n <= 0 || nEq < 0 || nIn < 0:
		return &qp.ConstructionError{Field: "dim", Reason: fmt.Sprintf("(%d,%d,%d) out of range", n, nEq, nIn)}
	case m.NTotal != nEq+nIn:
		return &qp.ConstructionError{Field: "n_total", Reason: fmt.Sprintf("is %d, want %d", m.NTotal, nEq+nIn)}
	case m.H == nil:
		return &qp.ConstructionError{Field: "H", Reason: "is nil"}
	case m.A == nil:
		return &qp.ConstructionError{Field: "A", Reason: "is nil"}
	case m.C == nil:
		return &qp.ConstructionError{Field: "C", Reason: "is nil"}
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

// validate extends check with the finiteness of the data handed to the solver.
func (m *Model) validate() error {
	if err := m.check(); err != nil {
		return err
	}
	for _, err := range []error{
		qp.CheckFinite("H", m.H),
		qp.CheckFinite("A", m.A),
		qp.CheckFinite("C", m.C),
		checkFiniteVector("g", m.G),
		checkFiniteVector("b", m.B),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func checkFiniteVector(field string, v []float64) error {
	for i, x := range v {
		if math.IsInf(x, 0) {
			return &qp.ConstructionError{Field: field, Reason: fmt.Sprintf("has infinite value at %d", i)}
		}
	}
	return nil
}

// IsValid reports whether all matrices and vectors agree with the
// dimensions and l ≤ u holds elementwise.
func (m *Model) IsValid() bool { return m.check() == nil }

// Equal reports whether both models have the same dimensions and data.
func (m *Model) Equal(o *Model) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Dim == o.Dim && m.NEq == o.NEq && m.NIn == o.NIn && m.NTotal == o.NTotal &&
		m.H.Equal(o.H) && m.A.Equal(o.A) && m.C.Equal(o.C) &&
		floats.Equal(m.G, o.G) && floats.Equal(m.B, o.B) &&
		floats.Equal(m.L, o.L) && floats.Equal(m.U, o.U)
}

// Clone returns a deep copy of m.
func (m *Model) Clone() *Model {
	c := *m
	if m.H != nil {
		c.H = m.H.Clone()
	}
	if m.A != nil {
		c.A = m.A.Clone()
	}
	if m.C != nil {
		c.C = m.C.Clone()
	}
	c.G, c.B = slices.Clone(m.G), slices.Clone(m.B)
	c.L, c.U = slices.Clone(m.L), slices.Clone(m.U)
	return &c
}

// assign copies the fields set in d into the model.
func (m *Model) assign(d qp.Data[*linalg.Dense]) error {
	n, nEq, nIn := m.Dim, m.NEq, m.NIn
	for _, f := range []struct {
		name string
		dst  **linalg.Dense
		src  qp.Optional[*linalg.Dense]
		rows int
	}{
		{"H", &m.H, d.H, n},
		{"A", &m.A, d.A, nEq},
		{"C", &m.C, d.C, nIn},
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
		*f.dst = v.Clone()
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
