// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"fmt"
	"math"

	"github.com/curioloop/proxqp/linalg"
)

// Problem exposes the data of a QP instance in the caller's units.
type Problem interface {
	// Dims returns the number of variables, equality rows and inequality rows.
	Dims() (n, nEq, nIn int)
	// Matrices returns the cost matrix H and constraint matrices A and C.
	Matrices() (h, a, c linalg.Matrix)
	// Vectors returns the cost vector g, the right-hand side b and the bounds l, u.
	Vectors() (g, b, l, u []float64)
}

// Solver is the lifecycle shared by the dense and sparse QP objects.
type Solver[M linalg.Matrix] interface {
	// Init replaces the whole model, resets the results and sets the proximal parameters.
	Init(d Data[M], computePreconditioner bool, p Proximal) error
	// Update overwrites the given fields and keeps the results as warm start.
	Update(d Data[M], updatePreconditioner bool, p Proximal) error
	// Solve runs the solver warm started from the current results.
	Solve()
	// SolveFrom runs the solver warm started from the given iterates.
	SolveFrom(x, y, z Optional[[]float64])
	// Cleanup resets the results and the solver state.
	Cleanup()
	// IsValid reports whether the model is consistent.
	IsValid() bool
}

// CheckMatrix validates the shape of a matrix field.
func CheckMatrix(field string, m linalg.Matrix, rows, cols int) error {
	if r, c := m.Dims(); r != rows || c != cols {
		return &ConstructionError{Field: field, Reason: fmt.Sprintf("has shape %d×%d, want %d×%d", r, c, rows, cols)}
	}
	return nil
}

// CheckVector validates the length and values of a vector field.
func CheckVector(field string, v []float64, n int) error {
	if len(v) != n {
		return &ConstructionError{Field: field, Reason: fmt.Sprintf("has length %d, want %d", len(v), n)}
	}
	for i, x := range v {
		if math.IsNaN(x) {
			return &ConstructionError{Field: field, Reason: fmt.Sprintf("has NaN at %d", i)}
		}
	}
	return nil
}

// symmetryTol is the relative tolerance accepted between hᵢⱼ and hⱼᵢ.
const symmetryTol = 1e-10

// CheckSymmetric validates that a square matrix equals its transpose.
func CheckSymmetric(field string, m linalg.Matrix) error {
	if !m.Symmetric(symmetryTol) {
		return &ConstructionError{Field: field, Reason: "must be symmetric"}
	}
	return nil
}

// CheckBounds validates l ≤ u elementwise.
func CheckBounds(l, u []float64) error {
	for i := range l {
		if l[i] > u[i] {
			return &ConstructionError{Field: "l", Reason: fmt.Sprintf("l[%d]=%g exceeds u[%d]=%g", i, l[i], i, u[i])}
		}
	}
	return nil
}

// CheckFinite validates that no stored element of a matrix is NaN or infinite.
func CheckFinite(field string, m linalg.Matrix) error {
	_, c := m.Dims()
	probe := make([]float64, c)
	m.ColAbsMax(probe)
	for j, v := range probe {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConstructionError{Field: field, Reason: fmt.Sprintf("has non finite value in column %d", j)}
		}
	}
	return nil
}

// Objective evaluates ½xᵀHx + gᵀx.
func Objective(p Problem, x []float64) float64 {
	h, _, _ := p.Matrices()
	g, _, _, _ := p.Vectors()
	hx := make([]float64, len(x))
	h.MulVecTo(hx, false, x)
	f := 0.0
	for i := range x {
		f += x[i] * (0.5*hx[i] + g[i])
	}
	return f
}
