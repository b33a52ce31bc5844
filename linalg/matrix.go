// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import "math"

// Matrix is the set of kernels the QP engine needs from a matrix.
//
// Methods named *AbsMax accumulate: dst[k] = max(dst[k], |m|) so that the
// norms of stacked blocks can be gathered into a single vector.
type Matrix interface {
	// Dims returns the number of rows and columns.
	Dims() (r, c int)
	// At returns the element at row i and column j.
	At(i, j int) float64
	// MulVecTo computes dst = M x, or dst = Mᵀ x when trans is true.
	MulVecTo(dst []float64, trans bool, x []float64)
	// ColAbsMax accumulates the infinity norm of every column into dst.
	ColAbsMax(dst []float64)
	// RowAbsMax accumulates the infinity norm of every row into dst.
	RowAbsMax(dst []float64)
	// ScaleRowsCols computes M = diag(r) M diag(c). A nil slice means identity.
	ScaleRowsCols(r, c []float64)
	// Scale multiplies every element by f.
	Scale(f float64)
	// AddTo computes dst += M for a matrix of the same shape.
	AddTo(dst *Dense)
	// AddGramTo computes dst += α MᵀM.
	AddGramTo(dst *Dense, alpha float64)
	// GramDiag computes dst += α diag(MᵀM).
	GramDiag(dst []float64, alpha float64)
	// Diag copies the main diagonal into dst.
	Diag(dst []float64)
	// Symmetric reports whether M is square and every pair mᵢⱼ, mⱼᵢ differs
	// by at most tol (1 + max(|mᵢⱼ|, |mⱼᵢ|)).
	Symmetric(tol float64) bool
	// CloneMatrix returns a deep copy.
	CloneMatrix() Matrix
}

func nearlyEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*(1+math.Max(math.Abs(a), math.Abs(b)))
}

func checkLen(n int, v []float64) {
	if len(v) != n {
		panic("linalg: vector length not match matrix dimension")
	}
}
