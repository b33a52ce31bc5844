// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linalg

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Operator computes dst = A x for a symmetric positive definite A.
type Operator func(dst, x []float64)

// CG is a Jacobi preconditioned conjugate gradient solver.
// The work vectors are kept between calls.
type CG struct {
	MaxIter int     // Iteration limit, 0 means 2n
	Tol     float64 // Stop when ‖b - A x‖₂ ≤ Tol (1 + ‖b‖₂)

	r, z, p, ap []float64
}

func (cg *CG) resize(n int) {
	if cap(cg.r) < n {
		cg.r = make([]float64, n)
		cg.z = make([]float64, n)
		cg.p = make([]float64, n)
		cg.ap = make([]float64, n)
	}
	cg.r, cg.z, cg.p, cg.ap = cg.r[:n], cg.z[:n], cg.p[:n], cg.ap[:n]
}

// Solve refines x towards the solution of A x = b starting from the given x.
// invDiag holds the inverse diagonal of A used as preconditioner.
func (cg *CG) Solve(apply Operator, invDiag, b, x []float64) (iter int, ok bool) {
	n := len(b)
	checkLen(n, x)
	checkLen(n, invDiag)
	cg.resize(n)
	r, z, p, ap := cg.r, cg.z, cg.p, cg.ap

	maxIter := cg.MaxIter
	if maxIter <= 0 {
		maxIter = 2 * n
	}
	tol := cg.Tol * (1 + floats.Norm(b, 2))

	apply(ap, x)
	floats.SubTo(r, b, ap) // r₀ = b - A x₀
	if floats.Norm(r, 2) <= tol {
		return 0, true
	}
	floats.MulTo(z, invDiag, r) // z₀ = M⁻¹ r₀
	copy(p, z)
	rho := floats.Dot(r, z)

	for iter = 1; iter <= maxIter; iter++ {
		apply(ap, p)
		pAp := floats.Dot(p, ap)
		if pAp <= 0 || math.IsNaN(pAp) {
			return iter, false
		}
		alpha := rho / pAp              // α = ρᵢ / (pᵢ · A pᵢ)
		floats.AddScaled(x, alpha, p)   // xᵢ = xᵢ₋₁ + α pᵢ
		floats.AddScaled(r, -alpha, ap) // rᵢ = rᵢ₋₁ - α A pᵢ
		if floats.Norm(r, 2) <= tol {
			return iter, true
		}
		floats.MulTo(z, invDiag, r)
		rhoNext := floats.Dot(r, z)
		floats.AddScaledTo(p, z, rhoNext/rho, p) // pᵢ₊₁ = z + β pᵢ
		rho = rhoNext
	}
	return maxIter, false
}
