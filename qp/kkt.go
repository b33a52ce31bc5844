// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"math"

	"github.com/curioloop/proxqp/linalg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Backend selects how the reduced KKT system
//
//	(H̄ + ρI + Āᵀ Ā / μₑ + C̄ᵀ C̄ / μᵢ) x̃ = 𝚛𝚑𝚜
//
// is solved at every iteration.
type Backend int

const (
	// Direct assembles the reduced matrix densely and factors it once per
	// change of the proximal parameters
	Direct Backend = iota
	// Iterative applies the reduced matrix implicitly and runs a Jacobi
	// preconditioned conjugate gradient warm started at the current x
	Iterative
)

func (b Backend) String() string {
	switch b {
	case Direct:
		return "direct"
	case Iterative:
		return "iterative"
	default:
		return "unknown"
	}
}

type kktSolver interface {
	// factor prepares the solver for the given problem and parameters.
	factor(sp *scaledProblem, rho, penEq, penIn float64, st *Settings)
	// solve overwrites x with the solution, x holds the starting guess on entry.
	// It reports the inner iterations and whether the solution is accurate.
	solve(x, rhs []float64) (iter int, ok bool)
}

func newKKT(b Backend, n, nEq, nIn int) kktSolver {
	if b == Iterative {
		return &iterativeKKT{
			diag: make([]float64, n),
			tn:   make([]float64, n),
			te:   make([]float64, nEq),
			ti:   make([]float64, nIn),
		}
	}
	d := &directKKT{k: linalg.NewDense(n, n, nil), diag: make([]float64, n)}
	if n > 0 {
		d.sym = mat.NewSymDense(n, d.k.RawData())
	}
	return d
}

// maxShift bounds the diagonal regularization attempts of the direct backend.
const maxShift = 16

type directKKT struct {
	k     *linalg.Dense
	sym   *mat.SymDense // Upper triangle view of k
	chol  mat.Cholesky
	ok    bool
	diag  []float64
	shift float64
}

func (d *directKKT) assemble(sp *scaledProblem, rho, penEq, penIn float64) {
	clear(d.k.RawData())
	sp.h.AddTo(d.k)
	sp.a.AddGramTo(d.k, penEq)
	sp.c.AddGramTo(d.k, penIn)
	for i := range d.diag {
		d.k.Set(i, i, d.k.At(i, i)+rho+d.shift)
	}
	d.k.Diag(d.diag)
}

func (d *directKKT) factor(sp *scaledProblem, rho, penEq, penIn float64, _ *Settings) {
	d.shift, d.ok = zero, false
	if d.sym == nil {
		return
	}
	for try := 0; ; try++ {
		d.assemble(sp, rho, penEq, penIn)
		if d.ok = d.chol.Factorize(d.sym); d.ok || try == maxShift {
			return
		}
		// H̄ is numerically indefinite, retry with a growing diagonal shift
		d.shift = math.Max(100*d.shift, 1e-10*(one+floats.Norm(d.diag, math.Inf(1))))
	}
}

func (d *directKKT) solve(x, rhs []float64) (int, bool) {
	if d.ok {
		copy(x, rhs)
		v := mat.NewVecDense(len(x), x)
		// A Condition error still leaves the solution in v.
		_ = d.chol.SolveVecTo(v, v)
		return 0, true
	}
	for i, v := range d.diag {
		if v > zero {
			x[i] = rhs[i] / v
		}
	}
	return 0, len(x) == 0
}

type iterativeKKT struct {
	sp                *scaledProblem
	rho, penEq, penIn float64

	diag       []float64 // Inverse diagonal of the reduced matrix
	tn, te, ti []float64
	cg         linalg.CG
}

func (it *iterativeKKT) factor(sp *scaledProblem, rho, penEq, penIn float64, st *Settings) {
	it.sp, it.rho, it.penEq, it.penIn = sp, rho, penEq, penIn
	sp.h.Diag(it.diag)
	sp.a.GramDiag(it.diag, penEq)
	sp.c.GramDiag(it.diag, penIn)
	for i, v := range it.diag {
		if v += rho; v > zero {
			it.diag[i] = one / v
		} else {
			it.diag[i] = one
		}
	}
	n := len(it.diag)
	it.cg.MaxIter = st.CGMaxIter
	if it.cg.MaxIter == 0 {
		it.cg.MaxIter = 10*n + 50
	}
	it.cg.Tol = st.CGTolerance
}

// apply computes dst = (H̄ + ρI + pₑ ĀᵀĀ + pᵢ C̄ᵀC̄) v.
func (it *iterativeKKT) apply(dst, v []float64) {
	sp := it.sp
	sp.h.MulVecTo(dst, false, v)
	floats.AddScaled(dst, it.rho, v)
	if len(it.te) > 0 {
		sp.a.MulVecTo(it.te, false, v)
		sp.a.MulVecTo(it.tn, true, it.te)
		floats.AddScaled(dst, it.penEq, it.tn)
	}
	if len(it.ti) > 0 {
		sp.c.MulVecTo(it.ti, false, v)
		sp.c.MulVecTo(it.tn, true, it.ti)
		floats.AddScaled(dst, it.penIn, it.tn)
	}
}

func (it *iterativeKKT) solve(x, rhs []float64) (int, bool) {
	return it.cg.Solve(it.apply, it.diag, rhs, x)
}
