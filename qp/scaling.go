// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"math"

	"github.com/curioloop/proxqp/linalg"
	"gonum.org/v1/gonum/floats"
)

const (
	minScaling = 1e-4
	maxScaling = 1e4
)

// Scaling is a diagonal equilibration of the problem:
//
//	H̄ = c D H D   ḡ = c D g
//	Ā = Eₑ A D    b̄ = Eₑ b
//	C̄ = Eᵢ C D    l̄ = Eᵢ l   ū = Eᵢ u
//
// Iterates map back by x = D x̄, y = Eₑ ȳ / c and z = Eᵢ z̄ / c.
type Scaling struct {
	D    []float64 // Primal scaling
	EEq  []float64 // Equality dual scaling
	EIn  []float64 // Inequality dual scaling
	Cost float64   // Objective scaling
}

// IdentityScaling returns a scaling that leaves the problem unchanged.
func IdentityScaling(n, nEq, nIn int) Scaling {
	s := Scaling{
		D:    make([]float64, n),
		EEq:  make([]float64, nEq),
		EIn:  make([]float64, nIn),
		Cost: one,
	}
	for _, v := range [][]float64{s.D, s.EEq, s.EIn} {
		for i := range v {
			v[i] = one
		}
	}
	return s
}

// Clone returns a deep copy of s.
func (s Scaling) Clone() Scaling {
	return Scaling{
		D:    append([]float64(nil), s.D...),
		EEq:  append([]float64(nil), s.EEq...),
		EIn:  append([]float64(nil), s.EIn...),
		Cost: s.Cost,
	}
}

// Equal reports whether both scalings are identical.
func (s *Scaling) Equal(o *Scaling) bool {
	return s.Cost == o.Cost && floats.Equal(s.D, o.D) && floats.Equal(s.EEq, o.EEq) && floats.Equal(s.EIn, o.EIn)
}

// limitScaling keeps a norm inside [minScaling, maxScaling], treating tiny
// norms as unit so that empty rows and columns are left alone.
func limitScaling(v float64) float64 {
	switch {
	case v < minScaling:
		return one
	case v > maxScaling:
		return maxScaling
	default:
		return v
	}
}

// scaledProblem is a private copy of the problem data in scaled units.
type scaledProblem struct {
	h, a, c    linalg.Matrix
	g, b, l, u []float64
}

func newScaledProblem(p Problem) *scaledProblem {
	h, a, c := p.Matrices()
	g, b, l, u := p.Vectors()
	clone := func(v []float64) []float64 { return append(make([]float64, 0, len(v)), v...) }
	return &scaledProblem{
		h: h.CloneMatrix(), a: a.CloneMatrix(), c: c.CloneMatrix(),
		g: clone(g), b: clone(b), l: clone(l), u: clone(u),
	}
}

// scale applies diag(d) and the dual scalings to the problem in place.
func (sp *scaledProblem) scale(d, eEq, eIn []float64, cost float64) {
	sp.h.ScaleRowsCols(d, d)
	sp.a.ScaleRowsCols(eEq, d)
	sp.c.ScaleRowsCols(eIn, d)
	floats.Mul(sp.g, d)
	floats.Mul(sp.b, eEq)
	floats.Mul(sp.l, eIn)
	floats.Mul(sp.u, eIn)
	if cost != one {
		sp.h.Scale(cost)
		floats.Scale(cost, sp.g)
	}
}

// equilibrate runs the modified Ruiz equilibration over the KKT matrix
//
//	⎡ H  Aᵀ  Cᵀ ⎤
//	⎢ A  0   0  ⎥
//	⎣ C  0   0  ⎦
//
// scaling every column by the inverse square root of its infinity norm, then
// rebalancing the objective so that its mean column norm is unit. The loop
// stops when no factor differs from one by more than accuracy.
func (sp *scaledProblem) equilibrate(maxIter int, accuracy float64) Scaling {
	n, nEq, nIn := len(sp.g), len(sp.b), len(sp.l)
	s := IdentityScaling(n, nEq, nIn)

	dp := make([]float64, n)
	de := make([]float64, nEq)
	di := make([]float64, nIn)
	hc := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		clear(dp)
		clear(de)
		clear(di)
		sp.h.ColAbsMax(dp)
		sp.a.ColAbsMax(dp)
		sp.c.ColAbsMax(dp)
		sp.a.RowAbsMax(de)
		sp.c.RowAbsMax(di)

		delta := zero
		for _, v := range [][]float64{dp, de, di} {
			for i := range v {
				v[i] = one / math.Sqrt(limitScaling(v[i]))
				delta = math.Max(delta, math.Abs(one-v[i]))
			}
		}

		sp.scale(dp, de, di, one)
		floats.Mul(s.D, dp)
		floats.Mul(s.EEq, de)
		floats.Mul(s.EIn, di)

		clear(hc)
		sp.h.ColAbsMax(hc)
		gamma := one / limitScaling(math.Max(floats.Sum(hc)/float64(n), floats.Norm(sp.g, math.Inf(1))))
		sp.h.Scale(gamma)
		floats.Scale(gamma, sp.g)
		s.Cost *= gamma

		if delta <= accuracy {
			break
		}
	}
	return s
}
