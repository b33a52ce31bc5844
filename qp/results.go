// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// Status is the terminal state of a solve.
type Status int

const (
	// Unsolved no solve has run since init or cleanup
	Unsolved Status = iota
	// Solved both residuals are within tolerance
	Solved
	// PrimalInfeasible the constraints admit no point, Certificate holds [δy; δz]
	PrimalInfeasible
	// DualInfeasible the objective is unbounded below, Certificate holds δx
	DualInfeasible
	// MaxIterReached the iteration limit was hit, X Y Z hold the last iterate
	MaxIterReached
)

func (s Status) String() string {
	switch s {
	case Unsolved:
		return "unsolved"
	case Solved:
		return "solved"
	case PrimalInfeasible:
		return "primal infeasible"
	case DualInfeasible:
		return "dual infeasible"
	case MaxIterReached:
		return "max iterations reached"
	default:
		return "unknown"
	}
}

// Info summarizes the last solve.
type Info struct {
	Status    Status
	Iter      int // Outer iterations performed
	MuUpdates int // Number of proximal rebalancing

	Rho, MuEq, MuIn float64 // Proximal parameters at exit

	Objective      float64 // ½xᵀHx + gᵀx at the reported x
	PrimalResidual float64 // ‖[Ax - b; Cx - s]‖∞ with s the projection of Cx onto [l, u]
	DualResidual   float64 // ‖Hx + g + Aᵀy + Cᵀz‖∞

	SetupTime time.Duration // Time spent by the last init or update
	SolveTime time.Duration // Time spent by the last solve
	RunTime   time.Duration // SetupTime + SolveTime
}

// Results owns the solution of a QP object.
type Results struct {
	X           []float64 // Primal solution, length n
	Y           []float64 // Equality multipliers, length n_eq
	Z           []float64 // Inequality multipliers, length n_in
	Certificate []float64 // Infeasibility witness, empty unless infeasible
	Info        Info
}

// NewResults returns zeroed results for the given dimensions.
func NewResults(n, nEq, nIn int) Results {
	return Results{
		X: make([]float64, n),
		Y: make([]float64, nEq),
		Z: make([]float64, nIn),
	}
}

// Reset zeroes the solution and the info record while keeping the
// setup time of the last init or update.
func (r *Results) Reset() {
	clear(r.X)
	clear(r.Y)
	clear(r.Z)
	r.Certificate = r.Certificate[:0]
	r.Info = Info{SetupTime: r.Info.SetupTime}
}

// Equal reports whether both results hold the same vectors and info.
func (r *Results) Equal(o *Results) bool {
	return floats.Equal(r.X, o.X) && floats.Equal(r.Y, o.Y) && floats.Equal(r.Z, o.Z) &&
		floats.Equal(r.Certificate, o.Certificate) && r.Info == o.Info
}
