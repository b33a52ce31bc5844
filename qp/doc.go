// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qp is the engine shared by the dense and sparse QP objects.
//
// It solves the convex quadratic program
//
//	𝚖𝚒𝚗𝚒𝚖𝚒𝚣𝚎 ½xᵀHx + gᵀx
//	𝚜𝚞𝚋𝚓𝚎𝚌𝚝 𝚝𝚘 Ax = b
//	           l ≤ Cx ≤ u
//
// with a relaxed proximal ADMM on the augmented Lagrangian. The auxiliary
// variable s ∈ [l, u] stands for Cx and the equalities are penalized towards
// b, so every outer iteration solves one reduced KKT system in x, projects
// s onto the bounds and takes a dual ascent step on y and z. The penalties
// 1/μₑ and 1/μᵢ are rebalanced from the ratio of the primal and dual
// residuals, and ρ keeps the reduced system positive definite when H is only
// semi definite.
//
// The iteration runs on a Ruiz equilibrated copy of the problem while every
// termination test is evaluated in the caller's units. Besides convergence
// the loop stops on a primal infeasibility certificate (a dual step δ with
// [A; C]ᵀδ ≈ 0 and negative support) or a dual infeasibility certificate
// (a primal step δx with Hδx ≈ 0, gᵀδx < 0 and Cδx in the recession cone of
// the bounds).
//
// Reference:
//   - B. Stellato, G. Banjac, P. Goulart, A. Bemporad, S. Boyd.
//     OSQP: an operator splitting solver for quadratic programs.
//     Mathematical Programming Computation, 12(4), 637–672 (2020).
//   - A. Bambade, S. El-Kazdadi, A. Taylor, J. Carpentier.
//     PROX-QP: Yet another Quadratic Programming Solver for Robotics and beyond.
//     RSS 2022.
package qp
