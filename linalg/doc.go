// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linalg provides the matrix storage and the linear solvers used by
// the QP engine: a row-major dense matrix, a compressed sparse column matrix
// with a fixed non-zero pattern and a preconditioned conjugate gradient.
//
// Both matrix types implement Matrix, which only exposes the kernels needed by
// equilibration and by the reduced KKT system, so the engine never depends on
// the storage layout.
package linalg
