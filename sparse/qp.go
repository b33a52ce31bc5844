// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"fmt"
	"time"

	"github.com/curioloop/proxqp/linalg"
	"github.com/curioloop/proxqp/qp"
)

var _ qp.Solver[*linalg.CSC] = (*QP)(nil)

// QP is a sparse quadratic program together with its settings, results and
// solver workspace. The KKT system is solved by preconditioned conjugate
// gradient without forming it.
//
// The structures of H, A and C are fixed: by the mask given to NewWithMask,
// or by the last Init for objects created by New. Update only accepts values
// within them.
type QP struct {
	Model    Model
	Settings qp.Settings
	Results  qp.Results

	masked bool
	work   *qp.Workspace
	logger *qp.Logger
}

func checkDims(n, nEq, nIn int) (err error) {
	switch {
	case n <= 0:
		err = &qp.ConstructionError{Field: "dim", Reason: fmt.Sprintf("must greater than 0, got %d", n)}
	case nEq < 0:
		err = &qp.ConstructionError{Field: "n_eq", Reason: fmt.Sprintf("must not less than 0, got %d", nEq)}
	case nIn < 0:
		err = &qp.ConstructionError{Field: "n_in", Reason: fmt.Sprintf("must not less than 0, got %d", nIn)}
	}
	return
}

func newQP(h, a, c *linalg.Pattern, masked bool) *QP {
	m := NewModel(h, a, c)
	return &QP{
		Model:    *m,
		Settings: qp.DefaultSettings(),
		Results:  qp.NewResults(m.Dim, m.NEq, m.NIn),
		masked:   masked,
		work:     qp.NewWorkspace(m.Dim, m.NEq, m.NIn, qp.Iterative),
	}
}

// New creates a QP with n variables, nEq equality and nIn inequality
// constraints whose sparsity structure is taken from Init.
func New(n, nEq, nIn int) (*QP, error) {
	if err := checkDims(n, nEq, nIn); err != nil {
		return nil, err
	}
	return newQP(linalg.EmptyPattern(n, n), linalg.EmptyPattern(nEq, n), linalg.EmptyPattern(nIn, n), false), nil
}

// NewWithMask creates a QP whose sparsity structure is fixed by the masks of
// H, A and C. A nil a or c stands for an absent constraint block.
func NewWithMask(h, a, c *linalg.Pattern) (*QP, error) {
	if h == nil {
		return nil, &qp.ConstructionError{Field: "H_mask", Reason: "is nil"}
	}
	n, cols := h.Dims()
	if n != cols {
		return nil, &qp.ConstructionError{Field: "H_mask", Reason: fmt.Sprintf("has shape %d×%d, want square", n, cols)}
	}
	if a == nil {
		a = linalg.EmptyPattern(0, n)
	}
	if c == nil {
		c = linalg.EmptyPattern(0, n)
	}
	nEq, aCols := a.Dims()
	nIn, cCols := c.Dims()
	switch {
	case aCols != n:
		return nil, &qp.ConstructionError{Field: "A_mask", Reason: fmt.Sprintf("has %d columns, want %d", aCols, n)}
	case cCols != n:
		return nil, &qp.ConstructionError{Field: "C_mask", Reason: fmt.Sprintf("has %d columns, want %d", cCols, n)}
	}
	if err := checkDims(n, nEq, nIn); err != nil {
		return nil, err
	}
	return newQP(h, a, c, true), nil
}

// SetLogger attaches an iteration logger, nil restores the default
// selected by Settings.Verbose.
func (q *QP) SetLogger(l *qp.Logger) { q.logger = l }

// Masked reports whether the structure was fixed at construction.
func (q *QP) Masked() bool { return q.masked }

// Init replaces the model with the fields of d. Omitted matrices and vectors
// are zero, omitted bounds are infinite. The results are reset.
// On error the QP is left unchanged.
func (q *QP) Init(d qp.Data[*linalg.CSC], computePreconditioner bool, p qp.Proximal) error {
	start := time.Now()
	var m *Model
	if cur := &q.Model; q.masked {
		m = NewModel(cur.H.Structure(), cur.A.Structure(), cur.C.Structure())
	} else {
		m = NewModel(linalg.EmptyPattern(cur.Dim, cur.Dim), linalg.EmptyPattern(cur.NEq, cur.Dim), linalg.EmptyPattern(cur.NIn, cur.Dim))
	}
	if err := m.assign(d, q.masked); err != nil {
		return err
	}
	if err := q.work.Init(m, &q.Settings, p, computePreconditioner); err != nil {
		return err
	}
	q.Model = *m
	q.Results = qp.NewResults(m.Dim, m.NEq, m.NIn)
	q.Results.Info.SetupTime = time.Since(start)
	return nil
}

// Update overwrites the fields set in d and keeps the others. Matrix values
// outside the fixed structures yield a *qp.SparsityError. The results are
// kept and warm start the next solve. On error the QP is left unchanged.
func (q *QP) Update(d qp.Data[*linalg.CSC], updatePreconditioner bool, p qp.Proximal) error {
	if !q.work.Initialized() {
		return &qp.ConstructionError{Field: "model", Reason: "update called before init"}
	}
	start := time.Now()
	m := q.Model.Clone()
	if err := m.assign(d, true); err != nil {
		return err
	}
	if err := q.work.Update(m, &q.Settings, p, updatePreconditioner); err != nil {
		return err
	}
	q.Model = *m
	q.Results.Info.SetupTime = time.Since(start)
	return nil
}

// Solve runs the solver warm started from the current results.
// It panics when Init has not been called.
func (q *QP) Solve() {
	var none qp.Optional[[]float64]
	q.SolveFrom(none, none, none)
}

// SolveFrom runs the solver warm started from the given iterates, omitted
// ones are taken from the current results.
func (q *QP) SolveFrom(x, y, z qp.Optional[[]float64]) {
	q.work.Solve(&q.Model, &q.Settings, &q.Results, x, y, z, q.logger)
}

// Cleanup resets the results and the proximal parameters so that the next
// solve starts cold.
func (q *QP) Cleanup() {
	q.Results.Reset()
	q.work.Cleanup()
}

// IsValid reports whether the model is consistent.
func (q *QP) IsValid() bool { return q.Model.IsValid() }

// Equal reports whether both objects hold equal model, settings, results and
// solver state.
func (q *QP) Equal(o *QP) bool {
	if q == nil || o == nil {
		return q == o
	}
	if q.masked != o.masked || q.work.Initialized() != o.work.Initialized() {
		return false
	}
	s, t := q.work.State(), o.work.State()
	return q.Model.Equal(&o.Model) && q.Settings == o.Settings &&
		q.Results.Equal(&o.Results) && s.Equal(&t)
}
