// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"fmt"
	"time"

	"github.com/curioloop/proxqp/linalg"
	"github.com/curioloop/proxqp/qp"
)

var _ qp.Solver[*linalg.Dense] = (*QP)(nil)

// QP is a dense quadratic program together with its settings, results and
// solver workspace. The KKT system is factorized by Cholesky.
//
// A QP must not be used from multiple goroutines at once, distinct QP
// objects are independent.
type QP struct {
	Model    Model
	Settings qp.Settings
	Results  qp.Results

	work   *qp.Workspace
	logger *qp.Logger
}

// New creates a QP with n variables, nEq equality and nIn inequality
// constraints. Init must be called before the first solve.
func New(n, nEq, nIn int) (q *QP, err error) {
	switch {
	case n <= 0:
		err = &qp.ConstructionError{Field: "dim", Reason: fmt.Sprintf("must greater than 0, got %d", n)}
	case nEq < 0:
		err = &qp.ConstructionError{Field: "n_eq", Reason: fmt.Sprintf("must not less than 0, got %d", nEq)}
	case nIn < 0:
		err = &qp.ConstructionError{Field: "n_in", Reason: fmt.Sprintf("must not less than 0, got %d", nIn)}
	}
	if err != nil {
		return
	}
	q = &QP{
		Model:    *NewModel(n, nEq, nIn),
		Settings: qp.DefaultSettings(),
		Results:  qp.NewResults(n, nEq, nIn),
		work:     qp.NewWorkspace(n, nEq, nIn, qp.Direct),
	}
	return
}

// SetLogger attaches an iteration logger, nil restores the default
// selected by Settings.Verbose.
func (q *QP) SetLogger(l *qp.Logger) { q.logger = l }

// Init replaces the model with the fields of d. Omitted matrices and vectors
// are zero, omitted bounds are infinite. The results are reset.
// On error the QP is left unchanged.
func (q *QP) Init(d qp.Data[*linalg.Dense], computePreconditioner bool, p qp.Proximal) error {
	start := time.Now()
	m := NewModel(q.Model.Dim, q.Model.NEq, q.Model.NIn)
	if err := m.assign(d); err != nil {
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

// Update overwrites the fields set in d and keeps the others. The results are
// kept and warm start the next solve. On error the QP is left unchanged.
func (q *QP) Update(d qp.Data[*linalg.Dense], updatePreconditioner bool, p qp.Proximal) error {
	if !q.work.Initialized() {
		return &qp.ConstructionError{Field: "model", Reason: "update called before init"}
	}
	start := time.Now()
	m := q.Model.Clone()
	if err := m.assign(d); err != nil {
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
// solve starts cold. The model, the settings and the preconditioner are kept.
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
	if q.work.Initialized() != o.work.Initialized() {
		return false
	}
	s, t := q.work.State(), o.work.State()
	return q.Model.Equal(&o.Model) && q.Settings == o.Settings &&
		q.Results.Equal(&o.Results) && s.Equal(&t)
}
