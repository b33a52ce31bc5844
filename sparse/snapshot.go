// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"fmt"

	"github.com/curioloop/proxqp/linalg"
	"github.com/curioloop/proxqp/qp"
	"github.com/fxamacker/cbor/v2"
)

type matrixWire struct {
	Rows   int       `cbor:"1,keyasint"`
	Cols   int       `cbor:"2,keyasint"`
	ColPtr []int     `cbor:"3,keyasint"`
	RowIdx []int     `cbor:"4,keyasint"`
	Val    []float64 `cbor:"5,keyasint"`
}

type modelWire struct {
	H matrixWire `cbor:"1,keyasint"`
	G []float64  `cbor:"2,keyasint"`
	A matrixWire `cbor:"3,keyasint"`
	B []float64  `cbor:"4,keyasint"`
	C matrixWire `cbor:"5,keyasint"`
	L []float64  `cbor:"6,keyasint"`
	U []float64  `cbor:"7,keyasint"`
}

type qpWire struct {
	Model       modelWire   `cbor:"1,keyasint"`
	Settings    qp.Settings `cbor:"2,keyasint"`
	Results     qp.Results  `cbor:"3,keyasint"`
	Masked      bool        `cbor:"4,keyasint"`
	Initialized bool        `cbor:"5,keyasint"`
	State       qp.State    `cbor:"6,keyasint"`
}

func toMatrixWire(m *linalg.CSC) matrixWire {
	r, c := m.Dims()
	return matrixWire{Rows: r, Cols: c, ColPtr: m.ColPtr(), RowIdx: m.RowIdx(), Val: m.Values()}
}

func (w matrixWire) csc(field string) (*linalg.CSC, error) {
	m, err := linalg.NewCSC(w.Rows, w.Cols, w.ColPtr, w.RowIdx, w.Val)
	if err != nil {
		return nil, &qp.ConstructionError{Field: field, Reason: err.Error()}
	}
	return m, nil
}

func (m *Model) wire() modelWire {
	return modelWire{
		H: toMatrixWire(m.H), G: m.G,
		A: toMatrixWire(m.A), B: m.B,
		C: toMatrixWire(m.C), L: m.L, U: m.U,
	}
}

func (w *modelWire) model() (m *Model, err error) {
	m = &Model{G: w.G, B: w.B, L: w.L, U: w.U}
	if m.H, err = w.H.csc("H"); err != nil {
		return nil, err
	}
	if m.A, err = w.A.csc("A"); err != nil {
		return nil, err
	}
	if m.C, err = w.C.csc("C"); err != nil {
		return nil, err
	}
	m.Dim, _ = m.H.Dims()
	m.NEq, _ = m.A.Dims()
	m.NIn, _ = m.C.Dims()
	m.NTotal = m.NEq + m.NIn
	m.HNnz, m.ANnz, m.CNnz = m.H.Nnz(), m.A.Nnz(), m.C.Nnz()
	if err = m.check(); err != nil {
		return nil, err
	}
	return m, nil
}

// MarshalBinary encodes the model as CBOR.
func (m *Model) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(m.wire())
}

// UnmarshalBinary decodes a model encoded by MarshalBinary.
func (m *Model) UnmarshalBinary(data []byte) error {
	var w modelWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	d, err := w.model()
	if err != nil {
		return err
	}
	*m = *d
	return nil
}

// MarshalBinary encodes the model, settings, results and solver state.
func (q *QP) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(qpWire{
		Model:       q.Model.wire(),
		Settings:    q.Settings,
		Results:     q.Results,
		Masked:      q.masked,
		Initialized: q.work.Initialized(),
		State:       q.work.State(),
	})
}

// UnmarshalBinary restores a QP encoded by MarshalBinary.
func (q *QP) UnmarshalBinary(data []byte) error {
	var w qpWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode qp: %w", err)
	}
	m, err := w.Model.model()
	if err != nil {
		return err
	}
	r := &w.Results
	if len(r.X) != m.Dim || len(r.Y) != m.NEq || len(r.Z) != m.NIn {
		return &qp.ConstructionError{Field: "results", Reason: "not match model dimension"}
	}
	work := qp.NewWorkspace(m.Dim, m.NEq, m.NIn, qp.Iterative)
	if w.Initialized {
		if err = work.Restore(m, w.State); err != nil {
			return err
		}
	}
	q.Model, q.Settings, q.Results = *m, w.Settings, w.Results
	q.masked, q.work, q.logger = w.Masked, work, nil
	return nil
}
