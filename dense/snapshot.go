// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"fmt"

	"github.com/curioloop/proxqp/linalg"
	"github.com/curioloop/proxqp/qp"
	"github.com/fxamacker/cbor/v2"
)

type matrixWire struct {
	Rows int       `cbor:"1,keyasint"`
	Cols int       `cbor:"2,keyasint"`
	Data []float64 `cbor:"3,keyasint"`
}

type modelWire struct {
	Dim int        `cbor:"1,keyasint"`
	NEq int        `cbor:"2,keyasint"`
	NIn int        `cbor:"3,keyasint"`
	H   matrixWire `cbor:"4,keyasint"`
	G   []float64  `cbor:"5,keyasint"`
	A   matrixWire `cbor:"6,keyasint"`
	B   []float64  `cbor:"7,keyasint"`
	C   matrixWire `cbor:"8,keyasint"`
	L   []float64  `cbor:"9,keyasint"`
	U   []float64  `cbor:"10,keyasint"`
}

type qpWire struct {
	Model       modelWire   `cbor:"1,keyasint"`
	Settings    qp.Settings `cbor:"2,keyasint"`
	Results     qp.Results  `cbor:"3,keyasint"`
	Initialized bool        `cbor:"4,keyasint"`
	State       qp.State    `cbor:"5,keyasint"`
}

func toMatrixWire(m *linalg.Dense) matrixWire {
	r, c := m.Dims()
	return matrixWire{Rows: r, Cols: c, Data: m.RawData()}
}

func (w matrixWire) dense(field string) (*linalg.Dense, error) {
	if w.Rows < 0 || w.Cols < 0 || len(w.Data) != w.Rows*w.Cols {
		return nil, &qp.ConstructionError{Field: field, Reason: "has corrupted storage"}
	}
	return linalg.NewDense(w.Rows, w.Cols, w.Data), nil
}

func (m *Model) wire() modelWire {
	return modelWire{
		Dim: m.Dim, NEq: m.NEq, NIn: m.NIn,
		H: toMatrixWire(m.H), G: m.G,
		A: toMatrixWire(m.A), B: m.B,
		C: toMatrixWire(m.C), L: m.L, U: m.U,
	}
}

func (w *modelWire) model() (m *Model, err error) {
	m = &Model{
		G: w.G, B: w.B, L: w.L, U: w.U,
		Dim: w.Dim, NEq: w.NEq, NIn: w.NIn, NTotal: w.NEq + w.NIn,
	}
	if m.H, err = w.H.dense("H"); err != nil {
		return nil, err
	}
	if m.A, err = w.A.dense("A"); err != nil {
		return nil, err
	}
	if m.C, err = w.C.dense("C"); err != nil {
		return nil, err
	}
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
// The logger is not part of the snapshot.
func (q *QP) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(qpWire{
		Model:       q.Model.wire(),
		Settings:    q.Settings,
		Results:     q.Results,
		Initialized: q.work.Initialized(),
		State:       q.work.State(),
	})
}

// UnmarshalBinary restores a QP encoded by MarshalBinary. The decoded object
// is equal to the encoded one and solves from the same preconditioner.
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
	work := qp.NewWorkspace(m.Dim, m.NEq, m.NIn, qp.Direct)
	if w.Initialized {
		if err = work.Restore(m, w.State); err != nil {
			return err
		}
	}
	q.Model, q.Settings, q.Results = *m, w.Settings, w.Results
	q.work = work
	return nil
}
