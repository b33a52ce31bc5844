// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"math"
	"testing"

	"github.com/curioloop/proxqp/dense"
	"github.com/curioloop/proxqp/linalg"
	"github.com/curioloop/proxqp/qp"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

var inf = math.Inf(1)

func csc(r, c int, data ...float64) *linalg.CSC {
	return linalg.CSCFromDense(linalg.NewDense(r, c, data))
}

func TestUnconstrained(t *testing.T) {
	q, err := New(2, 0, 0)
	require.NoError(t, err)
	err = q.Init(qp.Data[*linalg.CSC]{
		H: qp.Some(csc(2, 2, 1, 0, 0, 1)),
		G: qp.Some([]float64{1, 1}),
	}, true, qp.Proximal{})
	require.NoError(t, err)
	q.Solve()

	r := &q.Results
	switch {
	case r.Info.Status != qp.Solved:
		t.Fatal("TestUnconstrained: Not Converge")
	case !floats.EqualApprox(r.X, []float64{-1, -1}, 1e-4):
		t.Fatalf("TestUnconstrained: Wrong Solution %v", r.X)
	}
	require.Equal(t, 2, q.Model.HNnz)
}

func TestBoundActive(t *testing.T) {
	q, err := New(1, 0, 1)
	require.NoError(t, err)
	err = q.Init(qp.Data[*linalg.CSC]{
		H: qp.Some(csc(1, 1, 1)),
		C: qp.Some(csc(1, 1, 1)),
		L: qp.Some([]float64{2}),
		U: qp.Some([]float64{10}),
	}, true, qp.Proximal{})
	require.NoError(t, err)
	q.Solve()

	r := &q.Results
	switch {
	case r.Info.Status != qp.Solved:
		t.Fatal("TestBoundActive: Not Converge")
	case !floats.EqualApprox(r.X, []float64{2}, 1e-4):
		t.Fatalf("TestBoundActive: Wrong Solution %v", r.X)
	}
}

func TestPrimalInfeasible(t *testing.T) {
	q, err := New(1, 2, 0)
	require.NoError(t, err)
	err = q.Init(qp.Data[*linalg.CSC]{
		A: qp.Some(csc(2, 1, 1, 1)),
		B: qp.Some([]float64{1, -1}),
	}, true, qp.Proximal{})
	require.NoError(t, err)
	q.Solve()

	require.Equal(t, qp.PrimalInfeasible, q.Results.Info.Status)
	dy := q.Results.Certificate
	require.Len(t, dy, 2)
	require.InDelta(t, 0, dy[0]+dy[1], 1e-6)
	require.Negative(t, floats.Dot(q.Model.B, dy))
}

func TestSparsityViolation(t *testing.T) {
	// diagonal mask with k = 2 non-zeros
	mask := linalg.PatternFromBool(2, 2, []bool{true, false, false, true})
	q, err := NewWithMask(mask, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, q.Model.HNnz)
	require.True(t, q.Masked())

	require.NoError(t, q.Init(qp.Data[*linalg.CSC]{H: qp.Some(csc(2, 2, 2, 0, 0, 1))}, true, qp.Proximal{}))
	before := q.Model.Clone()

	err = q.Update(qp.Data[*linalg.CSC]{H: qp.Some(csc(2, 2, 2, 1, 1, 1))}, true, qp.Proximal{})
	require.ErrorIs(t, err, qp.ErrSparsityViolation)
	var se *qp.SparsityError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "H", se.Matrix)
	require.Equal(t, 1, se.Row)
	require.Equal(t, 0, se.Col)
	require.True(t, before.Equal(&q.Model))

	// init is bound to the mask as well
	err = q.Init(qp.Data[*linalg.CSC]{H: qp.Some(csc(2, 2, 1, 1, 1, 1))}, true, qp.Proximal{})
	require.ErrorIs(t, err, qp.ErrSparsityViolation)

	// values inside the mask are accepted, a zero may drop out of the input
	require.NoError(t, q.Update(qp.Data[*linalg.CSC]{H: qp.Some(csc(2, 2, 3, 0, 0, 0))}, true, qp.Proximal{}))
	require.Equal(t, 2, q.Model.H.Nnz())
	require.Equal(t, []float64{3, 0}, q.Model.H.Values())
}

func TestStructureFromInit(t *testing.T) {
	q, err := New(2, 0, 0)
	require.NoError(t, err)
	require.False(t, q.Masked())

	require.NoError(t, q.Init(qp.Data[*linalg.CSC]{H: qp.Some(csc(2, 2, 1, 0, 0, 1))}, true, qp.Proximal{}))
	err = q.Update(qp.Data[*linalg.CSC]{H: qp.Some(csc(2, 2, 1, 0.5, 0.5, 1))}, true, qp.Proximal{})
	require.ErrorIs(t, err, qp.ErrSparsityViolation)

	// a new init replaces the structure
	require.NoError(t, q.Init(qp.Data[*linalg.CSC]{H: qp.Some(csc(2, 2, 1, 0.5, 0.5, 1))}, true, qp.Proximal{}))
	require.Equal(t, 4, q.Model.HNnz)
	require.NoError(t, q.Update(qp.Data[*linalg.CSC]{H: qp.Some(csc(2, 2, 2, 0.5, 0.5, 2))}, false, qp.Proximal{}))
}

func TestNewWithMask(t *testing.T) {
	_, err := NewWithMask(nil, nil, nil)
	require.ErrorIs(t, err, qp.ErrConstruction)
	_, err = NewWithMask(linalg.EmptyPattern(2, 3), nil, nil)
	require.ErrorIs(t, err, qp.ErrConstruction)
	_, err = NewWithMask(linalg.EmptyPattern(2, 2), linalg.EmptyPattern(1, 3), nil)
	require.ErrorIs(t, err, qp.ErrConstruction)
	_, err = New(0, 0, 0)
	require.ErrorIs(t, err, qp.ErrConstruction)

	q, err := NewWithMask(linalg.EmptyPattern(2, 2), linalg.EmptyPattern(1, 2), linalg.EmptyPattern(3, 2))
	require.NoError(t, err)
	require.Equal(t, []int{2, 1, 3, 4}, []int{q.Model.Dim, q.Model.NEq, q.Model.NIn, q.Model.NTotal})
	require.True(t, q.IsValid())
}

func TestModelValidity(t *testing.T) {
	m := NewModel(linalg.EmptyPattern(2, 2), linalg.EmptyPattern(1, 2), linalg.EmptyPattern(1, 2))
	require.True(t, m.IsValid())
	require.True(t, m.Equal(m))

	bad := m.Clone()
	bad.HNnz = 1
	require.False(t, bad.IsValid())

	bad = m.Clone()
	bad.L[0], bad.U[0] = 1, -1
	require.False(t, bad.IsValid())

	bad = m.Clone()
	bad.G = bad.G[:1]
	require.False(t, bad.IsValid())

	o := m.Clone()
	require.True(t, m.Equal(o))
	o.B[0] = 1
	require.False(t, m.Equal(o))

	o = m.Clone()
	o.H = csc(2, 2, 1, 0, 0, 0)
	o.HNnz = 1
	require.True(t, o.IsValid())
	require.False(t, m.Equal(o))

	o.H = csc(2, 2, 1, 1, 0, 1)
	o.HNnz = 3
	require.False(t, o.IsValid())
}

func TestMatchesDense(t *testing.T) {
	// min ½‖x‖² - [1 2 3]ᵀx s.t. x₁+x₂+x₃ = 3, x₃ ≤ 1.5
	h, g := linalg.Identity(3), []float64{-1, -2, -3}
	a, b := linalg.NewDense(1, 3, []float64{1, 1, 1}), []float64{3}
	c, u := linalg.NewDense(1, 3, []float64{0, 0, 1}), []float64{1.5}

	d, err := dense.New(3, 1, 1)
	require.NoError(t, err)
	d.Settings.EpsAbs = 1e-7
	require.NoError(t, d.Init(qp.Data[*linalg.Dense]{
		H: qp.Some(h), G: qp.Some(g), A: qp.Some(a), B: qp.Some(b), C: qp.Some(c), U: qp.Some(u),
	}, true, qp.Proximal{}))
	d.Solve()

	s, err := New(3, 1, 1)
	require.NoError(t, err)
	s.Settings.EpsAbs = 1e-7
	require.NoError(t, s.Init(qp.Data[*linalg.CSC]{
		H: qp.Some(linalg.CSCFromDense(h)), G: qp.Some(g),
		A: qp.Some(linalg.CSCFromDense(a)), B: qp.Some(b),
		C: qp.Some(linalg.CSCFromDense(c)), U: qp.Some(u),
	}, true, qp.Proximal{}))
	s.Solve()

	require.Equal(t, qp.Solved, d.Results.Info.Status)
	require.Equal(t, qp.Solved, s.Results.Info.Status)
	require.InDeltaSlice(t, d.Results.X, s.Results.X, 1e-5)
	require.InDeltaSlice(t, d.Results.Y, s.Results.Y, 1e-5)
	require.InDeltaSlice(t, d.Results.Z, s.Results.Z, 1e-5)
	require.InDeltaSlice(t, []float64{0.25, 1.25, 1.5}, s.Results.X, 1e-5)
}

func TestLifecycle(t *testing.T) {
	q, err := New(3, 1, 1)
	require.NoError(t, err)
	require.NoError(t, q.Init(qp.Data[*linalg.CSC]{
		H: qp.Some(csc(3, 3, 1, 0, 0, 0, 1, 0, 0, 0, 1)),
		G: qp.Some([]float64{-1, -2, -3}),
		A: qp.Some(csc(1, 3, 1, 1, 1)),
		B: qp.Some([]float64{3}),
		C: qp.Some(csc(1, 3, 0, 0, 1)),
		U: qp.Some([]float64{1.5}),
	}, true, qp.Proximal{}))
	q.Solve()
	require.Equal(t, qp.Solved, q.Results.Info.Status)
	first := q.Results.Info.Iter

	// unchanged data re-solves from the stored iterate
	require.NoError(t, q.Update(qp.Data[*linalg.CSC]{}, true, qp.Proximal{}))
	q.Solve()
	require.Equal(t, qp.Solved, q.Results.Info.Status)
	require.LessOrEqual(t, q.Results.Info.Iter, first)

	data, err := q.MarshalBinary()
	require.NoError(t, err)
	var r QP
	require.NoError(t, r.UnmarshalBinary(data))
	require.True(t, q.Equal(&r))
	require.False(t, r.Masked())

	r.Settings.MaxIter = 7
	require.False(t, q.Equal(&r))

	q.Cleanup()
	q.Cleanup()
	require.Equal(t, qp.Unsolved, q.Results.Info.Status)
	require.Equal(t, []float64{0, 0, 0}, q.Results.X)

	m := q.Model.Clone()
	data, err = m.MarshalBinary()
	require.NoError(t, err)
	var o Model
	require.NoError(t, o.UnmarshalBinary(data))
	require.True(t, m.Equal(&o))
	require.Equal(t, []float64{-inf}, o.L)
}

func TestCorruptSnapshot(t *testing.T) {
	m := NewModel(linalg.EmptyPattern(2, 2), linalg.EmptyPattern(0, 2), linalg.EmptyPattern(0, 2))
	w := m.wire()
	w.H = matrixWire{Rows: 2, Cols: 2, ColPtr: []int{0, 5, 2}, RowIdx: []int{0, 1}, Val: []float64{1, 1}}
	data, err := cbor.Marshal(w)
	require.NoError(t, err)

	var o Model
	err = o.UnmarshalBinary(data)
	require.ErrorIs(t, err, qp.ErrConstruction)

	var r QP
	data, err = cbor.Marshal(qpWire{Model: w, Results: qp.NewResults(2, 0, 0)})
	require.NoError(t, err)
	require.ErrorIs(t, r.UnmarshalBinary(data), qp.ErrConstruction)
}
