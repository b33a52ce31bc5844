// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/curioloop/proxqp/linalg"
	"github.com/stretchr/testify/require"
)

func almostEqual[T float64 | []float64](a, b T, tol float64) bool {
	equalWithinAbs := func(a, b float64) bool {
		return a == b || math.Abs(a-b) <= tol
	}
	switch reflect.TypeOf((*T)(nil)).Elem().Kind() {
	case reflect.Float64:
		return equalWithinAbs(any(a).(float64), any(b).(float64))
	case reflect.Slice:
		a, b := any(a).([]float64), any(b).([]float64)
		if len(a) != len(b) {
			return false
		}
		for i, a := range a {
			if !equalWithinAbs(a, b[i]) {
				return false
			}
		}
		return true
	default:
		panic("unknown type")
	}
}

var inf = math.Inf(1)

type denseProblem struct {
	h, a, c    *linalg.Dense
	g, b, l, u []float64
}

func (p *denseProblem) Dims() (n, nEq, nIn int) {
	n, _ = p.h.Dims()
	nEq, _ = p.a.Dims()
	nIn, _ = p.c.Dims()
	return
}

func (p *denseProblem) Matrices() (h, a, c linalg.Matrix) { return p.h, p.a, p.c }

func (p *denseProblem) Vectors() (g, b, l, u []float64) { return p.g, p.b, p.l, p.u }

// sparseProblem views a dense problem through compressed column storage.
type sparseProblem struct {
	*denseProblem
}

func (p sparseProblem) Matrices() (h, a, c linalg.Matrix) {
	return linalg.CSCFromDense(p.h), linalg.CSCFromDense(p.a), linalg.CSCFromDense(p.c)
}

// mixedProblem: H = I, g = -[1 2 3], x₁+x₂+x₃ = 3, x₃ ≤ 1.5
func mixedProblem() *denseProblem {
	return &denseProblem{
		h: linalg.Identity(3),
		a: linalg.NewDense(1, 3, []float64{1, 1, 1}),
		c: linalg.NewDense(1, 3, []float64{0, 0, 1}),
		g: []float64{-1, -2, -3},
		b: []float64{3},
		l: []float64{-inf},
		u: []float64{1.5},
	}
}

func solve(t *testing.T, p Problem, backend Backend, st Settings, prox Proximal) (*Workspace, Results) {
	t.Helper()
	n, nEq, nIn := p.Dims()
	w := NewWorkspace(n, nEq, nIn, backend)
	require.NoError(t, w.Init(p, &st, prox, true))
	res := NewResults(n, nEq, nIn)
	w.Solve(p, &st, &res, Optional[[]float64]{}, Optional[[]float64]{}, Optional[[]float64]{}, nil)
	return w, res
}

func TestUnconstrained(t *testing.T) {
	p := &denseProblem{
		h: linalg.Identity(2),
		a: linalg.NewDense(0, 2, nil),
		c: linalg.NewDense(0, 2, nil),
		g: []float64{1, 1},
	}
	for _, backend := range []Backend{Direct, Iterative} {
		_, r := solve(t, p, backend, DefaultSettings(), Proximal{})
		switch {
		case r.Info.Status != Solved:
			t.Fatalf("TestUnconstrained(%v): Not Converge", backend)
		case !almostEqual(r.X, []float64{-1, -1}, 1e-4):
			t.Fatalf("TestUnconstrained(%v): Wrong Solution %v", backend, r.X)
		case !almostEqual(r.Info.Objective, -1, 1e-4):
			t.Fatalf("TestUnconstrained(%v): Wrong Objective %v", backend, r.Info.Objective)
		}
	}
}

func TestBoundActive(t *testing.T) {
	p := &denseProblem{
		h: linalg.Identity(1),
		a: linalg.NewDense(0, 1, nil),
		c: linalg.NewDense(1, 1, []float64{1}),
		g: []float64{0},
		l: []float64{2},
		u: []float64{10},
	}
	_, r := solve(t, p, Direct, DefaultSettings(), Proximal{})
	switch {
	case r.Info.Status != Solved:
		t.Fatal("TestBoundActive: Not Converge")
	case !almostEqual(r.X, []float64{2}, 1e-4):
		t.Fatalf("TestBoundActive: Wrong Solution %v", r.X)
	case !almostEqual(r.Z, []float64{-2}, 1e-4):
		t.Fatalf("TestBoundActive: Wrong Multiplier %v", r.Z)
	}
	require.Empty(t, r.Certificate)
}

func TestMixedConstraints(t *testing.T) {
	st := DefaultSettings()
	st.EpsAbs = 1e-7
	for _, p := range []Problem{mixedProblem(), sparseProblem{mixedProblem()}} {
		for _, backend := range []Backend{Direct, Iterative} {
			_, r := solve(t, p, backend, st, Proximal{})
			require.Equal(t, Solved, r.Info.Status)
			require.InDeltaSlice(t, []float64{0.25, 1.25, 1.5}, r.X, 1e-5)
			require.InDeltaSlice(t, []float64{0.75}, r.Y, 1e-5)
			require.InDeltaSlice(t, []float64{0.75}, r.Z, 1e-5)
			require.InDelta(t, -5.3125, r.Info.Objective, 1e-5)
			require.LessOrEqual(t, r.Info.PrimalResidual, st.EpsAbs)
			require.LessOrEqual(t, r.Info.DualResidual, st.EpsAbs)
		}
	}
}

func TestBadlyScaled(t *testing.T) {
	// min 500(x₁-1)² + 0.05(x₂-1)² s.t. x₁ + x₂ ≤ 1
	p := &denseProblem{
		h: linalg.NewDense(2, 2, []float64{1000, 0, 0, 0.1}),
		a: linalg.NewDense(0, 2, nil),
		c: linalg.NewDense(1, 2, []float64{1, 1}),
		g: []float64{-1000, -0.1},
		l: []float64{-inf},
		u: []float64{1},
	}
	st := DefaultSettings()
	st.EpsAbs = 1e-7
	w, r := solve(t, p, Direct, st, Proximal{})
	require.Equal(t, Solved, r.Info.Status)
	require.InDeltaSlice(t, []float64{0.9999000099990001, 9.99900009998056e-05}, r.X, 1e-5)
	require.InDeltaSlice(t, []float64{0.09999000099990002}, r.Z, 1e-5)
	require.InDelta(t, -500.00000499950005, r.Info.Objective, 1e-5)

	sc := w.Scaling()
	require.NotEqual(t, 1.0, sc.Cost)
}

func TestPrimalInfeasibleEquality(t *testing.T) {
	p := &denseProblem{
		h: linalg.NewDense(1, 1, nil),
		a: linalg.NewDense(2, 1, []float64{1, 1}),
		c: linalg.NewDense(0, 1, nil),
		g: []float64{0},
		b: []float64{1, -1},
	}
	_, r := solve(t, p, Direct, DefaultSettings(), Proximal{})
	require.Equal(t, PrimalInfeasible, r.Info.Status)
	require.Len(t, r.Certificate, 2)
	require.InDeltaSlice(t, []float64{-1, 1}, r.Certificate, 1e-9)
}

func TestPrimalInfeasibleBounds(t *testing.T) {
	// x ≥ 2 and x ≤ 1
	p := &denseProblem{
		h: linalg.Identity(1),
		a: linalg.NewDense(0, 1, nil),
		c: linalg.NewDense(2, 1, []float64{1, 1}),
		g: []float64{0},
		l: []float64{2, -inf},
		u: []float64{inf, 1},
	}
	_, r := solve(t, p, Direct, DefaultSettings(), Proximal{})
	require.Equal(t, PrimalInfeasible, r.Info.Status)
	dz := r.Certificate
	require.Len(t, dz, 2)
	require.InDelta(t, 0, dz[0]+dz[1], 1e-3)
	require.Less(t, 2*math.Min(dz[0], 0)+1*math.Max(dz[1], 0), 0.0)
}

func TestDualInfeasible(t *testing.T) {
	// g = 1 with x ≤ 0 is unbounded below
	p := &denseProblem{
		h: linalg.NewDense(1, 1, nil),
		a: linalg.NewDense(0, 1, nil),
		c: linalg.NewDense(1, 1, []float64{1}),
		g: []float64{1},
		l: []float64{-inf},
		u: []float64{0},
	}
	_, r := solve(t, p, Direct, DefaultSettings(), Proximal{})
	require.Equal(t, DualInfeasible, r.Info.Status)
	require.InDeltaSlice(t, []float64{-1}, r.Certificate, 1e-9)

	// linear along x₂ without constraints
	p = &denseProblem{
		h: linalg.NewDense(2, 2, []float64{1, 0, 0, 0}),
		a: linalg.NewDense(0, 2, nil),
		c: linalg.NewDense(0, 2, nil),
		g: []float64{0, -1},
	}
	_, r = solve(t, p, Iterative, DefaultSettings(), Proximal{})
	require.Equal(t, DualInfeasible, r.Info.Status)
	require.InDelta(t, 1, r.Certificate[1], 1e-9)
}

func TestMaxIterReached(t *testing.T) {
	p := &denseProblem{
		h: linalg.Identity(2),
		a: linalg.NewDense(0, 2, nil),
		c: linalg.NewDense(0, 2, nil),
		g: []float64{1, 1},
	}
	st := DefaultSettings()
	st.MaxIter = 3
	_, r := solve(t, p, Direct, st, Proximal{})
	require.Equal(t, MaxIterReached, r.Info.Status)
	require.Equal(t, 3, r.Info.Iter)
	require.Greater(t, r.Info.DualResidual, st.EpsAbs)
}

func TestInexactKKTLogged(t *testing.T) {
	// H = -I makes the reduced matrix indefinite and breaks down CG
	p := &denseProblem{
		h: linalg.NewDense(2, 2, []float64{-1, 0, 0, -1}),
		a: linalg.NewDense(0, 2, nil),
		c: linalg.NewDense(0, 2, nil),
		g: []float64{1, 1},
	}
	st := DefaultSettings()
	st.MaxIter = 2
	w := NewWorkspace(2, 0, 0, Iterative)
	require.NoError(t, w.Init(p, &st, Proximal{}, true))

	var buf bytes.Buffer
	res := NewResults(2, 0, 0)
	none := Optional[[]float64]{}
	w.Solve(p, &st, &res, none, none, none, &Logger{Level: LogIter, Msg: &buf})
	require.Contains(t, buf.String(), "inexact iterative KKT solve")

	buf.Reset()
	w.Solve(p, &st, &res, none, none, none, &Logger{Level: LogLast, Msg: &buf})
	require.NotContains(t, buf.String(), "inexact")
}

func TestWarmStart(t *testing.T) {
	p := mixedProblem()
	st := DefaultSettings()
	w, r := solve(t, p, Direct, st, Proximal{})
	require.Equal(t, Solved, r.Info.Status)
	first := r.Info.Iter
	require.Positive(t, first)

	require.NoError(t, w.Update(p, &st, Proximal{}, true))
	w.Solve(p, &st, &r, Optional[[]float64]{}, Optional[[]float64]{}, Optional[[]float64]{}, nil)
	require.Equal(t, Solved, r.Info.Status)
	require.LessOrEqual(t, r.Info.Iter, first)

	// explicit start overrides the stored results
	x := Some([]float64{0.25, 1.25, 1.5})
	y, z := Some([]float64{0.75}), Some([]float64{0.75})
	w.Solve(p, &st, &r, x, y, z, nil)
	require.Equal(t, Solved, r.Info.Status)
	require.Zero(t, r.Info.Iter)

	require.Panics(t, func() {
		w.Solve(p, &st, &r, Some([]float64{1}), y, z, nil)
	})
}

func TestMuUpdate(t *testing.T) {
	st := DefaultSettings()
	prox := Proximal{MuEq: Some(1e4), MuIn: Some(1e4)}
	w, r := solve(t, mixedProblem(), Direct, st, prox)
	require.Equal(t, Solved, r.Info.Status)
	require.Positive(t, r.Info.MuUpdates)
	require.Less(t, r.Info.MuIn, 1e4)

	// cleanup restores the parameters of the last init
	w.Cleanup()
	rho, muEq, muIn := w.Proximal()
	require.Equal(t, []float64{1e-6, 1e4, 1e4}, []float64{rho, muEq, muIn})

	// an update after an adapted solve does not keep the adapted values
	p := mixedProblem()
	w.Solve(p, &st, &r, Some(r.X), Some(r.Y), Some(r.Z), nil)
	require.NoError(t, w.Update(p, &st, Proximal{}, false))
	rho, muEq, muIn = w.Proximal()
	require.Equal(t, []float64{1e-6, 1e4, 1e4}, []float64{rho, muEq, muIn})
	w.Solve(p, &st, &r, Optional[[]float64]{}, Optional[[]float64]{}, Optional[[]float64]{}, nil)
	w.Cleanup()
	rho, muEq, muIn = w.Proximal()
	require.Equal(t, []float64{1e-6, 1e4, 1e4}, []float64{rho, muEq, muIn})

	st.MuUpdateInterval = 0
	_, r = solve(t, mixedProblem(), Direct, st, Proximal{})
	require.Zero(t, r.Info.MuUpdates)
}

func TestProximalResolution(t *testing.T) {
	p := mixedProblem()
	st := DefaultSettings()
	w := NewWorkspace(3, 1, 1, Direct)

	require.NoError(t, w.Init(p, &st, Proximal{}, true))
	rho, muEq, muIn := w.Proximal()
	require.Equal(t, []float64{1e-6, 1e-3, 1e-1}, []float64{rho, muEq, muIn})

	st.DefaultMuIn = 0.5
	require.NoError(t, w.Init(p, &st, Proximal{Rho: Some(1e-3)}, true))
	rho, muEq, muIn = w.Proximal()
	require.Equal(t, []float64{1e-3, 1e-3, 0.5}, []float64{rho, muEq, muIn})

	st.DefaultMuIn = 0
	require.NoError(t, w.Init(p, &st, Proximal{}, true))
	_, _, muIn = w.Proximal()
	require.Equal(t, fallbackMuIn, muIn)

	// update keeps the values of init
	require.NoError(t, w.Update(p, &st, Proximal{MuEq: Some(2e-3)}, false))
	rho, muEq, muIn = w.Proximal()
	require.Equal(t, []float64{1e-6, 2e-3, 1e-1}, []float64{rho, muEq, muIn})

	err := w.Init(p, &st, Proximal{MuEq: Some(-1.0)}, true)
	require.ErrorIs(t, err, ErrConstruction)

	st.Alpha = 2
	require.ErrorIs(t, w.Init(p, &st, Proximal{}, true), ErrInvalidSettings)
}

func TestRestore(t *testing.T) {
	p := mixedProblem()
	st := DefaultSettings()
	w, r := solve(t, p, Direct, st, Proximal{})

	v := NewWorkspace(3, 1, 1, Direct)
	require.NoError(t, v.Restore(p, w.State()))
	state, restored := w.State(), v.State()
	require.True(t, state.Equal(&restored))

	s := NewResults(3, 1, 1)
	v.Solve(p, &st, &s, Some(r.X), Some(r.Y), Some(r.Z), nil)
	require.Equal(t, Solved, s.Info.Status)
	require.LessOrEqual(t, s.Info.Iter, r.Info.Iter)

	bad := w.State()
	bad.Scaling.D = bad.Scaling.D[:1]
	require.ErrorIs(t, v.Restore(p, bad), ErrConstruction)
}

func TestSolveBeforeInit(t *testing.T) {
	w := NewWorkspace(1, 0, 0, Direct)
	st := DefaultSettings()
	res := NewResults(1, 0, 0)
	require.Panics(t, func() {
		w.Solve(mixedProblem(), &st, &res, Optional[[]float64]{}, Optional[[]float64]{}, Optional[[]float64]{}, nil)
	})
}

func TestErrors(t *testing.T) {
	var err error = &ConstructionError{Field: "b", Reason: "has length 1, want 2"}
	require.ErrorIs(t, err, ErrConstruction)
	require.NotErrorIs(t, err, ErrSparsityViolation)
	require.Contains(t, err.Error(), "b has length 1")

	err = &SparsityError{Matrix: "H", Row: 1, Col: 0}
	require.ErrorIs(t, err, ErrSparsityViolation)
	var se *SparsityError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "H", se.Matrix)

	require.ErrorIs(t, CheckVector("g", []float64{1}, 2), ErrConstruction)
	require.ErrorIs(t, CheckVector("g", []float64{math.NaN()}, 1), ErrConstruction)
	require.ErrorIs(t, CheckBounds([]float64{1}, []float64{0}), ErrConstruction)
	require.NoError(t, CheckBounds([]float64{-inf}, []float64{inf}))
	require.ErrorIs(t, CheckMatrix("A", linalg.NewDense(1, 2, nil), 1, 3), ErrConstruction)
	require.ErrorIs(t, CheckFinite("H", linalg.NewDense(1, 1, []float64{inf})), ErrConstruction)
}

func TestOptional(t *testing.T) {
	var o Optional[float64]
	_, ok := o.Get()
	require.False(t, ok)
	require.Equal(t, 2.0, o.Or(2))

	o = Some(3.0)
	v, ok := o.Get()
	require.True(t, ok)
	require.Equal(t, 3.0, v)
	require.Equal(t, 3.0, o.Or(2))
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "solved", Solved.String())
	require.Equal(t, "primal infeasible", PrimalInfeasible.String())
	require.Equal(t, "dual infeasible", DualInfeasible.String())
	require.Equal(t, "max iterations reached", MaxIterReached.String())
	require.Equal(t, "unsolved", Unsolved.String())
}
