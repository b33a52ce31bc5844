// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"math"
	"testing"

	"github.com/curioloop/proxqp/linalg"
	"github.com/stretchr/testify/require"
)

func TestLimitScaling(t *testing.T) {
	require.Equal(t, 1.0, limitScaling(0))
	require.Equal(t, 1.0, limitScaling(1e-5))
	require.Equal(t, 0.5, limitScaling(0.5))
	require.Equal(t, 1e4, limitScaling(1e8))
}

func TestEquilibrateReversible(t *testing.T) {

	p := &denseProblem{
		h: linalg.NewDense(2, 2, []float64{
			1e4, 1,
			1, 1e-2}),
		a: linalg.NewDense(1, 2, []float64{1e3, 1}),
		c: linalg.NewDense(2, 2, []float64{
			0, 1e-3,
			5, 0}),
		g: []float64{1, -2},
		b: []float64{3},
		l: []float64{-inf, -1},
		u: []float64{2, 1},
	}

	sp := newScaledProblem(p)
	sc := sp.equilibrate(10, 1e-3)

	for _, v := range [][]float64{sc.D, sc.EEq, sc.EIn, {sc.Cost}} {
		for _, f := range v {
			require.True(t, f > 0 && !math.IsInf(f, 0))
		}
	}

	rel := func(want, got float64) bool {
		return math.Abs(want-got) <= 1e-12*math.Max(1, math.Abs(want))
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !rel(p.h.At(i, j), sp.h.At(i, j)/(sc.Cost*sc.D[i]*sc.D[j])) {
				t.Fatalf("H(%d,%d) not recovered", i, j)
			}
			if !rel(p.c.At(i, j), sp.c.At(i, j)/(sc.EIn[i]*sc.D[j])) {
				t.Fatalf("C(%d,%d) not recovered", i, j)
			}
		}
		if !rel(p.a.At(0, i), sp.a.At(0, i)/(sc.EEq[0]*sc.D[i])) {
			t.Fatalf("A(0,%d) not recovered", i)
		}
		if !rel(p.g[i], sp.g[i]/(sc.Cost*sc.D[i])) {
			t.Fatalf("g(%d) not recovered", i)
		}
	}
	require.InDelta(t, p.b[0], sp.b[0]/sc.EEq[0], 1e-12)
	require.True(t, math.IsInf(sp.l[0], -1))
	require.InDelta(t, p.u[1], sp.u[1]/sc.EIn[1], 1e-12)

	// the stacked column norms are pulled towards one
	before, after := make([]float64, 2), make([]float64, 2)
	for _, m := range []linalg.Matrix{p.h, p.a, p.c} {
		m.ColAbsMax(before)
	}
	for _, m := range []linalg.Matrix{sp.h, sp.a, sp.c} {
		m.ColAbsMax(after)
	}
	spread := func(v []float64) float64 { return math.Max(v[0], v[1]) / math.Min(v[0], v[1]) }
	require.Less(t, spread(after), spread(before))

	// reusing the stored scaling reproduces the equilibrated problem
	re := newScaledProblem(p)
	re.scale(sc.D, sc.EEq, sc.EIn, sc.Cost)
	require.InDeltaSlice(t, sp.g, re.g, 1e-12)
	require.InDelta(t, sp.h.At(0, 1), re.h.At(0, 1), 1e-12)
}

func TestStalePreconditioner(t *testing.T) {
	p := mixedProblem()
	st := DefaultSettings()
	w := NewWorkspace(3, 1, 1, Direct)
	require.NoError(t, w.Init(p, &st, Proximal{}, true))
	first := w.Scaling()

	// new data under the stale scaling
	q := mixedProblem()
	q.h.Set(0, 0, 50)
	require.NoError(t, w.Update(q, &st, Proximal{}, false))
	stale := w.Scaling()
	require.True(t, first.Equal(&stale))

	res := NewResults(3, 1, 1)
	w.Solve(q, &st, &res, Optional[[]float64]{}, Optional[[]float64]{}, Optional[[]float64]{}, nil)
	require.Equal(t, Solved, res.Info.Status)

	require.NoError(t, w.Update(q, &st, Proximal{}, true))
	fresh := w.Scaling()
	require.False(t, first.Equal(&fresh))

	// init without preconditioner keeps the stored scaling
	require.NoError(t, w.Init(p, &st, Proximal{}, false))
	kept := w.Scaling()
	require.True(t, fresh.Equal(&kept))
}
