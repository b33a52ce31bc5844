// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import "fmt"

// Workspace is the solver state owned by a QP object: the scaled copy of the
// problem, the preconditioner, the proximal parameters, the KKT backend and
// the iteration buffers.
//
// A Workspace must not be shared between QP objects or used concurrently.
type Workspace struct {
	n, nEq, nIn int
	backend     Backend

	sp      *scaledProblem
	scaling Scaling
	kkt     kktSolver
	dirty   bool // KKT backend must be refreshed before the next step

	rho, muEq, muIn    float64 // Current proximal parameters
	rho0, muEq0, muIn0 float64 // Parameters set by init or explicit override

	x, y, z, s     []float64 // Scaled iterates, s is the projection of C̄x̄
	xt             []float64 // Solution x̃ of the reduced KKT system
	dx, dy, dz     []float64 // Previous iterates, turned into steps after each iteration
	rhs, tn        []float64
	hx, aty, ctz   []float64
	ax, cx, te, ti []float64
}

// NewWorkspace allocates a workspace for the given dimensions and backend.
func NewWorkspace(n, nEq, nIn int, backend Backend) *Workspace {
	vec := func(k int) []float64 { return make([]float64, k) }
	return &Workspace{
		n: n, nEq: nEq, nIn: nIn,
		backend: backend,
		scaling: IdentityScaling(n, nEq, nIn),
		kkt:     newKKT(backend, n, nEq, nIn),
		x:       vec(n), y: vec(nEq), z: vec(nIn), s: vec(nIn),
		xt: vec(n), dx: vec(n), dy: vec(nEq), dz: vec(nIn),
		rhs: vec(n), tn: vec(n),
		hx: vec(n), aty: vec(n), ctz: vec(n),
		ax: vec(nEq), cx: vec(nIn), te: vec(nEq), ti: vec(nIn),
	}
}

// Initialized reports whether init has been called.
func (w *Workspace) Initialized() bool { return w.sp != nil }

// Backend returns the KKT backend of the workspace.
func (w *Workspace) Backend() Backend { return w.backend }

// Scaling returns a copy of the current preconditioner.
func (w *Workspace) Scaling() Scaling { return w.scaling.Clone() }

// Proximal returns the current proximal parameters.
func (w *Workspace) Proximal() (rho, muEq, muIn float64) { return w.rho, w.muEq, w.muIn }

func checkProximal(rho, muEq, muIn float64) error {
	switch {
	case !(rho > zero):
		return &ConstructionError{Field: "rho", Reason: fmt.Sprintf("must greater than 0, got %g", rho)}
	case !(muEq > zero):
		return &ConstructionError{Field: "mu_eq", Reason: fmt.Sprintf("must greater than 0, got %g", muEq)}
	case !(muIn > zero):
		return &ConstructionError{Field: "mu_in", Reason: fmt.Sprintf("must greater than 0, got %g", muIn)}
	}
	return nil
}

func (w *Workspace) checkDims(p Problem) {
	if n, nEq, nIn := p.Dims(); n != w.n || nEq != w.nEq || nIn != w.nIn {
		panic("problem dimension not match workspace")
	}
}

// Init takes the problem as a whole. The proximal parameters are resolved as
// explicit override, then settings default, then built-in value. The
// preconditioner is recomputed when computePreconditioner is set, otherwise
// the stored one is reused.
func (w *Workspace) Init(p Problem, st *Settings, prox Proximal, computePreconditioner bool) error {
	w.checkDims(p)
	if err := st.Validate(); err != nil {
		return err
	}
	rho, muEq, muIn := prox.resolve(st.defaults())
	if err := checkProximal(rho, muEq, muIn); err != nil {
		return err
	}
	w.rho0, w.muEq0, w.muIn0 = rho, muEq, muIn
	w.setup(p, st, computePreconditioner)
	return nil
}

// Update takes the modified problem. Proximal parameters without override
// keep the value set by init or by an earlier override, values adapted
// during a solve are discarded. The stored preconditioner is reused on the
// new data unless updatePreconditioner is set.
func (w *Workspace) Update(p Problem, st *Settings, prox Proximal, updatePreconditioner bool) error {
	w.checkDims(p)
	if err := st.Validate(); err != nil {
		return err
	}
	rho, muEq, muIn := prox.resolve(w.rho0, w.muEq0, w.muIn0)
	if err := checkProximal(rho, muEq, muIn); err != nil {
		return err
	}
	w.rho0, w.muEq0, w.muIn0 = rho, muEq, muIn
	w.setup(p, st, updatePreconditioner)
	return nil
}

func (w *Workspace) setup(p Problem, st *Settings, equilibrate bool) {
	w.sp = newScaledProblem(p)
	if equilibrate {
		w.scaling = w.sp.equilibrate(st.PreconditionerMaxIter, st.PreconditionerAccuracy)
	} else {
		sc := &w.scaling
		w.sp.scale(sc.D, sc.EEq, sc.EIn, sc.Cost)
	}
	w.rho, w.muEq, w.muIn = w.rho0, w.muEq0, w.muIn0
	w.dirty = true
}

// Cleanup restores the proximal parameters set by init or explicit override.
// The preconditioner is kept.
func (w *Workspace) Cleanup() {
	if w.rho != w.rho0 || w.muEq != w.muEq0 || w.muIn != w.muIn0 {
		w.rho, w.muEq, w.muIn = w.rho0, w.muEq0, w.muIn0
		w.dirty = true
	}
	for _, v := range [][]float64{w.x, w.y, w.z, w.s, w.xt, w.dx, w.dy, w.dz} {
		clear(v)
	}
}

func (w *Workspace) refresh(st *Settings) {
	w.kkt.factor(w.sp, w.rho, one/w.muEq, one/w.muIn, st)
	w.dirty = false
}

// State is the part of a workspace that survives between solves.
type State struct {
	Scaling            Scaling
	Rho, MuEq, MuIn    float64
	Rho0, MuEq0, MuIn0 float64
}

// State returns a copy of the persistent state.
func (w *Workspace) State() State {
	return State{
		Scaling: w.scaling.Clone(),
		Rho:     w.rho, MuEq: w.muEq, MuIn: w.muIn,
		Rho0: w.rho0, MuEq0: w.muEq0, MuIn0: w.muIn0,
	}
}

// Equal reports whether both states are identical.
func (s *State) Equal(o *State) bool {
	return s.Scaling.Equal(&o.Scaling) &&
		s.Rho == o.Rho && s.MuEq == o.MuEq && s.MuIn == o.MuIn &&
		s.Rho0 == o.Rho0 && s.MuEq0 == o.MuEq0 && s.MuIn0 == o.MuIn0
}

// Restore rebuilds the workspace of problem p from a saved state.
func (w *Workspace) Restore(p Problem, s State) error {
	w.checkDims(p)
	sc := s.Scaling
	if len(sc.D) != w.n || len(sc.EEq) != w.nEq || len(sc.EIn) != w.nIn || !(sc.Cost > zero) {
		return &ConstructionError{Field: "state", Reason: "scaling not match problem dimension"}
	}
	if err := checkProximal(s.Rho, s.MuEq, s.MuIn); err != nil {
		return err
	}
	if err := checkProximal(s.Rho0, s.MuEq0, s.MuIn0); err != nil {
		return err
	}
	w.scaling = sc.Clone()
	w.sp = newScaledProblem(p)
	w.sp.scale(sc.D, sc.EEq, sc.EIn, sc.Cost)
	w.rho, w.muEq, w.muIn = s.Rho, s.MuEq, s.MuIn
	w.rho0, w.muEq0, w.muIn0 = s.Rho0, s.MuEq0, s.MuIn0
	w.dirty = true
	return nil
}

// Solve runs the proximal ADMM iteration on problem p and writes the outcome
// into res. Each warm start vector is taken from its explicit argument, then
// from res, and res is reset afterwards. Solve never fails, the outcome is
// reported by res.Info.Status.
func (w *Workspace) Solve(p Problem, st *Settings, res *Results, x, y, z Optional[[]float64], log *Logger) {
	if w.sp == nil {
		panic("solve called before init")
	}
	w.checkDims(p)
	d := driver{w: w, p: p, st: st, log: PickLogger(log, st)}
	d.run(res, x.Or(res.X), y.Or(res.Y), z.Or(res.Z))
}
