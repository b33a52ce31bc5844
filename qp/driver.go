// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// residual holds the optimality measures of the current iterate, both in the
// caller's units (used for termination) and in scaled units (used to balance
// the proximal parameters).
type residual struct {
	pri, dua           float64
	priScale, duaScale float64
	priS, duaS         float64
	priNormS, duaNormS float64
}

// driver runs a single solve over a workspace.
type driver struct {
	w   *Workspace
	p   Problem
	st  *Settings
	log *Logger

	iter      int
	muUpdates int
	res       residual
	cert      []float64
	start     time.Time
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// run is the main loop. The warm started iterate is checked before the first
// step so that re-solving a converged problem costs no iteration.
func (d *driver) run(res *Results, x0, y0, z0 []float64) {
	w, st := d.w, d.st
	d.start = time.Now()

	d.warmStart(x0, y0, z0)
	res.Reset()
	if w.dirty {
		w.refresh(st)
	}
	d.printInit()

	status := MaxIterReached
	if d.residuals(); d.converged() {
		status = Solved
	} else {
		for d.iter = 1; ; d.iter++ {
			d.step()
			d.residuals()
			if d.converged() {
				status = Solved
				break
			}
			if d.primalInfeasible() {
				status = PrimalInfeasible
				break
			}
			if d.dualInfeasible() {
				status = DualInfeasible
				break
			}
			d.printIter()
			if d.iter >= st.MaxIter {
				break
			}
			d.updateMu()
		}
	}

	d.finalize(res, status)
	d.printExit(res)
}

// warmStart maps the iterates given in the caller's units into the scaled
// problem. The auxiliary s starts at 𝚌𝚕𝚒𝚙(C̄x̄ + μᵢz̄, l̄, ū), so that a warm
// start whose z is not complementary to Cx shows a primal residual.
func (d *driver) warmStart(x0, y0, z0 []float64) {
	w, sp, sc := d.w, d.w.sp, &d.w.scaling
	switch {
	case len(x0) != w.n:
		panic("warm start x dimension not match problem")
	case len(y0) != w.nEq:
		panic("warm start y dimension not match problem")
	case len(z0) != w.nIn:
		panic("warm start z dimension not match problem")
	}
	floats.DivTo(w.x, x0, sc.D)
	floats.DivTo(w.y, y0, sc.EEq)
	floats.Scale(sc.Cost, w.y)
	floats.DivTo(w.z, z0, sc.EIn)
	floats.Scale(sc.Cost, w.z)
	sp.c.MulVecTo(w.s, false, w.x)
	for i, v := range w.s {
		w.s[i] = clip(v+w.muIn*w.z[i], sp.l[i], sp.u[i])
	}
}

// step performs one relaxed proximal ADMM iteration:
//
//	(H̄ + ρI + ĀᵀĀ/μₑ + C̄ᵀC̄/μᵢ) x̃ = ρx - ḡ + Āᵀ(b̄/μₑ - ȳ) + C̄ᵀ(s/μᵢ - z̄)
//	x ← αx̃ + (1-α)x
//	ȳ ← ȳ + α(Āx̃ - b̄)/μₑ
//	ŝ = αC̄x̃ + (1-α)s
//	s ← 𝚌𝚕𝚒𝚙(ŝ + μᵢz̄, l̄, ū)
//	z̄ ← z̄ + (ŝ - s)/μᵢ
//
// and leaves the change of x, y, z in dx, dy, dz.
func (d *driver) step() {
	w, sp := d.w, d.w.sp
	alpha := d.st.Alpha
	rho, pe, pi := w.rho, one/w.muEq, one/w.muIn

	floats.ScaleTo(w.rhs, rho, w.x)
	floats.Sub(w.rhs, sp.g)
	if w.nEq > 0 {
		floats.ScaleTo(w.te, pe, sp.b)
		floats.Sub(w.te, w.y)
		sp.a.MulVecTo(w.tn, true, w.te)
		floats.Add(w.rhs, w.tn)
	}
	if w.nIn > 0 {
		floats.ScaleTo(w.ti, pi, w.s)
		floats.Sub(w.ti, w.z)
		sp.c.MulVecTo(w.tn, true, w.ti)
		floats.Add(w.rhs, w.tn)
	}
	copy(w.xt, w.x)
	if inner, ok := w.kkt.solve(w.xt, w.rhs); !ok && d.log.enable(LogIter) {
		d.log.out("%5d  inexact %v KKT solve after %d inner iterations\n", d.iter, w.backend, inner)
	}

	copy(w.dx, w.x)
	copy(w.dy, w.y)
	copy(w.dz, w.z)

	floats.Scale(one-alpha, w.x)
	floats.AddScaled(w.x, alpha, w.xt)

	if w.nEq > 0 {
		sp.a.MulVecTo(w.te, false, w.xt)
		for i, ax := range w.te {
			w.y[i] += pe * alpha * (ax - sp.b[i])
		}
	}
	if w.nIn > 0 {
		sp.c.MulVecTo(w.ti, false, w.xt)
		for i, cx := range w.ti {
			sh := alpha*cx + (one-alpha)*w.s[i]
			s := clip(sh+w.z[i]/pi, sp.l[i], sp.u[i])
			w.z[i] += pi * (sh - s)
			w.s[i] = s
		}
	}

	floats.SubTo(w.dx, w.x, w.dx)
	floats.SubTo(w.dy, w.y, w.dy)
	floats.SubTo(w.dz, w.z, w.dz)
}

// residuals evaluates
//
//	primal: ‖[Ax - b; Cx - s]‖∞
//	dual:   ‖Hx + g + Aᵀy + Cᵀz‖∞
//
// in the caller's units together with the norms used by the relative tolerance.
// Since s ∈ [l, u] the inequality part bounds ‖Cx - 𝚌𝚕𝚒𝚙(Cx, l, u)‖∞, and it
// vanishes only when z is complementary to the bounds.
func (d *driver) residuals() {
	w, sp, sc := d.w, d.w.sp, &d.w.scaling
	var r residual

	if w.nEq > 0 {
		sp.a.MulVecTo(w.ax, false, w.x)
		for i, ax := range w.ax {
			e, b := sc.EEq[i], sp.b[i]
			v := math.Abs(ax - b)
			r.priS = math.Max(r.priS, v)
			r.priNormS = max(r.priNormS, math.Abs(ax), math.Abs(b))
			r.pri = math.Max(r.pri, v/e)
			r.priScale = max(r.priScale, math.Abs(ax)/e, math.Abs(b)/e)
		}
	}
	if w.nIn > 0 {
		sp.c.MulVecTo(w.cx, false, w.x)
		for i, cx := range w.cx {
			e := sc.EIn[i]
			v := math.Abs(cx - w.s[i])
			r.priS = math.Max(r.priS, v)
			r.priNormS = max(r.priNormS, math.Abs(cx), math.Abs(w.s[i]))
			r.pri = math.Max(r.pri, v/e)
			r.priScale = math.Max(r.priScale, math.Abs(cx)/e)
		}
	}

	sp.h.MulVecTo(w.hx, false, w.x)
	sp.a.MulVecTo(w.aty, true, w.y)
	sp.c.MulVecTo(w.ctz, true, w.z)
	inv := one / sc.Cost
	for j := range w.x {
		f := inv / sc.D[j]
		hx, g, aty, ctz := math.Abs(w.hx[j]), math.Abs(sp.g[j]), math.Abs(w.aty[j]), math.Abs(w.ctz[j])
		v := math.Abs(w.hx[j] + sp.g[j] + w.aty[j] + w.ctz[j])
		r.duaS = math.Max(r.duaS, v)
		r.duaNormS = max(r.duaNormS, hx, g, aty, ctz)
		r.dua = math.Max(r.dua, v*f)
		r.duaScale = max(r.duaScale, hx*f, g*f, aty*f, ctz*f)
	}
	d.res = r
}

func (d *driver) converged() bool {
	st, r := d.st, &d.res
	return r.pri <= st.EpsAbs+st.EpsRel*r.priScale && r.dua <= st.EpsAbs+st.EpsRel*r.duaScale
}

// primalInfeasible tests the dual step δ = [δy; δz] as a Farkas certificate:
//
//	‖Aᵀδy + Cᵀδz‖∞ ≤ ε‖δ‖∞
//	bᵀδy + uᵀ𝚖𝚊𝚡(δz, 0) + lᵀ𝚖𝚒𝚗(δz, 0) < -ε‖δ‖∞
//
// after dropping the components of δz that point towards an infinite bound.
func (d *driver) primalInfeasible() bool {
	w, sp, sc := d.w, d.w.sp, &d.w.scaling
	if w.nEq+w.nIn == 0 {
		return false
	}
	for i, v := range w.dz {
		if (v > zero && math.IsInf(sp.u[i], 1)) || (v < zero && math.IsInf(sp.l[i], -1)) {
			w.dz[i] = zero
		}
	}

	inv := one / sc.Cost
	norm := zero
	for i, v := range w.dy {
		norm = math.Max(norm, math.Abs(v*sc.EEq[i]*inv))
	}
	for i, v := range w.dz {
		norm = math.Max(norm, math.Abs(v*sc.EIn[i]*inv))
	}
	if !(norm > zero) {
		return false
	}
	eps := d.st.EpsPrimalInf * norm

	support := floats.Dot(sp.b, w.dy)
	for i, v := range w.dz {
		switch {
		case v > zero:
			support += sp.u[i] * v
		case v < zero:
			support += sp.l[i] * v
		}
	}
	if !(support*inv < -eps) {
		return false
	}

	sp.a.MulVecTo(w.aty, true, w.dy)
	sp.c.MulVecTo(w.ctz, true, w.dz)
	for j := range w.aty {
		if math.Abs((w.aty[j]+w.ctz[j])*inv/sc.D[j]) > eps {
			return false
		}
	}

	d.cert = d.cert[:0]
	for i, v := range w.dy {
		d.cert = append(d.cert, v*sc.EEq[i]*inv/norm)
	}
	for i, v := range w.dz {
		d.cert = append(d.cert, v*sc.EIn[i]*inv/norm)
	}
	return true
}

// dualInfeasible tests the primal step δx as a direction of unbounded descent:
//
//	‖Hδx‖∞ ≤ ε‖δx‖∞   gᵀδx < -ε‖δx‖∞   Aδx = 0   Cδx ∈ 𝚛𝚎𝚌𝚎𝚜𝚜𝚒𝚘𝚗([l, u])
//
// each equality taken within ε‖δx‖∞.
func (d *driver) dualInfeasible() bool {
	w, sp, sc := d.w, d.w.sp, &d.w.scaling

	norm := zero
	for j, v := range w.dx {
		norm = math.Max(norm, math.Abs(v*sc.D[j]))
	}
	if !(norm > zero) {
		return false
	}
	eps := d.st.EpsDualInf * norm
	inv := one / sc.Cost

	if !(floats.Dot(sp.g, w.dx)*inv < -eps) {
		return false
	}
	sp.h.MulVecTo(w.tn, false, w.dx)
	for j, v := range w.tn {
		if math.Abs(v*inv/sc.D[j]) > eps {
			return false
		}
	}
	sp.a.MulVecTo(w.te, false, w.dx)
	for i, v := range w.te {
		if math.Abs(v/sc.EEq[i]) > eps {
			return false
		}
	}
	sp.c.MulVecTo(w.ti, false, w.dx)
	for i, v := range w.ti {
		v /= sc.EIn[i]
		lInf, uInf := math.IsInf(sp.l[i], -1), math.IsInf(sp.u[i], 1)
		switch {
		case lInf && uInf:
		case uInf:
			if v < -eps {
				return false
			}
		case lInf:
			if v > eps {
				return false
			}
		default:
			if math.Abs(v) > eps {
				return false
			}
		}
	}

	d.cert = d.cert[:0]
	for j, v := range w.dx {
		d.cert = append(d.cert, v*sc.D[j]/norm)
	}
	return true
}

// updateMu rebalances the dual proximal parameters by the square root of the
// ratio between the relative primal and dual residuals.
func (d *driver) updateMu() {
	w, st, r := d.w, d.st, &d.res
	if st.MuUpdateInterval == 0 || d.iter%st.MuUpdateInterval != 0 || w.nEq+w.nIn == 0 {
		return
	}
	if !(r.duaS > zero && r.duaNormS > zero) {
		return
	}
	const tiny = 1e-300
	ratio := math.Sqrt(math.Max(r.priS/math.Max(r.priNormS, tiny), tiny) / (r.duaS / r.duaNormS))
	if ratio < st.MuUpdateFactor && ratio > one/st.MuUpdateFactor {
		return
	}
	muEq := clip(w.muEq/ratio, st.MuMinEq, st.MuMax)
	muIn := clip(w.muIn/ratio, st.MuMinIn, st.MuMax)
	if muEq == w.muEq && muIn == w.muIn {
		return
	}
	w.muEq, w.muIn = muEq, muIn
	w.refresh(st)
	d.muUpdates++
	if d.log.enable(LogIter) {
		d.log.out("%5d  mu update: mu_eq= %10.3e  mu_in= %10.3e\n", d.iter, muEq, muIn)
	}
}

// finalize maps the iterate back to the caller's units and fills the info record.
func (d *driver) finalize(res *Results, status Status) {
	w, sc := d.w, &d.w.scaling
	inv := one / sc.Cost
	floats.MulTo(res.X, sc.D, w.x)
	floats.MulTo(res.Y, sc.EEq, w.y)
	floats.Scale(inv, res.Y)
	floats.MulTo(res.Z, sc.EIn, w.z)
	floats.Scale(inv, res.Z)
	if status == PrimalInfeasible || status == DualInfeasible {
		res.Certificate = append(res.Certificate[:0], d.cert...)
	}

	info := &res.Info
	info.Status = status
	info.Iter = d.iter
	info.MuUpdates = d.muUpdates
	info.Rho, info.MuEq, info.MuIn = w.rho, w.muEq, w.muIn
	info.Objective = Objective(d.p, res.X)
	info.PrimalResidual = d.res.pri
	info.DualResidual = d.res.dua
	info.SolveTime = time.Since(d.start)
	info.RunTime = info.SetupTime + info.SolveTime
}

func (d *driver) printInit() {
	log, w := d.log, d.w
	if !log.enable(LogLast) {
		return
	}
	log.log("RUNNING THE PROXIMAL ADMM QP CODE\n")
	log.log("           * * *\n")
	log.log("N = %d    N_EQ = %d    N_IN = %d    KKT = %v\n", w.n, w.nEq, w.nIn, w.backend)
	log.log("rho = %10.3e    mu_eq = %10.3e    mu_in = %10.3e\n", w.rho, w.muEq, w.muIn)

	if log.enable(LogVerbose) {
		log.log("\nD  = ")
		for i, v := range w.scaling.D {
			log.log("%.2e ", v)
			if (i+1)%6 == 0 {
				log.log("\n     ")
			}
		}
		log.log("\nc  = %.2e\n", w.scaling.Cost)
	}

	if log.enable(LogIter) {
		log.out("\n   it      pri_res      dua_res        mu_eq        mu_in\n")
	}
}

func (d *driver) printIter() {
	log, w := d.log, d.w
	if log.enable(LogIter) {
		log.out("%5d %12.5e %12.5e %12.5e %12.5e\n", d.iter, d.res.pri, d.res.dua, w.muEq, w.muIn)
	}
}

func (d *driver) printExit(res *Results) {
	log := d.log
	if !log.enable(LogLast) {
		return
	}
	info := &res.Info
	log.log("\n           * * *\n")
	log.log("Tit   = total number of iterations\n")
	log.log("Tmu   = total number of proximal updates\n")
	log.log("Pres  = primal residual at the final iterate\n")
	log.log("Dres  = dual residual at the final iterate\n")
	log.log("F     = final objective value\n")
	log.log("\n           * * *\n")
	log.log("\n   N      Tit    Tmu      Pres      Dres         F\n")
	log.log("%5d %8d %6d %9.2e %9.2e %9.5e\n",
		d.w.n, info.Iter, info.MuUpdates, info.PrimalResidual, info.DualResidual, info.Objective)

	if log.enable(LogVerbose) {
		log.log("\n X =")
		for i, v := range res.X {
			log.log(" %.2e", v)
			if (i+1)%6 == 0 {
				log.log("\n    ")
			}
		}
		log.log("\n")
	}

	log.log("\n%v\n", info.Status)
	log.log("\n Total solve time %s (setup %s)\n",
		formatNs(info.SolveTime.Nanoseconds()), formatNs(info.SetupTime.Nanoseconds()))
}
