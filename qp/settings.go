// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"errors"
	"fmt"
)

const (
	zero = 0.0
	one  = 1.0
)

// Fallbacks of the proximal parameters when the settings leave them at zero.
const (
	fallbackRho  = 1e-6
	fallbackMuEq = 1e-3
	fallbackMuIn = 1e-1
)

// Settings configures the solver. It is read at every call and may be
// changed freely between calls.
type Settings struct {
	// Default proximal parameters used by init when no override is given.
	// Zero selects the built-in value.
	DefaultRho  float64 `yaml:"default_rho" toml:"default_rho" env:"PROXQP_DEFAULT_RHO"`
	DefaultMuEq float64 `yaml:"default_mu_eq" toml:"default_mu_eq" env:"PROXQP_DEFAULT_MU_EQ"`
	DefaultMuIn float64 `yaml:"default_mu_in" toml:"default_mu_in" env:"PROXQP_DEFAULT_MU_IN"`

	// Over-relaxation factor α ∈ (0, 2).
	Alpha float64 `yaml:"alpha" toml:"alpha" env:"PROXQP_ALPHA"`

	// The iteration stop when both residuals satisfy:
	//   ‖ r ‖∞ ≤ 𝚎𝚙𝚜_𝚊𝚋𝚜 + 𝚎𝚙𝚜_𝚛𝚎𝚕 × 𝚜𝚌𝚊𝚕𝚎
	EpsAbs float64 `yaml:"eps_abs" toml:"eps_abs" env:"PROXQP_EPS_ABS"`
	EpsRel float64 `yaml:"eps_rel" toml:"eps_rel" env:"PROXQP_EPS_REL"`

	// Tolerances of the primal and dual infeasibility certificates.
	EpsPrimalInf float64 `yaml:"eps_primal_inf" toml:"eps_primal_inf" env:"PROXQP_EPS_PRIMAL_INF"`
	EpsDualInf   float64 `yaml:"eps_dual_inf" toml:"eps_dual_inf" env:"PROXQP_EPS_DUAL_INF"`

	MaxIter int `yaml:"max_iter" toml:"max_iter" env:"PROXQP_MAX_ITER"`

	// The proximal parameters are rebalanced every MuUpdateInterval iterations
	// when the residual ratio moves by more than MuUpdateFactor.
	MuUpdateInterval int     `yaml:"mu_update_interval" toml:"mu_update_interval" env:"PROXQP_MU_UPDATE_INTERVAL"`
	MuUpdateFactor   float64 `yaml:"mu_update_factor" toml:"mu_update_factor" env:"PROXQP_MU_UPDATE_FACTOR"`
	MuMinEq          float64 `yaml:"mu_min_eq" toml:"mu_min_eq" env:"PROXQP_MU_MIN_EQ"`
	MuMinIn          float64 `yaml:"mu_min_in" toml:"mu_min_in" env:"PROXQP_MU_MIN_IN"`
	MuMax            float64 `yaml:"mu_max" toml:"mu_max" env:"PROXQP_MU_MAX"`

	ComputePreconditioner  bool    `yaml:"compute_preconditioner" toml:"compute_preconditioner" env:"PROXQP_COMPUTE_PRECONDITIONER"`
	PreconditionerMaxIter  int     `yaml:"preconditioner_max_iter" toml:"preconditioner_max_iter" env:"PROXQP_PRECONDITIONER_MAX_ITER"`
	PreconditionerAccuracy float64 `yaml:"preconditioner_accuracy" toml:"preconditioner_accuracy" env:"PROXQP_PRECONDITIONER_ACCURACY"`

	// Inner conjugate gradient of the sparse backend. Zero CGMaxIter selects 10n+50.
	CGMaxIter   int     `yaml:"cg_max_iter" toml:"cg_max_iter" env:"PROXQP_CG_MAX_ITER"`
	CGTolerance float64 `yaml:"cg_tolerance" toml:"cg_tolerance" env:"PROXQP_CG_TOLERANCE"`

	Verbose bool `yaml:"verbose" toml:"verbose" env:"PROXQP_VERBOSE"`
}

// DefaultSettings returns the settings a new QP object starts with.
func DefaultSettings() Settings {
	return Settings{
		DefaultRho:             fallbackRho,
		DefaultMuEq:            fallbackMuEq,
		DefaultMuIn:            fallbackMuIn,
		Alpha:                  1.6,
		EpsAbs:                 1e-5,
		EpsRel:                 0,
		EpsPrimalInf:           1e-4,
		EpsDualInf:             1e-4,
		MaxIter:                10000,
		MuUpdateInterval:       25,
		MuUpdateFactor:         5,
		MuMinEq:                1e-6,
		MuMinIn:                1e-6,
		MuMax:                  1e6,
		ComputePreconditioner:  true,
		PreconditionerMaxIter:  10,
		PreconditionerAccuracy: 1e-3,
		CGMaxIter:              0,
		CGTolerance:            1e-12,
	}
}

// Validate reports the first out of range field.
func (s *Settings) Validate() (err error) {
	switch {
	case s.DefaultRho < zero || s.DefaultMuEq < zero || s.DefaultMuIn < zero:
		err = errors.New("default proximal parameters must not less than 0")
	case s.Alpha <= zero || s.Alpha >= 2:
		err = errors.New("relaxation factor must in (0,2)")
	case s.EpsAbs < zero || s.EpsRel < zero:
		err = errors.New("tolerance must not less than 0")
	case s.EpsAbs == zero && s.EpsRel == zero:
		err = errors.New("absolute and relative tolerance must not both be 0")
	case s.EpsPrimalInf <= zero || s.EpsDualInf <= zero:
		err = errors.New("infeasibility tolerance must greater than 0")
	case s.MaxIter <= 0:
		err = errors.New("max iteration must greater than 0")
	case s.MuUpdateInterval < 0:
		err = errors.New("mu update interval must not less than 0")
	case s.MuUpdateFactor <= one:
		err = errors.New("mu update factor must greater than 1")
	case s.MuMinEq <= zero || s.MuMinIn <= zero:
		err = errors.New("minimal mu must greater than 0")
	case s.MuMax < s.MuMinEq || s.MuMax < s.MuMinIn:
		err = errors.New("maximal mu must not less than minimal mu")
	case s.PreconditionerMaxIter < 0:
		err = errors.New("preconditioner iteration must not less than 0")
	case s.PreconditionerAccuracy <= zero:
		err = errors.New("preconditioner accuracy must greater than 0")
	case s.CGMaxIter < 0:
		err = errors.New("cg iteration must not less than 0")
	case s.CGTolerance <= zero:
		err = errors.New("cg tolerance must greater than 0")
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return
}

// resolve picks the proximal parameters in order: explicit override,
// then the given current values.
func (p Proximal) resolve(rho, muEq, muIn float64) (float64, float64, float64) {
	return p.Rho.Or(rho), p.MuEq.Or(muEq), p.MuIn.Or(muIn)
}

// defaults returns the proximal parameters of the settings, falling back to
// the built-in values for fields left at zero.
func (s *Settings) defaults() (rho, muEq, muIn float64) {
	pick := func(v, fallback float64) float64 {
		if v > zero {
			return v
		}
		return fallback
	}
	return pick(s.DefaultRho, fallbackRho), pick(s.DefaultMuEq, fallbackMuEq), pick(s.DefaultMuIn, fallbackMuIn)
}
