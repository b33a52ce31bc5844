// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/curioloop/proxqp/dense"
	"github.com/curioloop/proxqp/linalg"
	"github.com/curioloop/proxqp/qp"
	"github.com/curioloop/proxqp/sparse"
	"gopkg.in/yaml.v3"
)

// ProblemFile is the on-disk description of a QP. Matrices are given as
// lists of rows, omitted fields follow the init rules of the solver.
// The dimensions may be omitted and are then taken from the data.
type ProblemFile struct {
	N      int  `yaml:"n" toml:"n"`
	NEq    int  `yaml:"n_eq" toml:"n_eq"`
	NIn    int  `yaml:"n_in" toml:"n_in"`
	Sparse bool `yaml:"sparse" toml:"sparse"`

	H [][]float64 `yaml:"H" toml:"H"`
	G []float64   `yaml:"g" toml:"g"`
	A [][]float64 `yaml:"A" toml:"A"`
	B []float64   `yaml:"b" toml:"b"`
	C [][]float64 `yaml:"C" toml:"C"`
	L []float64   `yaml:"l" toml:"l"`
	U []float64   `yaml:"u" toml:"u"`

	Rho  *float64 `yaml:"rho" toml:"rho"`
	MuEq *float64 `yaml:"mu_eq" toml:"mu_eq"`
	MuIn *float64 `yaml:"mu_in" toml:"mu_in"`

	// Settings overlays the environment, keys left out keep their value.
	Settings qp.Settings `yaml:"settings" toml:"settings"`
}

// LoadSettings returns the default settings overridden by PROXQP_* variables.
func LoadSettings(environ map[string]string) (qp.Settings, error) {
	s := qp.DefaultSettings()
	if err := env.ParseWithOptions(&s, env.Options{Environment: environ}); err != nil {
		return s, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// LoadProblem decodes a YAML (.yaml, .yml) or TOML (.toml) problem file on
// top of the given settings.
func LoadProblem(path string, base qp.Settings) (*ProblemFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := &ProblemFile{Settings: base}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), p)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if keys := md.Undecoded(); len(keys) > 0 {
			return nil, fmt.Errorf("decode %s: unknown key %q", path, keys[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported problem file extension %q", ext)
	}
	p.inferDims()
	return p, nil
}

func (p *ProblemFile) inferDims() {
	first := func(cur int, sizes ...int) int {
		for _, s := range sizes {
			if cur == 0 {
				cur = s
			}
		}
		return cur
	}
	p.N = first(p.N, len(p.G), len(p.H))
	p.NEq = first(p.NEq, len(p.B), len(p.A))
	p.NIn = first(p.NIn, len(p.C), len(p.L), len(p.U))
}

func (p *ProblemFile) proximal() (prox qp.Proximal) {
	if p.Rho != nil {
		prox.Rho = qp.Some(*p.Rho)
	}
	if p.MuEq != nil {
		prox.MuEq = qp.Some(*p.MuEq)
	}
	if p.MuIn != nil {
		prox.MuIn = qp.Some(*p.MuIn)
	}
	return
}

func matrix(field string, rows [][]float64, n int) (*linalg.Dense, error) {
	m, ok := linalg.NewDenseRows(n, rows)
	if !ok {
		return nil, &qp.ConstructionError{Field: field, Reason: fmt.Sprintf("rows must have %d columns", n)}
	}
	return m, nil
}

// data converts the file into init arguments, M is the matrix type of the
// solver variant.
func data[M linalg.Matrix](p *ProblemFile, conv func(*linalg.Dense) M) (d qp.Data[M], err error) {
	for _, f := range []struct {
		name string
		rows [][]float64
		dst  *qp.Optional[M]
	}{
		{"H", p.H, &d.H},
		{"A", p.A, &d.A},
		{"C", p.C, &d.C},
	} {
		if f.rows == nil {
			continue
		}
		m, err := matrix(f.name, f.rows, p.N)
		if err != nil {
			return d, err
		}
		*f.dst = qp.Some(conv(m))
	}
	for _, f := range []struct {
		val []float64
		dst *qp.Optional[[]float64]
	}{
		{p.G, &d.G}, {p.B, &d.B}, {p.L, &d.L}, {p.U, &d.U},
	} {
		if f.val != nil {
			*f.dst = qp.Some(f.val)
		}
	}
	return d, nil
}

// Instance is a loaded problem bound to a solver variant.
type Instance struct {
	Variant string
	Solver  interface {
		Solve()
		IsValid() bool
	}
	Results *qp.Results
	logger  func(*qp.Logger)
}

// SetLogger attaches an engine logger to the solver.
func (in *Instance) SetLogger(l *qp.Logger) { in.logger(l) }

func initSolver[M linalg.Matrix](s qp.Solver[M], p *ProblemFile, conv func(*linalg.Dense) M, computePreconditioner bool) error {
	d, err := data(p, conv)
	if err != nil {
		return err
	}
	return s.Init(d, computePreconditioner, p.proximal())
}

// Build creates the solver for the problem and initializes it.
func Build(p *ProblemFile, forceSparse, computePreconditioner bool) (*Instance, error) {
	if p.Sparse || forceSparse {
		q, err := sparse.New(p.N, p.NEq, p.NIn)
		if err != nil {
			return nil, err
		}
		q.Settings = p.Settings
		if err = initSolver[*linalg.CSC](q, p, linalg.CSCFromDense, computePreconditioner); err != nil {
			return nil, err
		}
		return &Instance{Variant: "sparse", Solver: q, Results: &q.Results, logger: q.SetLogger}, nil
	}
	q, err := dense.New(p.N, p.NEq, p.NIn)
	if err != nil {
		return nil, err
	}
	q.Settings = p.Settings
	identity := func(m *linalg.Dense) *linalg.Dense { return m }
	if err = initSolver[*linalg.Dense](q, p, identity, computePreconditioner); err != nil {
		return nil, err
	}
	return &Instance{Variant: "dense", Solver: q, Results: &q.Results, logger: q.SetLogger}, nil
}
