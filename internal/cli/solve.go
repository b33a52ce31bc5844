// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"

	"github.com/curioloop/proxqp/qp"
	"github.com/spf13/cobra"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	Sparse           bool
	MaxIter          int
	EpsAbs           float64
	EpsRel           float64
	NoPreconditioner bool
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve <problem-file>",
		Short: "Solve a QP described by a YAML or TOML file",
		Long: `Load a QP from a YAML (.yaml, .yml) or TOML (.toml) file and solve it.

Settings are taken from the defaults, then PROXQP_* environment variables,
then the settings block of the file, then the command flags.

Example:
  proxqp solve problem.yaml
  proxqp solve --sparse --eps-abs 1e-8 problem.toml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Sparse, "sparse", false, "use the sparse solver")
	cmd.Flags().IntVar(&opts.MaxIter, "max-iter", 0, "override the iteration cap")
	cmd.Flags().Float64Var(&opts.EpsAbs, "eps-abs", 0, "override the absolute tolerance")
	cmd.Flags().Float64Var(&opts.EpsRel, "eps-rel", 0, "override the relative tolerance")
	cmd.Flags().BoolVar(&opts.NoPreconditioner, "no-preconditioner", false, "skip the equilibration")

	return cmd
}

func runSolve(opts *SolveOptions, path string, cmd *cobra.Command) error {
	log := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	base, err := LoadSettings(opts.Environ)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read environment", err)
	}
	p, err := LoadProblem(path, base)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load problem", err)
	}

	flags := cmd.Flags()
	if flags.Changed("max-iter") {
		p.Settings.MaxIter = opts.MaxIter
	}
	if flags.Changed("eps-abs") {
		p.Settings.EpsAbs = opts.EpsAbs
	}
	if flags.Changed("eps-rel") {
		p.Settings.EpsRel = opts.EpsRel
	}
	log.Debug("problem loaded", "path", path, "n", p.N, "n_eq", p.NEq, "n_in", p.NIn)

	compute := p.Settings.ComputePreconditioner && !opts.NoPreconditioner
	in, err := Build(p, opts.Sparse, compute)
	if err != nil {
		code := ExitCommandError
		if errors.Is(err, qp.ErrConstruction) || errors.Is(err, qp.ErrSparsityViolation) {
			code = ExitFailure
		}
		return WrapExitError(code, "failed to initialize solver", err)
	}
	if opts.Verbose {
		in.SetLogger(&qp.Logger{Level: qp.LogIter, Msg: cmd.ErrOrStderr()})
	}

	in.Solver.Solve()
	info := &in.Results.Info
	log.Debug("solve finished", "variant", in.Variant, "status", info.Status.String(),
		"iter", info.Iter, "solve_time", info.SolveTime)

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err = f.Report(newReport(in.Variant, in.Results)); err != nil {
		return err
	}
	if info.Status != qp.Solved {
		return NewExitError(ExitFailure, fmt.Sprintf("solve ended with status %s", info.Status))
	}
	return nil
}
