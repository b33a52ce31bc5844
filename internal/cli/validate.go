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

// ValidationResult holds the outcome of the validate command.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Variant string `json:"variant,omitempty"`
	N       int    `json:"n"`
	NEq     int    `json:"n_eq"`
	NIn     int    `json:"n_in"`
	Error   string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <problem-file>",
		Short: "Check a problem file without solving it",
		Long: `Load a problem file and build the model, reporting the first
dimension or bound error.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	log := newLogger(opts, cmd.ErrOrStderr())
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	base, err := LoadSettings(opts.Environ)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read environment", err)
	}
	p, err := LoadProblem(path, base)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load problem", err)
	}
	res := ValidationResult{N: p.N, NEq: p.NEq, NIn: p.NIn}

	in, err := Build(p, false, false)
	if err == nil && !in.Solver.IsValid() {
		err = errors.New("model is not valid")
	}
	if err != nil {
		log.Debug("validation failed", "path", path, "err", err)
		res.Error = err.Error()
		if f.Format == "json" {
			if jerr := f.JSON(res); jerr != nil {
				return jerr
			}
		} else {
			fmt.Fprintf(f.Writer, "✗ %s\n", res.Error)
		}
		code := ExitFailure
		if errors.Is(err, qp.ErrInvalidSettings) {
			code = ExitCommandError
		}
		return WrapExitError(code, "validation failed", err)
	}

	res.Valid, res.Variant = true, in.Variant
	if f.Format == "json" {
		return f.JSON(res)
	}
	fmt.Fprintf(f.Writer, "✓ %s problem valid (n=%d, n_eq=%d, n_in=%d)\n", res.Variant, res.N, res.NEq, res.NIn)
	return nil
}
