// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/curioloop/proxqp/qp"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Invalid model or a solve that did not reach a solution
	ExitCommandError = 2 // Command error (unreadable file, bad flag value)
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Report is the outcome of a solve as printed by the CLI.
type Report struct {
	Status         string    `json:"status"`
	Variant        string    `json:"variant"`
	Iterations     int       `json:"iterations"`
	MuUpdates      int       `json:"mu_updates"`
	Objective      float64   `json:"objective"`
	PrimalResidual float64   `json:"primal_residual"`
	DualResidual   float64   `json:"dual_residual"`
	SetupTime      string    `json:"setup_time"`
	SolveTime      string    `json:"solve_time"`
	X              []float64 `json:"x"`
	Y              []float64 `json:"y"`
	Z              []float64 `json:"z"`
	Certificate    []float64 `json:"certificate,omitempty"`
}

func newReport(variant string, r *qp.Results) Report {
	rep := Report{
		Status:         r.Info.Status.String(),
		Variant:        variant,
		Iterations:     r.Info.Iter,
		MuUpdates:      r.Info.MuUpdates,
		Objective:      r.Info.Objective,
		PrimalResidual: r.Info.PrimalResidual,
		DualResidual:   r.Info.DualResidual,
		SetupTime:      r.Info.SetupTime.Round(time.Microsecond).String(),
		SolveTime:      r.Info.SolveTime.Round(time.Microsecond).String(),
		X:              r.X,
		Y:              r.Y,
		Z:              r.Z,
	}
	if len(r.Certificate) > 0 {
		rep.Certificate = r.Certificate
	}
	return rep
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// JSON encodes v indented.
func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Report writes a solve report.
func (f *OutputFormatter) Report(rep Report) error {
	if f.Format == "json" {
		return f.JSON(rep)
	}
	p := message.NewPrinter(language.English)
	p.Fprintf(f.Writer, "status       %s (%s)\n", rep.Status, rep.Variant)
	p.Fprintf(f.Writer, "iterations   %d\n", rep.Iterations)
	p.Fprintf(f.Writer, "mu updates   %d\n", rep.MuUpdates)
	p.Fprintf(f.Writer, "objective    %.6g\n", rep.Objective)
	p.Fprintf(f.Writer, "primal res   %.3e\n", rep.PrimalResidual)
	p.Fprintf(f.Writer, "dual res     %.3e\n", rep.DualResidual)
	p.Fprintf(f.Writer, "setup time   %s\n", rep.SetupTime)
	p.Fprintf(f.Writer, "solve time   %s\n", rep.SolveTime)
	p.Fprintf(f.Writer, "x            %v\n", rep.X)
	if len(rep.Y) > 0 {
		p.Fprintf(f.Writer, "y            %v\n", rep.Y)
	}
	if len(rep.Z) > 0 {
		p.Fprintf(f.Writer, "z            %v\n", rep.Z)
	}
	if len(rep.Certificate) > 0 {
		p.Fprintf(f.Writer, "certificate  %v\n", rep.Certificate)
	}
	return nil
}
