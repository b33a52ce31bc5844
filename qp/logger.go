// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"fmt"
	"io"
	"os"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated
	LogNoop LogLevel = -1
	// LogLast print only the summary after the last iteration
	LogLast LogLevel = 0
	// LogIter print also the residuals and proximal parameters of every iteration
	LogIter LogLevel = 1
	// LogVerbose print also the scaling and the final x
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the solver.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for the iteration table, Msg when nil.
}

// stdLogger is used when verbose settings are given without a logger.
var stdLogger = &Logger{Level: LogIter, Msg: os.Stdout}

// noopLogger is used when no logger is attached.
var noopLogger = &Logger{Level: LogNoop, Msg: io.Discard}

// PickLogger returns the logger to use for a solve.
func PickLogger(l *Logger, s *Settings) *Logger {
	switch {
	case l != nil:
		return l
	case s.Verbose:
		return stdLogger
	default:
		return noopLogger
	}
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	w := l.Out
	if w == nil {
		w = l.Msg
	}
	if len(a) > 0 {
		_, _ = fmt.Fprintf(w, format, a...)
	} else {
		_, _ = fmt.Fprint(w, format)
	}
}

func formatNs(nanoseconds int64) string {
	switch {
	case nanoseconds >= 1e9: // Convert to seconds
		return fmt.Sprintf("%.2f s", float64(nanoseconds)/1e9)
	case nanoseconds >= 1e6: // Convert to milliseconds
		return fmt.Sprintf("%.2f ms", float64(nanoseconds)/1e6)
	case nanoseconds >= 1e3: // Convert to microseconds
		return fmt.Sprintf("%.2f µs", float64(nanoseconds)/1e3)
	default: // Keep in nanoseconds
		return fmt.Sprintf("%.2f ns", float64(nanoseconds))
	}
}
