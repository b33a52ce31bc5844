// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import (
	"errors"
	"fmt"
)

var (
	// ErrConstruction reports problem data that does not fit the declared dimensions or bounds.
	ErrConstruction = errors.New("qp: construction error")
	// ErrSparsityViolation reports a non-zero outside the fixed sparsity pattern.
	ErrSparsityViolation = errors.New("qp: sparsity violation")
	// ErrInvalidSettings reports out of range solver settings.
	ErrInvalidSettings = errors.New("qp: invalid settings")
)

// ConstructionError describes the offending field of an init or update call.
type ConstructionError struct {
	Field  string
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("qp: construction error: %s %s", e.Field, e.Reason)
}

func (e *ConstructionError) Is(target error) bool { return target == ErrConstruction }

// SparsityError locates a value supplied outside the fixed pattern of a matrix.
type SparsityError struct {
	Matrix   string
	Row, Col int
}

func (e *SparsityError) Error() string {
	return fmt.Sprintf("qp: sparsity violation: %s(%d,%d) outside fixed pattern", e.Matrix, e.Row, e.Col)
}

func (e *SparsityError) Is(target error) bool { return target == ErrSparsityViolation }
