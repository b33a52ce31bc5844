// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qp

import "github.com/curioloop/proxqp/linalg"

// Optional is either unset or holds a value.
// The zero value is unset.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Get returns the held value and whether it is set.
func (o Optional[T]) Get() (T, bool) { return o.value, o.set }

// IsSet reports whether a value is held.
func (o Optional[T]) IsSet() bool { return o.set }

// Or returns the held value or def when unset.
func (o Optional[T]) Or(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// Data carries the problem fields of an init or update call.
// Unset fields are absent (init) or keep their previous value (update).
type Data[M linalg.Matrix] struct {
	H, A, C    Optional[M]
	G, B, L, U Optional[[]float64]
}

// Proximal carries optional overrides of the proximal parameters.
type Proximal struct {
	Rho  Optional[float64] // Primal proximal step ρ
	MuEq Optional[float64] // Equality dual proximal step μₑ
	MuIn Optional[float64] // Inequality dual proximal step μᵢ
}
