/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package dict

import (
	"errors"
	"fmt"

	units "github.com/docker/go-units"
)

// Kind classifies the error surface described in SPEC_FULL.md §7.
type Kind int

const (
	_ Kind = iota
	KindCannotAttach
	KindMissingDependency
	KindParameterMismatch
	KindCannotAcquireLock
	KindLockStolen
	KindDumpTooLarge
	KindCorruption
	KindAlreadyClosed
)

func (k Kind) String() string {
	switch k {
	case KindCannotAttach:
		return "CannotAttach"
	case KindMissingDependency:
		return "MissingDependency"
	case KindParameterMismatch:
		return "ParameterMismatch"
	case KindCannotAcquireLock:
		return "CannotAcquireLock"
	case KindLockStolen:
		return "LockStolen"
	case KindDumpTooLarge:
		return "DumpTooLarge"
	case KindCorruption:
		return "Corruption"
	case KindAlreadyClosed:
		return "AlreadyClosed"
	default:
		return "Unknown"
	}
}

// Error wraps one of the Kind sentinels with context and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shmdict: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("shmdict: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCannotAttach) work against a *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Sentinel values for errors.Is comparisons; only Kind is compared.
var (
	ErrCannotAttach      = &Error{Kind: KindCannotAttach}
	ErrMissingDependency = &Error{Kind: KindMissingDependency}
	ErrParameterMismatch = &Error{Kind: KindParameterMismatch}
	ErrCannotAcquireLock = &Error{Kind: KindCannotAcquireLock}
	ErrLockStolen        = &Error{Kind: KindLockStolen}
	ErrDumpTooLarge      = &Error{Kind: KindDumpTooLarge}
	ErrCorruption        = &Error{Kind: KindCorruption}
	ErrAlreadyClosed     = &Error{Kind: KindAlreadyClosed}
)

func errCannotAttach(name string, cause error) error {
	return newErr(KindCannotAttach, fmt.Sprintf("segment %q", name), cause)
}

func errDumpTooLarge(needed, limit uint32) error {
	return newErr(KindDumpTooLarge, fmt.Sprintf("dump needs %s, fixed segment holds %s",
		units.BytesSize(float64(needed)), units.BytesSize(float64(limit))), nil)
}

func errCorruption(reason string) error {
	return newErr(KindCorruption, reason, nil)
}

func errAlreadyClosed() error {
	return newErr(KindAlreadyClosed, "handle was already closed", nil)
}

func errParameterMismatch(field string, creator, self any) error {
	return newErr(KindParameterMismatch, fmt.Sprintf("%s: creator=%v self=%v", field, creator, self), nil)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
