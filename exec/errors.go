// Copyright (C) 2024 The graphvec Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package exec implements the physical operator model: the operator base
// contract, the pipeline driver, and the morsel-driven scheduler (spec.md
// §4.2-§4.3), plus the error/context/progress types every subpackage
// shares.
package exec

import "fmt"

// Kind tags the ten error categories of spec.md §7.
type Kind int

const (
	BindError Kind = iota
	ParserError
	RuntimeError
	ConstraintViolation
	Interrupted
	StorageError
	BufferManagerError
	TransactionError
	CatalogError
	NotImplemented
)

func (k Kind) String() string {
	switch k {
	case BindError:
		return "BindError"
	case ParserError:
		return "ParserError"
	case RuntimeError:
		return "RuntimeError"
	case ConstraintViolation:
		return "ConstraintViolation"
	case Interrupted:
		return "Interrupted"
	case StorageError:
		return "StorageError"
	case BufferManagerError:
		return "BufferManagerError"
	case TransactionError:
		return "TransactionError"
	case CatalogError:
		return "CatalogError"
	case NotImplemented:
		return "NotImplemented"
	default:
		return "UnknownError"
	}
}

// Error is the execution core's error value: every error that crosses an
// operator boundary carries one of the Kind tags above (spec.md §7),
// tested with errors.As rather than string matching.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// IsInterrupted reports whether err is (or wraps) an Interrupted error,
// the check every operator performs before propagating an error upward
// (spec.md §7: "Interrupted queries roll back their transaction").
func IsInterrupted(err error) bool {
	var e *Error
	return asError(err, &e) && e.Kind == Interrupted
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
