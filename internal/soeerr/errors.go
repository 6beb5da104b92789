// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package soeerr classifies every failure the trusted core can produce
// into the small set of kinds the front door needs to pick a return code.
// There is no local recovery inside an engine: every error here is fatal
// to the operation and, if a scan is open, to that scan.
package soeerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the abstract error kinds the core can produce.
type Kind int

const (
	// CryptoFault: the codec failed to encrypt or decrypt a page.
	CryptoFault Kind = iota
	// OutOfBounds: a block number falls beyond the relation's extent.
	OutOfBounds
	// Invalid: an item id isn't NORMAL, a page pointer is corrupt, an
	// operator OID is unrecognized, or a page-type flag is unknown.
	Invalid
	// TooLarge: a tuple exceeds the index or heap maximum item size.
	TooLarge
	// PageFull: no further split is possible (maxbucket saturated, out of
	// overflow pages, or no feasible B-tree split).
	PageFull
	// HostError: a host callback (init/read/write/close) failed.
	HostError
	// Unsupported: backward scans, concurrent split recovery, unique
	// checking on insert — none of these are implemented.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case CryptoFault:
		return "CryptoFault"
	case OutOfBounds:
		return "OutOfBounds"
	case Invalid:
		return "Invalid"
	case TooLarge:
		return "TooLarge"
	case PageFull:
		return "PageFull"
	case HostError:
		return "HostError"
	case Unsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// soeError pairs a Kind with the wrapped cause, so callers that want the
// kind can type-assert while everyone else just sees a normal error.
type soeError struct {
	kind Kind
	msg  string
	err  error
}

func (e *soeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *soeError) Unwrap() error { return e.err }

// Cause returns the root cause of the wrapped error, as
// github.com/pkg/errors.Cause reports it.
func (e *soeError) Cause() error { return errors.Cause(e.err) }

// New creates a new error of the given kind.
func New(kind Kind, msg string) error {
	return &soeError{kind: kind, msg: msg}
}

// Newf creates a new error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &soeError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving it as the cause
// via errors.WithStack (github.com/pkg/errors) so the call stack at the wrap
// site is retained for logging.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &soeError{kind: kind, msg: msg, err: errors.WithStack(err)}
}

// KindOf extracts the Kind from err, defaulting to Invalid if err was not
// produced by this package (which should not normally happen inside the
// trusted core, but front-door code must not panic on it).
func KindOf(err error) Kind {
	var se *soeError
	if errors.As(err, &se) {
		return se.kind
	}
	return Invalid
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var se *soeError
	if errors.As(err, &se) {
		return se.kind == kind
	}
	return false
}
