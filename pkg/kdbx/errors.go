// Copyright 2026 The Sandpass Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kdbx

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors
var (
	ErrSignature          = errors.New("kdbx: not a KeePass file")
	ErrUnsupportedVersion = errors.New("kdbx: unsupported file version")
	ErrHeaderHash         = errors.New("kdbx: header hash mismatch, file is corrupt")
	ErrBadCredentials     = errors.New("kdbx: wrong password or key file")
	ErrNoCredentials      = errors.New("kdbx: no password or key file given")
	ErrKDFMemory          = errors.New("kdbx: KDF memory cost exceeds limit")
)

// Kind classifies the errors returned by Open.  A Kind is itself an
// error, so errors.Is(err, kdbx.CredentialsError) reports whether a
// failure can be fixed by asking for the password again.
type Kind int

// Error kinds
const (
	// FormatError is a malformed or unrecognized encoding: a bad
	// signature, an unknown header tag or identifier, or a length that
	// does not match its field.
	FormatError Kind = 1 + iota
	// ValidationError is a well-formed value outside its permitted
	// range, or a required field that is absent.
	ValidationError
	// IntegrityError means the stored header hash did not match.
	IntegrityError
	// CredentialsError means the header MAC did not match, which is
	// what a wrong password or key file produces.
	CredentialsError
	// BlockIntegrityError means a payload block failed authentication.
	BlockIntegrityError
	// UnsupportedError is a recognized feature that is not implemented.
	UnsupportedError
)

func (k Kind) String() string {
	switch k {
	case FormatError:
		return "format error"
	case ValidationError:
		return "validation error"
	case IntegrityError:
		return "integrity error"
	case CredentialsError:
		return "credentials error"
	case BlockIntegrityError:
		return "block integrity error"
	case UnsupportedError:
		return "unsupported feature"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) Error() string {
	return "kdbx: " + k.String()
}

// Error is the type of every error returned by Open.  Field names the
// header field, stage, or block the error occurred in.
type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch e.Err.(type) {
	case *MissingFieldError, *UnknownFieldError, *FieldSizeError, *HeaderSizeError:
		return e.Err.Error()
	}
	if e.Field == "" {
		return fmt.Sprintf("kdbx: %v", trimPrefix(e.Err))
	}
	return fmt.Sprintf("kdbx: %s: %v", e.Field, trimPrefix(e.Err))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is e's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of err, or zero if err did not come from Open.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// trimPrefix drops the package prefix from this package's own messages
// so that wrapping them does not print "kdbx: " twice.
func trimPrefix(err error) string {
	msg := err.Error()
	if len(msg) > len("kdbx: ") && msg[:len("kdbx: ")] == "kdbx: " {
		return msg[len("kdbx: "):]
	}
	return msg
}

// A MissingFieldError reports a required header field that was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "kdbx: missing header field " + e.Field
}

// An UnknownFieldError reports a header tag that is not valid in a
// KDBX 4 file.
type UnknownFieldError struct {
	Inner bool
	Tag   byte
}

func (e *UnknownFieldError) Error() string {
	if e.Inner {
		return fmt.Sprintf("kdbx: unknown inner header field %d", e.Tag)
	}
	return fmt.Sprintf("kdbx: unknown header field %d", e.Tag)
}

// A FieldSizeError reports a header field whose value has the wrong length.
type FieldSizeError struct {
	Field string
	Size  int
	Want  int
}

func (e *FieldSizeError) Error() string {
	return fmt.Sprintf("kdbx: header field %s is %d bytes, want %d", e.Field, e.Size, e.Want)
}

// A HeaderSizeError is returned when the outer header is longer than
// Options.MaxHeaderSize.
type HeaderSizeError struct {
	Max int
}

func (e *HeaderSizeError) Error() string {
	return fmt.Sprintf("kdbx: header larger than %d bytes", e.Max)
}
