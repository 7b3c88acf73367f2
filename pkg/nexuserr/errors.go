/*
 * Copyright 2024 Nexus Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package nexuserr defines the error taxonomy that the data plane core
// surfaces to its callers, independent of whatever transport eventually
// renders them (HTTP status codes, CLI exit codes, ...).
package nexuserr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way a transport needs to react to it.
type Kind int

const (
	// KindValidation covers malformed input: bad resource paths, non-multiple
	// sample periods, non-monotonic time ranges, an availability step that
	// would produce too many buckets.
	KindValidation Kind = iota
	// KindNotFound covers unknown catalogs/resources/attachments and
	// soft-link resolution that exceeded its hop budget.
	KindNotFound
	// KindForbidden covers authorization failures.
	KindForbidden
	// KindLocked covers I/O conflicts on attachment writes/deletes.
	KindLocked
	// KindOutOfMemory covers a memory-tracker allocation that could not be
	// satisfied even at its minimum size. Fatal to the orchestration that
	// requested it.
	KindOutOfMemory
	// KindTransient covers a single source's read failure; callers log it
	// and fill the affected sub-interval with NaN rather than aborting.
	KindTransient
	// KindFatal covers internal invariant violations, e.g. a catalog
	// returning an ID that doesn't match what was requested.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindLocked:
		return "locked"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-classified error. Library code returns one of these
// only when a caller is expected to branch on Kind (via errors.As); all
// other failures are plain wrapped errors.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is match any two *Error values of the same Kind, e.g.
// errors.Is(err, nexuserr.NotFound("")); message and cause are ignored.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Validation builds a KindValidation error.
func Validation(format string, args ...any) *Error {
	return newf(KindValidation, nil, format, args...)
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, nil, format, args...)
}

// Forbidden builds a KindForbidden error.
func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, nil, format, args...)
}

// Locked builds a KindLocked error.
func Locked(format string, args ...any) *Error {
	return newf(KindLocked, nil, format, args...)
}

// OutOfMemory builds a KindOutOfMemory error.
func OutOfMemory(format string, args ...any) *Error {
	return newf(KindOutOfMemory, nil, format, args...)
}

// Transient wraps cause as a KindTransient error.
func Transient(cause error, format string, args ...any) *Error {
	return newf(KindTransient, cause, format, args...)
}

// Fatal builds a KindFatal invariant-violation error; it carries no cause.
func Fatal(format string, args ...any) *Error {
	return newf(KindFatal, nil, format, args...)
}

// Is reports whether err (or anything it wraps) is a *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}
