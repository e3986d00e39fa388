// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package masc

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable error taxonomy surfaced to clients as
// data.kind on JSON-RPC errors.
type ErrorKind string

const (
	KindInvalidArgument  ErrorKind = "invalid_argument"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindForbidden        ErrorKind = "forbidden"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindRateLimited      ErrorKind = "rate_limited"
	KindToolDisabled     ErrorKind = "tool_disabled"
	KindTimeout          ErrorKind = "timeout"
	KindBackendTransient ErrorKind = "backend_transient"
	KindBackendFatal     ErrorKind = "backend_fatal"
	KindDrift            ErrorKind = "drift"
	KindCancelled        ErrorKind = "cancelled"
)

// Error is the single domain error type. Handlers return it (usually
// wrapped); the dispatcher unwraps with errors.As and maps Kind onto the
// wire representation.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithDetail returns the error with one detail field set, for call sites
// that add context incrementally.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, 1)
	}
	e.Details[key] = value
	return e
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument reports a schema violation or out-of-range value.
func InvalidArgument(format string, args ...interface{}) *Error {
	return newError(KindInvalidArgument, format, args...)
}

// NotFound reports an absent entity.
func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

// Conflict reports a lost CAS, an illegal state transition, or a lock held
// by another agent.
func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

// Forbidden reports an ownership failure, e.g. unlock by a non-holder.
func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

// Unauthorized reports a missing or bad bearer token.
func Unauthorized(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, format, args...)
}

// RateLimited reports an exhausted token bucket.
func RateLimited(format string, args ...interface{}) *Error {
	return newError(KindRateLimited, format, args...)
}

// ToolDisabled reports a tool whose category is outside the active mode.
func ToolDisabled(format string, args ...interface{}) *Error {
	return newError(KindToolDisabled, format, args...)
}

// Timeout reports an exceeded request deadline.
func Timeout(format string, args ...interface{}) *Error {
	return newError(KindTimeout, format, args...)
}

// BackendTransient reports a retryable backend failure.
func BackendTransient(format string, args ...interface{}) *Error {
	return newError(KindBackendTransient, format, args...)
}

// BackendFatal reports a non-retryable backend failure.
func BackendFatal(format string, args ...interface{}) *Error {
	return newError(KindBackendFatal, format, args...)
}

// Drift reports handoff integrity below the similarity threshold.
func Drift(format string, args ...interface{}) *Error {
	return newError(KindDrift, format, args...)
}

// Cancelled reports client-side cancellation.
func Cancelled(format string, args ...interface{}) *Error {
	return newError(KindCancelled, format, args...)
}

// KindOf extracts the taxonomy kind from any error in the chain. Unknown
// errors report an empty kind.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the error is a transient backend failure worth
// another attempt.
func Retryable(err error) bool {
	return IsKind(err, KindBackendTransient)
}
