// Package errs defines the typed error kinds propagated from core
// components up through the message bus.
package errs

import "fmt"

// Kind classifies an error for the bus's translation into a <domain>:error
// wire message and for the daemon's shutdown policy.
type Kind int

const (
	// KindUser covers bad input from the client: unknown session/tunnel/
	// transfer ids, disallowed shells, path traversal. Never fatal.
	KindUser Kind = iota
	// KindResource covers missing or busy host resources: Chrome not
	// found, a profile locked by a live pid, an unreachable tunnel port.
	KindResource
	// KindTransient covers hiccups expected to resolve on retry: a CDP
	// call timing out, a momentary read/write failure.
	KindTransient
	// KindFatal covers corruption the process cannot recover from: bus/
	// transport corruption, a panic in the router's dispatch loop.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindResource:
		return "resource"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying a Kind alongside the usual message and
// wrapped cause, so callers up the stack can branch on classification
// without string-matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// User constructs a KindUser error.
func User(msg string) *Error { return &Error{Kind: KindUser, Msg: msg} }

// Userf constructs a KindUser error with a wrapped cause.
func Userf(msg string, err error) *Error { return &Error{Kind: KindUser, Msg: msg, Err: err} }

// Resource constructs a KindResource error.
func Resource(msg string) *Error { return &Error{Kind: KindResource, Msg: msg} }

// Resourcef constructs a KindResource error with a wrapped cause.
func Resourcef(msg string, err error) *Error { return &Error{Kind: KindResource, Msg: msg, Err: err} }

// Transient constructs a KindTransient error.
func Transient(msg string) *Error { return &Error{Kind: KindTransient, Msg: msg} }

// Transientf constructs a KindTransient error with a wrapped cause.
func Transientf(msg string, err error) *Error {
	return &Error{Kind: KindTransient, Msg: msg, Err: err}
}

// Fatal constructs a KindFatal error.
func Fatal(msg string) *Error { return &Error{Kind: KindFatal, Msg: msg} }

// Fatalf constructs a KindFatal error with a wrapped cause.
func Fatalf(msg string, err error) *Error { return &Error{Kind: KindFatal, Msg: msg, Err: err} }

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// defaulting to KindTransient for plain errors — an error nobody
// classified is assumed recoverable, never silently fatal.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e != nil {
		return e.Kind
	}
	return KindTransient
}
