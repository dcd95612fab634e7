package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures from external collaborators so the
// pipeline can decide between skip, fail, and degrade without string
// matching at call sites.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConnectivity
	KindAuth
	KindProtocol
	KindRejected
	KindTimeout
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a kind and the operation that failed
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E constructs a classified error
func E(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf constructs a classified error from a format string
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, or KindUnknown
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsAuth reports whether err is a credential/session failure
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsRejected reports whether err is a collaborator-side business rejection
func IsRejected(err error) bool { return KindOf(err) == KindRejected }

// IsTimeout reports whether err is a collaborator exceeding its budget
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }
