package syncer

import (
	"errors"
	"fmt"
)

// Kind classifies a sync failure. Connection and folder errors abort the
// whole run; the remaining kinds are confined to a single message.
type Kind uint8

const (
	KindConnection Kind = iota + 1
	KindFolderNotFound
	KindIdentity
	KindFetch
	KindAppend
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindFolderNotFound:
		return "folder not found"
	case KindIdentity:
		return "identity derivation"
	case KindFetch:
		return "fetch"
	case KindAppend:
		return "append"
	}
	return "unknown"
}

// Error is a classified sync failure. Timeouts carry the kind of the
// phase they occurred in: session setup maps to KindConnection, message
// transfer to KindFetch or KindAppend.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the error aborts the run rather than a single
// message.
func (e *Error) Fatal() bool {
	return e.Kind == KindConnection || e.Kind == KindFolderNotFound
}

func wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsFatal reports whether err should abort the run. Unclassified errors
// (including context cancellation) are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Fatal()
	}
	return true
}

// ErrKind returns the classification of err, or zero if unclassified.
func ErrKind(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
