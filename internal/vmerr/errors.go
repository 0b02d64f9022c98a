// Package vmerr defines the error taxonomy shared by the compiler and the
// interpreter. Errors raised by the compiler and the interpreter themselves
// are *Error values carrying a Kind, so callers can branch on failure
// category without string-matching messages. Errors that come from
// pkg/bytecode (label and global registration, serialization) are passed
// through as plain wrapped errors without a Kind.
package vmerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// MalformedProgram covers structural problems in a Program: dangling
	// constant-pool references, an entry that isn't a Method, and the like.
	MalformedProgram Kind = iota
	// StackUnderflow is popping an operand or frame stack that is empty.
	StackUnderflow
	// TypeError is a primitive method or opcode applied to a receiver of
	// the wrong runtime type.
	TypeError
	// NameError is an unresolved global, field, or method name.
	NameError
	// ArityMismatch is a call with the wrong argument count.
	ArityMismatch
	// FormatError is a malformed Print format string, or a format whose
	// placeholder count differs from the number of supplied arguments.
	FormatError
	// Overflow is a negative array size or index, an index past the end of
	// an array, or a division by zero. Integer arithmetic wraps and never
	// raises it.
	Overflow
	// DuplicateLocal is a second declaration of the same name in one scope.
	DuplicateLocal
	// UnknownOperator is a binary operator with no method mapping.
	UnknownOperator
	// DuplicateLabel is a label name generated twice.
	DuplicateLabel
	// MalformedMember is an Object member that is neither a field nor a method.
	MalformedMember
)

func (k Kind) String() string {
	switch k {
	case MalformedProgram:
		return "malformed program"
	case StackUnderflow:
		return "stack underflow"
	case TypeError:
		return "type error"
	case NameError:
		return "name error"
	case ArityMismatch:
		return "arity mismatch"
	case FormatError:
		return "format error"
	case Overflow:
		return "overflow"
	case DuplicateLocal:
		return "duplicate local"
	case UnknownOperator:
		return "unknown operator"
	case DuplicateLabel:
		return "duplicate label"
	case MalformedMember:
		return "malformed member"
	default:
		return "error"
	}
}

// Error is a Kind-tagged error with an optional wrapped cause.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a *Error with a formatted message, capturing a stack trace via
// pkg/errors for later diagnostic printing.
func New(kind Kind, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, msg: msg, cause: errors.New(msg)}
}

// Wrap attaches kind and additional context to an existing error without
// discarding it, mirroring errors.Wrapf's stack-trace-on-wrap behavior.
func Wrap(cause error, kind Kind, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, msg: msg, cause: errors.Wrap(cause, msg)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
