// errors.go - error taxonomy shared by every machine subsystem

package main

import "fmt"

// Code is one of the eight result codes the reference machine uses to report
// failure. A nil error represents NoErr; every other case is wrapped in an
// Error value.
type Code int

const (
	NoErr Code = iota
	Precondition
	NoMem
	Invalid
	Again
	Extern
	File
	Port
)

func (c Code) String() string {
	switch c {
	case NoErr:
		return "NOERR"
	case Precondition:
		return "PCOND"
	case NoMem:
		return "NOMEM"
	case Invalid:
		return "INVAL"
	case Again:
		return "AGAIN"
	case Extern:
		return "EXTERN"
	case File:
		return "FILE"
	case Port:
		return "PORT"
	default:
		return fmt.Sprintf("CODE(%d)", int(c))
	}
}

// Error wraps a Code with the operation that produced it, so errors.Is
// against a bare Code still matches while %v output stays informative.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, SomeCode) work directly against a Code value.
func (e *Error) Is(target error) bool {
	if c, ok := target.(Code); ok {
		return e.Code == c
	}
	return false
}

func (c Code) Error() string { return c.String() }

func errf(op string, code Code) error {
	return &Error{Code: code, Op: op}
}

func wrapf(op string, code Code, err error) error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf extracts the Code carried by err, or NoErr if err is nil, or
// Extern if err is a non-Error.
func CodeOf(err error) Code {
	if err == nil {
		return NoErr
	}
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return e.Code
	}
	return Extern
}
