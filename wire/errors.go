package wire

import (
	"errors"
	"strconv"
)

// ErrPfxCompLimit is returned when a name exceeds MaxNameComponents,
// spec.md §4.2's PFX_COMP_LIMIT failure mode.
var ErrPfxCompLimit = errors.New("name exceeds maximum component depth")

// ErrDecode is a sentinel identifying the Decode error kind of spec.md §7.
var ErrDecode = errors.New("malformed wire packet")

// DecodeError carries the {kind, offset} pair spec.md §4.1 requires on
// every decode failure, and wraps ErrDecode for errors.Is matching.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return "decode error at offset " + strconv.Itoa(e.Offset) + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return errors.Join(ErrDecode, e.Err) }
