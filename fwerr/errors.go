// Package fwerr collects the error taxonomy shared by the table, face,
// dispatch, and mgmt packages, grounded on the teacher's std/ndn/errors.go
// style: typed structs for errors that carry data, package-level
// sentinels for opaque ones, all compatible with errors.Is/errors.As.
package fwerr

import (
	"errors"
	"fmt"
)

// CapacityError is returned when a fixed-capacity resource (a FIB
// entry's next-hop list, the PIT, the content store) is full.
type CapacityError struct {
	Resource string
}

// Error reports which resource has hit its capacity limit.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s", e.Resource)
}

// PolicyError is returned when a request is well-formed but refused by
// forwarding policy (e.g. removing a connection that FIB next-hops
// still reference).
type PolicyError struct {
	Reason string
}

// Error reports why the policy refused the request.
func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy refused request: %s", e.Reason)
}

// ErrAlreadyExists is returned when an insert would duplicate an
// existing route, connection, or PIT entry key.
var ErrAlreadyExists = errors.New("entry already exists")

// ErrClosed is returned when an operation targets a connection or
// store that has already been torn down.
var ErrClosed = errors.New("closed")

// ErrNotSupported reports a recognized but unimplemented operation.
// No function in this module returns it; mgmt answers an unknown
// ControlOp with a nack reason string instead.
var ErrNotSupported = errors.New("not supported")

// ErrShuttingDown reports that forwarder shutdown has begun. No
// function in this module returns it; Dispatch has no error result.
var ErrShuttingDown = errors.New("forwarder is shutting down")
