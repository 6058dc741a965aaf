// Package ruleerrors defines the error kinds the consensus core
// reports beyond the plain store errors: invariant violations,
// protocol bad requests, pending-queue backpressure and timeouts.
package ruleerrors

import (
	"github.com/pkg/errors"
)

// ErrInvariantViolation signals that a post-condition of GHOSTDAG
// or reachability failed. It indicates a bug and aborts the
// facade's current operation.
var ErrInvariantViolation = errors.New("invariant violation")

// ErrBadRequest signals caller-supplied bounds out of range on a
// sync RPC. It is reported verbatim to the caller.
var ErrBadRequest = errors.New("bad request")

// ErrBackpressure signals that the pending (unknown-parent) queue
// overflowed and its oldest entry was dropped.
var ErrBackpressure = errors.New("pending queue overflow")

// ErrTimeout signals that an RPC deadline was exceeded.
var ErrTimeout = errors.New("timeout")
