// File: internal/graphstore/errors.go
package graphstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/vantagesec/hypergraph-cli/internal/apiclient"
)

// ErrorKind classifies a graph operation failure. The kinds mirror how the
// failure should be surfaced: network and timeout problems route to a
// generic error view, backend rejections and invariant violations block
// with an alert, malformed payloads degrade silently.
type ErrorKind string

const (
	KindNetworkFailure     ErrorKind = "network_failure"
	KindBackendRejection   ErrorKind = "backend_rejection"
	KindInvariantViolation ErrorKind = "invariant_violation"
	KindMalformedPayload   ErrorKind = "malformed_payload"
	KindBusy               ErrorKind = "busy"
	KindNotFound           ErrorKind = "not_found"
	KindClosed             ErrorKind = "closed"
)

// Error is the typed failure returned by every Session operation.
type Error struct {
	Kind ErrorKind
	Op   string // the operation that failed, e.g. "CommitNode"
	ID   string // the node/hyperedge id involved, if any
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.ID != "" {
		msg = fmt.Sprintf("%s (id=%s)", msg, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinels for errors.Is checks on the kinds callers branch on.
var (
	ErrBusy     = errors.New("mutation already in flight")
	ErrClosed   = errors.New("session is closed")
	ErrNotFound = errors.New("not found")
)

// Is lets errors.Is match the sentinel corresponding to the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrBusy:
		return e.Kind == KindBusy
	case ErrClosed:
		return e.Kind == KindClosed
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// KindOf extracts the ErrorKind from an error chain, or "" if the chain
// holds no graphstore error.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// classifyBackendErr maps a raw backend-call failure onto the taxonomy.
// A well-formed non-2xx response is a rejection; everything else on the
// wire is a network failure.
func classifyBackendErr(op, id string, err error) *Error {
	var statusErr *apiclient.StatusError
	switch {
	case errors.As(err, &statusErr):
		return &Error{Kind: KindBackendRejection, Op: op, ID: id, Err: err}
	case errors.As(err, new(*apiclient.DecodeError)):
		return &Error{Kind: KindMalformedPayload, Op: op, ID: id, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindClosed, Op: op, ID: id, Err: err}
	default:
		return &Error{Kind: KindNetworkFailure, Op: op, ID: id, Err: err}
	}
}
