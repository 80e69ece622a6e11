// Package errs implements the tagged error taxonomy used across the
// monitor so callers can decide retry-vs-terminal behavior without parsing
// error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of retry and propagation
// decisions, per the error handling design.
type Kind string

const (
	KindRpcTransient     Kind = "rpc_transient"
	KindRpcPermanent     Kind = "rpc_permanent"
	KindContractDecode   Kind = "contract_decode"
	KindStoreConflict    Kind = "store_conflict"
	KindStoreFatal       Kind = "store_fatal"
	KindDeliverTransient Kind = "deliver_transient"
	KindDeliverPermanent Kind = "deliver_permanent"
	KindConfigInvalid    Kind = "config_invalid"
)

// Error is the tagged error type every component returns. Chain is 0 when
// the error is not chain-specific.
type Error struct {
	Kind  Kind
	Chain uint64
	Err   error
}

func (e *Error) Error() string {
	if e.Chain != 0 {
		return fmt.Sprintf("%s (chain %d): %v", e.Kind, e.Chain, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error.
func New(kind Kind, chain uint64, err error) *Error {
	return &Error{Kind: kind, Chain: chain, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Transient reports whether err should be retried by the caller that raised
// it (RpcTransient, DeliverTransient).
func Transient(err error) bool {
	return Is(err, KindRpcTransient) || Is(err, KindDeliverTransient)
}

// Terminal reports whether err should abort the process (StoreFatal,
// ConfigInvalid).
func Terminal(err error) bool {
	return Is(err, KindStoreFatal) || Is(err, KindConfigInvalid)
}
