package rpc

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType represents the category of an RPC-layer error. The core
// distinguishes these per the indexer's error handling design: some are
// retried by the outer supervisor, some end a single stream, some are
// swallowed, some are fatal at startup.
type ErrorType int

const (
	// ErrConnect means the RPC endpoint could not be reached.
	ErrConnect ErrorType = iota

	// ErrSubscribe means a websocket subscription request was rejected.
	ErrSubscribe

	// ErrTimeout means no event/response arrived within the operation's deadline.
	ErrTimeout

	// ErrTransport means the RPC transport returned a malformed or unexpected response.
	ErrTransport

	// ErrEventWithoutBlock means a subscription event carried no block payload.
	ErrEventWithoutBlock

	// ErrChainIDMismatch means the block's chain_id does not match the configured chain_id.
	ErrChainIDMismatch

	// ErrEmptyPage means tx_search returned zero transactions before num_txs was reached.
	ErrEmptyPage

	// ErrPermanent covers malformed parameters, unknown methods, and similar non-retryable errors.
	ErrPermanent
)

// String returns the string representation of ErrorType.
func (e ErrorType) String() string {
	switch e {
	case ErrConnect:
		return "connect"
	case ErrSubscribe:
		return "subscribe"
	case ErrTimeout:
		return "timeout"
	case ErrTransport:
		return "transport"
	case ErrEventWithoutBlock:
		return "event_without_block"
	case ErrChainIDMismatch:
		return "chain_id_mismatch"
	case ErrEmptyPage:
		return "empty_page"
	case ErrPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Retryable reports whether an error of this type should be retried by the
// caller's retry policy rather than treated as immediately fatal.
func (e ErrorType) Retryable() bool {
	switch e {
	case ErrConnect, ErrSubscribe, ErrTimeout, ErrTransport, ErrEmptyPage:
		return true
	default:
		return false
	}
}

// classifyError analyzes a raw transport error and assigns it a category.
// Subscribe/EventWithoutBlock/ChainIDMismatch/EmptyPage are assigned
// explicitly by the caller that detects them (the RPC client never sees
// those conditions as Go errors); classifyError handles the remaining
// network/transport-shaped errors that arrive as opaque `error` values.
func classifyError(err error) ErrorType {
	if err == nil {
		return ErrPermanent
	}

	errStr := strings.ToLower(err.Error())

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return ErrConnect
		}
	}

	if strings.Contains(errStr, "context deadline exceeded") {
		return ErrTimeout
	}

	if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "dns") ||
		strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "i/o timeout") {
		return ErrConnect
	}

	if strings.Contains(errStr, "connection reset") || strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "eof") {
		return ErrTransport
	}

	if strings.Contains(errStr, "invalid") || strings.Contains(errStr, "method not found") ||
		strings.Contains(errStr, "malformed") || strings.Contains(errStr, "parse error") {
		return ErrPermanent
	}

	// Default to transport: safer to let the caller's retry policy decide
	// than to swallow an unrecognized transient condition as permanent.
	return ErrTransport
}

// RPCError wraps an error with its classified type.
type RPCError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *RPCError) Unwrap() error {
	return e.Err
}

// NewRPCError creates an RPCError, classifying the underlying error.
func NewRPCError(message string, err error) *RPCError {
	return &RPCError{
		Type:    classifyError(err),
		Message: message,
		Err:     err,
	}
}

// NewTypedRPCError creates an RPCError with an explicit, already-known type
// for conditions the client detects directly (empty page, chain-id
// mismatch, event without a block) rather than inferring from error text.
func NewTypedRPCError(t ErrorType, message string, err error) *RPCError {
	return &RPCError{Type: t, Message: message, Err: err}
}

// errorTypeToMetricsLabel maps an ErrorType to the label set util.RecordRPCError accepts.
func errorTypeToMetricsLabel(t ErrorType) string {
	switch t {
	case ErrConnect:
		return "connect"
	case ErrSubscribe:
		return "subscribe"
	case ErrTimeout:
		return "timeout"
	case ErrTransport, ErrEventWithoutBlock, ErrEmptyPage:
		return "transport"
	default:
		return "other"
	}
}
