package errors

import (
	"fmt"
	"net/http"
)

type DatabaseError struct {
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource   string
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Identifier)
}

// ConflictError reports a unique value that is already taken.
type ConflictError struct {
	Resource   string
	Identifier string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.Identifier)
}

type EthereumError struct {
	Operation string
	Err       error
}

func (e *EthereumError) Error() string {
	return fmt.Sprintf("ethereum error during %s: %v", e.Operation, e.Err)
}

func (e *EthereumError) Unwrap() error { return e.Err }

// NobleError reports a failed call against the Noble LCD or the signer.
type NobleError struct {
	Operation string
	Err       error
}

func (e *NobleError) Error() string {
	return fmt.Sprintf("noble error during %s: %v", e.Operation, e.Err)
}

func (e *NobleError) Unwrap() error { return e.Err }

type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s - %v", e.StatusCode, e.Message, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

type WebSocketError struct {
	Operation string
	Err       error
}

func (e *WebSocketError) Error() string {
	return fmt.Sprintf("WebSocket error during %s: %v", e.Operation, e.Err)
}

func (e *WebSocketError) Unwrap() error { return e.Err }

// RoutingServiceUnavailable covers every way the routing service can fail to
// produce a usable route: network errors, timeouts, non-2xx statuses and
// payloads without a positive output amount.
type RoutingServiceUnavailable struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *RoutingServiceUnavailable) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("routing service %s returned %d %s: %v",
			e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	}
	return fmt.Sprintf("routing service %s unavailable: %v", e.Endpoint, e.Err)
}

func (e *RoutingServiceUnavailable) Unwrap() error { return e.Err }

// FallbackComputationFailed is the only resolver error that reaches callers.
// Reason is safe to show to an end user.
type FallbackComputationFailed struct {
	Reason string
	Err    error
}

func (e *FallbackComputationFailed) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unable to estimate swap: %s", e.Reason)
	}
	return fmt.Sprintf("unable to estimate swap: %s: %v", e.Reason, e.Err)
}

func (e *FallbackComputationFailed) Unwrap() error { return e.Err }

// Transfer stages reported by RecipientTransferFailed.
const (
	StageSession = "session"
	StageSubmit  = "submit"
	StageConfirm = "confirm"
)

type RecipientTransferFailed struct {
	Address string
	Stage   string
	Err     error
}

func (e *RecipientTransferFailed) Error() string {
	return fmt.Sprintf("transfer to %s failed during %s: %v", e.Address, e.Stage, e.Err)
}

func (e *RecipientTransferFailed) Unwrap() error { return e.Err }

type BatchConstructionFailed struct {
	Index int
	Field string
	Err   error
}

func (e *BatchConstructionFailed) Error() string {
	return fmt.Sprintf("recipient %d has invalid %s: %v", e.Index+1, e.Field, e.Err)
}

func (e *BatchConstructionFailed) Unwrap() error { return e.Err }
