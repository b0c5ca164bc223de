// Package errors defines the error taxonomy for the resource management
// layer. Structural errors (unknown pools or connections) carry typed context
// so callers can recover locally; serialization failures wrap the underlying
// codec error verbatim.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the resource management layer.
var (
	// ErrAcquireTimeout indicates a connection acquisition wait expired
	// before pool capacity became available.
	ErrAcquireTimeout = errors.New("connection acquisition timed out")

	// ErrPoolDraining indicates an operation was rejected because the pool
	// is shutting down.
	ErrPoolDraining = errors.New("pool is draining")

	// ErrUnknownCodec indicates a serialization codec name with no
	// registered implementation.
	ErrUnknownCodec = errors.New("unknown serialization codec")
)

// PoolUnavailableError indicates a pool is missing or not accepting
// acquisitions. Callers recover by re-provisioning the pool before retrying.
type PoolUnavailableError struct {
	PoolID string `json:"pool_id"`
	Status string `json:"status"` // Pool status, or "missing" when unknown
}

// Error returns the formatted pool availability failure.
func (e *PoolUnavailableError) Error() string {
	if e.Status == "" || e.Status == "missing" {
		return fmt.Sprintf("pool %s not found", e.PoolID)
	}
	return fmt.Sprintf("pool %s unavailable (status %s)", e.PoolID, e.Status)
}

// ConnectionNotFoundError indicates a lookup referencing an unknown
// connection id within a known pool. Raised for explicit lookups only;
// release paths log and continue instead.
type ConnectionNotFoundError struct {
	PoolID string `json:"pool_id"`
	ConnID string `json:"conn_id"`
}

// Error returns the formatted connection lookup failure.
func (e *ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("connection %s not found in pool %s", e.ConnID, e.PoolID)
}

// EncodingError wraps a codec failure during encode. The underlying error is
// preserved for errors.Is/As inspection.
type EncodingError struct {
	Codec string
	Err   error
}

// Error returns the formatted encode failure.
func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s encode failed: %v", e.Codec, e.Err)
}

// Unwrap exposes the underlying codec error.
func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError wraps a codec failure during decode.
type DecodingError struct {
	Codec string
	Err   error
}

// Error returns the formatted decode failure.
func (e *DecodingError) Error() string {
	return fmt.Sprintf("%s decode failed: %v", e.Codec, e.Err)
}

// Unwrap exposes the underlying codec error.
func (e *DecodingError) Unwrap() error { return e.Err }

// IsPoolUnavailable reports whether err indicates a missing or non-active
// pool.
func IsPoolUnavailable(err error) bool {
	var puErr *PoolUnavailableError
	return errors.As(err, &puErr)
}

// IsConnectionNotFound reports whether err indicates an unknown connection id.
func IsConnectionNotFound(err error) bool {
	var cnfErr *ConnectionNotFoundError
	return errors.As(err, &cnfErr)
}

// IsSerializationError reports whether err originated in an encode or decode
// operation.
func IsSerializationError(err error) bool {
	var encErr *EncodingError
	var decErr *DecodingError
	return errors.As(err, &encErr) || errors.As(err, &decErr)
}

// ErrorType returns a short classification string for telemetry attributes.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAcquireTimeout):
		return "acquire_timeout"
	case IsPoolUnavailable(err):
		return "pool_unavailable"
	case IsConnectionNotFound(err):
		return "connection_not_found"
	case IsSerializationError(err):
		return "serialization"
	default:
		return "unknown"
	}
}
