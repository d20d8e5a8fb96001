// Package errors provides the structured error taxonomy shared by the session
// manager, the FlotgService client and the stub server.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Argument errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Execution context errors
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"

	// Transport errors
	CodeConnection Code = "CONNECTION"
	CodeTimeout    Code = "TIMEOUT"

	// Call errors
	CodeRPC       Code = "RPC"
	CodeCancelled Code = "CANCELLED"

	// Session errors
	CodeSessionClosed Code = "SESSION_CLOSED"

	// Service errors
	CodeServiceNotReady Code = "SERVICE_NOT_READY"
)

// GRPCCode returns the gRPC status code that best describes c.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeResourceExhausted:
		return codes.ResourceExhausted
	case CodeConnection, CodeServiceNotReady:
		return codes.Unavailable
	case CodeTimeout:
		return codes.DeadlineExceeded
	case CodeCancelled:
		return codes.Canceled
	case CodeSessionClosed:
		return codes.FailedPrecondition
	case CodeRPC:
		return codes.Unknown
	default:
		return codes.Internal
	}
}
