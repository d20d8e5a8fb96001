package errors

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FromStatus classifies a non-OK gRPC status returned by a unary call.
//
// Deadline and cancellation codes map onto CodeTimeout and CodeCancelled,
// Unavailable maps onto CodeConnection, and every other code becomes CodeRPC.
// The remote code is preserved in RPCCode in all cases. ErrorInfo details are
// lifted into Metadata, with the reason stored under "reason".
func FromStatus(method string, st *status.Status) *Error {
	if st == nil || st.Code() == codes.OK {
		return nil
	}

	code := CodeRPC
	switch st.Code() {
	case codes.DeadlineExceeded:
		code = CodeTimeout
	case codes.Canceled:
		code = CodeCancelled
	case codes.Unavailable:
		code = CodeConnection
	}

	e := &Error{
		Code:    code,
		Message: fmt.Sprintf("%s: rpc error: code = %s desc = %s", method, st.Code(), st.Message()),
		Cause:   st.Err(),
		RPCCode: st.Code(),
	}
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok {
			continue
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, len(info.GetMetadata())+1)
		}
		for k, v := range info.GetMetadata() {
			e.Metadata[k] = v
		}
		e.Metadata["reason"] = info.GetReason()
	}
	return e
}

// FromRPC classifies an error returned by a unary invocation. Errors that do
// not carry a gRPC status are wrapped as CodeRPC with codes.Unknown.
func FromRPC(method string, err error) *Error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &Error{
			Code:    CodeRPC,
			Message: fmt.Sprintf("%s: %v", method, err),
			Cause:   err,
			RPCCode: codes.Unknown,
		}
	}
	return FromStatus(method, st)
}
