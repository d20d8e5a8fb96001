// Package session manages the lifecycle of a single outbound gRPC connection.
//
// Three resources are involved and they nest strictly:
//
//   - An Executor is the shared execution context. It bounds how many unary
//     calls run at once and tracks every session and call that borrows it.
//   - A Session owns one client connection to one Endpoint and borrows an
//     Executor for the calls it issues.
//   - A Call is one in-flight unary exchange, observable as a future.
//
// Release happens in reverse order of acquisition: a Session closes its
// outstanding calls and connection before detaching from the Executor, and
// Executor.Shutdown closes any session still attached before waiting for
// in-flight work. WithExecutor and Executor.WithSession give scoped
// acquisition so that release runs on every exit path.
//
// Errors returned by Open and Invoke are *errors.Error values from the
// platform errors package; their Code is one of CONNECTION, TIMEOUT, RPC,
// CANCELLED, RESOURCE_EXHAUSTED, INVALID_ARGUMENT or SESSION_CLOSED.
// Teardown never returns errors; failures are logged.
package session
