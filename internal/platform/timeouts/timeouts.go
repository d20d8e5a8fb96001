// Package timeouts defines shared timeout constants used by the client and
// the stub server, so defaults stay consistent between config and code.
package timeouts

import "time"

// GRPCDial caps the wait time for a connection to become ready.
const GRPCDial = 2 * time.Second

// GRPCRequest caps the time allowed for a single unary call when the caller
// did not set a deadline.
const GRPCRequest = 2 * time.Second

// HealthProbe caps a single health check attempt while waiting for SERVING.
const HealthProbe = time.Second

// Shutdown limits how long teardown waits for in-flight work.
const Shutdown = 5 * time.Second
