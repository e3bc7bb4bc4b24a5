// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by components that own sockets, workers or
// in-flight operations.
type GracefulShutdown interface {
	// Shutdown stops the component, fails pending work with ErrChannelClosed
	// and releases its resources. It is idempotent.
	Shutdown() error
}
