// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import (
	"errors"

	"github.com/momentics/hioload-mq/api"
)

var (
	// ErrPollerClosed is returned by Register after Close. It matches
	// api.ErrChannelClosed.
	ErrPollerClosed = api.NewError(api.ErrCodeChannelClosed, "poller is closed")

	// ErrAffinityNotSupported indicates CPU affinity is not supported on this platform
	ErrAffinityNotSupported = errors.New("CPU affinity not supported")
)
