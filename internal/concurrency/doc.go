// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatch-loop primitives for hioload-mq: the Poller and its workers, the
// lock-free RingBuffer that hands frames from socket goroutines to workers,
// and optional Linux CPU pinning for worker threads.
package concurrency
