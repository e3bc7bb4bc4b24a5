//go:build !linux

// File: internal/concurrency/affinity_other.go
// Author: momentics <momentics@gmail.com>

package concurrency

// pinWorkerThread is unsupported outside Linux.
func pinWorkerThread(int) (int, error) {
	return -1, ErrAffinityNotSupported
}
