//go:build linux

// File: internal/concurrency/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux worker pinning through sched_setaffinity.

package concurrency

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinWorkerThread locks the calling goroutine to its OS thread and binds the
// thread to the slot-th CPU of the process's allowed set.
func pinWorkerThread(slot int) (int, error) {
	runtime.LockOSThread()

	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return -1, err
	}
	n := allowed.Count()
	if n == 0 {
		return -1, ErrAffinityNotSupported
	}
	want := slot % n
	cpuID := -1
	for i, seen := 0, 0; seen <= want; i++ {
		if allowed.IsSet(i) {
			if seen == want {
				cpuID = i
			}
			seen++
		}
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return -1, err
	}
	return cpuID, nil
}
