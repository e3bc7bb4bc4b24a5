// Package api
// Author: momentics
//
// Live introspection of running facades.

package api

// Debug exposes named probes evaluated into one state snapshot.
type Debug interface {
	// DumpState evaluates every probe.
	DumpState() map[string]any

	// RegisterProbe inserts or replaces a named probe.
	RegisterProbe(name string, fn func() any)
}
