// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for hioload-mq.
//
// Provides:
//   - Config with defaults, YAML loading and HIOLOAD_MQ_* env overrides
//   - MetricsRegistry counters updated by channels
//   - DebugProbes that assemble the facade's Stats snapshot
package control
