// Package scanning provides the scan engine of portscope.
//
// A scan moves through Initialized, Running and then Completed or
// Cancelled. The Orchestrator resolves the target once, registers the scan
// id in a Registry and dispatches one probe per port onto a bounded worker
// pool from internal/workers. Results are collected per scan and handed to
// Aggregate, which produces the Report returned to clients.
//
// # Cancellation
//
// Cancellation is cooperative. A cancel request sets the scan's flag in the
// Registry; probes that have not started yet see the flag and return
// without producing anything, while probes already running finish
// normally. The watch loop notices the flag on the next completion or poll
// tick, records a scan-level warning and stops waiting. The request context
// being done is treated the same way.
//
// # Registries
//
// MemoryRegistry keeps flags in process memory. RedisRegistry stores them as
// keys in Redis so several server replicas can share them. Either way the
// entry is removed when the scan ends.
//
// # Reports
//
// Outcomes and logs are sorted by port with a stable sort. The summary's
// PortsScanned counts dispatched ports and PortsCompleted counts returned
// outcomes; the difference is the number of ports skipped by cancellation.
package scanning
