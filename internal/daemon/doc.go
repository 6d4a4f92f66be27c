// Package daemon hosts the long-running ingestion process: it owns the
// single-instance lock, wraps the engine's lifecycle, and exposes the
// control operations the IPC surface forwards to.
package daemon
