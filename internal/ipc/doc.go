// Package ipc provides the JSON-RPC control channel between the paddock CLI
// and the daemon, carried over a Unix domain socket in the log directory.
package ipc
