// Package inbox surfaces file arrivals from the drop-off directory.
//
// The Source emits one Event per eligible file appearance. It runs a polling
// scan on a fixed interval and, unless forced into poll-only mode, a
// filesystem watcher that shortens the latency between a drop and its event.
// Files that disappear from the drop-off (because a processing pass moved
// them) are forgotten so a later re-drop of the same name is seen again.
package inbox
