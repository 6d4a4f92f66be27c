// Package bundle persists session bundle state in SQLite and exposes helpers
// for driving the accumulate/ready/process lifecycle.
//
// The Store is the only writer of bundle rows. It is deliberately transient
// state: the on-disk completion markers stay authoritative, and the engine
// rehydrates the store at startup from the inbox and marker files. Schema
// changes bump the version in schema.go; the database can always be deleted
// and rebuilt.
package bundle
