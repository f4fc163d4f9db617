// Package queue persists moderation records in SQLite and exposes helpers
// for driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-item recovery, and status transitions
// that mirror the public moderation enum. Records capture submission
// metadata, probed media facts, blob references, and the frame/violation
// payloads stages produce, so the pipeline coordinates without additional
// state.
//
// Every Update is revision-guarded: writers carry the revision they loaded
// and lose with ErrRevisionConflict when another writer got there first.
// This keeps two daemons (or a daemon and an operator action) from
// interleaving half-written records.
package queue
