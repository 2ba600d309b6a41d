// Package database provides SQLite-backed persistence for the dataset
// manager: model configurations, the trash manifest, annotation task
// history, and the API token.
//
// The database is the single writer boundary for shared state. All mutations
// take an exclusive lock; reads proceed against the last-committed snapshot
// under a shared lock. WAL journaling keeps commits durable across crashes,
// which the trash manager relies on: a manifest row is committed before the
// corresponding filesystem move, so an unclean shutdown can orphan a row but
// never lose track of a file.
package database
