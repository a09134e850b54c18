// Package repositories implements SQLite persistence for the local media
// library.
//
// [MediaRepository] is the presence collaborator consumed by the item
// processor: it answers batched presence lookups (one round-trip per sync
// run) and exposes simple upsert/list operations used by the CLI and tests.
package repositories
