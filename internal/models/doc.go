// Package models defines domain entities for the watchsync pipeline.
//
// The package contains two categories of types:
//
// 1. Boundary records produced by external collaborators:
//   - [WatchlistEntry] : An opaque watchlist reference from the account service
//   - [CacheEntry] : A persisted detail-resolution result keyed by fingerprint
//
// 2. Pipeline records owned by the core:
//   - [FetchRequest] / [FetchResult] : Per-item units flowing through the fetch phase
//   - [ProcessedItem] : The unit handed to the downstream wanted-items consumer
//   - [FetchStats] / [ProcessingStats] : Per-run counters, recomputed every run
//
// WatchlistEntry is validated at the account-service boundary so downstream code
// never probes for optional capabilities; fields that may legitimately be absent
// are zero-valued strings.
package models
