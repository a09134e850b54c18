// Package tasks implements the watchlist resolution pipeline.
//
// # Core Components
//
// The pipeline runs leaf-first:
//
//  1. [DetailCache] : Persistent fingerprint → detail store
//     - TTL expiry is lazy, applied on lookup
//     - Capacity pressure evicts the oldest tenth of entries on insert
//     - Commit persists a complete snapshot once per run
//
//  2. [DetailFetcher] : Bounded-concurrency metadata resolution
//     - Large runs split into sequential paced batches
//     - Per-item failures are isolated; a batch always settles completely
//     - Extracts imdb://, tmdb:// identifiers and the coarse media type
//
//  3. [FetchCoordinator] : Cache split and merge
//     - Partitions the watchlist into hits and misses
//     - Caches every fetched result, including failures
//
//  4. [ItemProcessor] : Keep/remove/want decision engine
//     - Falls back to TMDB → IMDB conversion when direct extraction fails
//     - One batched presence lookup per run
//     - Applies the collected-item removal policy
//
// [WatchlistEngine] drives all four per account and recovers any account-level
// failure into an empty result. Operations emit progress updates via channels
// for non-blocking status reporting to the CLI layer.
package tasks
