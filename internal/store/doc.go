// Package store provides persistent storage for feedgate using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces:
//
//   - GenreStore: user-owned feed categories
//   - FeedStore: subscribed syndication sources
//   - TokenStore: hashed opaque access tokens
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Data Models
//
//   - Genre: per-owner category; name unique within an owner
//   - Feed: subscription with (owner, url) uniqueness and a disabled flag
//   - AccessToken: digest-only credential record; the plaintext secret is
//     never persisted and lookup happens by digest
//
// Articles are deliberately absent: parsed feed entries are transient and
// never stored.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateGenre / ErrDuplicateFeed: uniqueness violations
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewSQLiteStore(":memory:") or a t.TempDir() path for tests with real
// SQLite.
package store
