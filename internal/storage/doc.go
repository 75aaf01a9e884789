// Package storage implements the SQLite persistence layer: schema
// migrations, the connection pool, document CRUD, the per-leg search
// primitives, the search analytics log and maintenance.
//
// # Schema
//
// One database file holds four tables plus an FTS5 virtual table:
//
//	documents       primary rows (id, content, title, metadata JSON,
//	                embedding BLOB, timestamps)
//	documents_fts   full-text shadow of content and title
//	document_stats  single-row collection statistics
//	search_history  append-only search analytics
//	schema_version  applied migration versions
//
// The shadow table is maintained by explicit hooks on every mutation path,
// always inside the mutation's own transaction. There are no triggers, so
// all index writes are visible in the code that causes them.
//
// # Vectors
//
// Embeddings are stored as raw little-endian float32 blobs. The collection
// enforces a single dimension at validation time, so blobs carry no length
// prefix and similarity scans never see a ragged vector.
//
// # Connections
//
// SQLite pragmas are per-connection state, so the pool configures every
// connection it opens and hands them out one per logical operation. See Pool.
package storage
