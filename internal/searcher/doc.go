// Package searcher coordinates document search across the full-text and
// vector legs of the store.
//
// Four modes are supported:
//   - Hybrid: both legs run concurrently and their scores are fused
//   - Vector: embedding similarity only
//   - FullText: BM25 over the FTS5 shadow index only
//   - Substring: naive containment scan, the fallback when the full-text
//     index is disabled
//
// When the request leaves Mode empty the searcher resolves it from the
// inputs: a text query plus an embedding gives hybrid, an embedding alone
// gives vector, a text query alone gives full-text (or substring when the
// index is off).
//
// # Score Fusion
//
// Hybrid mode overfetches both legs, merges hits by document id and scores
// each merged document with a weighted sum:
//
//	combined = TextWeight*textScore + VectorWeight*vectorScore
//
// A document found by only one leg contributes zero for the missing
// component. Component scores and the matched snippet are exposed in each
// result's Metadata for diagnostics.
//
// # Caching
//
// Responses are cached in an LRU keyed by a hash of the query, mode, limit,
// filter and fusion weights. Entries expire after the configured TTL and the
// whole cache is purged on every mutation.
package searcher
