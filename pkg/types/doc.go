// Package types provides shared type definitions for the hybrid document store.
//
// This package defines the domain types used across the storage and search
// layers: documents, search filters, search results, collection statistics,
// and the error taxonomy.
//
// # Core Types
//
// Document is the unit of storage. Content is required; title, metadata and
// embedding are optional. Timestamps are owned by the store:
//
//	doc := &types.Document{
//	    Content:   "The quick brown fox",
//	    Title:     "Foxes",
//	    Metadata:  map[string]any{"topic": "animals"},
//	    Embedding: []float32{0.1, 0.2, 0.3},
//	}
//
// SearchFilter narrows list/search operations by metadata equality or
// value-in-set semantics:
//
//	filter := types.SearchFilter{
//	    "topic": "animals",            // equality
//	    "lang":  []string{"en", "de"}, // value in set
//	}
//
// SearchResult wraps a document with a search-mode-dependent score and a
// diagnostics map (search type, component sub-scores, matched snippet).
//
// # Errors
//
// Validation failures (empty content, embedding dimension mismatch) surface
// as *ValidationError before any write. Missing ids on update/delete are
// signaled with booleans, not errors. Backend failures are wrapped in
// *StorageError carrying the operation name; malformed queries raise
// *QueryError before execution.
package types
