// Package hybridstore is an embedded document store with hybrid search,
// backed by a single SQLite file. Documents carry free text, optional
// metadata and an optional embedding; searches combine BM25 full-text
// ranking with vector similarity through a weighted score fusion.
//
// # Basic Usage
//
//	store, err := hybridstore.Open(hybridstore.DefaultConfig("docs.db", 384))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	id, err := store.AddDocument(ctx, &hybridstore.Document{
//	    Content:   "The quick brown fox jumps over the lazy dog",
//	    Title:     "Fox",
//	    Metadata:  map[string]any{"category": "animals"},
//	    Embedding: embedding,
//	})
//
//	resp, err := store.Search(ctx, hybridstore.SearchRequest{
//	    Query:     "quick fox",
//	    Embedding: queryEmbedding,
//	    Limit:     10,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("%.3f %s\n", r.Score, r.Document.Title)
//	}
//
// # Search Modes
//
// Hybrid (both a query and an embedding supplied) fuses the two legs with
// combined = TextWeight*text + VectorWeight*vector. Vector and full-text run
// a single leg. Substring is the degraded text mode used automatically when
// the full-text index is disabled.
//
// # Error Conventions
//
// Lookup misses are signals, not errors: GetDocument returns (nil, nil),
// UpdateDocument and DeleteDocument return (false, nil). Sentinel errors and
// the typed wrappers live in pkg/types.
package hybridstore
