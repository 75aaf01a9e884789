package types

import "time"

// SearchMode selects the search strategy.
type SearchMode string

const (
	// SearchModeHybrid fuses full-text and vector scores (default when both
	// a text query and an embedding are supplied)
	SearchModeHybrid SearchMode = "hybrid"
	// SearchModeVector scores documents by embedding similarity only
	SearchModeVector SearchMode = "vector"
	// SearchModeFullText ranks documents by the FTS shadow index
	SearchModeFullText SearchMode = "fulltext"
	// SearchModeSubstring is the naive fallback when neither the full-text
	// index nor an embedding is available
	SearchModeSubstring SearchMode = "substring"
)

// Diagnostic metadata keys attached to search results.
const (
	ResultKeySearchType  = "search_type"
	ResultKeyTextScore   = "text_score"
	ResultKeyVectorScore = "vector_score"
	ResultKeySnippet     = "snippet"
)

// SearchResult wraps a document with its score. The score scale depends on
// the search mode; Metadata carries diagnostic fields (search type used,
// component sub-scores, matched snippet).
type SearchResult struct {
	Document Document
	Score    float64
	Metadata map[string]any
}

// Stats describes the collection for observability.
type Stats struct {
	TotalDocuments    int64
	EmbeddedDocuments int64
	TotalSizeBytes    int64
	DatabaseSizeMB    float64
	// BuildMode reports which SQLite driver the binary was built with,
	// "cgo" or "purego"
	BuildMode   string
	LastUpdated time.Time
}

// SearchRecord is one row of the search history log.
type SearchRecord struct {
	Query           string
	SearchType      SearchMode
	ResultsCount    int
	ExecutionTimeMS float64
	Timestamp       time.Time
}
