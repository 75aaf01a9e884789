package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hybriddocs/hybridstore/internal/storage"
	"github.com/hybriddocs/hybridstore/pkg/types"
)

// maxLimit caps the number of results a single search may return.
const maxLimit = 100

// Request contains parameters for a search operation. Mode may be left empty
// to have it resolved from the supplied inputs.
type Request struct {
	Query     string
	Embedding []float32
	Mode      types.SearchMode
	Limit     int
	Filter    types.SearchFilter
	UseCache  bool
}

// Response contains search results and execution metadata.
type Response struct {
	Results    []types.SearchResult
	Mode       types.SearchMode
	Duration   time.Duration
	CacheHit   bool
	TextHits   int
	VectorHits int
}

// cacheEntry is a cached response with its expiration time.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher coordinates the search modes over a single store and caches
// recent responses.
type Searcher struct {
	store *storage.Store
	cfg   storage.Config

	cacheMu sync.RWMutex
	cache   *lru.Cache[[32]byte, *cacheEntry]
}

// New creates a Searcher bound to the store.
func New(store *storage.Store) *Searcher {
	cfg := store.Config()
	cache, err := lru.New[[32]byte, *cacheEntry](cfg.CacheEntries)
	if err != nil {
		// Only possible with a non-positive size, which ApplyDefaults rules out
		panic(fmt.Sprintf("failed to create search cache: %v", err))
	}
	return &Searcher{
		store: store,
		cfg:   cfg,
		cache: cache,
	}
}

// Search resolves the mode, runs the appropriate legs and returns fused,
// ranked results. Every completed search is appended to the analytics log.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	mode, err := s.resolveMode(req)
	if err != nil {
		return nil, err
	}

	if req.UseCache {
		if cached := s.checkCache(req, mode); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	var resp *Response
	switch mode {
	case types.SearchModeHybrid:
		resp, err = s.hybridSearch(ctx, req)
	case types.SearchModeVector:
		resp, err = s.vectorSearch(ctx, req)
	case types.SearchModeFullText:
		resp, err = s.textSearch(ctx, req)
	case types.SearchModeSubstring:
		resp, err = s.substringSearch(ctx, req)
	default:
		return nil, &types.QueryError{Op: "search",
			Err: fmt.Errorf("%w: %s", types.ErrUnsupportedMode, mode)}
	}
	if err != nil {
		return nil, err
	}

	resp.Mode = mode
	resp.Duration = time.Since(start)

	s.store.RecordSearch(ctx, types.SearchRecord{
		Query:           req.Query,
		SearchType:      mode,
		ResultsCount:    len(resp.Results),
		ExecutionTimeMS: float64(resp.Duration.Microseconds()) / 1000.0,
		Timestamp:       time.Now().UTC(),
	})

	if req.UseCache {
		s.storeInCache(req, mode, resp)
	}
	return resp, nil
}

// InvalidateCache drops every cached response. Called after any mutation so
// cached results never outlive the data they rank.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func (s *Searcher) validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" && len(req.Embedding) == 0 {
		return &types.QueryError{Op: "search", Err: types.ErrEmptyQuery}
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	return nil
}

// resolveMode picks the strongest mode the inputs and configuration allow.
// An explicit mode is honored but checked against its required input.
func (s *Searcher) resolveMode(req Request) (types.SearchMode, error) {
	hasText := strings.TrimSpace(req.Query) != ""
	hasVector := len(req.Embedding) > 0 && s.cfg.VectorEnabled

	if req.Mode != "" {
		switch req.Mode {
		case types.SearchModeHybrid:
			if !hasText || !hasVector {
				return "", &types.QueryError{Op: "search",
					Err: fmt.Errorf("hybrid mode needs both a text query and an embedding")}
			}
		case types.SearchModeVector:
			if !hasVector {
				return "", &types.QueryError{Op: "search",
					Err: fmt.Errorf("vector mode needs an embedding")}
			}
		case types.SearchModeFullText, types.SearchModeSubstring:
			if !hasText {
				return "", &types.QueryError{Op: "search",
					Err: fmt.Errorf("%s mode needs a text query", req.Mode)}
			}
			if req.Mode == types.SearchModeFullText && !s.cfg.FTSEnabled {
				return types.SearchModeSubstring, nil
			}
		default:
			return "", &types.QueryError{Op: "search",
				Err: fmt.Errorf("%w: %s", types.ErrUnsupportedMode, req.Mode)}
		}
		return req.Mode, nil
	}

	switch {
	case hasText && hasVector:
		return types.SearchModeHybrid, nil
	case hasVector:
		return types.SearchModeVector, nil
	case s.cfg.FTSEnabled:
		return types.SearchModeFullText, nil
	default:
		return types.SearchModeSubstring, nil
	}
}

// textLeg is the text side of a search: the full-text index when enabled,
// substring scan otherwise.
func (s *Searcher) textLeg(ctx context.Context, query string, limit int, filter types.SearchFilter) ([]storage.ScoredDocument, error) {
	if s.cfg.FTSEnabled {
		return s.store.SearchText(ctx, query, limit, filter)
	}
	return s.store.SearchSubstring(ctx, query, limit, filter)
}

// hybridSearch runs both legs concurrently with an overfetched limit, then
// merges by document id with a weighted sum of the component scores. A
// document missing from one leg contributes zero for that component. Either
// leg failing fails the whole search; a partial result set must never look
// like a successful hybrid search.
func (s *Searcher) hybridSearch(ctx context.Context, req Request) (*Response, error) {
	overfetch := req.Limit * s.cfg.OverfetchFactor

	var (
		textResults   []storage.ScoredDocument
		vectorResults []storage.ScoredDocument
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		textResults, err = s.textLeg(gctx, req.Query, overfetch, req.Filter)
		return err
	})
	g.Go(func() error {
		var err error
		vectorResults, err = s.store.SearchVector(gctx, req.Embedding, overfetch, req.Filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type fused struct {
		doc         *types.Document
		textScore   float64
		vectorScore float64
		snippet     string
	}
	merged := make(map[string]*fused, len(textResults)+len(vectorResults))

	for _, hit := range textResults {
		merged[hit.Document.ID] = &fused{
			doc:       hit.Document,
			textScore: hit.Score,
			snippet:   hit.Snippet,
		}
	}
	for _, hit := range vectorResults {
		if entry, ok := merged[hit.Document.ID]; ok {
			entry.vectorScore = hit.Score
			continue
		}
		merged[hit.Document.ID] = &fused{
			doc:         hit.Document,
			vectorScore: hit.Score,
		}
	}

	results := make([]types.SearchResult, 0, len(merged))
	for _, entry := range merged {
		metadata := map[string]any{
			types.ResultKeySearchType:  string(types.SearchModeHybrid),
			types.ResultKeyTextScore:   entry.textScore,
			types.ResultKeyVectorScore: entry.vectorScore,
		}
		if entry.snippet != "" {
			metadata[types.ResultKeySnippet] = entry.snippet
		}
		results = append(results, types.SearchResult{
			Document: *entry.doc,
			Score:    s.cfg.TextWeight*entry.textScore + s.cfg.VectorWeight*entry.vectorScore,
			Metadata: metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	return &Response{
		Results:    results,
		TextHits:   len(textResults),
		VectorHits: len(vectorResults),
	}, nil
}

func (s *Searcher) vectorSearch(ctx context.Context, req Request) (*Response, error) {
	hits, err := s.store.SearchVector(ctx, req.Embedding, req.Limit, req.Filter)
	if err != nil {
		return nil, err
	}
	return &Response{
		Results:    convertHits(hits, types.SearchModeVector),
		VectorHits: len(hits),
	}, nil
}

func (s *Searcher) textSearch(ctx context.Context, req Request) (*Response, error) {
	hits, err := s.store.SearchText(ctx, req.Query, req.Limit, req.Filter)
	if err != nil {
		return nil, err
	}
	return &Response{
		Results:  convertHits(hits, types.SearchModeFullText),
		TextHits: len(hits),
	}, nil
}

func (s *Searcher) substringSearch(ctx context.Context, req Request) (*Response, error) {
	hits, err := s.store.SearchSubstring(ctx, req.Query, req.Limit, req.Filter)
	if err != nil {
		return nil, err
	}
	return &Response{
		Results:  convertHits(hits, types.SearchModeSubstring),
		TextHits: len(hits),
	}, nil
}

func convertHits(hits []storage.ScoredDocument, mode types.SearchMode) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		metadata := map[string]any{
			types.ResultKeySearchType: string(mode),
		}
		if hit.Snippet != "" {
			metadata[types.ResultKeySnippet] = hit.Snippet
		}
		results = append(results, types.SearchResult{
			Document: *hit.Document,
			Score:    hit.Score,
			Metadata: metadata,
		})
	}
	return results
}

// checkCache returns a copy of a fresh cached response, nil on miss. Expired
// entries are evicted on the way out.
func (s *Searcher) checkCache(req Request, mode types.SearchMode) *Response {
	key := cacheKey(req, mode, s.cfg)

	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(key)
		s.cacheMu.Unlock()
		return nil
	}
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(req Request, mode types.SearchMode, resp *Response) {
	entry := &cacheEntry{
		response:  copyResponse(resp),
		expiresAt: time.Now().Add(s.cfg.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(cacheKey(req, mode, s.cfg), entry)
	s.cacheMu.Unlock()
}

// copyResponse deep-copies a response so cached entries are never aliased by
// callers.
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := &Response{
		Mode:       src.Mode,
		Duration:   src.Duration,
		CacheHit:   src.CacheHit,
		TextHits:   src.TextHits,
		VectorHits: src.VectorHits,
		Results:    make([]types.SearchResult, len(src.Results)),
	}
	for i, result := range src.Results {
		doc := result.Document.Clone()
		copied := types.SearchResult{
			Document: *doc,
			Score:    result.Score,
		}
		if result.Metadata != nil {
			copied.Metadata = make(map[string]any, len(result.Metadata))
			for k, v := range result.Metadata {
				copied.Metadata[k] = v
			}
		}
		dst.Results[i] = copied
	}
	return dst
}

// cacheKey builds a deterministic hash over everything that affects the
// response: inputs, resolved mode, limit, filter and fusion weights.
func cacheKey(req Request, mode types.SearchMode, cfg storage.Config) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(mode))
	data.WriteString("|")
	fmt.Fprintf(&data, "%d|%.4f|%.4f", req.Limit, cfg.TextWeight, cfg.VectorWeight)

	if len(req.Embedding) > 0 {
		data.WriteString("|vec:")
		for _, v := range req.Embedding {
			fmt.Fprintf(&data, "%.6f,", v)
		}
	}

	if len(req.Filter) > 0 {
		keys := make([]string, 0, len(req.Filter))
		for k := range req.Filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		data.WriteString("|filter:")
		for _, k := range keys {
			fmt.Fprintf(&data, "%s=%v;", k, req.Filter[k])
		}
	}

	return sha256.Sum256([]byte(data.String()))
}
