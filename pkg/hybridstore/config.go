package hybridstore

import (
	"time"

	"go.uber.org/zap"

	"github.com/hybriddocs/hybridstore/internal/storage"
)

// SimilarityMetric selects the vector scoring function.
type SimilarityMetric string

const (
	MetricCosine    SimilarityMetric = "cosine"
	MetricDot       SimilarityMetric = "dot"
	MetricEuclidean SimilarityMetric = "euclidean"
)

// Config configures a collection. Zero-valued tuning fields are filled with
// defaults on Open; feature switches default through DefaultConfig.
type Config struct {
	// Path is the SQLite database file location.
	Path string

	// Connection pool
	MaxConnections int
	ConnectTimeout time.Duration

	// SQLite tuning, applied per connection
	JournalMode string
	Synchronous string
	CacheSize   int
	PageSize    int
	TempStore   string
	MmapSize    int64
	AutoVacuum  string

	// Feature switches
	FTSEnabled    bool
	VectorEnabled bool
	CreateIndexes bool

	// Vector search. VectorDimension is required when VectorEnabled and is
	// enforced on every write.
	VectorDimension int
	Metric          SimilarityMetric
	ScoreThreshold  float64

	// Hybrid fusion weights. Both zero means 0.5/0.5.
	TextWeight      float64
	VectorWeight    float64
	OverfetchFactor int

	// Search result cache
	CacheEntries int
	CacheTTL     time.Duration

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns the recommended configuration for a collection with
// the given embedding dimension. A dimension of 0 disables vector search.
func DefaultConfig(path string, dimension int) Config {
	cfg := fromInternal(storage.DefaultConfig(path))
	cfg.VectorDimension = dimension
	cfg.VectorEnabled = dimension > 0
	return cfg
}

func (c Config) toInternal() storage.Config {
	return storage.Config{
		Path:            c.Path,
		MaxConnections:  c.MaxConnections,
		ConnectTimeout:  c.ConnectTimeout,
		JournalMode:     storage.JournalMode(c.JournalMode),
		Synchronous:     storage.SyncMode(c.Synchronous),
		CacheSize:       c.CacheSize,
		PageSize:        c.PageSize,
		TempStore:       c.TempStore,
		MmapSize:        c.MmapSize,
		AutoVacuum:      storage.AutoVacuumMode(c.AutoVacuum),
		FTSEnabled:      c.FTSEnabled,
		VectorEnabled:   c.VectorEnabled,
		CreateIndexes:   c.CreateIndexes,
		VectorDimension: c.VectorDimension,
		Metric:          storage.SimilarityMetric(c.Metric),
		ScoreThreshold:  c.ScoreThreshold,
		TextWeight:      c.TextWeight,
		VectorWeight:    c.VectorWeight,
		OverfetchFactor: c.OverfetchFactor,
		CacheEntries:    c.CacheEntries,
		CacheTTL:        c.CacheTTL,
		Logger:          c.Logger,
	}
}

func fromInternal(ic storage.Config) Config {
	return Config{
		Path:            ic.Path,
		MaxConnections:  ic.MaxConnections,
		ConnectTimeout:  ic.ConnectTimeout,
		JournalMode:     string(ic.JournalMode),
		Synchronous:     string(ic.Synchronous),
		CacheSize:       ic.CacheSize,
		PageSize:        ic.PageSize,
		TempStore:       ic.TempStore,
		MmapSize:        ic.MmapSize,
		AutoVacuum:      string(ic.AutoVacuum),
		FTSEnabled:      ic.FTSEnabled,
		VectorEnabled:   ic.VectorEnabled,
		CreateIndexes:   ic.CreateIndexes,
		VectorDimension: ic.VectorDimension,
		Metric:          SimilarityMetric(ic.Metric),
		ScoreThreshold:  ic.ScoreThreshold,
		TextWeight:      ic.TextWeight,
		VectorWeight:    ic.VectorWeight,
		OverfetchFactor: ic.OverfetchFactor,
		CacheEntries:    ic.CacheEntries,
		CacheTTL:        ic.CacheTTL,
		Logger:          ic.Logger,
	}
}
