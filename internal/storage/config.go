package storage

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hybriddocs/hybridstore/pkg/types"
)

// SimilarityMetric selects the vector scoring function for the collection.
// Fixed for the collection's lifetime.
type SimilarityMetric string

const (
	MetricCosine    SimilarityMetric = "cosine"
	MetricDot       SimilarityMetric = "dot"
	MetricEuclidean SimilarityMetric = "euclidean"
)

// JournalMode is the SQLite journaling strategy.
type JournalMode string

const (
	JournalWAL      JournalMode = "WAL"
	JournalDelete   JournalMode = "DELETE"
	JournalTruncate JournalMode = "TRUNCATE"
)

// SyncMode is the SQLite synchronous pragma value.
type SyncMode string

const (
	SyncOff    SyncMode = "OFF"
	SyncNormal SyncMode = "NORMAL"
	SyncFull   SyncMode = "FULL"
)

// AutoVacuumMode is the SQLite auto_vacuum pragma value.
type AutoVacuumMode string

const (
	AutoVacuumNone        AutoVacuumMode = "NONE"
	AutoVacuumIncremental AutoVacuumMode = "INCREMENTAL"
	AutoVacuumFull        AutoVacuumMode = "FULL"
)

// Config holds the collection configuration. Use DefaultConfig to get a
// config with sensible defaults, then override individual fields.
type Config struct {
	// Path is the database file location. ":memory:" is accepted but every
	// pooled connection would see its own database, so file paths are
	// strongly preferred outside single-connection tests.
	Path string

	// Pool settings
	MaxConnections int           // connections kept pooled; more may be opened transiently
	ConnectTimeout time.Duration // timeout for opening a new connection

	// Per-connection pragmas
	JournalMode JournalMode
	Synchronous SyncMode
	CacheSize   int   // pages; negative means KiB, SQLite convention
	PageSize    int   // bytes
	TempStore   string
	MmapSize    int64 // bytes of memory-mapped I/O
	AutoVacuum  AutoVacuumMode

	// Feature switches
	FTSEnabled    bool
	VectorEnabled bool
	CreateIndexes bool

	// Vector search
	VectorDimension int // required when VectorEnabled
	Metric          SimilarityMetric
	ScoreThreshold  float64

	// Hybrid fusion. The weights need not sum to 1 but must be non-negative.
	TextWeight      float64
	VectorWeight    float64
	OverfetchFactor int

	// Search result cache
	CacheEntries int
	CacheTTL     time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns the configuration used when callers override nothing.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxConnections:  4,
		ConnectTimeout:  5 * time.Second,
		JournalMode:     JournalWAL,
		Synchronous:     SyncNormal,
		CacheSize:       -64000, // 64 MiB
		PageSize:        4096,
		TempStore:       "MEMORY",
		MmapSize:        256 << 20,
		AutoVacuum:      AutoVacuumIncremental,
		FTSEnabled:      true,
		VectorEnabled:   true,
		CreateIndexes:   true,
		Metric:          MetricCosine,
		TextWeight:      0.5,
		VectorWeight:    0.5,
		OverfetchFactor: 2,
		CacheEntries:    1024,
		CacheTTL:        time.Hour,
	}
}

// ApplyDefaults fills zero-valued tuning fields. Feature switches are left
// alone; DefaultConfig is the place they get their defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 4
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.JournalMode == "" {
		c.JournalMode = JournalWAL
	}
	if c.Synchronous == "" {
		c.Synchronous = SyncNormal
	}
	if c.CacheSize == 0 {
		c.CacheSize = -64000
	}
	if c.PageSize == 0 {
		c.PageSize = 4096
	}
	if c.TempStore == "" {
		c.TempStore = "MEMORY"
	}
	if c.MmapSize == 0 {
		c.MmapSize = 256 << 20
	}
	if c.AutoVacuum == "" {
		c.AutoVacuum = AutoVacuumIncremental
	}
	if c.Metric == "" {
		c.Metric = MetricCosine
	}
	if c.TextWeight == 0 && c.VectorWeight == 0 {
		c.TextWeight = 0.5
		c.VectorWeight = 0.5
	}
	if c.OverfetchFactor <= 0 {
		c.OverfetchFactor = 2
	}
	if c.CacheEntries <= 0 {
		c.CacheEntries = 1024
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Validate rejects an unusable configuration before any file is touched.
func (c *Config) Validate() error {
	if c.Path == "" {
		return types.NewValidationError("path", fmt.Errorf("database path is required"))
	}
	if c.VectorEnabled && c.VectorDimension <= 0 {
		return types.NewValidationError("vector_dimension",
			fmt.Errorf("vector search enabled with dimension %d", c.VectorDimension))
	}
	switch c.Metric {
	case MetricCosine, MetricDot, MetricEuclidean:
	default:
		return types.NewValidationError("similarity_metric", fmt.Errorf("unknown metric %q", c.Metric))
	}
	switch c.JournalMode {
	case JournalWAL, JournalDelete, JournalTruncate:
	default:
		return types.NewValidationError("journal_mode", fmt.Errorf("unknown journal mode %q", c.JournalMode))
	}
	switch c.Synchronous {
	case SyncOff, SyncNormal, SyncFull:
	default:
		return types.NewValidationError("synchronous", fmt.Errorf("unknown synchronous mode %q", c.Synchronous))
	}
	switch c.AutoVacuum {
	case AutoVacuumNone, AutoVacuumIncremental, AutoVacuumFull:
	default:
		return types.NewValidationError("auto_vacuum", fmt.Errorf("unknown auto_vacuum mode %q", c.AutoVacuum))
	}
	if c.TextWeight < 0 || c.VectorWeight < 0 {
		return types.NewValidationError("weights",
			fmt.Errorf("fusion weights must be non-negative, got text=%v vector=%v", c.TextWeight, c.VectorWeight))
	}
	return nil
}
