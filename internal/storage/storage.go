package storage

import (
	"context"

	"github.com/Saberlve/LLM-Kit-sub000/internal/deduplication"
	"github.com/Saberlve/LLM-Kit-sub000/internal/events"
	"github.com/Saberlve/LLM-Kit-sub000/internal/storage/sqlite"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// ErrPassNotFound is returned when a pass id has no stored record
var ErrPassNotFound = sqlite.ErrPassNotFound

// Storage defines the interface for dedup pass storage backends
type Storage interface {
	// Passes
	CreatePass(ctx context.Context, pass *types.PassRecord) error
	UpdatePassProgress(ctx context.Context, id string, progress int) error
	CompletePass(ctx context.Context, id string, originalCount, keptCount int) error
	FailPass(ctx context.Context, id string, message string) error
	GetPass(ctx context.Context, id string) (*types.PassRecord, error)
	LatestPass(ctx context.Context) (*types.PassRecord, error)
	ListPasses(ctx context.Context, limit int) ([]*types.PassRecord, error)

	// Pass output
	SaveKeptPairs(ctx context.Context, passID string, kept []types.QARecord) error
	SaveDeletedGroups(ctx context.Context, passID string, groups []deduplication.DeletedGroup) error
	GetKeptPairs(ctx context.Context, passID string) ([]types.QARecord, error)
	GetDeletedGroups(ctx context.Context, passID string) ([]deduplication.DeletedGroup, error)

	// Events
	events.EventStore

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".qadedup/qadedup.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: DefaultPath,
	}
}

// NewStorage creates a new SQLite storage backend
// The ctx parameter is currently unused but kept for API consistency
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Default to standard path if not specified
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	return sqlite.New(cfg.Path)
}
