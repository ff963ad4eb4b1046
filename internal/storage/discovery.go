package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataDir is the per-project directory holding the pass database
	DataDir = ".qadedup"
	// DefaultPath is used when no database is configured or discovered
	DefaultPath = DataDir + "/qadedup.db"
	// EnvDBPath overrides discovery
	EnvDBPath = "QADEDUP_DB_PATH"
)

// DiscoverDatabase resolves the database path.
//
// Order: an explicit path, then QADEDUP_DB_PATH, then the first .qadedup/*.db
// in the current directory, then DefaultPath. Parent directories are not
// searched, so a nested project never picks up its parent's database.
func DiscoverDatabase(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		// Allow special values like ":memory:" or explicit paths
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	found, err := discoverDatabaseInDir(dir)
	if err != nil {
		return "", err
	}
	if found != "" {
		return found, nil
	}
	return filepath.Join(dir, DefaultPath), nil
}

// discoverDatabaseInDir checks for .qadedup/*.db in dir only. It returns
// an empty path when none exists.
func discoverDatabaseInDir(dir string) (string, error) {
	dataDir := filepath.Join(dir, DataDir)

	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return "", nil
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dataDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
			absPath, err := filepath.Abs(filepath.Join(dataDir, entry.Name()))
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path: %w", err)
			}
			return absPath, nil
		}
	}
	return "", nil
}
