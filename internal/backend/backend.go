// Package backend selects and constructs the persistence backend from
// configuration.
package backend

import (
	"context"

	"proptrack/internal/storage"
)

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// Result contains the constructed repository and its cleanup function.
type Result struct {
	Repo    storage.Repository
	Cleanup CleanupFunc
}

// Factory creates repositories based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresURL string
}

// Type represents the kind of persistence backend.
type Type string

const (
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
