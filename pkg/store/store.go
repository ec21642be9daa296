// Package store persists parsed and merged annotation files.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

// ErrNotFound is returned when a requested file is not stored.
var ErrNotFound = errors.New("not found")

// Store provides persistence for annotation files.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (memory, SQLite, PostgreSQL).
type Store interface {
	// AddFile stores a file, replacing any earlier file with the same URI.
	AddFile(file *types.AnnotationFile, id types.ContentID) error

	// GetFile retrieves a file by URI. Returns ErrNotFound if absent.
	GetFile(uri string) (*types.AnnotationFile, error)

	// ListFiles returns a summary of every stored file in insertion order.
	ListFiles() ([]FileRecord, error)

	// GetTerms returns every stored term for target, ordered by file
	// insertion and then by position within the file.
	GetTerms(target string) ([]*types.Element, error)

	// FileExists checks if content with this ID has already been stored.
	FileExists(id types.ContentID) (bool, error)

	// Close releases the backend.
	Close() error
}

// FileRecord summarizes one stored file.
type FileRecord struct {
	URI       string          `json:"uri"`
	ContentID types.ContentID `json:"content_id"`
	Targets   int             `json:"targets"`
	Terms     int             `json:"terms"`
}

// Config for store initialization.
type Config struct {
	// Path selects the backend:
	//   ":memory:"                               in-memory store
	//   "postgres://..." or "postgresql://..."   PostgreSQL
	//   anything else                            SQLite database file
	Path string
}

// MemoryPath selects the in-memory backend.
const MemoryPath = ":memory:"

// New creates a store for the backend selected by cfg.Path.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	switch {
	case cfg.Path == MemoryPath:
		return NewMemory(), nil
	case isPostgresURL(cfg.Path):
		return NewPostgres(cfg.Path)
	default:
		return NewSQLite(cfg.Path)
	}
}

func isPostgresURL(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// Lookup returns the record stored for uri, or ErrNotFound.
func Lookup(s Store, uri string) (FileRecord, error) {
	records, err := s.ListFiles()
	if err != nil {
		return FileRecord{}, err
	}
	for _, rec := range records {
		if rec.URI == uri {
			return rec, nil
		}
	}
	return FileRecord{}, fmt.Errorf("file %s: %w", uri, ErrNotFound)
}

// AddIfChanged stores file unless its URI is already stored with the same
// content ID. It reports whether the store was written, so re-merging an
// unchanged input keeps its original insertion position.
func AddIfChanged(s Store, file *types.AnnotationFile, id types.ContentID) (bool, error) {
	if file == nil {
		return false, fmt.Errorf("file is nil")
	}
	exists, err := s.FileExists(id)
	if err != nil {
		return false, err
	}
	if exists {
		rec, err := Lookup(s, file.URI)
		switch {
		case err == nil && rec.ContentID == id:
			return false, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return false, err
		}
	}
	if err := s.AddFile(file, id); err != nil {
		return false, err
	}
	return true, nil
}
