// Package enum discovers annotation files on disk in a deterministic order.
package enum

import (
	"context"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

// Enumerator discovers annotation files from a source.
type Enumerator interface {
	// Enumerate yields files in priority order, lowest first.
	// The callback receives file content, its ID, and provenance information.
	Enumerate(ctx context.Context, callback func(content []byte, id types.ContentID, prov types.Provenance) error) error
}

// DefaultExtensions are the file extensions enumerated when none are configured.
var DefaultExtensions = []string{".xml"}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// Extensions limits enumeration to these extensions (case-insensitive).
	// Empty means DefaultExtensions.
	Extensions []string

	// Readers is the number of parallel file readers (0 = NumCPU).
	Readers int
}
