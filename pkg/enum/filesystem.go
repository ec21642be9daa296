package enum

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

// FilesystemEnumerator enumerates annotation files under a directory.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a new filesystem enumerator.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config}
}

// fileEntry holds one eligible path and, after phase 2, its content.
type fileEntry struct {
	path    string
	content []byte
}

// Enumerate walks the filesystem and yields files sorted by relative path.
// Phase 1: Walk directory tree and collect eligible file paths (sequential).
// Phase 2: Read files in parallel.
// Phase 3: Invoke callback in sorted order.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, callback func(content []byte, id types.ContentID, prov types.Provenance) error) error {
	files, err := e.collect(ctx)
	if err != nil {
		return err
	}

	if err := e.readAll(ctx, files); err != nil {
		return err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		prov := types.FileProvenance{FilePath: f.path}
		if err := callback(f.content, types.ComputeContentID(f.content), prov); err != nil {
			return err
		}
	}
	return nil
}

func (e *FilesystemEnumerator) collect(ctx context.Context) ([]*fileEntry, error) {
	info, err := os.Stat(e.config.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", e.config.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", e.config.Root)
	}

	// Load .gitignore patterns if present
	var ignore *gitignore.GitIgnore
	gitignorePath := filepath.Join(e.config.Root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		ignore, _ = gitignore.CompileIgnoreFile(gitignorePath)
	}

	var files []*fileEntry
	err = filepath.Walk(e.config.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if path != e.config.Root && !e.config.IncludeHidden && isHidden(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 && !e.config.FollowSymlinks {
			return nil
		}

		if !e.config.IncludeHidden && isHidden(info.Name()) {
			return nil
		}

		if !e.matchesExtension(path) {
			return nil
		}

		if e.config.MaxFileSize > 0 && info.Size() > e.config.MaxFileSize {
			return nil
		}

		if ignore != nil {
			relPath, err := filepath.Rel(e.config.Root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(relPath) {
				return nil
			}
		}

		files = append(files, &fileEntry{path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Priority is lexical by slash-separated relative path, independent of OS.
	sort.SliceStable(files, func(i, j int) bool {
		return filepath.ToSlash(files[i].path) < filepath.ToSlash(files[j].path)
	})
	return files, nil
}

func (e *FilesystemEnumerator) readAll(ctx context.Context, files []*fileEntry) error {
	numReaders := e.config.Readers
	if numReaders <= 0 {
		numReaders = runtime.NumCPU()
	}
	if numReaders < 1 {
		numReaders = 1
	}

	origCtx := ctx
	g, ctx := errgroup.WithContext(ctx)
	filesCh := make(chan *fileEntry, numReaders*2)

	// Feed entries to readers
	g.Go(func() error {
		defer close(filesCh)
		for _, f := range files {
			select {
			case filesCh <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	// Parallel readers; each entry is written by exactly one goroutine.
	for i := 0; i < numReaders; i++ {
		g.Go(func() error {
			for f := range filesCh {
				if err := ctx.Err(); err != nil {
					return err
				}
				content, err := os.ReadFile(f.path)
				if err != nil {
					return fmt.Errorf("failed to read file %s: %w", f.path, err)
				}
				f.content = content
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// If the caller's context was cancelled but all goroutines finished
	// before noticing, propagate the cancellation.
	return origCtx.Err()
}

func (e *FilesystemEnumerator) matchesExtension(path string) bool {
	exts := e.config.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range exts {
		want = strings.ToLower(want)
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if ext == want {
			return true
		}
	}
	return false
}

// isHidden checks if a filename is hidden (starts with .).
// The special entries "." and ".." are NOT considered hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
