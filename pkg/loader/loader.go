// Package loader reads annotation files in priority order and parses them
// through a content-addressed cache.
package loader

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/praetorian-inc/annomerge/pkg/enum"
	"github.com/praetorian-inc/annomerge/pkg/types"
	"github.com/praetorian-inc/annomerge/pkg/xmlanno"
)

// DefaultCacheSize is the number of parsed files kept when none is configured.
const DefaultCacheSize = 256

// Options configures a Loader.
type Options struct {
	CacheSize int         // Parsed files to keep (0 = DefaultCacheSize)
	Enum      enum.Config // Template for directory enumeration; Root is overridden
	Logger    *zap.Logger
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Loader parses annotation files, reusing results for identical content.
// It is safe for concurrent use.
type Loader struct {
	cache  *lru.Cache[types.ContentID, *types.AnnotationFile]
	enum   enum.Config
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Loader with its own parse cache.
func New(opts Options) (*Loader, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[types.ContentID, *types.AnnotationFile](size)
	if err != nil {
		return nil, fmt.Errorf("creating parse cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cache: cache, enum: opts.Enum, logger: logger}, nil
}

// Document is a loaded annotation file together with the exact bytes it
// was parsed from.
type Document struct {
	File    *types.AnnotationFile
	Content []byte
	Source  types.Provenance
}

// Files returns the parsed files of docs in order.
func Files(docs []Document) []*types.AnnotationFile {
	files := make([]*types.AnnotationFile, len(docs))
	for i, d := range docs {
		files[i] = d.File
	}
	return files
}

// Parse parses content handed over directly, such as a server request,
// under the given URI. A cached result is returned when the same content
// was parsed before. Cached files are shared and must be treated as
// read-only.
func (l *Loader) Parse(uri string, content []byte) (*types.AnnotationFile, error) {
	return l.parse(types.InlineProvenance{URI: uri}, content, types.ComputeContentID(content))
}

func (l *Loader) parse(src types.Provenance, content []byte, id types.ContentID) (*types.AnnotationFile, error) {
	uri := src.Path()
	if cached, ok := l.cache.Get(id); ok {
		l.hits.Add(1)
		l.logger.Debug("parse cache hit",
			zap.String("uri", uri),
			zap.String("source", src.Kind()),
			zap.Stringer("id", id))
		if cached.URI == uri {
			return cached, nil
		}
		// Same bytes under another name: ranges are identical, only the URI differs.
		renamed := *cached
		renamed.URI = uri
		return &renamed, nil
	}

	l.misses.Add(1)
	file, err := xmlanno.Parse(uri, content)
	if err != nil {
		return nil, err
	}
	l.cache.Add(id, file)
	return file, nil
}

// Load reads and parses paths in the given order, which is the merge
// priority order (lowest first). Directories expand to their annotation
// files in sorted order at the position they appear.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]*types.AnnotationFile, error) {
	docs, err := l.LoadDocuments(ctx, paths...)
	if err != nil {
		return nil, err
	}
	return Files(docs), nil
}

// LoadDocuments is Load keeping the bytes each file was parsed from.
func (l *Loader) LoadDocuments(ctx context.Context, paths ...string) ([]Document, error) {
	var docs []Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			dirDocs, err := l.loadDir(ctx, path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, dirDocs...)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
		doc, err := l.document(types.FileProvenance{FilePath: path}, content, types.ComputeContentID(content))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	l.logger.Debug("loaded annotation files", zap.Int("count", len(docs)))
	return docs, nil
}

// loadDir enumerates root and parses every annotation file found, in
// enumeration order.
func (l *Loader) loadDir(ctx context.Context, root string) ([]Document, error) {
	cfg := l.enum
	cfg.Root = root

	var docs []Document
	err := enum.NewFilesystemEnumerator(cfg).Enumerate(ctx, func(content []byte, id types.ContentID, prov types.Provenance) error {
		doc, err := l.document(prov, content, id)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (l *Loader) document(src types.Provenance, content []byte, id types.ContentID) (Document, error) {
	file, err := l.parse(src, content, id)
	if err != nil {
		return Document{}, err
	}
	return Document{File: file, Content: content, Source: src}, nil
}

// Stats returns cache hit and miss counts.
func (l *Loader) Stats() Stats {
	return Stats{Hits: l.hits.Load(), Misses: l.misses.Load()}
}
