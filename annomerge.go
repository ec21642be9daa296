// Package annomerge merges OData annotation files into a single logical view.
//
// Files are given from lowest to highest priority. For every target, each
// term (identified by Term and optional Qualifier) keeps the definition from
// the last file that declares it.
//
// # Basic Usage
//
//	m, err := annomerge.NewMerger()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	merged, report, err := m.MergeFiles(ctx, "base.xml", "override.xml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d terms, %d overridden\n", report.Stats.TermsMerged, report.Stats.TermsOverridden)
//
// # Writing the Result
//
//	data, err := annomerge.MarshalXML(merged)
package annomerge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/loader"
	"github.com/praetorian-inc/annomerge/pkg/types"
	"github.com/praetorian-inc/annomerge/pkg/xmlanno"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/annomerge" without subpackages.
type (
	// AnnotationFile is a parsed annotation document or a merge result.
	AnnotationFile = types.AnnotationFile

	// Target groups the terms annotating one model element.
	Target = types.Target

	// Element is an XML element with attributes, text and children.
	Element = types.Element

	// Reference is an edmx:Reference with its includes.
	Reference = types.Reference

	// Position is a zero-based line/character point.
	Position = types.Position

	// Range is a half-open span between two positions.
	Range = types.Range

	// Ranged is anything that may carry a source range.
	Ranged = types.Ranged

	// Report describes the overrides and dropped elements of a merge.
	Report = annotation.Report

	// FilterConfig selects targets by name.
	FilterConfig = annotation.FilterConfig
)

// CompareByRange orders two ranged values by start, then end. Values without
// a range sort after values with one.
func CompareByRange(a, b Ranged) int {
	return types.CompareByRange(a, b)
}

// MergeXMLAnnotations merges parsed files given in ascending priority.
func MergeXMLAnnotations(files []*AnnotationFile) *AnnotationFile {
	return annotation.MergeXMLAnnotations(files)
}

// Input is an in-memory annotation document.
type Input struct {
	URI     string
	Content []byte
}

// Merger loads, parses and merges annotation files.
type Merger struct {
	loader *loader.Loader
	config *mergerConfig
}

// mergerConfig holds merger configuration.
type mergerConfig struct {
	logger    *zap.Logger
	cacheSize int
	filter    FilterConfig
}

// Option configures a Merger.
type Option func(*mergerConfig)

// WithLogger routes debug output about overrides and dropped elements to l.
func WithLogger(l *zap.Logger) Option {
	return func(c *mergerConfig) {
		c.logger = l
	}
}

// WithCacheSize sets how many parsed documents are kept, keyed by content.
// Default is 256.
func WithCacheSize(n int) Option {
	return func(c *mergerConfig) {
		c.cacheSize = n
	}
}

// WithTargetFilter keeps only targets whose names pass the filter.
func WithTargetFilter(f FilterConfig) Option {
	return func(c *mergerConfig) {
		c.filter = f
	}
}

// NewMerger creates a new Merger with the given options.
func NewMerger(opts ...Option) (*Merger, error) {
	config := &mergerConfig{
		logger:    zap.NewNop(),
		cacheSize: loader.DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(config)
	}

	l, err := loader.New(loader.Options{
		CacheSize: config.cacheSize,
		Logger:    config.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating loader: %w", err)
	}

	return &Merger{loader: l, config: config}, nil
}

// MergeFiles merges the annotation files at paths. Directories expand to
// their .xml files in sorted order.
func (m *Merger) MergeFiles(ctx context.Context, paths ...string) (*AnnotationFile, *Report, error) {
	files, err := m.loader.Load(ctx, paths...)
	if err != nil {
		return nil, nil, err
	}
	return m.merge(files)
}

// MergeContent merges in-memory documents.
func (m *Merger) MergeContent(inputs ...Input) (*AnnotationFile, *Report, error) {
	files := make([]*types.AnnotationFile, 0, len(inputs))
	for _, in := range inputs {
		f, err := m.loader.Parse(in.URI, in.Content)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, f)
	}
	return m.merge(files)
}

func (m *Merger) merge(files []*types.AnnotationFile) (*AnnotationFile, *Report, error) {
	merged, report := annotation.Merge(files, annotation.Options{Logger: m.config.logger})
	if m.config.filter.IsEmpty() {
		return merged, report, nil
	}
	filtered, err := annotation.FilterTargets(merged, m.config.filter)
	if err != nil {
		return nil, nil, err
	}
	return filtered, report, nil
}

// CacheStats returns parse cache hits and misses.
func (m *Merger) CacheStats() (hits, misses int64) {
	s := m.loader.Stats()
	return s.Hits, s.Misses
}

// ParseFile parses one annotation document.
func ParseFile(uri string, content []byte) (*AnnotationFile, error) {
	return xmlanno.Parse(uri, content)
}

// MarshalXML serializes a file as an EDMX annotation document.
func MarshalXML(file *AnnotationFile) ([]byte, error) {
	return xmlanno.Marshal(file, xmlanno.WriteOptions{})
}
