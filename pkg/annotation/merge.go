// Package annotation merges parsed annotation files into one logical view.
//
// Files are folded from lowest to highest priority. For every target, each
// term identity (Term, optionally suffixed with #Qualifier) keeps the element
// seen last, so the last file in the input list wins any collision.
package annotation

import (
	"go.uber.org/zap"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

// Source locates an element in one of the merged input files.
type Source struct {
	URI   string       `json:"uri"`
	Range *types.Range `json:"range,omitempty"`
}

// SourceRange implements types.Ranged.
func (s Source) SourceRange() *types.Range {
	return s.Range
}

// Override records a term that replaced an earlier term with the same identity.
type Override struct {
	Target   string `json:"target"`
	Identity string `json:"identity"`
	Winner   Source `json:"winner"`
	Shadowed Source `json:"shadowed"`
}

// Dropped records an element that was excluded because it has no Term.
type Dropped struct {
	Target  string `json:"target"`
	Element string `json:"element"`
	Source  Source `json:"source"`
}

// Stats tracks merge operation statistics.
type Stats struct {
	FilesProcessed   int `json:"files_processed"`
	TargetsMerged    int `json:"targets_merged"`
	TermsMerged      int `json:"terms_merged"`
	TermsOverridden  int `json:"terms_overridden"`
	TermsDropped     int `json:"terms_dropped"`
	ReferencesMerged int `json:"references_merged"`
}

// Report describes what a merge did besides producing its result.
type Report struct {
	Stats     Stats      `json:"stats"`
	Overrides []Override `json:"overrides"`
	Dropped   []Dropped  `json:"dropped"`
}

// Options configures Merge.
type Options struct {
	// Logger receives debug output for overrides and dropped elements.
	// Nil disables logging.
	Logger *zap.Logger
}

// termEntry is the accumulator value for one term identity.
type termEntry struct {
	element *types.Element
	uri     string
}

// MergeXMLAnnotations merges files given in ascending priority into a single
// annotation file. It never mutates its input; elements in the result are
// shared with the inputs and must be treated as read-only.
func MergeXMLAnnotations(files []*types.AnnotationFile) *types.AnnotationFile {
	merged, _ := Merge(files, Options{})
	return merged
}

// Merge is MergeXMLAnnotations with a report of overrides and dropped elements.
func Merge(files []*types.AnnotationFile, opts Options) (*types.AnnotationFile, *Report) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	report := &Report{
		Overrides: []Override{},
		Dropped:   []Dropped{},
	}
	targets := newOrderedMap[string, *orderedMap[string, termEntry]]()
	references := []types.Reference{}

	for _, file := range files {
		if file == nil {
			continue
		}
		report.Stats.FilesProcessed++
		references = append(references, file.References...)

		for _, target := range file.Targets {
			if target == nil {
				continue
			}
			terms, ok := targets.get(target.Name)
			if !ok {
				terms = newOrderedMap[string, termEntry]()
				targets.set(target.Name, terms)
			}
			mergeTerms(terms, target, file.URI, report, logger)
		}
	}

	result := &types.AnnotationFile{
		Type:       types.AnnotationFileType,
		URI:        types.MergedURI,
		References: references,
		Targets:    make([]*types.Target, 0, targets.len()),
	}
	targets.each(func(name string, terms *orderedMap[string, termEntry]) {
		t := &types.Target{
			Type:  types.TargetType,
			Name:  name,
			Terms: make([]*types.Element, 0, terms.len()),
		}
		terms.each(func(_ string, entry termEntry) {
			t.Terms = append(t.Terms, entry.element)
		})
		result.Targets = append(result.Targets, t)
	})

	report.Stats.TargetsMerged = len(result.Targets)
	report.Stats.TermsMerged = result.TermCount()
	report.Stats.ReferencesMerged = len(references)

	logger.Debug("merged annotation files",
		zap.Int("files", report.Stats.FilesProcessed),
		zap.Int("targets", report.Stats.TargetsMerged),
		zap.Int("terms", report.Stats.TermsMerged),
		zap.Int("overridden", report.Stats.TermsOverridden),
		zap.Int("dropped", report.Stats.TermsDropped))

	return result, report
}

// mergeTerms folds one target's terms into its identity map.
func mergeTerms(terms *orderedMap[string, termEntry], target *types.Target, uri string, report *Report, logger *zap.Logger) {
	for _, term := range target.Terms {
		if term == nil {
			continue
		}
		identity, ok := TermIdentity(term)
		if !ok {
			report.Stats.TermsDropped++
			report.Dropped = append(report.Dropped, Dropped{
				Target:  target.Name,
				Element: term.Name,
				Source:  Source{URI: uri, Range: term.Range},
			})
			logger.Debug("dropping element without Term",
				zap.String("target", target.Name),
				zap.String("element", term.Name),
				zap.String("uri", uri))
			continue
		}

		prev, replaced := terms.set(identity, termEntry{element: term, uri: uri})
		if replaced {
			report.Stats.TermsOverridden++
			report.Overrides = append(report.Overrides, Override{
				Target:   target.Name,
				Identity: identity,
				Winner:   Source{URI: uri, Range: term.Range},
				Shadowed: Source{URI: prev.uri, Range: prev.element.Range},
			})
			logger.Debug("term overridden",
				zap.String("target", target.Name),
				zap.String("identity", identity),
				zap.String("winner", uri),
				zap.String("shadowed", prev.uri))
		}
	}
}

// TermIdentity returns "Term" or "Term#Qualifier" for an element.
// It reports false when the element has no Term attribute. Empty attribute
// values count as absent.
func TermIdentity(el *types.Element) (string, bool) {
	term, _ := el.Attr(types.AttrTerm)
	if term == "" {
		return "", false
	}
	if qualifier, _ := el.Attr(types.AttrQualifier); qualifier != "" {
		return term + "#" + qualifier, true
	}
	return term, true
}
