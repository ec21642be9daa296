// Package sarif renders merge diagnostics as SARIF 2.1.0.
package sarif

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI   = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version     = "2.1.0"
	ToolName    = "annomerge"
	ToolVersion = "0.1.0"
)

// Rule IDs reported by annomerge.
const (
	RuleOverride    = "annomerge.override"
	RuleMissingTerm = "annomerge.missing-term"
)

// Result levels.
const (
	LevelNote    = "note"
	LevelWarning = "warning"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule describes one kind of diagnostic
type Rule struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	ShortDescription     ShortDescription `json:"shortDescription"`
	DefaultConfiguration *Configuration   `json:"defaultConfiguration,omitempty"`
}

// Configuration holds a rule's default level
type Configuration struct {
	Level string `json:"level"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// Result represents a single diagnostic
type Result struct {
	RuleID           string     `json:"ruleId"`
	Level            string     `json:"level"`
	Message          Message    `json:"message"`
	Locations        []Location `json:"locations"`
	RelatedLocations []Location `json:"relatedLocations,omitempty"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
	Message          *Message         `json:"message,omitempty"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region specifies the line/column range (1-based)
type Region struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// NewReport creates a new SARIF report with initialized structure
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: ToolVersion,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
	}
}

// AddRule adds a rule to the report
func (r *Report) AddRule(rule Rule) {
	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, rule)
}

// AddResult adds a result to the report
func (r *Report) AddResult(result Result) {
	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

// Rules returns the rules annomerge can report.
func Rules() []Rule {
	return []Rule{
		{
			ID:                   RuleOverride,
			Name:                 "TermOverride",
			ShortDescription:     ShortDescription{Text: "A term is replaced by a higher-priority annotation file"},
			DefaultConfiguration: &Configuration{Level: LevelNote},
		},
		{
			ID:                   RuleMissingTerm,
			Name:                 "MissingTerm",
			ShortDescription:     ShortDescription{Text: "An element under Annotations has no Term attribute and is dropped"},
			DefaultConfiguration: &Configuration{Level: LevelWarning},
		},
	}
}

// pending pairs a result with the source it is sorted by.
type pending struct {
	source annotation.Source
	result Result
}

// FromMergeReport converts merge diagnostics into a SARIF report. Results
// are ordered by source range, then by URI.
func FromMergeReport(mr *annotation.Report) *Report {
	report := NewReport()
	for _, rule := range Rules() {
		report.AddRule(rule)
	}
	if mr == nil {
		return report
	}

	var results []pending
	for _, o := range mr.Overrides {
		shadowed := location(o.Shadowed)
		shadowed.Message = &Message{Text: "shadowed definition"}
		results = append(results, pending{
			source: o.Winner,
			result: Result{
				RuleID:           RuleOverride,
				Level:            LevelNote,
				Message:          Message{Text: fmt.Sprintf("%s on %s overrides the value from %s", o.Identity, o.Target, o.Shadowed.URI)},
				Locations:        []Location{location(o.Winner)},
				RelatedLocations: []Location{shadowed},
			},
		})
	}
	for _, d := range mr.Dropped {
		results = append(results, pending{
			source: d.Source,
			result: Result{
				RuleID:    RuleMissingTerm,
				Level:     LevelWarning,
				Message:   Message{Text: fmt.Sprintf("%s element on %s has no Term and is ignored", d.Element, d.Target)},
				Locations: []Location{location(d.Source)},
			},
		})
	}

	slices.SortStableFunc(results, func(a, b pending) int {
		if c := types.CompareByRange(a.source, b.source); c != 0 {
			return c
		}
		return strings.Compare(a.source.URI, b.source.URI)
	})
	for _, p := range results {
		report.AddResult(p.result)
	}
	return report
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func location(src annotation.Source) Location {
	return Location{
		PhysicalLocation: PhysicalLocation{
			ArtifactLocation: ArtifactLocation{URI: formatFileURI(src.URI)},
			Region:           regionFor(src.Range),
		},
	}
}

// regionFor converts a zero-based range to a 1-based SARIF region.
func regionFor(r *types.Range) *Region {
	if r == nil {
		return nil
	}
	return &Region{
		StartLine:   r.Start.Line + 1,
		StartColumn: r.Start.Character + 1,
		EndLine:     r.End.Line + 1,
		EndColumn:   r.End.Character + 1,
	}
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		// Normalize path separators for URI format
		path = filepath.ToSlash(path)
		// Ensure path starts with /
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	// Relative paths stay as-is
	return filepath.ToSlash(path)
}
