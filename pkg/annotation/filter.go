package annotation

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

// FilterConfig specifies include and exclude patterns for target names.
type FilterConfig struct {
	Include []string `json:"include,omitempty" yaml:"include"` // Regex patterns - only matching targets included
	Exclude []string `json:"exclude,omitempty" yaml:"exclude"` // Regex patterns - matching targets excluded
}

// IsEmpty reports whether the filter would keep every target.
func (c FilterConfig) IsEmpty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0
}

// ParsePatterns splits a comma-separated string into individual patterns.
// Patterns are trimmed of whitespace.
func ParsePatterns(patterns string) []string {
	if patterns == "" {
		return []string{}
	}

	parts := strings.Split(patterns, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// FilterTargets returns a copy of file holding only the targets whose names
// pass the filter. Include is applied first, then exclude; an empty include
// list keeps everything. Target values are shared with file.
func FilterTargets(file *types.AnnotationFile, config FilterConfig) (*types.AnnotationFile, error) {
	include, err := compilePatterns(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compilePatterns(config.Exclude)
	if err != nil {
		return nil, err
	}

	out := *file
	out.Targets = make([]*types.Target, 0, len(file.Targets))
	for _, t := range file.Targets {
		if len(include) > 0 && !matchesAny(t.Name, include) {
			continue
		}
		if matchesAny(t.Name, exclude) {
			continue
		}
		out.Targets = append(out.Targets, t)
	}
	return &out, nil
}

// compilePatterns compiles in RE2 mode first and falls back to the
// full .NET syntax for lookarounds and backreferences.
func compilePatterns(patterns []string) ([]*regexp2.Regexp, error) {
	var out []*regexp2.Regexp
	for _, pattern := range patterns {
		re, err := regexp2.Compile(pattern, regexp2.RE2)
		if err != nil {
			re, err = regexp2.Compile(pattern, regexp2.None)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(name string, regexes []*regexp2.Regexp) bool {
	for _, re := range regexes {
		if ok, err := re.MatchString(name); err == nil && ok {
			return true
		}
	}
	return false
}
