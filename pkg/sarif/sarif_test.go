package sarif

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/types"
)

func rng(sl, sc, el, ec int) *types.Range {
	r := types.NewRange(sl, sc, el, ec)
	return &r
}

func TestNewReport(t *testing.T) {
	report := NewReport()

	assert.Equal(t, SchemaURI, report.Schema)
	assert.Equal(t, Version, report.Version)
	assert.Len(t, report.Runs, 1)
	assert.Equal(t, ToolName, report.Runs[0].Tool.Driver.Name)
	assert.Equal(t, ToolVersion, report.Runs[0].Tool.Driver.Version)
	assert.NotNil(t, report.Runs[0].Results)
}

func TestFromMergeReport_Override(t *testing.T) {
	mr := &annotation.Report{
		Overrides: []annotation.Override{{
			Target:   "SAP.Books/title",
			Identity: "Common.Label",
			Winner:   annotation.Source{URI: "override.xml", Range: rng(4, 16, 4, 69)},
			Shadowed: annotation.Source{URI: "base.xml", Range: rng(25, 16, 25, 64)},
		}},
	}

	report := FromMergeReport(mr)

	rules := report.Runs[0].Tool.Driver.Rules
	require.Len(t, rules, 2)
	assert.Equal(t, RuleOverride, rules[0].ID)
	assert.Equal(t, LevelNote, rules[0].DefaultConfiguration.Level)
	assert.Equal(t, RuleMissingTerm, rules[1].ID)
	assert.Equal(t, LevelWarning, rules[1].DefaultConfiguration.Level)

	require.Len(t, report.Runs[0].Results, 1)
	result := report.Runs[0].Results[0]
	assert.Equal(t, RuleOverride, result.RuleID)
	assert.Equal(t, LevelNote, result.Level)
	assert.Equal(t, "Common.Label on SAP.Books/title overrides the value from base.xml", result.Message.Text)

	winner := result.Locations[0].PhysicalLocation
	assert.Equal(t, "override.xml", winner.ArtifactLocation.URI)
	assert.Equal(t, &Region{StartLine: 5, StartColumn: 17, EndLine: 5, EndColumn: 70}, winner.Region)

	require.Len(t, result.RelatedLocations, 1)
	shadowed := result.RelatedLocations[0]
	assert.Equal(t, "base.xml", shadowed.PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, &Region{StartLine: 26, StartColumn: 17, EndLine: 26, EndColumn: 65}, shadowed.PhysicalLocation.Region)
	assert.Equal(t, "shadowed definition", shadowed.Message.Text)
}

func TestFromMergeReport_Dropped(t *testing.T) {
	mr := &annotation.Report{
		Dropped: []annotation.Dropped{{
			Target:  "SAP.Authors",
			Element: "Annotation",
			Source:  annotation.Source{URI: "/work/override.xml"},
		}},
	}

	report := FromMergeReport(mr)

	require.Len(t, report.Runs[0].Results, 1)
	result := report.Runs[0].Results[0]
	assert.Equal(t, RuleMissingTerm, result.RuleID)
	assert.Equal(t, LevelWarning, result.Level)
	assert.Equal(t, "Annotation element on SAP.Authors has no Term and is ignored", result.Message.Text)
	assert.Equal(t, "file:///work/override.xml", result.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Nil(t, result.Locations[0].PhysicalLocation.Region)
	assert.Empty(t, result.RelatedLocations)
}

func TestFromMergeReport_SortedByRangeThenURI(t *testing.T) {
	mr := &annotation.Report{
		Overrides: []annotation.Override{
			{Identity: "late", Winner: annotation.Source{URI: "a.xml", Range: rng(9, 0, 9, 5)}},
			{Identity: "unranged", Winner: annotation.Source{URI: "a.xml"}},
			{Identity: "early-b", Winner: annotation.Source{URI: "b.xml", Range: rng(1, 0, 1, 5)}},
		},
		Dropped: []annotation.Dropped{
			{Element: "early-a", Source: annotation.Source{URI: "a.xml", Range: rng(1, 0, 1, 5)}},
		},
	}

	report := FromMergeReport(mr)

	var uris []string
	var lines []int
	for _, r := range report.Runs[0].Results {
		loc := r.Locations[0].PhysicalLocation
		uris = append(uris, loc.ArtifactLocation.URI)
		if loc.Region != nil {
			lines = append(lines, loc.Region.StartLine)
		} else {
			lines = append(lines, 0)
		}
	}
	assert.Equal(t, []string{"a.xml", "b.xml", "a.xml", "a.xml"}, uris)
	assert.Equal(t, []int{2, 2, 10, 0}, lines)
	assert.Equal(t, RuleMissingTerm, report.Runs[0].Results[0].RuleID)
}

func TestFromMergeReport_Nil(t *testing.T) {
	report := FromMergeReport(nil)
	assert.Empty(t, report.Runs[0].Results)
	assert.Len(t, report.Runs[0].Tool.Driver.Rules, 2)
}

func TestFromMergeReport_EndToEnd(t *testing.T) {
	base := &types.AnnotationFile{URI: "base.xml", Targets: []*types.Target{{
		Name:  "T",
		Terms: []*types.Element{{Name: "Annotation", Attributes: map[string]types.Attribute{"Term": {Name: "Term", Value: "UI.Hidden"}}, Range: rng(2, 4, 2, 30)}},
	}}}
	override := &types.AnnotationFile{URI: "override.xml", Targets: []*types.Target{{
		Name: "T",
		Terms: []*types.Element{
			{Name: "Annotation", Attributes: map[string]types.Attribute{"Term": {Name: "Term", Value: "UI.Hidden"}}, Range: rng(3, 4, 3, 30)},
			{Name: "Annotation", Attributes: map[string]types.Attribute{}, Range: rng(4, 4, 4, 20)},
		},
	}}}

	_, mr := annotation.Merge([]*types.AnnotationFile{base, override}, annotation.Options{})
	report := FromMergeReport(mr)

	results := report.Runs[0].Results
	require.Len(t, results, 2)
	assert.Equal(t, RuleOverride, results[0].RuleID)
	assert.Equal(t, 4, results[0].Locations[0].PhysicalLocation.Region.StartLine)
	assert.Equal(t, RuleMissingTerm, results[1].RuleID)
}

func TestToJSON(t *testing.T) {
	report := FromMergeReport(&annotation.Report{
		Dropped: []annotation.Dropped{{Target: "T", Element: "Annotation", Source: annotation.Source{URI: "x.xml"}}},
	})

	jsonBytes, err := report.ToJSON()
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(jsonBytes, &parsed))
	assert.Equal(t, SchemaURI, parsed["$schema"])
	assert.Equal(t, Version, parsed["version"])
	assert.NotContains(t, string(jsonBytes), `"region"`)
}

func TestFormatFileURI(t *testing.T) {
	assert.Equal(t, "file:///absolute/path/file.xml", formatFileURI("/absolute/path/file.xml"))
	assert.Equal(t, "relative/path/file.xml", formatFileURI("relative/path/file.xml"))
}
