package annotation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

func term(name, qualifier, value string) *types.Element {
	el := types.NewElement("Annotation", types.AttrTerm, name)
	if qualifier != "" {
		el.Attributes[types.AttrQualifier] = types.Attribute{Name: types.AttrQualifier, Value: qualifier}
	}
	if value != "" {
		el.Attributes["String"] = types.Attribute{Name: "String", Value: value}
	}
	return el
}

func stringValue(t *testing.T, el *types.Element) string {
	t.Helper()
	v, ok := el.Attr("String")
	require.True(t, ok)
	return v
}

func file(uri string, targets ...*types.Target) *types.AnnotationFile {
	return &types.AnnotationFile{
		Type:       types.AnnotationFileType,
		URI:        uri,
		References: []types.Reference{},
		Targets:    targets,
	}
}

func target(name string, terms ...*types.Element) *types.Target {
	return &types.Target{Type: types.TargetType, Name: name, Terms: terms}
}

func ref(uri string) types.Reference {
	return types.Reference{Type: types.ReferenceType, URI: uri}
}

func TestMergeXMLAnnotations_EmptyInput(t *testing.T) {
	merged := MergeXMLAnnotations(nil)

	assert.Equal(t, &types.AnnotationFile{
		Type:       types.AnnotationFileType,
		URI:        "annotations",
		References: []types.Reference{},
		Targets:    []*types.Target{},
	}, merged)
}

func TestMergeXMLAnnotations_LastFileWins(t *testing.T) {
	f1 := file("f1.xml", target("T1", term("X", "", "v1")))
	f2 := file("f2.xml", target("T1", term("X", "", "v2")))

	merged := MergeXMLAnnotations([]*types.AnnotationFile{f1, f2})

	require.Len(t, merged.Targets, 1)
	require.Len(t, merged.Targets[0].Terms, 1)
	assert.Equal(t, "v2", stringValue(t, merged.Targets[0].Terms[0]))
}

func TestMergeXMLAnnotations_LastWinsWithinFile(t *testing.T) {
	f := file("f.xml", target("T1", term("X", "", "first"), term("Y", "", "y"), term("X", "", "second")))

	merged := MergeXMLAnnotations([]*types.AnnotationFile{f})

	terms := merged.Targets[0].Terms
	require.Len(t, terms, 2)
	// Overwriting keeps the identity's original slot.
	assert.Equal(t, "second", stringValue(t, terms[0]))
	assert.Equal(t, "y", stringValue(t, terms[1]))
}

func TestMergeXMLAnnotations_QualifierDisambiguates(t *testing.T) {
	f := file("f.xml", target("T1", term("X", "", "plain"), term("X", "Q1", "qualified")))

	merged := MergeXMLAnnotations([]*types.AnnotationFile{f})

	terms := merged.Targets[0].Terms
	require.Len(t, terms, 2)
	id0, _ := TermIdentity(terms[0])
	id1, _ := TermIdentity(terms[1])
	assert.Equal(t, "X", id0)
	assert.Equal(t, "X#Q1", id1)
}

func TestMergeXMLAnnotations_TermlessElementsDropped(t *testing.T) {
	noTerm := types.NewElement("Annotation", "Qualifier", "Q")
	onlyTermless := file("f.xml",
		target("T1", noTerm),
		target("T2", term("X", "", "kept"), types.NewElement("Record")),
	)

	merged := MergeXMLAnnotations([]*types.AnnotationFile{onlyTermless})

	require.Len(t, merged.Targets, 2)
	assert.Equal(t, "T1", merged.Targets[0].Name)
	assert.Empty(t, merged.Targets[0].Terms)
	assert.NotNil(t, merged.Targets[0].Terms)
	require.Len(t, merged.Targets[1].Terms, 1)
	assert.Equal(t, "kept", stringValue(t, merged.Targets[1].Terms[0]))
}

func TestMergeXMLAnnotations_ReferencesConcatenated(t *testing.T) {
	f1 := file("f1.xml")
	f1.References = []types.Reference{ref("vocab/UI"), ref("vocab/Common")}
	f2 := file("f2.xml")
	f2.References = []types.Reference{ref("vocab/UI"), ref("service/$metadata")}

	merged := MergeXMLAnnotations([]*types.AnnotationFile{f1, f2})

	var uris []string
	for _, r := range merged.References {
		uris = append(uris, r.URI)
	}
	assert.Equal(t, []string{"vocab/UI", "vocab/Common", "vocab/UI", "service/$metadata"}, uris)
}

func TestMergeXMLAnnotations_TargetOrderIsFirstSeen(t *testing.T) {
	f1 := file("f1.xml", target("B", term("X", "", "1")), target("A", term("X", "", "1")))
	f2 := file("f2.xml", target("C", term("X", "", "2")), target("A", term("Y", "", "2")))

	merged := MergeXMLAnnotations([]*types.AnnotationFile{f1, f2})

	var names []string
	for _, tg := range merged.Targets {
		names = append(names, tg.Name)
		assert.Equal(t, types.TargetType, tg.Type)
	}
	assert.Equal(t, []string{"B", "A", "C"}, names)
	assert.Len(t, merged.Target("A").Terms, 2)
}

func TestMergeXMLAnnotations_Idempotent(t *testing.T) {
	f1 := file("f1.xml", target("T1", term("X", "", "v1"), term("X", "Q", "q")), target("T2", term("Z", "", "z")))
	f1.References = []types.Reference{ref("vocab/UI")}
	f2 := file("f2.xml", target("T1", term("X", "", "v2")), target("T3", term("W", "", "w")))
	f2.References = []types.Reference{ref("vocab/Common")}

	once := MergeXMLAnnotations([]*types.AnnotationFile{f1, f2})
	twice := MergeXMLAnnotations([]*types.AnnotationFile{once})

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("merging a merged file changed it (-once +twice):\n%s", diff)
	}
}

func TestMergeXMLAnnotations_DoesNotMutateInput(t *testing.T) {
	f1 := file("f1.xml", target("T1", term("X", "", "v1")))
	f2 := file("f2.xml", target("T1", term("X", "", "v2"), term("Y", "", "y")))
	before1 := cloneFile(f1)
	before2 := cloneFile(f2)

	MergeXMLAnnotations([]*types.AnnotationFile{f1, f2})

	assert.Empty(t, cmp.Diff(before1, f1))
	assert.Empty(t, cmp.Diff(before2, f2))
}

func TestMergeXMLAnnotations_SkipsNilEntries(t *testing.T) {
	f := file("f.xml", nil, target("T1", nil, term("X", "", "v")))

	merged := MergeXMLAnnotations([]*types.AnnotationFile{nil, f})

	require.Len(t, merged.Targets, 1)
	assert.Len(t, merged.Targets[0].Terms, 1)
}

func TestMerge_Report(t *testing.T) {
	r1 := types.NewRange(3, 4, 3, 40)
	r2 := types.NewRange(7, 4, 7, 40)
	r3 := types.NewRange(9, 4, 9, 20)

	shadowed := term("UI.LineItem", "", "old")
	shadowed.Range = &r1
	winner := term("UI.LineItem", "", "new")
	winner.Range = &r2
	termless := types.NewElement("Annotation")
	termless.Range = &r3

	f1 := file("base.xml", target("Svc.Books", shadowed))
	f1.References = []types.Reference{ref("vocab/UI")}
	f2 := file("override.xml", target("Svc.Books", winner, termless))

	merged, report := Merge([]*types.AnnotationFile{f1, f2}, Options{})

	assert.Same(t, winner, merged.Targets[0].Terms[0])
	assert.Equal(t, Stats{
		FilesProcessed:   2,
		TargetsMerged:    1,
		TermsMerged:      1,
		TermsOverridden:  1,
		TermsDropped:     1,
		ReferencesMerged: 1,
	}, report.Stats)

	require.Len(t, report.Overrides, 1)
	assert.Equal(t, Override{
		Target:   "Svc.Books",
		Identity: "UI.LineItem",
		Winner:   Source{URI: "override.xml", Range: &r2},
		Shadowed: Source{URI: "base.xml", Range: &r1},
	}, report.Overrides[0])

	require.Len(t, report.Dropped, 1)
	assert.Equal(t, Dropped{
		Target:  "Svc.Books",
		Element: "Annotation",
		Source:  Source{URI: "override.xml", Range: &r3},
	}, report.Dropped[0])
}

func TestMerge_LogsOverrides(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	f1 := file("a.xml", target("T", term("X", "", "1")))
	f2 := file("b.xml", target("T", term("X", "", "2")))

	Merge([]*types.AnnotationFile{f1, f2}, Options{Logger: zap.New(core)})

	overridden := logs.FilterMessage("term overridden").All()
	require.Len(t, overridden, 1)
	assert.Equal(t, "b.xml", overridden[0].ContextMap()["winner"])
	assert.Equal(t, 1, logs.FilterMessage("merged annotation files").Len())
}

func TestTermIdentity(t *testing.T) {
	tests := []struct {
		name   string
		el     *types.Element
		want   string
		wantOK bool
	}{
		{name: "term only", el: term("UI.LineItem", "", ""), want: "UI.LineItem", wantOK: true},
		{name: "term and qualifier", el: term("UI.LineItem", "Q1", ""), want: "UI.LineItem#Q1", wantOK: true},
		{name: "empty qualifier ignored", el: types.NewElement("Annotation", "Term", "UI.Hidden", "Qualifier", ""), want: "UI.Hidden", wantOK: true},
		{name: "missing term", el: types.NewElement("Annotation", "Qualifier", "Q1")},
		{name: "empty term", el: types.NewElement("Annotation", "Term", "")},
		{name: "nil element", el: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TermIdentity(tt.el)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func cloneFile(f *types.AnnotationFile) *types.AnnotationFile {
	out := *f
	out.References = append([]types.Reference(nil), f.References...)
	out.Targets = nil
	for _, t := range f.Targets {
		ct := *t
		ct.Terms = nil
		for _, el := range t.Terms {
			ce := *el
			ce.Attributes = make(map[string]types.Attribute, len(el.Attributes))
			for k, v := range el.Attributes {
				ce.Attributes[k] = v
			}
			ct.Terms = append(ct.Terms, &ce)
		}
		out.Targets = append(out.Targets, &ct)
	}
	return &out
}
