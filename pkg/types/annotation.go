package types

// Node type markers carried on every annotation tree value.
const (
	AnnotationFileType = "annotation-file"
	ReferenceType      = "reference"
	TargetType         = "target"
	ElementType        = "element"
)

// MergedURI is the URI given to every synthesized merge result.
const MergedURI = "annotations"

// Well-known attribute names on annotation elements.
const (
	AttrTerm      = "Term"
	AttrQualifier = "Qualifier"
)

// Attribute is a single element attribute.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Element is a generic annotation tree node (Annotation, Record,
// PropertyValue, Collection, String, ...).
type Element struct {
	Type       string               `json:"type"`
	Name       string               `json:"name"`
	Attributes map[string]Attribute `json:"attributes"`
	Children   []*Element           `json:"children,omitempty"`
	Text       string               `json:"text,omitempty"`
	Range      *Range               `json:"range,omitempty"`
}

// NewElement creates an element with the given attribute name/value pairs.
// Pairs with a missing value are ignored.
func NewElement(name string, attrs ...string) *Element {
	e := &Element{
		Type:       ElementType,
		Name:       name,
		Attributes: make(map[string]Attribute, len(attrs)/2),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		e.Attributes[attrs[i]] = Attribute{Name: attrs[i], Value: attrs[i+1]}
	}
	return e
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	a, ok := e.Attributes[name]
	return a.Value, ok
}

// SourceRange implements Ranged.
func (e *Element) SourceRange() *Range {
	if e == nil {
		return nil
	}
	return e.Range
}

// Target groups the terms applied to one schema element.
type Target struct {
	Type  string     `json:"type"`
	Name  string     `json:"name"`
	Terms []*Element `json:"terms"`
	Range *Range     `json:"range,omitempty"`
}

// SourceRange implements Ranged.
func (t *Target) SourceRange() *Range {
	if t == nil {
		return nil
	}
	return t.Range
}

// Include is a namespace import inside a reference.
type Include struct {
	Namespace string `json:"namespace"`
	Alias     string `json:"alias,omitempty"`
}

// Reference is a vocabulary or service reference (edmx:Reference).
// The merge engine passes references through without interpreting them.
type Reference struct {
	Type     string    `json:"type"`
	URI      string    `json:"uri"`
	Includes []Include `json:"includes,omitempty"`
	Range    *Range    `json:"range,omitempty"`
}

// SourceRange implements Ranged.
func (r Reference) SourceRange() *Range {
	return r.Range
}

// AnnotationFile is one parsed (or synthesized) annotation document.
type AnnotationFile struct {
	Type       string      `json:"type"`
	URI        string      `json:"uri"`
	References []Reference `json:"references"`
	Targets    []*Target   `json:"targets"`
	Range      *Range      `json:"range,omitempty"`
}

// Target returns the first target with the given name, or nil.
func (f *AnnotationFile) Target(name string) *Target {
	if f == nil {
		return nil
	}
	for _, t := range f.Targets {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// TermCount returns the number of terms across all targets.
func (f *AnnotationFile) TermCount() int {
	if f == nil {
		return 0
	}
	n := 0
	for _, t := range f.Targets {
		n += len(t.Terms)
	}
	return n
}
