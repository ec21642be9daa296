// Package xmlanno reads and writes OData EDMX annotation documents.
//
// Parse turns an annotation XML file into a types.AnnotationFile with source
// ranges on every element. Write and Marshal serialize an annotation file
// (typically a merge result) back to EDMX. Query runs XPath expressions over
// annotation documents.
//
// Security: entity expansion is disabled in the decoder, and Go's xml.Decoder
// never fetches external entities.
package xmlanno

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

// XML namespaces used by EDMX annotation documents.
const (
	EdmxNamespace = "http://docs.oasis-open.org/odata/ns/edmx"
	EdmNamespace  = "http://docs.oasis-open.org/odata/ns/edm"
)

// ParseError reports malformed annotation XML.
type ParseError struct {
	URI      string
	Position types.Position
	Err      error
}

func (e *ParseError) Error() string {
	// Positions are zero-based internally; editors show them one-based.
	return fmt.Sprintf("failed to parse annotation file %s at %d:%d: %v",
		e.URI, e.Position.Line+1, e.Position.Character+1, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type parser struct {
	uri   string
	dec   *xml.Decoder
	lines *types.LineIndex
}

// Parse parses an EDMX annotation document. References come from
// edmx:Reference/edmx:Include and targets from every Annotations element;
// each direct child of an Annotations element becomes one term.
func Parse(uri string, content []byte) (*types.AnnotationFile, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Entity = map[string]string{}

	p := &parser{
		uri:   uri,
		dec:   dec,
		lines: types.NewLineIndex(content),
	}

	file := &types.AnnotationFile{
		Type:       types.AnnotationFileType,
		URI:        uri,
		References: []types.Reference{},
		Targets:    []*types.Target{},
	}
	whole := p.lines.Range(0, len(content))
	file.Range = &whole

	for {
		start := p.dec.InputOffset()
		tok, err := p.dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.errorf(err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "Reference":
			ref, err := p.parseReference(se, start)
			if err != nil {
				return nil, err
			}
			file.References = append(file.References, ref)
		case "Annotations":
			target, err := p.parseTarget(se, start)
			if err != nil {
				return nil, err
			}
			file.Targets = append(file.Targets, target)
		}
	}

	return file, nil
}

func (p *parser) parseReference(se xml.StartElement, start int64) (types.Reference, error) {
	ref := types.Reference{
		Type: types.ReferenceType,
		URI:  attrValue(se, "Uri"),
	}

	for {
		tok, err := p.dec.Token()
		if err != nil {
			return ref, p.errorf(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Include" {
				ref.Includes = append(ref.Includes, types.Include{
					Namespace: attrValue(t, "Namespace"),
					Alias:     attrValue(t, "Alias"),
				})
			}
			if err := p.dec.Skip(); err != nil {
				return ref, p.errorf(err)
			}
		case xml.EndElement:
			r := p.lines.Range(int(start), int(p.dec.InputOffset()))
			ref.Range = &r
			return ref, nil
		}
	}
}

func (p *parser) parseTarget(se xml.StartElement, start int64) (*types.Target, error) {
	target := &types.Target{
		Type:  types.TargetType,
		Name:  attrValue(se, "Target"),
		Terms: []*types.Element{},
	}

	for {
		childStart := p.dec.InputOffset()
		tok, err := p.dec.Token()
		if err != nil {
			return nil, p.errorf(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			term, err := p.parseElement(t, childStart)
			if err != nil {
				return nil, err
			}
			target.Terms = append(target.Terms, term)
		case xml.EndElement:
			r := p.lines.Range(int(start), int(p.dec.InputOffset()))
			target.Range = &r
			return target, nil
		}
	}
}

// parseElement reads one element subtree. The decoder must have just
// returned se, which started at byte offset start.
func (p *parser) parseElement(se xml.StartElement, start int64) (*types.Element, error) {
	el := &types.Element{
		Type:       types.ElementType,
		Name:       se.Name.Local,
		Attributes: make(map[string]types.Attribute, len(se.Attr)),
	}
	for _, a := range se.Attr {
		if isNamespaceDecl(a) {
			continue
		}
		el.Attributes[a.Name.Local] = types.Attribute{Name: a.Name.Local, Value: a.Value}
	}

	var text strings.Builder
	for {
		childStart := p.dec.InputOffset()
		tok, err := p.dec.Token()
		if err != nil {
			return nil, p.errorf(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := p.parseElement(t, childStart)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			el.Text = strings.TrimSpace(text.String())
			r := p.lines.Range(int(start), int(p.dec.InputOffset()))
			el.Range = &r
			return el, nil
		}
	}
}

func (p *parser) errorf(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &ParseError{
		URI:      p.uri,
		Position: p.lines.Position(int(p.dec.InputOffset())),
		Err:      err,
	}
}

func attrValue(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local && !isNamespaceDecl(a) {
			return a.Value
		}
	}
	return ""
}

func isNamespaceDecl(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}
