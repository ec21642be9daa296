package xmlanno

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"

	"github.com/antchfx/xmlquery"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

// DefaultNamespace is the schema namespace written when none is configured.
const DefaultNamespace = "local"

// WriteOptions controls serialization.
type WriteOptions struct {
	Indent    string // Indentation string (default two spaces)
	Namespace string // Schema namespace (default "local")
}

func (o WriteOptions) withDefaults() WriteOptions {
	if o.Indent == "" {
		o.Indent = "  "
	}
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	return o
}

// Marshal serializes file as an EDMX annotation document.
func Marshal(file *types.AnnotationFile, opts WriteOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, file, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes file as an EDMX annotation document.
func Write(w io.Writer, file *types.AnnotationFile, opts WriteOptions) error {
	opts = opts.withDefaults()
	doc := Document(file, opts.Namespace)

	var buf bytes.Buffer
	formatNode(&buf, doc, 0, opts.Indent)
	_, err := w.Write(buf.Bytes())
	return err
}

// Document builds an xmlquery tree for file so it can be queried or formatted
// without a text round trip.
func Document(file *types.AnnotationFile, namespace string) *xmlquery.Node {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	decl := &xmlquery.Node{Type: xmlquery.DeclarationNode, Data: "xml"}
	addAttr(decl, "", "version", "1.0")
	addAttr(decl, "", "encoding", "utf-8")
	xmlquery.AddChild(doc, decl)

	root := newElement("edmx", "Edmx")
	addAttr(root, "xmlns", "edmx", EdmxNamespace)
	addAttr(root, "", "Version", "4.0")
	xmlquery.AddChild(doc, root)

	for _, ref := range file.References {
		refNode := newElement("edmx", "Reference")
		addAttr(refNode, "", "Uri", ref.URI)
		for _, inc := range ref.Includes {
			incNode := newElement("edmx", "Include")
			addAttr(incNode, "", "Namespace", inc.Namespace)
			if inc.Alias != "" {
				addAttr(incNode, "", "Alias", inc.Alias)
			}
			xmlquery.AddChild(refNode, incNode)
		}
		xmlquery.AddChild(root, refNode)
	}

	services := newElement("edmx", "DataServices")
	xmlquery.AddChild(root, services)
	schema := newElement("", "Schema")
	addAttr(schema, "", "xmlns", EdmNamespace)
	addAttr(schema, "", "Namespace", namespace)
	xmlquery.AddChild(services, schema)

	for _, target := range file.Targets {
		targetNode := newElement("", "Annotations")
		addAttr(targetNode, "", "Target", target.Name)
		for _, term := range target.Terms {
			xmlquery.AddChild(targetNode, elementNode(term))
		}
		xmlquery.AddChild(schema, targetNode)
	}

	return doc
}

func elementNode(el *types.Element) *xmlquery.Node {
	n := newElement("", el.Name)
	for _, name := range attributeOrder(el.Attributes) {
		addAttr(n, "", name, el.Attributes[name].Value)
	}
	if el.Text != "" {
		xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: el.Text})
	}
	for _, child := range el.Children {
		xmlquery.AddChild(n, elementNode(child))
	}
	return n
}

// attributeOrder puts Term and Qualifier first, then the rest by name.
func attributeOrder(attrs map[string]types.Attribute) []string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	rank := func(name string) int {
		switch name {
		case types.AttrTerm:
			return 0
		case types.AttrQualifier:
			return 1
		}
		return 2
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

func newElement(prefix, local string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.ElementNode, Prefix: prefix, Data: local}
}

func addAttr(n *xmlquery.Node, space, local, value string) {
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:  xml.Name{Space: space, Local: local},
		Value: value,
	})
}

// formatNode recursively pretty-prints an xmlquery node.
func formatNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			formatNode(w, child, depth, indent)
		}

	case xmlquery.DeclarationNode:
		w.WriteString("<?xml")
		writeAttrs(w, n)
		w.WriteString("?>\n")

	case xmlquery.ElementNode:
		writeIndent(w, depth, indent)
		w.WriteString("<")
		writeName(w, n.Prefix, n.Data)
		writeAttrs(w, n)

		if n.FirstChild == nil {
			w.WriteString("/>\n")
			return
		}

		hasElementChildren := false
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				hasElementChildren = true
				break
			}
		}

		w.WriteString(">")
		if hasElementChildren {
			w.WriteString("\n")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			switch child.Type {
			case xmlquery.ElementNode:
				formatNode(w, child, depth+1, indent)
			case xmlquery.TextNode:
				if hasElementChildren {
					writeIndent(w, depth+1, indent)
				}
				xml.EscapeText(w, []byte(child.Data))
				if hasElementChildren {
					w.WriteString("\n")
				}
			}
		}
		if hasElementChildren {
			writeIndent(w, depth, indent)
		}
		w.WriteString("</")
		writeName(w, n.Prefix, n.Data)
		w.WriteString(">\n")
	}
}

func writeAttrs(w *bytes.Buffer, n *xmlquery.Node) {
	for _, attr := range n.Attr {
		w.WriteString(" ")
		writeName(w, attr.Name.Space, attr.Name.Local)
		w.WriteString(`="`)
		xml.EscapeText(w, []byte(attr.Value))
		w.WriteString(`"`)
	}
}

func writeName(w *bytes.Buffer, prefix, local string) {
	if prefix != "" {
		w.WriteString(prefix)
		w.WriteString(":")
	}
	w.WriteString(local)
}

func writeIndent(w *bytes.Buffer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}
