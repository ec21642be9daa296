package xmlanno

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/praetorian-inc/annomerge/pkg/types"
)

// QueryResult is one node selected by an XPath expression. Expressions
// that evaluate to a number, string or boolean yield a single result with
// an empty Name and the value in Text.
type QueryResult struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Text       string            `json:"text,omitempty"`
}

// Query runs an XPath expression over an annotation XML document.
func Query(content []byte, expr string) ([]QueryResult, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	doc, err := xmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return evaluate(doc, compiled), nil
}

// QueryFile runs an XPath expression over the EDMX form of an in-memory
// annotation file, such as a merge result.
func QueryFile(file *types.AnnotationFile, expr string) ([]QueryResult, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	return evaluate(Document(file, ""), compiled), nil
}

func evaluate(doc *xmlquery.Node, expr *xpath.Expr) []QueryResult {
	switch v := expr.Evaluate(xmlquery.CreateXPathNavigator(doc)).(type) {
	case *xpath.NodeIterator:
		return selectNodes(doc, expr)
	case float64:
		return []QueryResult{{Text: strconv.FormatFloat(v, 'f', -1, 64)}}
	case bool:
		return []QueryResult{{Text: strconv.FormatBool(v)}}
	case string:
		return []QueryResult{{Text: v}}
	default:
		return []QueryResult{{Text: fmt.Sprint(v)}}
	}
}

func selectNodes(doc *xmlquery.Node, expr *xpath.Expr) []QueryResult {
	nodes := xmlquery.QuerySelectorAll(doc, expr)
	results := make([]QueryResult, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, toResult(n))
	}
	return results
}

func toResult(n *xmlquery.Node) QueryResult {
	if n.Type == xmlquery.AttributeNode {
		text := n.InnerText()
		if text == "" && n.Parent != nil {
			text = n.Parent.SelectAttr(n.Data)
		}
		return QueryResult{Name: "@" + n.Data, Text: text}
	}

	r := QueryResult{Name: n.Data}
	if n.Prefix != "" {
		r.Name = n.Prefix + ":" + n.Data
	}
	if len(n.Attr) > 0 {
		r.Attributes = make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
				continue
			}
			r.Attributes[a.Name.Local] = a.Value
		}
	}
	r.Text = directText(n)
	return r
}

// directText concatenates the node's own text children, ignoring descendants.
func directText(n *xmlquery.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			buf.WriteString(c.Data)
		}
	}
	return string(bytes.TrimSpace(buf.Bytes()))
}
