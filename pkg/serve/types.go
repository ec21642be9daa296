package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/types"
)

// Request types.
const (
	TypeReady = "ready"
	TypeMerge = "merge"
	TypeParse = "parse"
	TypeClose = "close"
)

// Output formats for merge results.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "merge" | "parse" | "close"
	Payload json.RawMessage `json:"payload"`
}

// FileInput is one annotation document sent inline.
type FileInput struct {
	URI     string `json:"uri"`
	Content string `json:"content"`
}

// MergePayload is the payload for "merge" requests. Files are listed from
// lowest to highest priority.
type MergePayload struct {
	Files     []FileInput             `json:"files"`
	Format    string                  `json:"format,omitempty"`    // "json" (default) | "xml"
	Namespace string                  `json:"namespace,omitempty"` // schema namespace for xml output
	Targets   annotation.FilterConfig `json:"targets"`
}

// MergeData is the data field for "merge" responses. File is set for json
// output and XML for xml output.
type MergeData struct {
	Format string                `json:"format"`
	File   *types.AnnotationFile `json:"file,omitempty"`
	XML    string                `json:"xml,omitempty"`
	Report *annotation.Report    `json:"report"`
}

// ParsePayload is the payload for "parse" requests
type ParsePayload = FileInput

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | "merge" | "parse" | "error" | "decode" | "unknown"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
}
