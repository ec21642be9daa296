package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileProvenance(t *testing.T) {
	prov := FileProvenance{
		FilePath: "webapp/annotations/annotation.xml",
	}

	assert.Equal(t, "file", prov.Kind())
	assert.Equal(t, "webapp/annotations/annotation.xml", prov.Path())
}

func TestInlineProvenance(t *testing.T) {
	prov := InlineProvenance{URI: "stdin"}

	assert.Equal(t, "inline", prov.Kind())
	assert.Equal(t, "stdin", prov.Path())
}

func TestProvenance_Interface(t *testing.T) {
	provs := []Provenance{
		FileProvenance{FilePath: "a.xml"},
		InlineProvenance{URI: "b.xml"},
	}

	var paths []string
	for _, p := range provs {
		paths = append(paths, p.Path())
	}
	assert.Equal(t, []string{"a.xml", "b.xml"}, paths)
}
