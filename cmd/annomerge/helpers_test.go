package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const baseXML = `<?xml version="1.0" encoding="utf-8"?>
<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx" Version="4.0">
  <edmx:Reference Uri="/vocab/UI">
    <edmx:Include Namespace="com.sap.vocabularies.UI.v1" Alias="UI"/>
  </edmx:Reference>
  <edmx:DataServices>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="local">
      <Annotations Target="SAP.Books/title">
        <Annotation Term="Common.Label" String="Title"/>
        <Annotation Term="UI.Hidden"/>
      </Annotations>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>
`

const overrideXML = `<?xml version="1.0" encoding="utf-8"?>
<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx" Version="4.0">
  <edmx:DataServices>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="local">
      <Annotations Target="SAP.Books/title">
        <Annotation Term="Common.Label" String="Book Title"/>
      </Annotations>
      <Annotations Target="SAP.Authors">
        <Annotation Qualifier="NoTerm"/>
        <Annotation Term="UI.Hidden"/>
      </Annotations>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>
`

// writeFixtures writes base.xml and override.xml into a temp dir.
func writeFixtures(t *testing.T) (dir, base, override string) {
	t.Helper()
	dir = t.TempDir()
	base = filepath.Join(dir, "base.xml")
	override = filepath.Join(dir, "override.xml")
	require.NoError(t, os.WriteFile(base, []byte(baseXML), 0644))
	require.NoError(t, os.WriteFile(override, []byte(overrideXML), 0644))
	return dir, base, override
}
