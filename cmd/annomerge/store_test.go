package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/annomerge/pkg/config"
	"github.com/praetorian-inc/annomerge/pkg/store"
	"github.com/praetorian-inc/annomerge/pkg/types"
)

// newStoreCmd creates a fresh store command tree for testing
func newStoreCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{Use: "store"}
	cmd.AddCommand(&cobra.Command{Use: "list", Args: cobra.NoArgs, RunE: runStoreList})
	cmd.AddCommand(&cobra.Command{Use: "terms <target>", Args: cobra.ExactArgs(1), RunE: runStoreTerms})
	addStoreFlags(cmd)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, out
}

// mergedStore runs merge --store over the fixtures and returns the db path.
func mergedStore(t *testing.T) (dbPath, base, override string) {
	t.Helper()
	dir, base, override := writeFixtures(t)
	dbPath = filepath.Join(dir, "annomerge.db")

	cmd, _, _ := newMergeCmd()
	cmd.SetArgs([]string{base, override, "--store", dbPath, "--report", "none"})
	require.NoError(t, cmd.Execute())
	return dbPath, base, override
}

func TestStoreList_Table(t *testing.T) {
	dbPath, base, override := mergedStore(t)

	cmd, out := newStoreCmd()
	cmd.SetArgs([]string{"list", "--store", dbPath})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{"URI", "Content", "ID", "Targets", "Terms"}, strings.Fields(lines[0]))
	assert.True(t, strings.HasPrefix(lines[2], base))
	assert.True(t, strings.HasPrefix(lines[3], override))
	assert.True(t, strings.HasPrefix(lines[4], types.MergedURI))
	assert.Contains(t, lines[2], types.ComputeContentID([]byte(baseXML)).String()[:12])
}

func TestStoreList_JSON(t *testing.T) {
	dbPath, base, _ := mergedStore(t)

	cmd, out := newStoreCmd()
	cmd.SetArgs([]string{"list", "--store", dbPath, "--format", "json"})
	require.NoError(t, cmd.Execute())

	var records []store.FileRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	require.Len(t, records, 3)
	assert.Equal(t, store.FileRecord{
		URI:       base,
		ContentID: types.ComputeContentID([]byte(baseXML)),
		Targets:   1,
		Terms:     2,
	}, records[0])
}

func TestStoreTerms_Table(t *testing.T) {
	dbPath, _, _ := mergedStore(t)

	cmd, out := newStoreCmd()
	cmd.SetArgs([]string{"terms", "SAP.Books/title", "--store", dbPath})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 7) // header, dashes, base 2, override 1, merged 2
	assert.Equal(t, []string{"Common.Label", "9", "String=Title"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"UI.Hidden", "10"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"Common.Label", "6", "String=Book", "Title"}, strings.Fields(lines[4]))
}

func TestStoreTerms_JSON(t *testing.T) {
	dbPath, _, _ := mergedStore(t)

	cmd, out := newStoreCmd()
	cmd.SetArgs([]string{"terms", "SAP.Books/title", "--store", dbPath, "--format", "json"})
	require.NoError(t, cmd.Execute())

	var terms []*types.Element
	require.NoError(t, json.Unmarshal(out.Bytes(), &terms))
	require.Len(t, terms, 5)
	term, _ := terms[0].Attr(types.AttrTerm)
	label, _ := terms[0].Attr("String")
	assert.Equal(t, "Common.Label", term)
	assert.Equal(t, "Title", label)
	require.NotNil(t, terms[0].Range)
	assert.Equal(t, 8, terms[0].Range.Start.Line)
}

func TestStoreCmd_StoreFromEnv(t *testing.T) {
	dbPath, _, _ := mergedStore(t)
	t.Setenv(config.EnvStore, dbPath)

	cmd, out := newStoreCmd()
	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), types.MergedURI)
}

func TestStoreCmd_Errors(t *testing.T) {
	t.Setenv(config.EnvStore, "")

	cmd, _ := newStoreCmd()
	cmd.SetArgs([]string{"list"})
	assert.ErrorContains(t, cmd.Execute(), "no store given")

	cmd, _ = newStoreCmd()
	cmd.SetArgs([]string{"list", "--store", store.MemoryPath, "--format", "yaml"})
	assert.ErrorContains(t, cmd.Execute(), "unknown output format")

	cmd, _ = newStoreCmd()
	cmd.SetArgs([]string{"terms", "--store", store.MemoryPath})
	assert.Error(t, cmd.Execute())
}
