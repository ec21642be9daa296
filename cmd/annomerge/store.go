package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/annomerge/pkg/config"
	"github.com/praetorian-inc/annomerge/pkg/store"
	"github.com/praetorian-inc/annomerge/pkg/types"
)

var (
	storePath   string
	storeFormat string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect a merge store",
	Long: `Commands for inspecting a store written by merge --store.

The store defaults to $` + config.EnvStore + ` when --store is not given.`,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored files",
	Long:  "Display every stored file in insertion order with its content ID and counts",
	Args:  cobra.NoArgs,
	RunE:  runStoreList,
}

var storeTermsCmd = &cobra.Command{
	Use:   "terms <target>",
	Short: "List stored terms for a target",
	Long:  "Display every stored term for a target, ordered by file insertion and then by position",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreTerms,
}

func init() {
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeTermsCmd)
	addStoreFlags(storeCmd)
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&storePath, "store", "", "Store to read (:memory:, SQLite path, or postgres:// URL)")
	cmd.PersistentFlags().StringVar(&storeFormat, "format", "table", "Output format: table, json")
}

func openStore() (store.Store, error) {
	path := storePath
	if path == "" {
		cfg := config.Default()
		cfg.ApplyEnv()
		path = cfg.Store
	}
	if path == "" {
		return nil, fmt.Errorf("no store given (pass --store or set %s)", config.EnvStore)
	}
	switch storeFormat {
	case "table", "json":
	default:
		return nil, fmt.Errorf("unknown output format: %s", storeFormat)
	}
	s, err := store.New(store.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

func runStoreList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.ListFiles()
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}
	if storeFormat == "json" {
		return outputJSON(cmd, records)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "URI\tContent ID\tTargets\tTerms\n")
	fmt.Fprintf(w, "---\t----------\t-------\t-----\n")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", rec.URI, rec.ContentID.String()[:12], rec.Targets, rec.Terms)
	}
	return nil
}

func runStoreTerms(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	terms, err := s.GetTerms(args[0])
	if err != nil {
		return fmt.Errorf("reading terms for %s: %w", args[0], err)
	}
	if storeFormat == "json" {
		return outputJSON(cmd, terms)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Term\tQualifier\tLine\tValue\n")
	fmt.Fprintf(w, "----\t---------\t----\t-----\n")
	for _, e := range terms {
		term, _ := e.Attr(types.AttrTerm)
		qualifier, _ := e.Attr(types.AttrQualifier)
		line := "-"
		if r := e.SourceRange(); r != nil {
			line = fmt.Sprint(r.Start.Line + 1)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", term, qualifier, line, termValue(e))
	}
	return nil
}

// termValue renders the attributes that carry a term's value, sorted by
// attribute name.
func termValue(e *types.Element) string {
	var parts []string
	for _, name := range slices.Sorted(maps.Keys(e.Attributes)) {
		if name == types.AttrTerm || name == types.AttrQualifier {
			continue
		}
		v, _ := e.Attr(name)
		parts = append(parts, name+"="+v)
	}
	if len(parts) == 0 && e.Text != "" {
		return strings.TrimSpace(e.Text)
	}
	return strings.Join(parts, " ")
}

func outputJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
