package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/loader"
	"github.com/praetorian-inc/annomerge/pkg/xmlanno"
)

var queryJSON bool

var queryCmd = &cobra.Command{
	Use:   "query <file>... <xpath>",
	Short: "Run an XPath query over annotation files",
	Long: `Run an XPath expression over an annotation file. With several files (or a
directory) the expression runs over their merge result instead.

Example:
  annomerge query base.xml override.xml "//Annotations[@Target='SAP.Books']/Annotation/@Term"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Output results as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	paths, expr := args[:len(args)-1], args[len(args)-1]

	var results []xmlanno.QueryResult
	single := len(paths) == 1
	if single {
		if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
			single = false
		}
	}

	if single {
		content, err := os.ReadFile(paths[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", paths[0], err)
		}
		if results, err = xmlanno.Query(content, expr); err != nil {
			return err
		}
	} else {
		log := getLogger()
		l, err := loader.New(loader.Options{Logger: log})
		if err != nil {
			return err
		}
		files, err := l.Load(commandContext(cmd), paths...)
		if err != nil {
			return fmt.Errorf("loading annotation files: %w", err)
		}
		merged, _ := annotation.Merge(files, annotation.Options{Logger: log})
		if results, err = xmlanno.QueryFile(merged, expr); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}
	for _, r := range results {
		fmt.Fprintln(out, formatQueryResult(r))
	}
	return nil
}

func formatQueryResult(r xmlanno.QueryResult) string {
	// Attributes and scalar values print as their value.
	if r.Name == "" || strings.HasPrefix(r.Name, "@") {
		return r.Text
	}

	var b strings.Builder
	b.WriteString(r.Name)
	names := make([]string, 0, len(r.Attributes))
	for name := range r.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%q", name, r.Attributes[name])
	}
	if r.Text != "" {
		fmt.Fprintf(&b, ": %s", r.Text)
	}
	return b.String()
}
