package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/config"
	"github.com/praetorian-inc/annomerge/pkg/datastore"
	"github.com/praetorian-inc/annomerge/pkg/loader"
	"github.com/praetorian-inc/annomerge/pkg/sarif"
	"github.com/praetorian-inc/annomerge/pkg/store"
	"github.com/praetorian-inc/annomerge/pkg/types"
	"github.com/praetorian-inc/annomerge/pkg/xmlanno"
)

// Report modes for merge.
const (
	reportHuman = "human"
	reportSARIF = "sarif"
	reportNone  = "none"
)

var (
	mergeOutput    string
	mergeFormat    string
	mergeConfig    string
	mergeNamespace string
	mergeInclude   string
	mergeExclude   string
	mergeStore     string
	mergeReport    string
	mergeDatastore string
	mergeKeepDocs  bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge [file|dir...]",
	Short: "Merge annotation files",
	Long: `Merge annotation files into a single annotation document.

Arguments are listed from lowest to highest priority: when two files define
the same term (and qualifier) for a target, the later file wins. Directories
expand to their .xml files in sorted order.

Without arguments, sources are read from the project file (--config, or
annomerge.yaml in the current directory when present).`,
	RunE: runMerge,
}

func init() {
	addMergeFlags(mergeCmd)
}

func addMergeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&mergeFormat, "format", config.FormatXML, "Output format: xml, json")
	cmd.Flags().StringVar(&mergeConfig, "config", "", "Project file (default annomerge.yaml if present)")
	cmd.Flags().StringVar(&mergeNamespace, "namespace", "", "Schema namespace for xml output (default \"local\")")
	cmd.Flags().StringVar(&mergeInclude, "include-targets", "", "Comma-separated regex patterns; only matching targets are written")
	cmd.Flags().StringVar(&mergeExclude, "exclude-targets", "", "Comma-separated regex patterns; matching targets are not written")
	cmd.Flags().StringVar(&mergeStore, "store", "", "Also save inputs and result to a store (:memory:, SQLite path, or postgres:// URL)")
	cmd.Flags().StringVar(&mergeReport, "report", reportHuman, "Merge report: human, sarif, none")
	cmd.Flags().StringVar(&mergeDatastore, "datastore", "", "Also save inputs and result to a datastore directory")
	cmd.Flags().BoolVar(&mergeKeepDocs, "keep-documents", false, "Archive raw documents in the datastore")
}

func runMerge(cmd *cobra.Command, args []string) error {
	log := getLogger()

	cfg, err := resolveMergeConfig(cmd)
	if err != nil {
		return err
	}
	switch mergeReport {
	case reportHuman, reportSARIF, reportNone:
	default:
		return fmt.Errorf("unsupported report %q (want human, sarif or none)", mergeReport)
	}

	sources := args
	if len(sources) == 0 {
		sources = cfg.Sources
	}
	if len(sources) == 0 {
		return fmt.Errorf("no annotation files given (pass files or set sources in %s)", config.DefaultFile)
	}

	l, err := loader.New(loader.Options{CacheSize: cfg.CacheSize, Logger: log})
	if err != nil {
		return err
	}
	docs, err := l.LoadDocuments(commandContext(cmd), sources...)
	if err != nil {
		return fmt.Errorf("loading annotation files: %w", err)
	}

	merged, report := annotation.Merge(loader.Files(docs), annotation.Options{Logger: log})
	if !cfg.Targets.IsEmpty() {
		if merged, err = annotation.FilterTargets(merged, cfg.Targets); err != nil {
			return err
		}
	}

	rendered, err := render(merged, cfg)
	if err != nil {
		return err
	}

	toStdout := cfg.Output == "" || cfg.Output == "-"
	if toStdout {
		if _, err := cmd.OutOrStdout().Write(rendered); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	} else {
		if err := writeFile(cfg.Output, rendered); err != nil {
			return err
		}
	}

	if cfg.Store != "" || mergeDatastore != "" {
		// Inputs are stored as the bytes that were parsed, the result as rendered.
		docs = append(docs, loader.Document{File: merged, Content: rendered})
		if cfg.Store != "" {
			if err := saveToStore(cfg.Store, docs); err != nil {
				return err
			}
			log.Debug("saved merge to store", zap.String("store", cfg.Store))
		}
		if mergeDatastore != "" {
			if err := saveToDatastore(mergeDatastore, mergeKeepDocs, docs); err != nil {
				return err
			}
			log.Debug("saved merge to datastore",
				zap.String("datastore", mergeDatastore),
				zap.Bool("documents", mergeKeepDocs))
		}
	}

	// Keep diagnostics off stdout when stdout carries the merged document.
	diag := cmd.OutOrStdout()
	if toStdout {
		diag = cmd.ErrOrStderr()
	}
	switch mergeReport {
	case reportHuman:
		if !quiet {
			printMergeSummary(diag, report, cfg.Output)
		}
	case reportSARIF:
		data, err := sarif.FromMergeReport(report).ToJSON()
		if err != nil {
			return fmt.Errorf("encoding SARIF: %w", err)
		}
		fmt.Fprintf(diag, "%s\n", data)
	}
	return nil
}

// resolveMergeConfig layers defaults, the project file, and explicit flags.
func resolveMergeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	path := mergeConfig
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			path = config.DefaultFile
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv()
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = mergeOutput
	}
	if flags.Changed("format") {
		cfg.Format = mergeFormat
	}
	if flags.Changed("namespace") {
		cfg.Namespace = mergeNamespace
	}
	if flags.Changed("store") {
		cfg.Store = mergeStore
	}
	if flags.Changed("include-targets") {
		cfg.Targets.Include = annotation.ParsePatterns(mergeInclude)
	}
	if flags.Changed("exclude-targets") {
		cfg.Targets.Exclude = annotation.ParsePatterns(mergeExclude)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func render(file *types.AnnotationFile, cfg *config.Config) ([]byte, error) {
	if cfg.Format == config.FormatJSON {
		data, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding JSON: %w", err)
		}
		return append(data, '\n'), nil
	}
	data, err := xmlanno.Marshal(file, xmlanno.WriteOptions{Namespace: cfg.Namespace})
	if err != nil {
		return nil, fmt.Errorf("writing XML: %w", err)
	}
	return data, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func saveToStore(path string, docs []loader.Document) error {
	s, err := store.New(store.Config{Path: path})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	log := getLogger()
	for _, d := range docs {
		written, err := store.AddIfChanged(s, d.File, types.ComputeContentID(d.Content))
		if err != nil {
			return fmt.Errorf("storing %s: %w", d.File.URI, err)
		}
		if !written {
			log.Debug("unchanged, not re-stored", zap.String("uri", d.File.URI))
		}
	}
	return nil
}

func saveToDatastore(dir string, keepDocs bool, docs []loader.Document) error {
	ds, err := datastore.Open(dir, datastore.Options{KeepDocuments: keepDocs})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()

	for _, d := range docs {
		if _, err := ds.Save(d.File, d.Content); err != nil {
			return err
		}
	}
	return nil
}

func printMergeSummary(w io.Writer, report *annotation.Report, output string) {
	st := report.Stats
	fmt.Fprintf(w, "Merge complete:\n")
	fmt.Fprintf(w, "  Files processed: %d\n", st.FilesProcessed)
	fmt.Fprintf(w, "  Targets merged: %d\n", st.TargetsMerged)
	fmt.Fprintf(w, "  Terms merged: %d\n", st.TermsMerged)
	fmt.Fprintf(w, "  Terms overridden: %d\n", st.TermsOverridden)
	fmt.Fprintf(w, "  Terms dropped: %d\n", st.TermsDropped)
	fmt.Fprintf(w, "  References merged: %d\n", st.ReferencesMerged)
	if output != "" && output != "-" {
		fmt.Fprintf(w, "Output: %s\n", output)
	}
}
