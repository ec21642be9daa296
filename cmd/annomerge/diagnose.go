package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/annomerge/pkg/annotation"
	"github.com/praetorian-inc/annomerge/pkg/loader"
	"github.com/praetorian-inc/annomerge/pkg/sarif"
)

var (
	diagnoseFormat string
	diagnoseColor  string
)

// styles holds color formatters for diagnostics
type styles struct {
	heading  *color.Color
	location *color.Color
	note     *color.Color
	warning  *color.Color
	related  *color.Color
}

// newStyles creates color formatters for diagnostic output
// enabled=false respects --color=never and the NO_COLOR env var
func newStyles(enabled bool) *styles {
	s := &styles{
		heading:  color.New(color.Bold),
		location: color.New(color.Bold, color.FgHiWhite),
		note:     color.New(color.FgHiBlue),
		warning:  color.New(color.Bold, color.FgYellow),
		related:  color.New(color.Faint),
	}

	if !enabled {
		s.heading.DisableColor()
		s.location.DisableColor()
		s.note.DisableColor()
		s.warning.DisableColor()
		s.related.DisableColor()
	}

	return s
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <file|dir>...",
	Short: "Report overridden and ignored terms",
	Long: `Merge annotation files and report what the merge did: every term that
replaced an earlier definition and every element ignored for lacking a Term.
Arguments are listed from lowest to highest priority.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseFormat, "format", "human", "Output format: human, sarif")
	diagnoseCmd.Flags().StringVar(&diagnoseColor, "color", "auto", "Color output: auto, always, never")
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	if diagnoseFormat != "human" && diagnoseFormat != "sarif" {
		return fmt.Errorf("unsupported format %q (want human or sarif)", diagnoseFormat)
	}

	log := getLogger()
	l, err := loader.New(loader.Options{Logger: log})
	if err != nil {
		return err
	}
	files, err := l.Load(commandContext(cmd), args...)
	if err != nil {
		return fmt.Errorf("loading annotation files: %w", err)
	}

	_, report := annotation.Merge(files, annotation.Options{Logger: log})
	sarifReport := sarif.FromMergeReport(report)

	if diagnoseFormat == "sarif" {
		data, err := sarifReport.ToJSON()
		if err != nil {
			return fmt.Errorf("encoding SARIF: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	return outputDiagnoseHuman(cmd.OutOrStdout(), report, sarifReport, colorEnabled(diagnoseColor))
}

// colorEnabled resolves the --color flag.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default: // "auto"
		// Check if stdout is a TTY and NO_COLOR is not set
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func outputDiagnoseHuman(out io.Writer, report *annotation.Report, sr *sarif.Report, colored bool) error {
	color.NoColor = !colored
	s := newStyles(colored)

	for _, r := range sr.Runs[0].Results {
		level := s.note.Sprint(r.Level)
		if r.Level == sarif.LevelWarning {
			level = s.warning.Sprint(r.Level)
		}
		fmt.Fprintf(out, "%s %s %s [%s]\n",
			s.location.Sprint(formatLocation(r.Locations[0])),
			level,
			r.Message.Text,
			r.RuleID)
		for _, rel := range r.RelatedLocations {
			fmt.Fprintf(out, "    %s\n", s.related.Sprintf("%s: %s", formatLocation(rel), rel.Message.Text))
		}
	}

	st := report.Stats
	fmt.Fprintf(out, "%s %d files, %d targets, %d terms (%d overridden, %d ignored)\n",
		s.heading.Sprint("Merged"),
		st.FilesProcessed, st.TargetsMerged, st.TermsMerged, st.TermsOverridden, st.TermsDropped)
	return nil
}

func formatLocation(loc sarif.Location) string {
	uri := loc.PhysicalLocation.ArtifactLocation.URI
	if r := loc.PhysicalLocation.Region; r != nil {
		return fmt.Sprintf("%s:%d:%d", uri, r.StartLine, r.StartColumn)
	}
	return uri
}
