package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// stdout receives command results. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

var (
	pathColor   = color.New(color.FgCyan)
	posColor    = color.New(color.FgYellow)
	headerColor = color.New(color.Bold)
	failColor   = color.New(color.FgRed)
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
// Lines and columns are printed one-based, as editors and compilers do.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%s\n",
			pathColor.Sprint(loc.File),
			posColor.Sprintf("%d:%d", loc.StartLine+1, loc.StartCol+1))
	}
}

func formatRootsText(w io.Writer, r CLIRoots) {
	if !r.Loaded {
		fmt.Fprintln(w, "no workspace loaded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "workspace\t%s\n", pathColor.Sprint(r.Workspace))
	fmt.Fprintf(tw, "source\t%s\n", pathColor.Sprint(r.Source))
	fmt.Fprintf(tw, "exec\t%s\n", pathColor.Sprint(r.Exec))
	tw.Flush()
}

// formatDocumentText prints the declarations, calls and dependencies of one
// file as aligned columns.
func formatDocumentText(w io.Writer, doc CLIDocument) {
	fmt.Fprintln(w, headerColor.Sprint(doc.File))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREAL NAME\tKIND\tLINE\tFROM")
	for _, d := range doc.Declarations {
		line := "-"
		if d.Line != nil {
			line = strconv.Itoa(*d.Line + 1)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.RealName, d.Kind, line, d.LoadedFrom)
	}
	tw.Flush()

	if len(doc.Calls) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CALL\tLINE\tCOL")
		for _, c := range doc.Calls {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Function, c.Line+1, c.Col+1)
		}
		tw.Flush()
	}

	if len(doc.Dependencies) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Loads:")
		for _, dep := range doc.Dependencies {
			fmt.Fprintf(w, "  %s\n", pathColor.Sprint(dep))
		}
	}
}

func formatIndexStatsText(w io.Writer, s CLIIndexStats) {
	fmt.Fprintf(w, "Indexed %s\n", pathColor.Sprint(s.Root))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "files\t%d\n", s.Files)
	if s.Failed > 0 {
		fmt.Fprintf(tw, "failed\t%s\n", failColor.Sprint(s.Failed))
	} else {
		fmt.Fprintf(tw, "failed\t%d\n", s.Failed)
	}
	fmt.Fprintf(tw, "documents\t%d\n", s.Documents)
	if s.Pruned > 0 {
		fmt.Fprintf(tw, "pruned\t%d\n", s.Pruned)
	}
	tw.Flush()
}

// outputResultText writes a CLIResult in human-readable text format.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case CLIRoots:
		formatRootsText(w, v)
	case CLIDocument:
		formatDocumentText(w, v)
	case CLIIndexStats:
		formatIndexStatsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult writes a CLIResult in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(stdout, result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "%s %s\n", failColor.Sprint("Error:"), err)
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

var validFormats = []string{"json", "text"}

// validateFormat checks that format is a supported output format.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
