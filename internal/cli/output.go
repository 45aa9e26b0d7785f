package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// render writes data in the given structured format. It reports false for
// the text format so the caller can print its own layout.
func render(w io.Writer, format string, data interface{}) (bool, error) {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(data)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return true, enc.Encode(data)
	case outputText, "":
		return false, nil
	default:
		return false, fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// printEntry writes a human-readable view of an entry.
func printEntry(w io.Writer, e *models.Entry) {
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	yellow.Fprintf(w, "entry %s", e.ID)
	fmt.Fprintf(w, " (rev %d)\n", e.Revision)
	fmt.Fprintf(w, "Headword: %s\n", e.Headword)
	if e.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", e.Category)
	}
	for _, k := range sortedKeys(e.Metadata) {
		fmt.Fprintf(w, "  %s=%s\n", k, e.Metadata[k])
	}

	if len(e.Senses) == 0 {
		fmt.Fprintln(w, "\n  (no senses)")
		return
	}
	fmt.Fprintln(w)
	for i, s := range e.Senses {
		cyan.Fprintf(w, "  %d. %s", i+1, s.ID)
		if s.GrammaticalInfo != "" {
			fmt.Fprintf(w, " [%s]", s.GrammaticalInfo)
		}
		fmt.Fprintln(w)
		printMultiText(w, "gloss", s.Gloss)
		printMultiText(w, "def", s.Definition)
		for _, ex := range s.Examples {
			if ex.Translation != "" {
				fmt.Fprintf(w, "       ex: %s (%s)\n", ex.Text, ex.Translation)
			} else {
				fmt.Fprintf(w, "       ex: %s\n", ex.Text)
			}
		}
		for _, r := range s.Relations {
			fmt.Fprintf(w, "       %s -> %s\n", r.Type, r.Target)
		}
	}
}

func printMultiText(w io.Writer, label string, m models.MultiText) {
	for _, lang := range m.Languages() {
		fmt.Fprintf(w, "       %s[%s]: %s\n", label, lang, m[lang])
	}
}

// printOperation writes a human-readable view of an operation and its result.
func printOperation(w io.Writer, op *models.Operation) {
	yellow := color.New(color.FgYellow)

	yellow.Fprintf(w, "operation %s", op.ID)
	fmt.Fprint(w, " ")
	statusColor(op.Status).Fprintln(w, op.Status)
	fmt.Fprintf(w, "Type:   %s\n", op.Type)
	switch op.Type {
	case models.OperationMergeSenses:
		fmt.Fprintf(w, "Entry:  %s\n", op.EntryID)
		fmt.Fprintf(w, "Target: %s\n", op.TargetID)
	default:
		fmt.Fprintf(w, "Source: %s\n", op.SourceID)
		if op.TargetID != "" {
			fmt.Fprintf(w, "Target: %s\n", op.TargetID)
		}
	}
	fmt.Fprintf(w, "Senses: %s\n", strings.Join(op.SenseIDs, ", "))
	if op.Actor != "" {
		fmt.Fprintf(w, "Actor:  %s\n", op.Actor)
	}
	fmt.Fprintf(w, "Date:   %s\n", op.Timestamp.Format("Mon Jan 2 15:04:05 2006"))
	for _, k := range sortedKeys(op.Metadata) {
		fmt.Fprintf(w, "  %s=%s\n", k, op.Metadata[k])
	}

	if op.Result != nil {
		printResult(w, op.Result)
	}
}

// printResult summarises what an operation changed.
func printResult(w io.Writer, r *models.Result) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	if len(r.TransferredSenses) > 0 {
		green.Fprintf(w, "  %d sense(s) transferred: %s\n", len(r.TransferredSenses), strings.Join(r.TransferredSenses, ", "))
	}
	if r.ConflictsResolved > 0 {
		yellow.Fprintf(w, "  %d conflict(s) resolved\n", r.ConflictsResolved)
	}
	for _, old := range sortedKeys(r.Remaps) {
		yellow.Fprintf(w, "  renamed %s -> %s\n", old, r.Remaps[old])
	}
	for _, warning := range r.Warnings {
		yellow.Fprintf(w, "  Warning: %s\n", warning)
	}
	for _, e := range r.Errors {
		red.Fprintf(w, "  %s: %s\n", e.Kind, e.Message)
	}
}

func statusColor(status models.OperationStatus) *color.Color {
	switch status {
	case models.StatusCompleted:
		return color.New(color.FgGreen)
	case models.StatusFailed:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgYellow)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
