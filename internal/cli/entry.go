package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Create and inspect dictionary entries",
}

var entryAddCmd = &cobra.Command{
	Use:   "add <headword>",
	Short: "Create an empty entry",
	Args:  cobra.ExactArgs(1),
	Run:   runEntryAdd,
}

var entryImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create entries from a YAML file",
	Long: `Create entries from a YAML file of the form:

  entries:
    - id: run
      headword: run
      category: verb
      senses:
        - id: s1
          gloss: {en: move fast}
          definition: {en: to move swiftly on foot}

Entries whose ID already exists are skipped unless --replace is given.`,
	Args: cobra.ExactArgs(1),
	Run:  runEntryImport,
}

var entryShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show an entry and its senses",
	Args:  cobra.ExactArgs(1),
	Run:   runEntryShow,
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries",
	Args:  cobra.NoArgs,
	Run:   runEntryList,
}

var (
	entryID       string
	entryCategory string
	entryReplace  bool
	entryOutput   string
)

func init() {
	entryAddCmd.Flags().StringVar(&entryID, "id", "", "Entry ID (generated when empty)")
	entryAddCmd.Flags().StringVar(&entryCategory, "category", "", "Part-of-speech category")
	entryImportCmd.Flags().BoolVar(&entryReplace, "replace", false, "Overwrite entries that already exist")
	entryShowCmd.Flags().StringVarP(&entryOutput, "output", "o", outputText, "Output format (text, json, yaml)")
	entryListCmd.Flags().StringVarP(&entryOutput, "output", "o", outputText, "Output format (text, json, yaml)")

	entryCmd.AddCommand(entryAddCmd, entryImportCmd, entryShowCmd, entryListCmd)
}

func runEntryAdd(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	entry := models.EntryDescriptor{Headword: args[0], Category: entryCategory}.NewEntry(entryID)
	created, err := c.Entries.CreateEntry(ctx, entry)
	if err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Printf("Created entry %s", created.ID)
	fmt.Printf(" (%s)\n", created.Headword)
}

// entryFile is the on-disk layout read by `entry import`.
type entryFile struct {
	Entries []*models.Entry `yaml:"entries"`
}

// parseEntryFile decodes and validates an import file. Unknown keys are
// rejected so typos do not silently drop content.
func parseEntryFile(r io.Reader) ([]*models.Entry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f entryFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("import file is empty")
		}
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}

	seen := make(map[string]bool, len(f.Entries))
	for i, e := range f.Entries {
		if e == nil {
			return nil, fmt.Errorf("entry #%d is empty", i+1)
		}
		if e.ID == "" {
			return nil, fmt.Errorf("entry #%d (%s) has no id", i+1, e.Headword)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("entry %s appears more than once", e.ID)
		}
		seen[e.ID] = true
		if e.Senses == nil {
			e.Senses = []*models.Sense{}
		}
		if err := docstore.ValidateEntry(e); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}
	return f.Entries, nil
}

// importStats counts what importEntries did.
type importStats struct {
	Created  int
	Replaced int
	Skipped  int
}

// importEntries writes entries into st. Existing entries are replaced when
// replace is set and skipped otherwise.
func importEntries(ctx context.Context, st docstore.Store, entries []*models.Entry, replace bool) (importStats, error) {
	var stats importStats
	for _, e := range entries {
		existing, err := st.GetEntry(ctx, e.ID)
		switch {
		case err == nil:
			if !replace {
				stats.Skipped++
				continue
			}
			e.Revision = existing.Revision
			if _, err := st.UpdateEntry(ctx, e); err != nil {
				return stats, fmt.Errorf("replace entry %s: %w", e.ID, err)
			}
			stats.Replaced++
		case errors.Is(err, models.ErrNotFound):
			if _, err := st.CreateEntry(ctx, e); err != nil {
				return stats, fmt.Errorf("create entry %s: %w", e.ID, err)
			}
			stats.Created++
		default:
			return stats, err
		}
	}
	return stats, nil
}

func runEntryImport(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	f, err := os.Open(args[0])
	if err != nil {
		exitError("%v", err)
	}
	defer f.Close()

	entries, err := parseEntryFile(f)
	if err != nil {
		exitError("%v", err)
	}

	c := initContext()
	defer c.Close()

	stats, err := importEntries(ctx, c.Entries, entries, entryReplace)
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	green.Printf("%d entries created\n", stats.Created)
	if stats.Replaced > 0 {
		yellow.Printf("%d entries replaced\n", stats.Replaced)
	}
	if stats.Skipped > 0 {
		yellow.Printf("%d entries skipped (already exist, use --replace)\n", stats.Skipped)
	}
}

func runEntryShow(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	entry, err := c.Entries.GetEntry(ctx, args[0])
	if err != nil {
		exitError("%v", err)
	}

	structured, err := render(os.Stdout, entryOutput, entry)
	if err != nil {
		exitError("%v", err)
	}
	if !structured {
		printEntry(os.Stdout, entry)
	}
}

func runEntryList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	entries, err := c.Entries.ListEntries(ctx)
	if err != nil {
		exitError("%v", err)
	}

	structured, err := render(os.Stdout, entryOutput, entries)
	if err != nil {
		exitError("%v", err)
	}
	if structured {
		return
	}

	if len(entries) == 0 {
		fmt.Println("No entries yet")
		return
	}
	yellow := color.New(color.FgYellow)
	for _, e := range entries {
		yellow.Printf("%-20s ", e.ID)
		fmt.Printf("%s", e.Headword)
		if e.Category != "" {
			fmt.Printf(" (%s)", e.Category)
		}
		fmt.Printf("  %d sense(s)\n", len(e.Senses))
	}
}
