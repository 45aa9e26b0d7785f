package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/lexmerge/internal/core"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <target-entry> <source-entry>",
	Short: "Move senses from one entry into another",
	Long: `Append the given senses of the source entry to the target entry, in the
order listed, and remove them from the source.

When an incoming sense collides with a target sense the conflict strategy
decides what happens:
  rename     reissue the incoming sense ID (default)
  skip       leave the incoming sense on the source
  overwrite  replace the colliding target sense

Examples:
  lexmerge merge run sprint --senses s1,s2
  lexmerge merge run sprint --senses s1 --strategy skip`,
	Args: cobra.ExactArgs(2),
	Run:  runMerge,
}

var mergeSensesCmd = &cobra.Command{
	Use:   "merge-senses <entry-id> <target-sense> <source-sense>...",
	Short: "Fold senses of an entry into one of its senses",
	Long: `Combine one or more senses into a target sense of the same entry and
remove them from the entry.

Strategies:
  combine_all  concatenate text per language, keep unique examples and relations (default)
  keep_target  keep the target content, discard the sources
  keep_source  replace the target content with the first source

Examples:
  lexmerge merge-senses run s1 s2 s3
  lexmerge merge-senses run s1 s2 --strategy keep_source`,
	Args: cobra.MinimumNArgs(3),
	Run:  runMergeSenses,
}

var (
	mergeSenses   []string
	mergeStrategy string
	mergeActor    string
	mergeOutput   string
)

func init() {
	mergeCmd.Flags().StringSliceVar(&mergeSenses, "senses", nil, "Sense IDs to move (comma-separated)")
	mergeCmd.Flags().StringVar(&mergeStrategy, "strategy", "", "Conflict strategy (rename, skip, overwrite); defaults to the configured one")
	mergeCmd.Flags().StringVar(&mergeActor, "actor", "", "Actor recorded on the operation")
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", outputText, "Output format (text, json, yaml)")
	mergeCmd.MarkFlagRequired("senses")

	mergeSensesCmd.Flags().StringVar(&mergeStrategy, "strategy", "", "Merge strategy (combine_all, keep_target, keep_source); defaults to the configured one")
	mergeSensesCmd.Flags().StringVar(&mergeActor, "actor", "", "Actor recorded on the operation")
	mergeSensesCmd.Flags().StringVarP(&mergeOutput, "output", "o", outputText, "Output format (text, json, yaml)")
}

func runMerge(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	strategy := mergeStrategy
	if strategy == "" {
		strategy = c.Config.ConflictStrategy
	}

	op, err := c.Engine.MergeEntries(ctx, core.MergeEntriesRequest{
		TargetEntryID: args[0],
		SourceEntryID: args[1],
		SenseIDs:      mergeSenses,
		Strategy:      models.ConflictStrategy(strategy),
		Actor:         c.actorOr(mergeActor),
	})
	if err != nil {
		exitOperationError(op, err)
	}
	printOperationOutcome(op, fmt.Sprintf("Merged %s into %s", args[1], args[0]))
}

func runMergeSenses(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	strategy := mergeStrategy
	if strategy == "" {
		strategy = c.Config.MergeStrategy
	}

	op, err := c.Engine.MergeSenses(ctx, core.MergeSensesRequest{
		EntryID:        args[0],
		TargetSenseID:  args[1],
		SourceSenseIDs: args[2:],
		Strategy:       models.SenseMergeStrategy(strategy),
		Actor:          c.actorOr(mergeActor),
	})
	if err != nil {
		exitOperationError(op, err)
	}
	printOperationOutcome(op, fmt.Sprintf("Merged %d sense(s) into %s", len(args)-2, args[1]))
}

func printOperationOutcome(op *models.Operation, headline string) {
	structured, err := render(os.Stdout, mergeOutput, op)
	if err != nil {
		exitError("%v", err)
	}
	if structured {
		return
	}
	color.New(color.FgGreen).Println(headline)
	fmt.Printf("  Operation: %s (%s)\n", shortID(op.ID), op.Metadata[strategyKey(op.Type)])
	printResult(os.Stdout, op.Result)
}

func strategyKey(t models.OperationType) string {
	if t == models.OperationMergeSenses {
		return "merge_strategy"
	}
	return "conflict_strategy"
}
