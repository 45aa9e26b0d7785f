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

var splitCmd = &cobra.Command{
	Use:   "split <entry-id>",
	Short: "Move senses of an entry into a new entry",
	Long: `Move the given senses out of an entry into a newly created entry.

Sense IDs are kept and the senses keep their relative order.

Examples:
  lexmerge split run --senses s2,s3 --headword "run (noun)" --category noun`,
	Args: cobra.ExactArgs(1),
	Run:  runSplit,
}

var (
	splitSenses   []string
	splitHeadword string
	splitCategory string
	splitActor    string
	splitOutput   string
)

func init() {
	splitCmd.Flags().StringSliceVar(&splitSenses, "senses", nil, "Sense IDs to move (comma-separated)")
	splitCmd.Flags().StringVar(&splitHeadword, "headword", "", "Headword of the new entry")
	splitCmd.Flags().StringVar(&splitCategory, "category", "", "Category of the new entry")
	splitCmd.Flags().StringVar(&splitActor, "actor", "", "Actor recorded on the operation")
	splitCmd.Flags().StringVarP(&splitOutput, "output", "o", outputText, "Output format (text, json, yaml)")
	splitCmd.MarkFlagRequired("senses")
	splitCmd.MarkFlagRequired("headword")
}

func runSplit(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	op, err := c.Engine.Split(ctx, core.SplitRequest{
		SourceEntryID: args[0],
		SenseIDs:      splitSenses,
		NewEntry: models.EntryDescriptor{
			Headword: splitHeadword,
			Category: splitCategory,
		},
		Actor: c.actorOr(splitActor),
	})
	if err != nil {
		exitOperationError(op, err)
	}

	structured, err := render(os.Stdout, splitOutput, op)
	if err != nil {
		exitError("%v", err)
	}
	if structured {
		return
	}

	color.New(color.FgGreen).Printf("Split %s", args[0])
	fmt.Printf(" -> new entry %s\n", op.TargetID)
	fmt.Printf("  Operation: %s\n", shortID(op.ID))
	printResult(os.Stdout, op.Result)
}
