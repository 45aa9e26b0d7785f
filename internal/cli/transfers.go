package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/spf13/cobra"
)

var transfersCmd = &cobra.Command{
	Use:   "transfers",
	Short: "Show the sense transfer ledger",
	Long: `Show recorded sense transfers, oldest first.

With --sense the provenance trail of one sense is shown, including rows
where it was moved under an earlier ID. With --entry every transfer into or
out of the entry is shown.`,
	Args: cobra.NoArgs,
	Run:  runTransfers,
}

var (
	transfersSense  string
	transfersEntry  string
	transfersOutput string
)

func init() {
	transfersCmd.Flags().StringVar(&transfersSense, "sense", "", "Only show transfers of this sense")
	transfersCmd.Flags().StringVar(&transfersEntry, "entry", "", "Only show transfers touching this entry")
	transfersCmd.Flags().StringVarP(&transfersOutput, "output", "o", outputText, "Output format (text, json, yaml)")
	transfersCmd.MarkFlagsMutuallyExclusive("sense", "entry")
}

func runTransfers(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	var (
		transfers []*models.SenseTransfer
		err       error
	)
	switch {
	case transfersSense != "":
		transfers, err = c.Engine.TransfersBySense(ctx, transfersSense)
	case transfersEntry != "":
		transfers, err = c.Engine.TransfersByEntry(ctx, transfersEntry)
	default:
		transfers, err = c.Engine.ListTransfers(ctx)
	}
	if err != nil {
		exitError("failed to read transfers: %v", err)
	}

	structured, err := render(os.Stdout, transfersOutput, transfers)
	if err != nil {
		exitError("%v", err)
	}
	if structured {
		return
	}

	if len(transfers) == 0 {
		fmt.Println("No transfers recorded")
		return
	}
	yellow := color.New(color.FgYellow)
	for _, t := range transfers {
		yellow.Printf("%s ", shortID(t.OperationID))
		fmt.Printf("%s  %s: %s -> %s", t.TransferDate.Format("2006-01-02 15:04:05"), t.SenseID, t.OriginalEntryID, t.NewEntryID)
		if t.OriginalSenseID != "" {
			fmt.Printf(" (was %s)", t.OriginalSenseID)
		}
		fmt.Println()
	}
}
