package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kilupskalvis/lexmerge/internal/core"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/spf13/cobra"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "Inspect recorded operations",
}

var opsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show operation history",
	Args:  cobra.NoArgs,
	Run:   runOpsList,
}

var opsShowCmd = &cobra.Command{
	Use:   "show <operation-id>",
	Short: "Show operation details",
	Long:  `Show an operation, its metadata and its result. A unique ID prefix is accepted.`,
	Args:  cobra.ExactArgs(1),
	Run:   runOpsShow,
}

var opsStatusCmd = &cobra.Command{
	Use:   "status <operation-id>",
	Short: "Print the status of an operation",
	Args:  cobra.ExactArgs(1),
	Run:   runOpsStatus,
}

var opsStuckCmd = &cobra.Command{
	Use:   "stuck",
	Short: "List operations pending longer than the horizon",
	Long: `List operations still pending after the horizon. A pending operation that
outlives the process that started it never completed; its entries were not
changed, or were rolled back.`,
	Args: cobra.NoArgs,
	Run:  runOpsStuck,
}

var (
	opsStatus  string
	opsOneline bool
	opsLimit   int
	opsHorizon time.Duration
	opsOutput  string
)

func init() {
	opsListCmd.Flags().StringVar(&opsStatus, "status", "", "Only show operations with this status (pending, completed, failed)")
	opsListCmd.Flags().BoolVar(&opsOneline, "oneline", false, "Show each operation on a single line")
	opsListCmd.Flags().IntVarP(&opsLimit, "n", "n", 0, "Limit the number of operations to show")
	opsListCmd.Flags().StringVarP(&opsOutput, "output", "o", outputText, "Output format (text, json, yaml)")
	opsShowCmd.Flags().StringVarP(&opsOutput, "output", "o", outputText, "Output format (text, json, yaml)")
	opsStuckCmd.Flags().DurationVar(&opsHorizon, "horizon", 0, "Pending age that counts as stuck (defaults to the configured one)")

	opsCmd.AddCommand(opsListCmd, opsShowCmd, opsStatusCmd, opsStuckCmd)
}

func runOpsList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	var (
		ops []*models.Operation
		err error
	)
	if opsStatus != "" {
		status, perr := models.ParseOperationStatus(opsStatus)
		if perr != nil {
			exitError("%v", perr)
		}
		ops, err = c.Engine.OperationsByStatus(ctx, status)
	} else {
		ops, err = c.Engine.ListOperations(ctx)
	}
	if err != nil {
		exitError("failed to list operations: %v", err)
	}
	if opsLimit > 0 && len(ops) > opsLimit {
		ops = ops[:opsLimit]
	}

	structured, err := render(os.Stdout, opsOutput, ops)
	if err != nil {
		exitError("%v", err)
	}
	if structured {
		return
	}

	if len(ops) == 0 {
		fmt.Println("No operations yet")
		return
	}
	for _, op := range ops {
		if opsOneline {
			printOperationLine(op)
		} else {
			printOperation(os.Stdout, op)
			fmt.Println()
		}
	}
}

func printOperationLine(op *models.Operation) {
	color.New(color.FgYellow).Printf("%s ", op.ShortID())
	statusColor(op.Status).Printf("%-9s ", op.Status)
	fmt.Printf("%-13s %s\n", op.Type, operationSubject(op))
}

// operationSubject describes what an operation touched in one line.
func operationSubject(op *models.Operation) string {
	senses := strings.Join(op.SenseIDs, ",")
	switch op.Type {
	case models.OperationMergeSenses:
		return fmt.Sprintf("%s: %s -> %s", op.EntryID, senses, op.TargetID)
	case models.OperationSplitEntry:
		if op.TargetID == "" {
			return fmt.Sprintf("%s: %s", op.SourceID, senses)
		}
		return fmt.Sprintf("%s -> %s: %s", op.SourceID, op.TargetID, senses)
	default:
		return fmt.Sprintf("%s -> %s: %s", op.SourceID, op.TargetID, senses)
	}
}

// findOperation resolves a full operation ID or a unique prefix of one.
func findOperation(ctx context.Context, engine *core.Engine, id string) (*models.Operation, error) {
	op, err := engine.GetOperation(ctx, id)
	if err == nil {
		return op, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	ops, lerr := engine.ListOperations(ctx)
	if lerr != nil {
		return nil, lerr
	}
	var match *models.Operation
	for _, candidate := range ops {
		if !strings.HasPrefix(candidate.ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("operation prefix %q is ambiguous", id)
		}
		match = candidate
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

func runOpsShow(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	op, err := findOperation(ctx, c.Engine, args[0])
	if err != nil {
		exitError("%v", err)
	}

	structured, err := render(os.Stdout, opsOutput, op)
	if err != nil {
		exitError("%v", err)
	}
	if !structured {
		printOperation(os.Stdout, op)
	}
}

func runOpsStatus(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	op, err := findOperation(ctx, c.Engine, args[0])
	if err != nil {
		exitError("%v", err)
	}
	status, err := c.Engine.OperationStatus(ctx, op.ID)
	if err != nil {
		exitError("%v", err)
	}
	statusColor(status).Println(status)
}

func runOpsStuck(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	horizon := opsHorizon
	if horizon == 0 {
		var err error
		if horizon, err = c.Config.Horizon(); err != nil {
			exitError("%v", err)
		}
	}

	ops, err := c.Engine.StuckOperations(ctx, horizon)
	if err != nil {
		exitError("failed to list stuck operations: %v", err)
	}
	if len(ops) == 0 {
		color.New(color.FgGreen).Printf("No operations pending longer than %s\n", horizon)
		return
	}

	red := color.New(color.FgRed, color.Bold)
	red.Printf("%d operation(s) pending longer than %s:\n", len(ops), horizon)
	for _, op := range ops {
		fmt.Printf("  %s  started %s  ", op.ShortID(), op.Timestamp.Format(time.RFC3339))
		fmt.Println(operationSubject(op))
	}
}
