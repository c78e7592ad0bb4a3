package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mgalanis/conveyor/internal/di"
)

// dlqCmd is the parent command for dead letter queue operations
var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and resolve dead-lettered symbols",
}

// dlqListCmd represents the 'dlq list' command
var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved dead letter items",
	RunE:  runDLQList,
}

// dlqResolveCmd represents the 'dlq resolve' command
var dlqResolveCmd = &cobra.Command{
	Use:   "resolve ID",
	Short: "Mark a dead letter item as resolved",
	Long: `Mark a dead letter item as resolved so it no longer shows up in the
unresolved listing. Resolving does not re-run the symbol; trigger a new
run for that once the upstream problem is fixed.`,
	Args: cobra.ExactArgs(1),
	RunE: runDLQResolve,
}

var dlqResolveNote string

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqResolveCmd)

	dlqResolveCmd.Flags().StringVar(&dlqResolveNote, "note", "", "Resolution note stored with the item")
}

func runDLQList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	container, err := di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	defer container.Close()

	items, err := container.DLQ.Unresolved()
	if err != nil {
		return fmt.Errorf("failed to list dlq items: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("Dead letter queue is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWORKFLOW\tSYMBOL\tSTAGE\tFAILURES\tADDED\tLAST ERROR")
	for _, item := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			item.ID,
			item.WorkflowID,
			item.Symbol,
			item.Stage,
			item.FailureCount,
			item.CreatedAt.Format("2006-01-02 15:04"),
			truncate(item.LastError, 60),
		)
	}
	w.Flush()

	fmt.Printf("\n%d unresolved item(s)\n", len(items))
	return nil
}

func runDLQResolve(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid dlq item id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	container, err := di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	defer container.Close()

	if err := container.DLQ.Resolve(id, dlqResolveNote); err != nil {
		return err
	}

	fmt.Printf("Resolved dlq item %d\n", id)
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
