package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgalanis/conveyor/internal/di"
	"github.com/mgalanis/conveyor/internal/workflow"
)

// runCmd is the parent command for one-shot workflow runs
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a pipeline workflow and wait for it to finish",
}

// dailyBatchCmd represents the 'run daily-batch' command
var dailyBatchCmd = &cobra.Command{
	Use:   "daily-batch",
	Short: "Run the full pipeline over the symbol universe",
	Long: `Run the staged pipeline (ingestion, indicators, fundamentals,
aggregation) over the configured symbol universe and block until the
workflow reaches a terminal state.

Symbols come from $CONVEYOR_SYMBOLS unless overridden:

  conveyor run daily-batch --symbols AAPL,MSFT,GOOG
  conveyor run daily-batch --symbols-file universe.txt`,
	RunE: runDailyBatch,
}

// onDemandCmd represents the 'run on-demand' command
var onDemandCmd = &cobra.Command{
	Use:   "on-demand SYMBOL",
	Short: "Run the pipeline for a single symbol",
	Long: `Run the staged pipeline for one symbol and block until it finishes.

With --force, ingestion refetches the full history even when the stored
data is already current.`,
	Args: cobra.ExactArgs(1),
	RunE: runOnDemand,
}

var (
	runSymbols     string
	runSymbolsFile string
	runForce       bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(dailyBatchCmd)
	runCmd.AddCommand(onDemandCmd)

	dailyBatchCmd.Flags().StringVar(&runSymbols, "symbols", "", "Comma-separated symbol list (overrides $CONVEYOR_SYMBOLS)")
	dailyBatchCmd.Flags().StringVar(&runSymbolsFile, "symbols-file", "", "File with one symbol per line (overrides $CONVEYOR_SYMBOLS)")

	onDemandCmd.Flags().BoolVar(&runForce, "force", false, "Refetch full history even when stored data is current")
}

func runDailyBatch(cmd *cobra.Command, args []string) error {
	if runSymbols != "" && runSymbolsFile != "" {
		return fmt.Errorf("--symbols and --symbols-file are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	symbols := cfg.Symbols
	switch {
	case runSymbols != "":
		symbols = splitSymbols(runSymbols)
	case runSymbolsFile != "":
		symbols, err = readSymbolsFile(runSymbolsFile)
		if err != nil {
			return err
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to run: set --symbols, --symbols-file or $CONVEYOR_SYMBOLS")
	}

	container, err := di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	defer container.Close()

	result, err := container.Orchestrator.Run(cmd.Context(), workflow.RunSpec{
		Type:    workflow.TypeDailyBatch,
		Symbols: symbols,
	})
	if err != nil {
		return fmt.Errorf("daily batch failed: %w", err)
	}

	printRunResult(result)
	return exitStatus(result)
}

func runOnDemand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	if symbol == "" {
		return fmt.Errorf("symbol must not be empty")
	}

	container, err := di.Wire(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire dependencies: %w", err)
	}
	defer container.Close()

	result, err := container.Orchestrator.Run(cmd.Context(), workflow.RunSpec{
		Type:    workflow.TypeOnDemand,
		Symbols: []string{symbol},
		Force:   runForce,
	})
	if err != nil {
		return fmt.Errorf("on-demand run failed: %w", err)
	}

	printRunResult(result)
	return exitStatus(result)
}

// splitSymbols normalizes a comma-separated symbol list.
func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readSymbolsFile reads one symbol per line. Blank lines and lines
// starting with # are skipped.
func readSymbolsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbols file: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}
	return out, nil
}

// printRunResult writes the human-readable workflow summary to stdout.
func printRunResult(result *workflow.RunResult) {
	fmt.Printf("Workflow %s finished: %s (%.1fs)\n", result.WorkflowID, result.Status, result.Duration.Seconds())
	fmt.Printf("  completed: %d\n", len(result.Completed))
	if len(result.Failed) > 0 {
		fmt.Printf("  failed:    %d (%s)\n", len(result.Failed), strings.Join(result.Failed, ", "))
	}
	if len(result.Skipped) > 0 {
		fmt.Printf("  skipped:   %d (%s)\n", len(result.Skipped), strings.Join(result.Skipped, ", "))
	}
}

// exitStatus maps a terminal workflow state to the process exit status.
// A run that completed with failed symbols still exits zero; the
// symbols are parked in the DLQ for inspection.
func exitStatus(result *workflow.RunResult) error {
	if result.Status == workflow.StatusFailed {
		return fmt.Errorf("workflow %s failed", result.WorkflowID)
	}
	return nil
}
