package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgalanis/conveyor/internal/di"
)

// resumeCmd represents the resume command
var resumeCmd = &cobra.Command{
	Use:   "resume WORKFLOW_ID",
	Short: "Resume a paused or failed workflow from its checkpoint",
	Long: `Resume a workflow from its last checkpoint and block until it reaches
a terminal state. Symbols that already completed a stage are not
re-processed; a completed workflow cannot be resumed.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
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

	result, err := container.Orchestrator.Resume(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}

	printRunResult(result)
	return exitStatus(result)
}
