package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgalanis/conveyor/internal/di"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot both databases and upload to S3-compatible storage",
	Long: `Create a consistent snapshot of the market and workflow databases and
upload it as a single archive. Requires BACKUP_ENABLED=true and S3
credentials in the environment.

With --rotate, uploads older than the retention window are deleted
after the new snapshot lands. The most recent BACKUP_MIN_KEEP uploads
(default 3) are always kept regardless of age.`,
	RunE: runBackup,
}

var backupRotate bool

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().BoolVar(&backupRotate, "rotate", false, "Delete uploads older than the retention window")
}

func runBackup(cmd *cobra.Command, args []string) error {
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

	if container.Snapshots == nil {
		return fmt.Errorf("backups are not configured: set BACKUP_ENABLED=true and S3 credentials")
	}

	key, err := container.Snapshots.CreateAndUpload(cmd.Context())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	fmt.Printf("Backup uploaded: %s\n", key)

	if backupRotate {
		if err := container.Snapshots.RotateOldBackups(cmd.Context(), cfg.Backup.RetentionDays); err != nil {
			return fmt.Errorf("rotation failed: %w", err)
		}
		fmt.Printf("Rotation complete (retention %d days)\n", cfg.Backup.RetentionDays)
	}

	return nil
}
