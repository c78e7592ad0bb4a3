// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/config"
	"github.com/mgalanis/conveyor/internal/scheduler"
)

// RegisterJobs creates the cron scheduler and registers the recurring
// jobs on it. The scheduler is stored on the container but not started;
// the serve command owns its lifecycle.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	schedule := cfg.Schedule
	if schedule == nil {
		schedule = config.DefaultSchedule()
	}

	sched := scheduler.New(log)

	// Daily batch: full pipeline over the configured symbol universe
	dailyBatch := scheduler.NewDailyBatchJob(container.Orchestrator, cfg.Symbols, log)
	if err := sched.AddJob(schedule.DailyBatchCron, dailyBatch); err != nil {
		return fmt.Errorf("failed to register daily batch job: %w", err)
	}

	// Database maintenance: VACUUM, integrity checks, WAL truncation
	maintenance := scheduler.NewMaintenanceJob(container.Maintenance, log)
	if err := sched.AddJob(schedule.MaintenanceCron, maintenance); err != nil {
		return fmt.Errorf("failed to register maintenance job: %w", err)
	}

	// Snapshot backup: only when backup storage is configured
	if container.Snapshots != nil {
		backup := scheduler.NewBackupJob(container.Snapshots, cfg.Backup.RetentionDays, log)
		if err := sched.AddJob(schedule.BackupCron, backup); err != nil {
			return fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	container.Scheduler = sched

	log.Info().Msg("All jobs registered")

	return nil
}
