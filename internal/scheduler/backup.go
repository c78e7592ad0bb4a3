package scheduler

import (
	"context"

	"github.com/rs/zerolog"
)

// BackupJob creates a snapshot backup and rotates old ones.
type BackupJob struct {
	backups       SnapshotBackupper
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backups SnapshotBackupper, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups:       backups,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "snapshot_backup").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *BackupJob) Name() string {
	return "snapshot_backup"
}

// Run uploads a fresh snapshot backup, then rotates aged ones. A
// rotation failure is logged but does not fail the job, the backup
// itself already succeeded.
func (j *BackupJob) Run() error {
	ctx := context.Background()

	key, err := j.backups.CreateAndUpload(ctx)
	if err != nil {
		return err
	}

	if err := j.backups.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
	}

	j.log.Info().Str("key", key).Msg("Scheduled backup finished")
	return nil
}
