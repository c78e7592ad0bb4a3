package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mgalanis/conveyor/internal/database"
	"github.com/mgalanis/conveyor/internal/events"
	"github.com/mgalanis/conveyor/internal/version"
	"github.com/rs/zerolog"
)

const (
	// backupKeyPrefix is the object key prefix for every uploaded snapshot
	backupKeyPrefix = "conveyor-backup-"
	// backupTimeLayout is the timestamp embedded in archive names
	backupTimeLayout = "2006-01-02-150405"
)

// SnapshotService creates consistent snapshots of the managed databases,
// packs them into a tar.gz archive and uploads the result to object storage.
type SnapshotService struct {
	store     ObjectStore
	databases map[string]*database.DB
	dataDir   string
	minKeep   int
	events    *events.Manager
	log       zerolog.Logger
}

// BackupMetadata describes the contents of a backup archive.
type BackupMetadata struct {
	Timestamp       time.Time          `json:"timestamp"`
	Version         string             `json:"version"`
	ConveyorVersion string             `json:"conveyor_version"`
	Databases       []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes a single database snapshot inside a backup.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes a backup archive stored in the bucket.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewSnapshotService creates a new snapshot backup service. minKeep is the
// number of backups rotation always preserves regardless of age; values
// below 1 fall back to 3.
func NewSnapshotService(
	store ObjectStore,
	databases map[string]*database.DB,
	dataDir string,
	minKeep int,
	eventManager *events.Manager,
	log zerolog.Logger,
) *SnapshotService {
	if minKeep < 1 {
		minKeep = 3
	}
	return &SnapshotService{
		store:     store,
		databases: databases,
		dataDir:   dataDir,
		minKeep:   minKeep,
		events:    eventManager,
		log:       log.With().Str("component", "snapshot_backup").Logger(),
	}
}

// CreateAndUpload snapshots every managed database, archives the snapshots
// together with a metadata file and uploads the archive. Returns the object
// key of the uploaded backup.
func (s *SnapshotService) CreateAndUpload(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting snapshot backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	metadata := BackupMetadata{
		Timestamp:       time.Now().UTC(),
		Version:         "1.0.0",
		ConveyorVersion: version.Version,
		Databases:       make([]DatabaseMetadata, 0, len(names)),
	}
	archiveFiles := make([]string, 0, len(names)+1)

	for _, name := range names {
		filename := name + ".db"
		snapshotPath := filepath.Join(stagingDir, filename)

		s.log.Debug().Str("database", name).Msg("Snapshotting database")

		// VACUUM INTO produces a standalone copy even while writers are active
		if err := s.databases[name].VacuumInto(ctx, snapshotPath); err != nil {
			return "", fmt.Errorf("failed to snapshot %s: %w", name, err)
		}

		if err := s.verifySnapshot(snapshotPath); err != nil {
			return "", fmt.Errorf("snapshot verification failed for %s: %w", name, err)
		}

		info, err := os.Stat(snapshotPath)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s snapshot: %w", name, err)
		}

		checksum, err := s.calculateChecksum(snapshotPath)
		if err != nil {
			return "", fmt.Errorf("failed to calculate checksum for %s: %w", name, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      name,
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		archiveFiles = append(archiveFiles, filename)
	}

	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := s.writeMetadata(metadataPath, metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	archiveFiles = append(archiveFiles, "backup-metadata.json")

	archiveName := fmt.Sprintf("%s%s.tar.gz", backupKeyPrefix, time.Now().Format(backupTimeLayout))
	archivePath := filepath.Join(stagingDir, archiveName)

	if err := s.createArchive(archivePath, stagingDir, archiveFiles); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	duration := time.Since(startTime)
	s.events.EmitTyped(events.BackupCompleted, "reliability", &events.BackupCompletedData{
		Key:             archiveName,
		SizeBytes:       archiveInfo.Size(),
		DurationSeconds: duration.Seconds(),
	})

	s.log.Info().
		Dur("duration_ms", duration).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Int("databases", len(metadata.Databases)).
		Msg("Snapshot backup completed successfully")

	return archiveName, nil
}

// ListBackups lists all backup archives stored in the bucket, newest first.
func (s *SnapshotService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, backupKeyPrefix) || !strings.HasSuffix(obj.Key, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimPrefix(obj.Key, backupKeyPrefix)
		timestampStr = strings.TrimSuffix(timestampStr, ".tar.gz")

		timestamp, err := time.Parse(backupTimeLayout, timestampStr)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Failed to parse timestamp from backup key")
			continue
		}

		backups = append(backups, BackupInfo{
			Filename:  obj.Key,
			Timestamp: timestamp,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period.
// The newest minKeep backups are always preserved, and retentionDays 0
// disables deletion entirely.
func (s *SnapshotService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	s.log.Info().Int("retention_days", retentionDays).Msg("Starting backup rotation")

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	if len(backups) <= s.minKeep {
		s.log.Info().Int("count", len(backups)).Msg("Too few backups to rotate")
		return nil
	}

	if retentionDays <= 0 {
		s.log.Info().Msg("Retention disabled, keeping all backups")
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	deleted := 0
	for i, backup := range backups {
		// Backups are sorted newest first, the head of the list survives
		if i < s.minKeep {
			continue
		}
		if !backup.Timestamp.Before(cutoff) {
			continue
		}

		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().
				Err(err).
				Str("filename", backup.Filename).
				Msg("Failed to delete old backup")
			continue
		}

		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return nil
}

// verifySnapshot opens a snapshot file and runs a SQLite integrity check.
func (s *SnapshotService) verifySnapshot(path string) error {
	snapshotDB, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer snapshotDB.Close()

	var result string
	if err := snapshotDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// calculateChecksum calculates the SHA256 checksum of a file.
func (s *SnapshotService) calculateChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes backup metadata as indented JSON.
func (s *SnapshotService) writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive packs the named files from sourceDir into a tar.gz archive.
func (s *SnapshotService) createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		if err := s.addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	return nil
}

// addFileToArchive adds a single file to a tar archive.
func (s *SnapshotService) addFileToArchive(tarWriter *tar.Writer, path, nameInArchive string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}

	return nil
}
