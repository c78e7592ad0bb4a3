package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mgalanis/conveyor/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// MaintenanceService runs recurring upkeep across the managed databases:
// integrity checks, WAL checkpoints, vacuuming and disk space monitoring.
type MaintenanceService struct {
	databases map[string]*database.DB
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("component", "maintenance").Logger(),
	}
}

// RunMaintenance executes one full maintenance sweep. A failed integrity
// check or critically low disk space aborts the sweep; checkpoint and
// vacuum failures are logged and skipped so one misbehaving database
// cannot block upkeep of the others.
func (s *MaintenanceService) RunMaintenance(ctx context.Context) error {
	s.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	for _, name := range s.sortedNames() {
		s.log.Debug().Str("database", name).Msg("Running integrity check")

		if err := s.databases[name].HealthCheck(ctx); err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("Integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}
	}

	if err := s.checkDiskSpace(); err != nil {
		return err
	}

	s.checkpointAll()
	s.vacuumAll()
	s.logStats()

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Database maintenance completed successfully")

	return nil
}

// checkDiskSpace verifies the data directory has room to grow. Vacuuming
// needs scratch space up to the size of the largest database, so running
// out entirely is treated as fatal.
func (s *MaintenanceService) checkDiskSpace() error {
	usage, err := disk.Usage(s.dataDir)
	if err != nil {
		return fmt.Errorf("failed to check disk space for %s: %w", s.dataDir, err)
	}

	freeGB := float64(usage.Free) / 1e9
	s.log.Debug().Float64("free_gb", freeGB).Msg("Disk space check")

	if freeGB < 0.5 {
		s.log.Error().Float64("free_gb", freeGB).Msg("Insufficient disk space, aborting maintenance")
		return fmt.Errorf("insufficient disk space: only %.2f GB free", freeGB)
	}
	if freeGB < 5.0 {
		s.log.Warn().Float64("free_gb", freeGB).Msg("Disk space running low")
	}

	return nil
}

// DatabaseStats returns size statistics per managed database. Databases
// whose stats cannot be read are logged and omitted.
func (s *MaintenanceService) DatabaseStats() map[string]database.Stats {
	stats := make(map[string]database.Stats, len(s.databases))

	for name, db := range s.databases {
		dbStats, err := db.GetStats()
		if err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("Failed to read database stats")
			continue
		}
		stats[name] = *dbStats
	}

	return stats
}

// checkpointAll truncates the WAL of every managed database to prevent
// unbounded WAL growth. Failures are not critical.
func (s *MaintenanceService) checkpointAll() {
	for _, name := range s.sortedNames() {
		s.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := s.databases[name].WALCheckpoint("TRUNCATE"); err != nil {
			s.log.Warn().Str("database", name).Err(err).Msg("WAL checkpoint failed")
		}
	}
}

// vacuumAll vacuums every managed database except append-only ledgers,
// which never shrink and would only pay the rewrite cost.
func (s *MaintenanceService) vacuumAll() {
	for _, name := range s.sortedNames() {
		db := s.databases[name]

		if db.Profile() == database.ProfileLedger {
			s.log.Debug().Str("database", name).Msg("Skipping VACUUM for append-only database")
			continue
		}

		if err := s.vacuumDatabase(db, name); err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("VACUUM failed")
		}
	}
}

// vacuumDatabase vacuums a single database and logs the space reclaimed.
func (s *MaintenanceService) vacuumDatabase(db *database.DB, name string) error {
	before, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats before vacuum: %w", err)
	}

	if err := db.Vacuum(); err != nil {
		return err
	}

	after, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats after vacuum: %w", err)
	}

	sizeBefore := float64(before.PageCount*before.PageSize) / 1024 / 1024
	sizeAfter := float64(after.PageCount*after.PageSize) / 1024 / 1024

	s.log.Info().
		Str("database", name).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")

	return nil
}

// logStats records current size metrics for every managed database.
func (s *MaintenanceService) logStats() {
	for name, stats := range s.DatabaseStats() {
		s.log.Info().
			Str("database", name).
			Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
			Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
			Int64("freelist_pages", stats.FreelistCount).
			Msg("Database metrics")
	}
}

func (s *MaintenanceService) sortedNames() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
