package scheduler

import (
	"context"

	"github.com/rs/zerolog"
)

// MaintenanceJob runs the recurring database maintenance sweep.
type MaintenanceJob struct {
	maintenance DatabaseMaintainer
	log         zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(maintenance DatabaseMaintainer, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		maintenance: maintenance,
		log:         log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run executes one maintenance sweep.
func (j *MaintenanceJob) Run() error {
	return j.maintenance.RunMaintenance(context.Background())
}
