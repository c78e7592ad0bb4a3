package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/mgalanis/conveyor/internal/reliability"
	"github.com/mgalanis/conveyor/internal/version"
)

// SystemHandlers serves system monitoring and operations endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	maintenance *reliability.MaintenanceService
	snapshots   SnapshotBackupper
	startedAt   time.Time
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(dataDir string, maintenance *reliability.MaintenanceService, snapshots SnapshotBackupper, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		maintenance: maintenance,
		snapshots:   snapshots,
		startedAt:   time.Now(),
	}
}

// SystemStatus is the response shape of GET /api/system.
type SystemStatus struct {
	Service       string                    `json:"service"`
	Version       string                    `json:"version"`
	GoVersion     string                    `json:"go_version"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
	CPUPercent    float64                   `json:"cpu_percent"`
	MemoryPercent float64                   `json:"memory_percent"`
	Goroutines    int                       `json:"goroutines"`
	HeapAllocMB   float64                   `json:"heap_alloc_mb"`
	GCRuns        uint32                    `json:"gc_runs"`
	DiskFreeGB    float64                   `json:"disk_free_gb"`
	Databases     map[string]DatabaseStatus `json:"databases"`
	Timestamp     string                    `json:"timestamp"`
}

// DatabaseStatus summarizes one managed database's on-disk footprint.
type DatabaseStatus struct {
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	FreelistPages int64   `json:"freelist_pages"`
}

// HandleSystem returns host and process statistics.
// GET /api/system
func (h *SystemHandlers) HandleSystem(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Service:       "conveyor",
		Version:       version.Version,
		GoVersion:     runtime.Version(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(memStats.HeapAlloc) / 1024 / 1024,
		GCRuns:        memStats.NumGC,
		Databases:     h.databaseStatuses(),
		Timestamp:     time.Now().Format(time.RFC3339),
	}

	if usage, err := disk.Usage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	} else {
		status.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	}

	writeJSON(w, http.StatusOK, status, h.log)
}

// HandleTriggerBackup creates a snapshot backup and uploads it.
// POST /api/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		http.Error(w, "backups are not configured", http.StatusServiceUnavailable)
		return
	}

	h.log.Info().Msg("Manual backup triggered")
	start := time.Now()

	key, err := h.snapshots.CreateAndUpload(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "completed",
		"key":         key,
		"duration_ms": time.Since(start).Milliseconds(),
	}, h.log)
}

func (h *SystemHandlers) databaseStatuses() map[string]DatabaseStatus {
	statuses := make(map[string]DatabaseStatus)
	if h.maintenance == nil {
		return statuses
	}
	for name, stats := range h.maintenance.DatabaseStats() {
		statuses[name] = DatabaseStatus{
			SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
			WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount:     stats.PageCount,
			FreelistPages: stats.FreelistCount,
		}
	}
	return statuses
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a 100ms sampling interval to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
