package reliability

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mgalanis/conveyor/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMaintenanceDBs(t *testing.T) (map[string]*database.DB, string) {
	t.Helper()
	dataDir := t.TempDir()

	marketDB, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	require.NoError(t, err)
	t.Cleanup(func() { marketDB.Close() })

	_, err = marketDB.Conn().Exec("CREATE TABLE bars (id INTEGER PRIMARY KEY, symbol TEXT)")
	require.NoError(t, err)
	_, err = marketDB.Conn().Exec("INSERT INTO bars (symbol) VALUES ('AAPL'), ('MSFT'), ('GOOG')")
	require.NoError(t, err)

	workflowDB, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "workflow.db"),
		Profile: database.ProfileLedger,
		Name:    "workflow",
	})
	require.NoError(t, err)
	t.Cleanup(func() { workflowDB.Close() })

	return map[string]*database.DB{
		"market":   marketDB,
		"workflow": workflowDB,
	}, dataDir
}

func TestMaintenanceService_RunMaintenance(t *testing.T) {
	databases, dataDir := newMaintenanceDBs(t)
	service := NewMaintenanceService(databases, dataDir, zerolog.Nop())

	require.NoError(t, service.RunMaintenance(context.Background()))

	// Databases stay usable after checkpoint and vacuum
	for name, db := range databases {
		assert.NoError(t, db.HealthCheck(context.Background()), name)
	}

	var count int
	require.NoError(t, databases["market"].QueryRow("SELECT COUNT(*) FROM bars").Scan(&count))
	assert.Equal(t, 3, count)
}

func TestMaintenanceService_RunMaintenanceFailsOnBrokenDatabase(t *testing.T) {
	databases, dataDir := newMaintenanceDBs(t)
	require.NoError(t, databases["market"].Close())

	service := NewMaintenanceService(databases, dataDir, zerolog.Nop())

	err := service.RunMaintenance(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity check failed for market")
}

func TestMaintenanceService_DatabaseStats(t *testing.T) {
	databases, dataDir := newMaintenanceDBs(t)
	service := NewMaintenanceService(databases, dataDir, zerolog.Nop())

	stats := service.DatabaseStats()
	require.Len(t, stats, 2)

	for _, name := range []string{"market", "workflow"} {
		dbStats, ok := stats[name]
		require.True(t, ok, name)
		assert.Greater(t, dbStats.SizeBytes, int64(0), name)
		assert.Greater(t, dbStats.PageCount, int64(0), name)
		assert.Greater(t, dbStats.PageSize, int64(0), name)
	}
}
