package db

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newLegacyDB(t *testing.T, migrationID int) *gorm.DB {
	t.Helper()
	db, err := InitDatabase(DBConfig{
		Path:     ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, CreateSchemaAtMigration(db, migrationID))
	return db
}

// TestMigration0001SplitInlineLogsIntoRows tests migration 1
func TestMigration0001SplitInlineLogsIntoRows(t *testing.T) {
	db := newLegacyDB(t, 0)

	testID1 := uuid.New()
	testID2 := uuid.New()

	err := db.Exec(`
		INSERT INTO deployments (
			id, repository_url, platform, status, logs, created_at, updated_at
		) VALUES
			(?, 'https://example.com/r1.git', 'Docker', 'DEPLOYED', ?, datetime('now'), datetime('now')),
			(?, 'https://example.com/r2.git', 'Simulated', 'QUEUED', '', datetime('now'), datetime('now'))
	`, testID1, "[10:00:00] Deployment Queued...\n[10:00:01] Cloning...\n[10:00:05] ✅ Container Running!", testID2).Error
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasColumn(&DeploymentModel{}, "logs"), "logs column should exist before migration")

	require.NoError(t, RunMigrations(db, 1))

	assert.False(t, db.Migrator().HasColumn(&DeploymentModel{}, "logs"), "logs column should be dropped")

	var lines []DeploymentLogModel
	require.NoError(t, db.Where("deployment_id = ?", testID1.String()).Order("id ASC").Find(&lines).Error)
	require.Len(t, lines, 3)
	assert.Equal(t, "[10:00:00] Deployment Queued...", lines[0].Line)
	assert.Equal(t, "[10:00:01] Cloning...", lines[1].Line)
	assert.Equal(t, "[10:00:05] ✅ Container Running!", lines[2].Line)
	assert.Equal(t, "system", lines[0].Stream)

	var emptyCount int64
	require.NoError(t, db.Model(&DeploymentLogModel{}).Where("deployment_id = ?", testID2.String()).Count(&emptyCount).Error)
	assert.Zero(t, emptyCount)

	// Verify idempotency - running again should not duplicate rows
	require.NoError(t, RunMigrations(db, 1))

	var total int64
	require.NoError(t, db.Model(&DeploymentLogModel{}).Count(&total).Error)
	assert.Equal(t, int64(3), total)

	var migrationCount int64
	err = db.Model(&MigrationModel{}).
		Where("name = ?", "0001_split_inline_logs_into_rows").
		Count(&migrationCount).
		Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), migrationCount, "Migration should be recorded once")
}

// TestMigration0002RenameAIAnalysisToAnalysis tests migration 2
func TestMigration0002RenameAIAnalysisToAnalysis(t *testing.T) {
	db := newLegacyDB(t, 1)

	testID := uuid.New()
	err := db.Exec(`
		INSERT INTO deployments (
			id, repository_url, platform, status, ai_analysis, created_at, updated_at
		) VALUES (?, 'https://example.com/r.git', 'Vercel', 'FAILED', 'Token was rejected.', datetime('now'), datetime('now'))
	`, testID).Error
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, 2))

	assert.False(t, db.Migrator().HasColumn(&DeploymentModel{}, "ai_analysis"))
	assert.True(t, db.Migrator().HasColumn(&DeploymentModel{}, "analysis"))

	var analysis *string
	require.NoError(t, db.Raw("SELECT analysis FROM deployments WHERE id = ?", testID).Scan(&analysis).Error)
	require.NotNil(t, analysis)
	assert.Equal(t, "Token was rejected.", *analysis)
}

func TestIncrementalMigration(t *testing.T) {
	db := newLegacyDB(t, 0)

	testID := uuid.New()
	err := db.Exec(`
		INSERT INTO deployments (
			id, repository_url, platform, status, logs, ai_analysis, created_at, updated_at
		) VALUES (?, 'https://example.com/r.git', 'Simulated', 'FAILED', ?, 'Missing dependency.', datetime('now'), datetime('now'))
	`, testID, "one\ntwo").Error
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, 1))
	assert.True(t, db.Migrator().HasColumn(&DeploymentModel{}, "ai_analysis"), "Should still have ai_analysis after migration 1")

	require.NoError(t, RunMigrations(db, 2))

	type Result struct {
		ID       string
		Status   string
		Analysis *string
	}
	var result Result
	err = db.Raw("SELECT id, status, analysis FROM deployments WHERE id = ?", testID.String()).
		Scan(&result).
		Error
	require.NoError(t, err)
	assert.Equal(t, "FAILED", result.Status)
	require.NotNil(t, result.Analysis)
	assert.Equal(t, "Missing dependency.", *result.Analysis, "Data should be preserved")

	var lineCount int64
	require.NoError(t, db.Model(&DeploymentLogModel{}).Where("deployment_id = ?", testID.String()).Count(&lineCount).Error)
	assert.Equal(t, int64(2), lineCount)

	var migrationCount int64
	require.NoError(t, db.Model(&MigrationModel{}).Count(&migrationCount).Error)
	assert.Equal(t, int64(2), migrationCount, "Should have 2 migration records")
}

func TestRunMigrations_TargetBeyondList(t *testing.T) {
	db := newLegacyDB(t, 0)

	// Zero or negative targets run everything
	require.NoError(t, RunMigrations(db, 0))

	var count int64
	require.NoError(t, db.Model(&MigrationModel{}).Count(&count).Error)
	assert.Equal(t, int64(len(allMigrations)), count)
}
