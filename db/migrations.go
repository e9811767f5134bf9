package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Migration represents a single database migration
type Migration struct {
	ID   int
	Name string
	Up   func(*gorm.DB) error
}

// allMigrations is the ordered list of all migrations
// Each migration has a unique ID and is applied in order
var allMigrations = []Migration{
	{
		ID:   1,
		Name: "0001_split_inline_logs_into_rows",
		Up:   migration0001SplitInlineLogsIntoRows,
	},
	{
		ID:   2,
		Name: "0002_rename_ai_analysis_to_analysis",
		Up:   migration0002RenameAIAnalysisToAnalysis,
	},
}

// AllModels returns all the models that need to be migrated
// This is the single source of truth for database migrations
func AllModels() []any {
	return []any{
		&MigrationModel{},
		&DeploymentModel{},
		&DeploymentLogModel{},
	}
}

// AutoMigrateAll runs auto-migration for all application models
func AutoMigrateAll(db *gorm.DB) error {
	// First, ensure migrations table exists
	if err := db.AutoMigrate(&MigrationModel{}); err != nil {
		return err
	}

	// Run all manual migrations in order
	if err := RunMigrations(db, len(allMigrations)); err != nil {
		return err
	}

	// Now run AutoMigrate for all models
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}

	return nil
}

// RunMigrations runs all migrations up to and including the specified ID
// If targetID is 0 or negative, all migrations are run
func RunMigrations(db *gorm.DB, targetID int) error {
	if targetID <= 0 {
		targetID = len(allMigrations)
	}

	for _, migration := range allMigrations {
		if migration.ID > targetID {
			break
		}

		applied, err := migrationApplied(db, migration.Name)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", migration.Name, err)
		}
		if applied {
			continue
		}

		if err := migration.Up(db); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}

		if err := recordMigration(db, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Name, err)
		}
	}

	return nil
}

// migrationApplied checks if a migration has already been applied
func migrationApplied(db *gorm.DB, name string) (bool, error) {
	var count int64
	err := db.Model(&MigrationModel{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// recordMigration records that a migration has been applied
func recordMigration(db *gorm.DB, name string) error {
	migration := MigrationModel{
		Name:      name,
		AppliedAt: time.Now(),
	}
	return db.Create(&migration).Error
}

// CreateSchemaAtMigration creates the database schema as it existed at a specific migration version
// migrationID 0 = initial schema before any migrations
// migrationID N = schema after applying migrations 1 through N
func CreateSchemaAtMigration(db *gorm.DB, migrationID int) error {
	if err := db.AutoMigrate(&MigrationModel{}); err != nil {
		return err
	}

	if err := createInitialSchema(db); err != nil {
		return err
	}

	if migrationID > 0 {
		return RunMigrations(db, migrationID)
	}

	return nil
}

// createInitialSchema creates the schema as it existed before any migrations.
// Logs were kept inline as newline-separated text.
func createInitialSchema(db *gorm.DB) error {
	return db.Exec(`
		CREATE TABLE IF NOT EXISTS deployments (
			id TEXT PRIMARY KEY,
			repository_url TEXT NOT NULL,
			platform TEXT NOT NULL,
			credentials TEXT,
			status TEXT NOT NULL,
			logs TEXT NOT NULL DEFAULT '',
			ai_analysis TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)
	`).Error
}

// migration0001SplitInlineLogsIntoRows moves inline log text into deployment_logs rows
func migration0001SplitInlineLogsIntoRows(db *gorm.DB) error {
	if !db.Migrator().HasColumn(&DeploymentModel{}, "logs") {
		return nil // Fresh database, nothing to migrate
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&DeploymentLogModel{}); err != nil {
			return err
		}

		type legacyRow struct {
			ID        string
			Logs      string
			CreatedAt time.Time
		}
		var rows []legacyRow
		if err := tx.Raw("SELECT id, logs, created_at FROM deployments ORDER BY created_at").Scan(&rows).Error; err != nil {
			return err
		}

		for _, row := range rows {
			for _, line := range strings.Split(row.Logs, "\n") {
				if line == "" {
					continue
				}
				if err := tx.Exec(
					"INSERT INTO deployment_logs (deployment_id, stream, line, created_at) VALUES (?, ?, ?, ?)",
					row.ID, "system", line, row.CreatedAt,
				).Error; err != nil {
					return err
				}
			}
		}

		return tx.Exec("ALTER TABLE deployments DROP COLUMN logs").Error
	})
}

// migration0002RenameAIAnalysisToAnalysis handles the rename from ai_analysis to analysis
func migration0002RenameAIAnalysisToAnalysis(db *gorm.DB) error {
	if !db.Migrator().HasColumn(&DeploymentModel{}, "ai_analysis") {
		return nil
	}

	return db.Exec("ALTER TABLE deployments RENAME COLUMN ai_analysis TO analysis").Error
}
