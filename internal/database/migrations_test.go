package database

import (
	"path/filepath"
	"testing"

	"github.com/dochub-labs/dochub/backend/internal/catalog"
	"github.com/dochub-labs/dochub/backend/internal/icons"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsSectionDefaults(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&catalog.Section{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	section := catalog.Section{
		ID:          "section-1",
		Title:       "Engineering",
		Description: "Team references",
	}
	if err := database.Create(&section).Error; err != nil {
		testContext.Fatalf("failed to insert section: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored catalog.Section
	if err := database.Where("id = ?", section.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload section: %v", err)
	}
	if stored.IconName != icons.DefaultIcon {
		testContext.Fatalf("expected icon backfill to %q, got %q", icons.DefaultIcon, stored.IconName)
	}
	if stored.Color != icons.DefaultColor() {
		testContext.Fatalf("expected color backfill, got %q", stored.Color)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillSectionIcons).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsIsIdempotent(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&catalog.Section{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("first apply failed: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("second apply failed: %v", err)
	}

	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		testContext.Fatalf("expected one record per migration, got %d", count)
	}
}
