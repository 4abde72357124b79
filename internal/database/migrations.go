package database

import (
	"errors"
	"time"

	"github.com/dochub-labs/dochub/backend/internal/catalog"
	"github.com/dochub-labs/dochub/backend/internal/icons"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillSectionIcons  = "2026-07-02_backfill_section_icon_names"
	migrationBackfillSectionColors = "2026-07-02_backfill_section_colors"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillSectionIcons, apply: backfillSectionIconNames},
		{name: migrationBackfillSectionColors, apply: backfillSectionColors},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Sections written before icon selection existed carry no icon name; pin
// them to the default sentinel so renderers never see an empty key.
func backfillSectionIconNames(db *gorm.DB) error {
	return db.Model(&catalog.Section{}).
		Where("icon_name = ''").
		Update("icon_name", icons.DefaultIcon).Error
}

func backfillSectionColors(db *gorm.DB) error {
	return db.Model(&catalog.Section{}).
		Where("color = ''").
		Update("color", icons.DefaultColor()).Error
}
