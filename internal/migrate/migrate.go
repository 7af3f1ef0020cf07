package migrate

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/abcsxl/openfindbearings-sub001/internal/models"
)

type MigrateOptions struct {
	CreateExtensions bool // pgcrypto
	CreateChecks     bool // CHECK-constraint'ы
	CreateIndexes    bool // индексы
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions: true,
		CreateChecks:     true,
		CreateIndexes:    true,
	}
}

func MigrateActorDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы снапшотов акторов")
	db = db.WithContext(ctx)

	if opt.CreateExtensions {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
			log.Error("pgcrypto error", zap.Error(err))
			return err
		}
	}

	log.Info("Создание таблицы: actor_snapshots")
	if err := db.AutoMigrate(&models.ActorSnapshot{}); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return err
	}

	if opt.CreateChecks {
		if err := db.Exec(`
ALTER TABLE actor_snapshots
	DROP CONSTRAINT IF EXISTS chk_actor_snapshots_version_positive,
	ADD CONSTRAINT chk_actor_snapshots_version_positive
	CHECK (version > 0);
`).Error; err != nil {
			log.Error("chk version", zap.Error(err))
			return err
		}

		if err := db.Exec(`
ALTER TABLE actor_snapshots
	DROP CONSTRAINT IF EXISTS chk_actor_snapshots_entity_type,
	ADD CONSTRAINT chk_actor_snapshots_entity_type
	CHECK (entity_type IN ('inventory','inquiry-match'));
`).Error; err != nil {
			log.Error("chk entity_type", zap.Error(err))
			return err
		}
	}

	if opt.CreateIndexes {
		if err := db.Exec(`
CREATE INDEX IF NOT EXISTS ix_actor_snapshots_type_updated
ON actor_snapshots (entity_type, updated_at DESC);
`).Error; err != nil {
			log.Error("ix type_updated", zap.Error(err))
			return err
		}
	}

	log.Info("Миграция базы снапшотов успешно завершена")
	return nil
}
