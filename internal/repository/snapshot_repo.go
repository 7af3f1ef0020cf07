package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abcsxl/openfindbearings-sub001/internal/models"
	"github.com/abcsxl/openfindbearings-sub001/internal/runtime"
)

// SnapshotRepo реализует runtime.Store поверх postgres: один JSONB-снапшот
// на сущность, optimistic lock через условный UPDATE по версии.
type SnapshotRepo interface {
	Load(ctx context.Context, entityType string, id uuid.UUID) ([]byte, int64, error)
	Save(ctx context.Context, entityType string, id uuid.UUID, state []byte, expectedVersion int64) error
}

type snapshotRepo struct{ db *gorm.DB }

func NewSnapshotRepo(db *gorm.DB) SnapshotRepo { return &snapshotRepo{db: db} }

func (r *snapshotRepo) Load(ctx context.Context, entityType string, id uuid.UUID) ([]byte, int64, error) {
	var snap models.ActorSnapshot
	err := r.db.WithContext(ctx).
		First(&snap, "entity_type = ? AND entity_id = ?", entityType, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return snap.State, snap.Version, nil
}

func (r *snapshotRepo) Save(ctx context.Context, entityType string, id uuid.UUID, state []byte, expectedVersion int64) error {
	if expectedVersion == 0 {
		rec := models.ActorSnapshot{
			EntityType: entityType,
			EntityID:   id,
			Version:    1,
			State:      state,
		}
		tx := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&rec)
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected == 0 {
			// строка уже есть — кто-то записал версию раньше нас
			return runtime.ErrVersionConflict
		}
		return nil
	}

	// атомарно: версия растёт только от ожидаемой
	tx := r.db.WithContext(ctx).Exec(`
UPDATE actor_snapshots
SET state = @state,
    version = version + 1,
    updated_at = now()
WHERE entity_type = @etype
  AND entity_id = @eid
  AND version = @ver
`, map[string]any{
		"state": state,
		"etype": entityType,
		"eid":   id,
		"ver":   expectedVersion,
	})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return runtime.ErrVersionConflict
	}
	return nil
}
