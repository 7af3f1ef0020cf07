package models

import (
	"time"

	"github.com/google/uuid"
)

// ActorSnapshot — сериализованное состояние актора, одна строка на сущность.
// Версия защищает от lost update при конкурентной записи.
type ActorSnapshot struct {
	EntityType string    `gorm:"type:text;primaryKey"`
	EntityID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Version    int64     `gorm:"not null;default:0"`
	State      []byte    `gorm:"type:jsonb;not null"`

	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (ActorSnapshot) TableName() string {
	return "actor_snapshots"
}
