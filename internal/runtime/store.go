package runtime

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrVersionConflict = errors.New("snapshot version conflict")

// Store хранит сериализованные снапшоты состояния акторов.
// Load возвращает (nil, 0, nil), если снапшота ещё нет.
// Save с expectedVersion=N записывает версию N+1; при несовпадении
// версии возвращает ErrVersionConflict.
type Store interface {
	Load(ctx context.Context, entityType string, id uuid.UUID) (state []byte, version int64, err error)
	Save(ctx context.Context, entityType string, id uuid.UUID, state []byte, expectedVersion int64) error
}
