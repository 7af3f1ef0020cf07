package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memKey struct {
	kind string
	id   uuid.UUID
}

type memRow struct {
	state   []byte
	version int64
}

// MemStore — Store в памяти: для тестов и локального запуска без БД.
type MemStore struct {
	mu   sync.Mutex
	rows map[memKey]memRow
}

func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[memKey]memRow)}
}

func (s *MemStore) Load(_ context.Context, entityType string, id uuid.UUID) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[memKey{kind: entityType, id: id}]
	if !ok {
		return nil, 0, nil
	}
	cp := make([]byte, len(row.state))
	copy(cp, row.state)
	return cp, row.version, nil
}

func (s *MemStore) Save(_ context.Context, entityType string, id uuid.UUID, state []byte, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey{kind: entityType, id: id}
	row, ok := s.rows[key]
	if !ok {
		if expectedVersion != 0 {
			return ErrVersionConflict
		}
	} else if row.version != expectedVersion {
		return ErrVersionConflict
	}
	cp := make([]byte, len(state))
	copy(cp, state)
	s.rows[key] = memRow{state: cp, version: expectedVersion + 1}
	return nil
}

// Version возвращает текущую версию снапшота (0 — снапшота нет).
func (s *MemStore) Version(entityType string, id uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[memKey{kind: entityType, id: id}].version
}
