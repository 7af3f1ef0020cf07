package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tick — отложенный вызов, который сам ставит операцию в очередь
// своей сущности (обычно через Owner.Invoke).
type Tick func(ctx context.Context) error

// Scheduler доставляет tick не раньше запрошенного момента. Tick —
// обычная операция: актор сам проверяет, актуально ли ещё условие
// (устаревший tick — no-op), поэтому точность срабатывания не влияет
// на корректность.
type Scheduler struct {
	log *zap.Logger

	mu     sync.Mutex
	seq    int64
	timers map[int64]*time.Timer
	closed bool
}

func NewScheduler(log *zap.Logger) *Scheduler {
	return &Scheduler{
		log:    log,
		timers: make(map[int64]*time.Timer),
	}
}

// ScheduleAt выполняет tick в момент when или позже. Ошибки только
// логируются: у tick'а нет вызывающего.
func (s *Scheduler) ScheduleAt(entityType string, id uuid.UUID, when time.Time, tick Tick) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	n := s.seq
	s.mu.Unlock()

	d := time.Until(when)
	if d < 0 {
		d = 0
	}

	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, n)
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		if err := tick(context.Background()); err != nil {
			s.log.Error("scheduled tick failed",
				zap.String("entity_type", entityType),
				zap.String("entity_id", id.String()),
				zap.Error(err))
		}
	})

	s.mu.Lock()
	if s.closed {
		t.Stop()
	} else {
		s.timers[n] = t
	}
	s.mu.Unlock()
}

// Stop отменяет все невыстрелившие таймеры. Уже выполняющиеся tick'и
// не прерываются.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for n, t := range s.timers {
		t.Stop()
		delete(s.timers, n)
	}
	s.mu.Unlock()
}
