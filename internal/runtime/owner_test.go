package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type counter struct {
	ID uuid.UUID `json:"id"`
	N  int       `json:"n"`
}

func counterKind() Kind {
	return Kind{
		Type: "counter",
		New:  func(id uuid.UUID) any { return &counter{ID: id} },
		Encode: func(st any) ([]byte, error) {
			return json.Marshal(st)
		},
		Decode: func(raw []byte) (any, error) {
			var c counter
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, err
			}
			return &c, nil
		},
	}
}

func incr(ctx context.Context, st any) (any, bool, error) {
	c := st.(*counter)
	n := c.N
	time.Sleep(time.Millisecond) // провоцируем lost update при нарушении сериализации
	c.N = n + 1
	return c.N, true, nil
}

func TestOwner_SerializesPerEntity(t *testing.T) {
	store := NewMemStore()
	owner := NewOwner(store, time.Minute, zap.NewNop())
	k := counterKind()
	id := uuid.New()

	const calls = 50
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := owner.Invoke(context.Background(), k, id, incr); err != nil {
				t.Errorf("Invoke: %v", err)
			}
		}()
	}
	wg.Wait()

	res, err := owner.Invoke(context.Background(), k, id, func(_ context.Context, st any) (any, bool, error) {
		return st.(*counter).N, false, nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.(int) != calls {
		t.Fatalf("lost updates: got %d, want %d", res.(int), calls)
	}
	if v := store.Version("counter", id); v != calls {
		t.Fatalf("store version: got %d, want %d", v, calls)
	}
}

func TestOwner_ParallelAcrossEntities(t *testing.T) {
	store := NewMemStore()
	owner := NewOwner(store, time.Minute, zap.NewNop())
	k := counterKind()
	idA, idB := uuid.New(), uuid.New()

	block := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_, _ = owner.Invoke(context.Background(), k, idA, func(_ context.Context, st any) (any, bool, error) {
			<-block
			return nil, false, nil
		})
		close(done)
	}()

	// пока A занята, B должна пройти
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := owner.Invoke(ctx, k, idB, incr); err != nil {
		t.Fatalf("entity B blocked by entity A: %v", err)
	}

	close(block)
	<-done
}

func TestOwner_IdleEvictionPreservesState(t *testing.T) {
	store := NewMemStore()
	owner := NewOwner(store, 20*time.Millisecond, zap.NewNop())
	k := counterKind()
	id := uuid.New()

	if _, err := owner.Invoke(context.Background(), k, id, incr); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for owner.ActiveEntities() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("entity was not evicted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	res, err := owner.Invoke(context.Background(), k, id, func(_ context.Context, st any) (any, bool, error) {
		return st.(*counter).N, false, nil
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if res.(int) != 1 {
		t.Fatalf("state lost on eviction: got %d, want 1", res.(int))
	}
}

type conflictOnce struct {
	*MemStore
	mu     sync.Mutex
	failed bool
}

func (s *conflictOnce) Save(ctx context.Context, entityType string, id uuid.UUID, state []byte, expectedVersion int64) error {
	s.mu.Lock()
	fail := !s.failed
	s.failed = true
	s.mu.Unlock()
	if fail {
		return ErrVersionConflict
	}
	return s.MemStore.Save(ctx, entityType, id, state, expectedVersion)
}

func TestOwner_FailedSaveDiscardsMutation(t *testing.T) {
	store := &conflictOnce{MemStore: NewMemStore()}
	owner := NewOwner(store, time.Minute, zap.NewNop())
	k := counterKind()
	id := uuid.New()

	if _, err := owner.Invoke(context.Background(), k, id, incr); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("want ErrVersionConflict, got %v", err)
	}

	// неудачная запись не закоммитила инкремент
	res, err := owner.Invoke(context.Background(), k, id, incr)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.(int) != 1 {
		t.Fatalf("mutation leaked past failed save: got %d, want 1", res.(int))
	}
}

func TestScheduler_DeliversTickAtOrAfter(t *testing.T) {
	sched := NewScheduler(zap.NewNop())
	defer sched.Stop()

	start := time.Now()
	when := start.Add(30 * time.Millisecond)
	fired := make(chan time.Time, 1)

	sched.ScheduleAt("counter", uuid.New(), when, func(ctx context.Context) error {
		fired <- time.Now()
		return nil
	})

	select {
	case at := <-fired:
		if at.Before(when) {
			t.Fatalf("tick fired early: %v < %v", at, when)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tick never fired")
	}
}

func TestScheduler_StopCancelsPending(t *testing.T) {
	sched := NewScheduler(zap.NewNop())

	fired := make(chan struct{}, 1)
	sched.ScheduleAt("counter", uuid.New(), time.Now().Add(50*time.Millisecond), func(ctx context.Context) error {
		fired <- struct{}{}
		return nil
	})
	sched.Stop()

	select {
	case <-fired:
		t.Fatal("tick fired after Stop")
	case <-time.After(150 * time.Millisecond):
	}
}
