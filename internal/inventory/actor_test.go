package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abcsxl/openfindbearings-sub001/internal/runtime"
)

func newTestActor(t *testing.T) (*Actor, *fakeClock) {
	t.Helper()
	owner := runtime.NewOwner(runtime.NewMemStore(), time.Minute, zap.NewNop())
	a := NewActor(owner, nil, nil, 15*time.Minute, zap.NewNop())
	clk := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	a.now = clk.Now
	return a, clk
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func checkInvariant(t *testing.T, st *State) {
	t.Helper()
	var active int32
	for _, r := range st.Reservations {
		if r.Status == ReservationActive {
			active += r.Quantity
		}
	}
	if st.AvailableQuantity+active != st.TotalQuantity {
		t.Fatalf("invariant broken: available=%d active=%d total=%d",
			st.AvailableQuantity, active, st.TotalQuantity)
	}
	if st.AvailableQuantity < 0 || st.TotalQuantity < 0 {
		t.Fatalf("negative stock: %+v", st)
	}
}

func TestReserveConfirmFlow(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id, orderID := uuid.New(), uuid.New()

	if _, err := a.AddStock(ctx, id, 100, "initial"); err != nil {
		t.Fatalf("AddStock: %v", err)
	}

	ok, err := a.ReserveStock(ctx, id, orderID, 30, 10*time.Minute)
	if err != nil || !ok {
		t.Fatalf("ReserveStock: ok=%v err=%v", ok, err)
	}

	st, err := a.GetState(ctx, id)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if st.AvailableQuantity != 70 || st.TotalQuantity != 100 || st.ReservedQuantity() != 30 {
		t.Fatalf("after reserve: %+v", st)
	}
	checkInvariant(t, st)

	ok, err = a.ConfirmOrder(ctx, id, orderID)
	if err != nil || !ok {
		t.Fatalf("ConfirmOrder: ok=%v err=%v", ok, err)
	}

	st, _ = a.GetState(ctx, id)
	if st.TotalQuantity != 70 || st.AvailableQuantity != 70 || st.ReservedQuantity() != 0 {
		t.Fatalf("after confirm: %+v", st)
	}
	checkInvariant(t, st)
}

func TestReserveInsufficientStock(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id := uuid.New()

	if _, err := a.AddStock(ctx, id, 10, ""); err != nil {
		t.Fatalf("AddStock: %v", err)
	}

	ok, err := a.ReserveStock(ctx, id, uuid.New(), 11, time.Minute)
	if ok || !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("want ErrOutOfStock, got ok=%v err=%v", ok, err)
	}

	st, _ := a.GetState(ctx, id)
	if st.AvailableQuantity != 10 {
		t.Fatalf("available changed on failed reserve: %+v", st)
	}
	checkInvariant(t, st)
}

func TestReserveIdempotentSameQuantity(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id, orderID := uuid.New(), uuid.New()

	_, _ = a.AddStock(ctx, id, 100, "")

	if ok, err := a.ReserveStock(ctx, id, orderID, 30, time.Minute); !ok || err != nil {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	// повтор с тем же количеством — идемпотентный успех без повторного удержания
	if ok, err := a.ReserveStock(ctx, id, orderID, 30, time.Minute); !ok || err != nil {
		t.Fatalf("duplicate reserve: ok=%v err=%v", ok, err)
	}

	st, _ := a.GetState(ctx, id)
	if st.AvailableQuantity != 70 {
		t.Fatalf("double hold: %+v", st)
	}

	// другое количество — конфликт
	if ok, err := a.ReserveStock(ctx, id, orderID, 40, time.Minute); ok || !errors.Is(err, ErrReservationConflict) {
		t.Fatalf("want ErrReservationConflict, got ok=%v err=%v", ok, err)
	}
}

func TestExpiryReclaim(t *testing.T) {
	a, clk := newTestActor(t)
	ctx := context.Background()
	id := uuid.New()

	_, _ = a.AddStock(ctx, id, 100, "")

	if ok, err := a.ReserveStock(ctx, id, uuid.New(), 50, time.Millisecond); !ok || err != nil {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}

	st, _ := a.GetState(ctx, id)
	if st.AvailableQuantity != 50 {
		t.Fatalf("before expiry: %+v", st)
	}

	clk.Advance(2 * time.Millisecond)

	st, err := a.GetState(ctx, id)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if st.AvailableQuantity != 100 {
		t.Fatalf("expired hold not reclaimed: %+v", st)
	}
	if len(st.Reservations) != 1 || st.Reservations[0].Status != ReservationExpired {
		t.Fatalf("reservation not expired: %+v", st.Reservations)
	}
	checkInvariant(t, st)
}

func TestReserveDefaultValidity(t *testing.T) {
	a, clk := newTestActor(t)
	ctx := context.Background()
	id := uuid.New()

	_, _ = a.AddStock(ctx, id, 100, "")

	if ok, err := a.Reserve(ctx, id, uuid.New(), 30); !ok || err != nil {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}

	// внутри срока по умолчанию резервация жива
	clk.Advance(14 * time.Minute)
	st, _ := a.GetState(ctx, id)
	if st.AvailableQuantity != 70 {
		t.Fatalf("hold reclaimed early: %+v", st)
	}

	clk.Advance(2 * time.Minute)
	st, _ = a.GetState(ctx, id)
	if st.AvailableQuantity != 100 {
		t.Fatalf("hold not reclaimed after default validity: %+v", st)
	}
	checkInvariant(t, st)
}

func TestCancelIdempotent(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id, orderID := uuid.New(), uuid.New()

	_, _ = a.AddStock(ctx, id, 100, "")
	_, _ = a.ReserveStock(ctx, id, orderID, 40, time.Minute)

	if ok, err := a.CancelReservation(ctx, id, orderID, "changed mind"); !ok || err != nil {
		t.Fatalf("first cancel: ok=%v err=%v", ok, err)
	}
	if ok, err := a.CancelReservation(ctx, id, orderID, "again"); !ok || err != nil {
		t.Fatalf("second cancel: ok=%v err=%v", ok, err)
	}

	st, _ := a.GetState(ctx, id)
	if st.AvailableQuantity != 100 {
		t.Fatalf("capacity restored more than once: %+v", st)
	}
	checkInvariant(t, st)
}

func TestCancelConfirmedReservation(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id, orderID := uuid.New(), uuid.New()

	_, _ = a.AddStock(ctx, id, 100, "")
	_, _ = a.ReserveStock(ctx, id, orderID, 40, time.Minute)
	_, _ = a.ConfirmOrder(ctx, id, orderID)

	ok, err := a.CancelReservation(ctx, id, orderID, "")
	if ok || !errors.Is(err, ErrReservationConfirmed) {
		t.Fatalf("want ErrReservationConfirmed, got ok=%v err=%v", ok, err)
	}
}

func TestConfirmExactlyOnce(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id, orderID := uuid.New(), uuid.New()

	_, _ = a.AddStock(ctx, id, 100, "")
	_, _ = a.ReserveStock(ctx, id, orderID, 30, time.Minute)

	if ok, err := a.ConfirmOrder(ctx, id, orderID); !ok || err != nil {
		t.Fatalf("first confirm: ok=%v err=%v", ok, err)
	}
	if ok, err := a.ConfirmOrder(ctx, id, orderID); ok || !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("want ErrReservationNotFound, got ok=%v err=%v", ok, err)
	}
}

func TestAddStockValidation(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id := uuid.New()

	if _, err := a.AddStock(ctx, id, 0, ""); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("want ErrInvalidQuantity, got %v", err)
	}
	if _, err := a.AddStock(ctx, id, -5, ""); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("want ErrInvalidQuantity, got %v", err)
	}
}

func TestReduceStockNeverNegative(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id := uuid.New()

	_, _ = a.AddStock(ctx, id, 20, "")

	if ok, err := a.ReduceStock(ctx, id, 25, "shrink"); ok || err != nil {
		t.Fatalf("want ok=false, got ok=%v err=%v", ok, err)
	}
	if ok, err := a.ReduceStock(ctx, id, 20, "shrink"); !ok || err != nil {
		t.Fatalf("full reduce: ok=%v err=%v", ok, err)
	}

	st, _ := a.GetState(ctx, id)
	if st.TotalQuantity != 0 || st.AvailableQuantity != 0 {
		t.Fatalf("after reduce: %+v", st)
	}
}

func TestReserveValidation(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id := uuid.New()

	_, _ = a.AddStock(ctx, id, 10, "")

	if ok, err := a.ReserveStock(ctx, id, uuid.New(), 0, time.Minute); ok || !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("want ErrInvalidQuantity, got ok=%v err=%v", ok, err)
	}
	if ok, err := a.ReserveStock(ctx, id, uuid.New(), 5, 0); ok || !errors.Is(err, ErrInvalidValidity) {
		t.Fatalf("want ErrInvalidValidity, got ok=%v err=%v", ok, err)
	}
}

func TestRegister(t *testing.T) {
	a, _ := newTestActor(t)
	ctx := context.Background()
	id := uuid.New()

	if err := a.Register(ctx, id, "6205-2RS", "SKF"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := a.Register(ctx, id, "6205-2RS", "SKF"); err != nil {
		t.Fatalf("idempotent Register: %v", err)
	}
	if err := a.Register(ctx, id, "6206", "FAG"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("want ErrAlreadyRegistered, got %v", err)
	}

	st, _ := a.GetState(ctx, id)
	if st.BearingModel != "6205-2RS" || st.Brand != "SKF" {
		t.Fatalf("descriptive fields changed: %+v", st)
	}
}

func TestReclaimTickRestoresWithoutTraffic(t *testing.T) {
	store := runtime.NewMemStore()
	owner := runtime.NewOwner(store, time.Minute, zap.NewNop())
	sched := runtime.NewScheduler(zap.NewNop())
	defer sched.Stop()

	a := NewActor(owner, sched, nil, 15*time.Minute, zap.NewNop())
	ctx := context.Background()
	id := uuid.New()

	_, _ = a.AddStock(ctx, id, 10, "")
	if ok, err := a.ReserveStock(ctx, id, uuid.New(), 4, 30*time.Millisecond); !ok || err != nil {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}
	ver := store.Version(EntityType, id)

	// без единого внешнего вызова tick планировщика должен сохранить
	// reclaim — версия снапшота вырастет сама
	deadline := time.Now().Add(2 * time.Second)
	for store.Version(EntityType, id) == ver {
		if time.Now().After(deadline) {
			t.Fatal("tick never reclaimed the hold")
		}
		time.Sleep(10 * time.Millisecond)
	}

	list, err := a.GetReservations(ctx, id)
	if err != nil {
		t.Fatalf("GetReservations: %v", err)
	}
	if len(list) != 1 || list[0].Status != ReservationExpired {
		t.Fatalf("reservation not expired by tick: %+v", list)
	}
}
