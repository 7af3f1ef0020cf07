package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abcsxl/openfindbearings-sub001/internal/events"
	"github.com/abcsxl/openfindbearings-sub001/internal/runtime"
)

const EntityType = "inventory"

// Actor — фасад над Owner для складских позиций: каждая операция
// выполняется одним ходом с эксклюзивным владением State. Нарушения
// бизнес-правил возвращаются значениями (sentinel-ошибки), ходы на них
// не падают; через err идут только сбои загрузки/сохранения.
type Actor struct {
	owner           *runtime.Owner
	sched           *runtime.Scheduler
	bus             events.Publisher
	log             *zap.Logger
	now             func() time.Time
	defaultValidity time.Duration
	kind            runtime.Kind
}

func NewActor(owner *runtime.Owner, sched *runtime.Scheduler, bus events.Publisher, defaultValidity time.Duration, log *zap.Logger) *Actor {
	a := &Actor{
		owner:           owner,
		sched:           sched,
		bus:             bus,
		log:             log,
		now:             time.Now,
		defaultValidity: defaultValidity,
	}
	a.kind = runtime.Kind{
		Type: EntityType,
		New: func(id uuid.UUID) any {
			now := a.now()
			return &State{ID: id, CreatedAt: now, LastUpdated: now}
		},
		Encode: func(st any) ([]byte, error) { return json.Marshal(st) },
		Decode: func(raw []byte) (any, error) {
			var s State
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
			return &s, nil
		},
	}
	return a
}

// outcome — результат бизнес-операции внутри хода.
type outcome struct {
	val any
	err error
}

type turnOp func(st *State, now time.Time, evs *[]events.Event) (outcome, bool)

// invoke выполняет один ход: сперва ленивый reclaim просроченных
// резерваций, затем op. События публикуются после удачного сохранения.
func (a *Actor) invoke(ctx context.Context, id uuid.UUID, op turnOp) (any, error) {
	var evs []events.Event

	res, err := a.owner.Invoke(ctx, a.kind, id, func(_ context.Context, raw any) (any, bool, error) {
		st := raw.(*State)
		now := a.now()

		dirty := false
		for _, r := range st.reclaim(now) {
			dirty = true
			evs = append(evs, events.ReservationExpiredEvent{
				InventoryID: st.ID,
				OrderID:     r.OrderID,
				Quantity:    r.Quantity,
				ExpiredAt:   now,
			})
		}

		out, opDirty := op(st, now, &evs)
		return out, dirty || opDirty, nil
	})
	if err != nil {
		return nil, err
	}

	events.PublishAsync(a.log, a.bus, id.String(), evs...)
	out := res.(outcome)
	return out.val, out.err
}

// Register задаёт описательные поля позиции; после установки они
// неизменяемы. Повторный вызов с теми же значениями — no-op.
func (a *Actor) Register(ctx context.Context, id uuid.UUID, bearingModel, brand string) error {
	_, err := a.invoke(ctx, id, func(st *State, now time.Time, _ *[]events.Event) (outcome, bool) {
		if st.BearingModel == "" && st.Brand == "" {
			st.BearingModel = bearingModel
			st.Brand = brand
			st.LastUpdated = now
			return outcome{}, true
		}
		if st.BearingModel == bearingModel && st.Brand == brand {
			return outcome{}, false
		}
		return outcome{err: ErrAlreadyRegistered}, false
	})
	return err
}

func (a *Actor) GetState(ctx context.Context, id uuid.UUID) (*State, error) {
	res, err := a.invoke(ctx, id, func(st *State, _ time.Time, _ *[]events.Event) (outcome, bool) {
		return outcome{val: st.clone()}, false
	})
	if err != nil {
		return nil, err
	}
	return res.(*State), nil
}

func (a *Actor) GetReservations(ctx context.Context, id uuid.UUID) ([]Reservation, error) {
	res, err := a.invoke(ctx, id, func(st *State, _ time.Time, _ *[]events.Event) (outcome, bool) {
		list := make([]Reservation, len(st.Reservations))
		copy(list, st.Reservations)
		return outcome{val: list}, false
	})
	if err != nil {
		return nil, err
	}
	return res.([]Reservation), nil
}

// AddStock увеличивает физический запас. Возвращает новое доступное
// количество.
func (a *Actor) AddStock(ctx context.Context, id uuid.UUID, qty int32, reason string) (int32, error) {
	res, err := a.invoke(ctx, id, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if qty <= 0 {
			return outcome{val: int32(0), err: ErrInvalidQuantity}, false
		}
		st.TotalQuantity += qty
		st.AvailableQuantity += qty
		st.LastUpdated = now
		*evs = append(*evs, events.StockAddedEvent{
			InventoryID: st.ID,
			Quantity:    qty,
			Available:   st.AvailableQuantity,
			Reason:      reason,
			OccurredAt:  now,
		})
		return outcome{val: st.AvailableQuantity}, true
	})
	if err != nil {
		return 0, err
	}
	return res.(int32), err
}

// ReduceStock списывает незарезервированный запас. false — доступного
// количества не хватает, склад никогда не уходит в минус.
func (a *Actor) ReduceStock(ctx context.Context, id uuid.UUID, qty int32, reason string) (bool, error) {
	res, err := a.invoke(ctx, id, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if qty <= 0 {
			return outcome{val: false, err: ErrInvalidQuantity}, false
		}
		if st.AvailableQuantity < qty {
			return outcome{val: false}, false
		}
		st.TotalQuantity -= qty
		st.AvailableQuantity -= qty
		st.LastUpdated = now
		*evs = append(*evs, events.StockReducedEvent{
			InventoryID: st.ID,
			Quantity:    qty,
			Available:   st.AvailableQuantity,
			Reason:      reason,
			OccurredAt:  now,
		})
		return outcome{val: true}, true
	})
	if err != nil {
		return false, err
	}
	return res.(bool), err
}

// Reserve — ReserveStock со сроком жизни по умолчанию.
func (a *Actor) Reserve(ctx context.Context, id, orderID uuid.UUID, qty int32) (bool, error) {
	return a.ReserveStock(ctx, id, orderID, qty, a.defaultValidity)
}

// ReserveStock удерживает qty под заказ на validFor. Повторный вызов с
// тем же количеством для живой резервации — идемпотентный успех;
// с другим количеством — конфликт.
func (a *Actor) ReserveStock(ctx context.Context, id, orderID uuid.UUID, qty int32, validFor time.Duration) (bool, error) {
	var expiresAt time.Time

	res, err := a.invoke(ctx, id, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if qty <= 0 {
			return outcome{val: false, err: ErrInvalidQuantity}, false
		}
		if validFor <= 0 {
			return outcome{val: false, err: ErrInvalidValidity}, false
		}

		if r := st.findActive(orderID); r != nil {
			if r.Quantity == qty {
				return outcome{val: true}, false
			}
			return outcome{val: false, err: ErrReservationConflict}, false
		}
		if r := st.findLatest(orderID); r != nil && r.Status == ReservationConfirmed {
			return outcome{val: false, err: ErrReservationConflict}, false
		}
		if st.AvailableQuantity < qty {
			return outcome{val: false, err: ErrOutOfStock}, false
		}

		expiresAt = now.Add(validFor)
		st.Reservations = append(st.Reservations, Reservation{
			OrderID:    orderID,
			Quantity:   qty,
			ReservedAt: now,
			ExpiresAt:  expiresAt,
			Status:     ReservationActive,
		})
		st.AvailableQuantity -= qty
		st.LastUpdated = now
		*evs = append(*evs, events.ReservationCreatedEvent{
			InventoryID: st.ID,
			OrderID:     orderID,
			Quantity:    qty,
			ReservedAt:  now,
			ExpiresAt:   expiresAt,
		})
		return outcome{val: true}, true
	})
	if err != nil {
		return false, err
	}

	ok := res.(bool)
	if ok && a.sched != nil && !expiresAt.IsZero() {
		a.scheduleReclaim(id, expiresAt)
	}
	return ok, err
}

// ConfirmOrder окончательно списывает резерв: запас физически уходит
// со склада, запись остаётся для аудита. Допустим ровно один раз.
func (a *Actor) ConfirmOrder(ctx context.Context, id, orderID uuid.UUID) (bool, error) {
	res, err := a.invoke(ctx, id, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		r := st.findActive(orderID)
		if r == nil {
			return outcome{val: false, err: ErrReservationNotFound}, false
		}
		r.Status = ReservationConfirmed
		st.TotalQuantity -= r.Quantity
		st.LastUpdated = now
		*evs = append(*evs, events.ReservationConfirmedEvent{
			InventoryID: st.ID,
			OrderID:     orderID,
			Quantity:    r.Quantity,
			ConfirmedAt: now,
		})
		return outcome{val: true}, true
	})
	if err != nil {
		return false, err
	}
	return res.(bool), err
}

// CancelReservation снимает удержание и возвращает количество на склад.
// Повторная отмена (и отмена уже истёкшей резервации) — no-op с true.
func (a *Actor) CancelReservation(ctx context.Context, id, orderID uuid.UUID, reason string) (bool, error) {
	res, err := a.invoke(ctx, id, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if r := st.findActive(orderID); r != nil {
			r.Status = ReservationCancelled
			r.Reason = reason
			st.AvailableQuantity += r.Quantity
			st.LastUpdated = now
			*evs = append(*evs, events.ReservationCancelledEvent{
				InventoryID: st.ID,
				OrderID:     orderID,
				Quantity:    r.Quantity,
				Reason:      reason,
				CancelledAt: now,
			})
			return outcome{val: true}, true
		}
		r := st.findLatest(orderID)
		if r == nil {
			return outcome{val: false, err: ErrReservationNotFound}, false
		}
		if r.Status == ReservationConfirmed {
			return outcome{val: false, err: ErrReservationConfirmed}, false
		}
		// уже CANCELLED или EXPIRED — количество возвращено ровно один раз
		return outcome{val: true}, false
	})
	if err != nil {
		return false, err
	}
	return res.(bool), err
}

// scheduleReclaim подстраховывает ленивый reclaim: tick читает состояние,
// что само по себе запускает проход по просроченным резервациям.
func (a *Actor) scheduleReclaim(id uuid.UUID, at time.Time) {
	a.sched.ScheduleAt(EntityType, id, at, func(ctx context.Context) error {
		_, err := a.GetState(ctx, id)
		return err
	})
}
