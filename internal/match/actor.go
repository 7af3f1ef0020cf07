package match

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abcsxl/openfindbearings-sub001/internal/events"
	"github.com/abcsxl/openfindbearings-sub001/internal/runtime"
)

const EntityType = "inquiry-match"

// Actor — фасад над Owner для жизненного цикла подбора. Каждый ход
// начинается с ленивой проверки таймаута: просроченный MATCHING
// переводится в TIMEOUT до выполнения запрошенной операции.
type Actor struct {
	owner          *runtime.Owner
	sched          *runtime.Scheduler
	bus            events.Publisher
	log            *zap.Logger
	now            func() time.Time
	defaultTimeout time.Duration
	weights        Weights
	kind           runtime.Kind
}

func NewActor(owner *runtime.Owner, sched *runtime.Scheduler, bus events.Publisher, defaultTimeout time.Duration, weights Weights, log *zap.Logger) *Actor {
	a := &Actor{
		owner:          owner,
		sched:          sched,
		bus:            bus,
		log:            log,
		now:            time.Now,
		defaultTimeout: defaultTimeout,
		weights:        weights,
	}
	a.kind = runtime.Kind{
		Type: EntityType,
		New: func(id uuid.UUID) any {
			return &State{InquiryID: id, Status: StatusPending}
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

type outcome struct {
	val any
	err error
}

type turnOp func(st *State, now time.Time, evs *[]events.Event) (outcome, bool)

func (a *Actor) invoke(ctx context.Context, id uuid.UUID, op turnOp) (any, error) {
	var evs []events.Event

	res, err := a.owner.Invoke(ctx, a.kind, id, func(_ context.Context, raw any) (any, bool, error) {
		st := raw.(*State)
		now := a.now()

		dirty := false
		if st.Status == StatusMatching && st.ExpiresAt != nil && now.After(*st.ExpiresAt) {
			st.Status = StatusTimeout
			t := now
			st.CompletedAt = &t
			dirty = true
			evs = append(evs, events.MatchTimedOutEvent{InquiryID: st.InquiryID, TimedOutAt: now})
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

// StartMatching переводит свежий актор из PENDING в MATCHING и ставит
// дедлайн now+defaultTimeout (меняется через SetTimeout).
func (a *Actor) StartMatching(ctx context.Context, inquiryID, userID uuid.UUID, inq Inquiry) error {
	var expiresAt time.Time

	_, err := a.invoke(ctx, inquiryID, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if st.Status == StatusMatching {
			return outcome{err: ErrAlreadyStarted}, false
		}
		if st.Status != StatusPending {
			return outcome{err: ErrInvalidState}, false
		}

		expiresAt = now.Add(a.defaultTimeout)
		st.UserID = userID
		st.Inquiry = inq
		st.Status = StatusMatching
		st.StartedAt = now
		st.ExpiresAt = &expiresAt
		st.CompletedAt = nil
		st.Candidates = nil
		st.SelectedSupplierID = nil
		st.Progress = Progress{Stage: StageInitializing}
		st.Notes = ""

		*evs = append(*evs, events.MatchStartedEvent{
			InquiryID:    st.InquiryID,
			UserID:       userID,
			BearingModel: inq.BearingModel,
			Brand:        inq.Brand,
			Quantity:     inq.Quantity,
			StartedAt:    now,
			ExpiresAt:    expiresAt,
		})
		return outcome{}, true
	})
	if err != nil {
		return err
	}

	if a.sched != nil && !expiresAt.IsZero() {
		a.scheduleTimeout(inquiryID, expiresAt)
	}
	return nil
}

// AddCandidate добавляет или заменяет кандидата поставщика. false —
// существующий кандидат того же поставщика ранжируется не хуже.
func (a *Actor) AddCandidate(ctx context.Context, inquiryID uuid.UUID, c Candidate) (bool, error) {
	res, err := a.invoke(ctx, inquiryID, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if st.Status != StatusMatching {
			return outcome{val: false, err: ErrInvalidState}, false
		}
		if !st.upsertCandidate(c) {
			return outcome{val: false}, false
		}
		st.Progress.FoundCount = int32(len(st.Candidates))
		*evs = append(*evs, events.MatchCandidateAddedEvent{
			InquiryID:    st.InquiryID,
			SupplierID:   c.SupplierID,
			MatchScore:   c.MatchScore,
			DiscoveredAt: c.DiscoveredAt,
		})
		return outcome{val: true}, true
	})
	if err != nil {
		return false, err
	}
	return res.(bool), err
}

// AddOffer скорит сырое предложение поставщика настроенными весами и
// добавляет его кандидатом. Запрос берётся из состояния актора.
func (a *Actor) AddOffer(ctx context.Context, inquiryID uuid.UUID, o SupplierOffer) (bool, error) {
	res, err := a.invoke(ctx, inquiryID, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if st.Status != StatusMatching {
			return outcome{val: false, err: ErrInvalidState}, false
		}
		c := a.weights.NewCandidate(st.Inquiry, o, now)
		if !st.upsertCandidate(c) {
			return outcome{val: false}, false
		}
		st.Progress.FoundCount = int32(len(st.Candidates))
		*evs = append(*evs, events.MatchCandidateAddedEvent{
			InquiryID:    st.InquiryID,
			SupplierID:   c.SupplierID,
			MatchScore:   c.MatchScore,
			DiscoveredAt: c.DiscoveredAt,
		})
		return outcome{val: true}, true
	})
	if err != nil {
		return false, err
	}
	return res.(bool), err
}

// AddCandidates — пакетный вариант; возвращает число принятых.
func (a *Actor) AddCandidates(ctx context.Context, inquiryID uuid.UUID, list []Candidate) (int, error) {
	res, err := a.invoke(ctx, inquiryID, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if st.Status != StatusMatching {
			return outcome{val: 0, err: ErrInvalidState}, false
		}
		added := 0
		for _, c := range list {
			if st.upsertCandidate(c) {
				added++
				*evs = append(*evs, events.MatchCandidateAddedEvent{
					InquiryID:    st.InquiryID,
					SupplierID:   c.SupplierID,
					MatchScore:   c.MatchScore,
					DiscoveredAt: c.DiscoveredAt,
				})
			}
		}
		st.Progress.FoundCount = int32(len(st.Candidates))
		return outcome{val: added}, added > 0
	})
	if err != nil {
		return 0, err
	}
	return res.(int), err
}

func (a *Actor) GetState(ctx context.Context, inquiryID uuid.UUID) (*State, error) {
	res, err := a.invoke(ctx, inquiryID, func(st *State, _ time.Time, _ *[]events.Event) (outcome, bool) {
		return outcome{val: st.clone()}, false
	})
	if err != nil {
		return nil, err
	}
	return res.(*State), nil
}

func (a *Actor) GetCandidates(ctx context.Context, inquiryID uuid.UUID) ([]Candidate, error) {
	res, err := a.invoke(ctx, inquiryID, func(st *State, _ time.Time, _ *[]events.Event) (outcome, bool) {
		list := make([]Candidate, len(st.Candidates))
		copy(list, st.Candidates)
		return outcome{val: list}, false
	})
	if err != nil {
		return nil, err
	}
	return res.([]Candidate), nil
}

// SelectBestMatch — чистый запрос: состояние не меняет, победитель
// воспроизводим для фиксированного пула.
func (a *Actor) SelectBestMatch(ctx context.Context, inquiryID uuid.UUID) (*Candidate, error) {
	res, err := a.invoke(ctx, inquiryID, func(st *State, _ time.Time, _ *[]events.Event) (outcome, bool) {
		best, ok := SelectBest(st.Candidates)
		if !ok {
			return outcome{err: ErrNoCandidates}, false
		}
		return outcome{val: &best}, false
	})
	if err != nil {
		return nil, err
	}
	return res.(*Candidate), nil
}

// CompleteMatch фиксирует выбор поставщика из пула кандидатов.
func (a *Actor) CompleteMatch(ctx context.Context, inquiryID, supplierID uuid.UUID, reason string) (bool, error) {
	res, err := a.invoke(ctx, inquiryID, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if st.Status != StatusMatching {
			return outcome{val: false, err: ErrInvalidState}, false
		}
		if st.findCandidate(supplierID) == nil {
			return outcome{val: false, err: ErrCandidateNotFound}, false
		}

		sid := supplierID
		t := now
		st.SelectedSupplierID = &sid
		st.Status = StatusCompleted
		st.CompletedAt = &t
		st.Notes = reason
		st.Progress.Stage = StageCompleted
		st.Progress.Percentage = 100

		*evs = append(*evs, events.MatchCompletedEvent{
			InquiryID:   st.InquiryID,
			SupplierID:  supplierID,
			Reason:      reason,
			CompletedAt: now,
		})
		return outcome{val: true}, true
	})
	if err != nil {
		return false, err
	}
	return res.(bool), err
}

// CancelMatch — из любого нетерминального состояния; повторная отмена
// идемпотентна.
func (a *Actor) CancelMatch(ctx context.Context, inquiryID uuid.UUID, reason string) (bool, error) {
	res, err := a.invoke(ctx, inquiryID, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if st.Status == StatusCancelled {
			return outcome{val: true}, false
		}
		if st.Status.Terminal() {
			return outcome{val: false, err: ErrInvalidState}, false
		}

		t := now
		st.Status = StatusCancelled
		st.CompletedAt = &t
		st.Notes = reason
		*evs = append(*evs, events.MatchCancelledEvent{
			InquiryID:   st.InquiryID,
			Reason:      reason,
			CancelledAt: now,
		})
		return outcome{val: true}, true
	})
	if err != nil {
		return false, err
	}
	return res.(bool), err
}

// FailMatch — невосстановимая внутренняя ошибка, о которой сообщает
// вызывающая сторона.
func (a *Actor) FailMatch(ctx context.Context, inquiryID uuid.UUID, reason string) (bool, error) {
	res, err := a.invoke(ctx, inquiryID, func(st *State, now time.Time, evs *[]events.Event) (outcome, bool) {
		if st.Status != StatusMatching {
			return outcome{val: false, err: ErrInvalidState}, false
		}

		t := now
		st.Status = StatusFailed
		st.CompletedAt = &t
		st.Notes = reason
		*evs = append(*evs, events.MatchFailedEvent{
			InquiryID: st.InquiryID,
			Reason:    reason,
			FailedAt:  now,
		})
		return outcome{val: true}, true
	})
	if err != nil {
		return false, err
	}
	return res.(bool), err
}

// UpdateProgress перезаписывает телеметрию прогресса. Монотонность
// счётчиков — ответственность вызывающего: это не инвариант корректности.
func (a *Actor) UpdateProgress(ctx context.Context, inquiryID uuid.UUID, p Progress) error {
	_, err := a.invoke(ctx, inquiryID, func(st *State, now time.Time, _ *[]events.Event) (outcome, bool) {
		if st.Status.Terminal() {
			return outcome{err: ErrInvalidState}, false
		}
		st.Progress = p
		return outcome{}, true
	})
	return err
}

// SetTimeout пересчитывает дедлайн от StartedAt.
func (a *Actor) SetTimeout(ctx context.Context, inquiryID uuid.UUID, timeout time.Duration) error {
	var expiresAt time.Time

	_, err := a.invoke(ctx, inquiryID, func(st *State, now time.Time, _ *[]events.Event) (outcome, bool) {
		if timeout <= 0 {
			return outcome{err: ErrInvalidTimeout}, false
		}
		if st.Status != StatusMatching {
			return outcome{err: ErrInvalidState}, false
		}
		expiresAt = st.StartedAt.Add(timeout)
		st.ExpiresAt = &expiresAt
		return outcome{}, true
	})
	if err != nil {
		return err
	}

	if a.sched != nil && !expiresAt.IsZero() {
		a.scheduleTimeout(inquiryID, expiresAt)
	}
	return nil
}

// scheduleTimeout подстраховывает ленивую проверку дедлайна: tick
// читает состояние, чего достаточно для перехода MATCHING→TIMEOUT.
func (a *Actor) scheduleTimeout(inquiryID uuid.UUID, at time.Time) {
	a.sched.ScheduleAt(EntityType, inquiryID, at, func(ctx context.Context) error {
		_, err := a.GetState(ctx, inquiryID)
		return err
	})
}
