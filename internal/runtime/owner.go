package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const mailboxCapacity = 64

// Op выполняется с эксклюзивным владением состоянием сущности.
// dirty=true означает, что состояние изменилось и должно быть сохранено.
type Op func(ctx context.Context, st any) (res any, dirty bool, err error)

// Kind описывает тип сущности: фабрику состояния по умолчанию и кодек снапшота.
type Kind struct {
	Type   string
	New    func(id uuid.UUID) any
	Encode func(st any) ([]byte, error)
	Decode func(raw []byte) (any, error)
}

type entityKey struct {
	kind string
	id   uuid.UUID
}

type envelope struct {
	ctx   context.Context
	op    Op
	reply chan opResult
}

type opResult struct {
	res any
	err error
}

type mailbox struct {
	ch      chan envelope
	pending int // guarded by Owner.mu
}

// Owner гарантирует не более одной выполняющейся операции на сущность:
// на каждый активный id поднимается горутина с приватной очередью,
// состояние загружается из Store при первом обращении и выгружается
// после idleTTL без операций.
type Owner struct {
	store   Store
	log     *zap.Logger
	idleTTL time.Duration

	mu       sync.Mutex
	entities map[entityKey]*mailbox
}

func NewOwner(store Store, idleTTL time.Duration, log *zap.Logger) *Owner {
	return &Owner{
		store:    store,
		log:      log,
		idleTTL:  idleTTL,
		entities: make(map[entityKey]*mailbox),
	}
}

// Invoke ставит op в очередь сущности и ждёт результата. Результат
// возвращается только после того, как изменённое состояние удачно
// сохранено; ошибка сохранения отменяет эффект операции для
// последующих вызовов (состояние будет перечитано из Store).
func (o *Owner) Invoke(ctx context.Context, k Kind, id uuid.UUID, op Op) (any, error) {
	key := entityKey{kind: k.Type, id: id}

	o.mu.Lock()
	mb, ok := o.entities[key]
	if !ok {
		mb = &mailbox{ch: make(chan envelope, mailboxCapacity)}
		o.entities[key] = mb
		go o.runMailbox(k, id, key, mb)
	}
	mb.pending++
	o.mu.Unlock()

	env := envelope{ctx: ctx, op: op, reply: make(chan opResult, 1)}

	select {
	case mb.ch <- env:
	case <-ctx.Done():
		o.mu.Lock()
		mb.pending--
		o.mu.Unlock()
		return nil, ctx.Err()
	}

	select {
	case r := <-env.reply:
		return r.res, r.err
	case <-ctx.Done():
		// операция доработает в своей очереди, ответ отбрасывается
		return nil, ctx.Err()
	}
}

func (o *Owner) runMailbox(k Kind, id uuid.UUID, key entityKey, mb *mailbox) {
	var (
		st     any
		ver    int64
		loaded bool
	)

	idle := time.NewTimer(o.idleTTL)
	defer idle.Stop()

	for {
		select {
		case env := <-mb.ch:
			if !loaded {
				var err error
				st, ver, err = o.loadState(env.ctx, k, id)
				if err != nil {
					env.reply <- opResult{err: fmt.Errorf("load %s/%s: %w", k.Type, id, err)}
					o.done(mb)
					continue
				}
				loaded = true
			}

			res, dirty, err := env.op(env.ctx, st)
			if err == nil && dirty {
				if serr := o.saveState(env.ctx, k, id, st, ver); serr != nil {
					// сохранение не прошло — изменённая копия недействительна,
					// следующая операция перечитает состояние из Store
					loaded = false
					err = serr
				} else {
					ver++
				}
			}
			env.reply <- opResult{res: res, err: err}
			o.done(mb)

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(o.idleTTL)

		case <-idle.C:
			o.mu.Lock()
			if mb.pending == 0 {
				delete(o.entities, key)
				o.mu.Unlock()
				return
			}
			o.mu.Unlock()
			idle.Reset(o.idleTTL)
		}
	}
}

func (o *Owner) done(mb *mailbox) {
	o.mu.Lock()
	mb.pending--
	o.mu.Unlock()
}

func (o *Owner) loadState(ctx context.Context, k Kind, id uuid.UUID) (any, int64, error) {
	raw, ver, err := o.store.Load(ctx, k.Type, id)
	if err != nil {
		return nil, 0, err
	}
	if raw == nil {
		return k.New(id), 0, nil
	}
	st, err := k.Decode(raw)
	if err != nil {
		return nil, 0, err
	}
	return st, ver, nil
}

func (o *Owner) saveState(ctx context.Context, k Kind, id uuid.UUID, st any, ver int64) error {
	raw, err := k.Encode(st)
	if err != nil {
		return err
	}
	if err := o.store.Save(ctx, k.Type, id, raw, ver); err != nil {
		o.log.Error("snapshot save failed",
			zap.String("entity_type", k.Type),
			zap.String("entity_id", id.String()),
			zap.Int64("expected_version", ver),
			zap.Error(err))
		return err
	}
	return nil
}

// ActiveEntities — число сущностей, удерживаемых в памяти (для тестов и метрик).
func (o *Owner) ActiveEntities() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entities)
}
