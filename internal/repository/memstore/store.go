package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository"
	"github.com/google/uuid"
)

// ErrDeadlock возвращается транзакции, ожидание которой замкнуло бы цикл блокировок
var ErrDeadlock = errors.New("memstore: deadlock detected")

// Store - реализация repository.Store в памяти для тестов.
// Повторяет поведение Postgres в READ COMMITTED: незакоммиченные изменения видны только
// своей транзакции, запись берёт блокировку строки до конца транзакции, а условие
// ожидавшей записи проверяется заново по закоммиченной строке. Чтение не блокируется.
type Store struct {
	mu    sync.Mutex
	st    *State
	locks map[rowKey]*rowLock
}

// State - закоммиченное содержимое таблиц
type State struct {
	nextID    int64
	Templates map[int64]model.ScheduleTemplate
	Slots     map[int64]model.ScheduleSlot
	Packages  map[int64]model.UserPackage
	Bookings  map[int64]model.Booking
	Users     map[int64]model.User
}

var _ repository.Store = (*Store)(nil)

// New создаёт пустое хранилище
func New() *Store {
	return &Store{
		st: &State{
			Templates: map[int64]model.ScheduleTemplate{},
			Slots:     map[int64]model.ScheduleSlot{},
			Packages:  map[int64]model.UserPackage{},
			Bookings:  map[int64]model.Booking{},
			Users:     map[int64]model.User{},
		},
		locks: map[rowKey]*rowLock{},
	}
}

func (s *State) clone() *State {
	return &State{
		nextID:    s.nextID,
		Templates: merged(s.Templates, nil),
		Slots:     merged(s.Slots, nil),
		Packages:  merged(s.Packages, nil),
		Bookings:  merged(s.Bookings, nil),
		Users:     merged(s.Users, nil),
	}
}

// id - последовательность как в Postgres: при откате номера не возвращаются
func (s *State) id() int64 {
	s.nextID++
	return s.nextID
}

type rowKey string

func key(table string, id any) rowKey { return rowKey(fmt.Sprintf("%s:%v", table, id)) }

type rowLock struct {
	owner    *txn
	released chan struct{}
}

// overlay - незакоммиченные изменения транзакции; nil означает удалённую строку
type overlay struct {
	templates map[int64]*model.ScheduleTemplate
	slots     map[int64]*model.ScheduleSlot
	packages  map[int64]*model.UserPackage
	bookings  map[int64]*model.Booking
	users     map[int64]*model.User
}

func (o *overlay) apply(st *State) {
	commit(st.Templates, o.templates)
	commit(st.Slots, o.slots)
	commit(st.Packages, o.packages)
	commit(st.Bookings, o.bookings)
	commit(st.Users, o.users)
}

// row читает строку так, как её видит транзакция
func row[V any](committed map[int64]V, own map[int64]*V, id int64) (V, bool) {
	if p, ok := own[id]; ok {
		if p == nil {
			var zero V
			return zero, false
		}
		return *p, true
	}
	v, ok := committed[id]
	return v, ok
}

// merged возвращает таблицу целиком: закоммиченные строки поверх них свои изменения
func merged[V any](committed map[int64]V, own map[int64]*V) map[int64]V {
	out := make(map[int64]V, len(committed)+len(own))
	for k, v := range committed {
		out[k] = v
	}
	for k, p := range own {
		if p == nil {
			delete(out, k)
		} else {
			out[k] = *p
		}
	}
	return out
}

func commit[V any](committed map[int64]V, own map[int64]*V) {
	for k, p := range own {
		if p == nil {
			delete(committed, k)
		} else {
			committed[k] = *p
		}
	}
}

func put[V any](own *map[int64]*V, id int64, v V) {
	if *own == nil {
		*own = map[int64]*V{}
	}
	(*own)[id] = &v
}

func drop[V any](own *map[int64]*V, id int64) {
	if *own == nil {
		*own = map[int64]*V{}
	}
	(*own)[id] = nil
}

type txn struct {
	db      *Store
	own     overlay
	held    []rowKey
	waiting rowKey // под db.mu
}

func (m *Store) begin() *txn { return &txn{db: m} }

// lock берёт блокировку строки до конца транзакции, ожидая её освобождения другими
func (t *txn) lock(ctx context.Context, k rowKey) error {
	m := t.db
	for {
		m.mu.Lock()
		l, held := m.locks[k]
		if !held || l.owner == t {
			if !held {
				m.locks[k] = &rowLock{owner: t, released: make(chan struct{})}
				t.held = append(t.held, k)
			}
			t.waiting = ""
			m.mu.Unlock()
			return nil
		}
		if m.waitsOn(l.owner, t) {
			t.waiting = ""
			m.mu.Unlock()
			return ErrDeadlock
		}
		t.waiting = k
		released := l.released
		m.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			m.mu.Lock()
			t.waiting = ""
			m.mu.Unlock()
			return ctx.Err()
		}
	}
}

// waitsOn проверяет, ждёт ли from (через цепочку ожиданий) блокировку транзакции to
func (m *Store) waitsOn(from, to *txn) bool {
	for steps := 0; from != nil && steps <= len(m.locks); steps++ {
		if from == to {
			return true
		}
		if from.waiting == "" {
			return false
		}
		l, ok := m.locks[from.waiting]
		if !ok {
			return false
		}
		from = l.owner
	}
	return false
}

// view выполняет fn над закоммиченным состоянием и своими изменениями
func (t *txn) view(fn func(st *State, own *overlay)) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	fn(t.db.st, &t.own)
}

func (t *txn) end(ok bool) {
	m := t.db
	m.mu.Lock()
	defer m.mu.Unlock()

	if ok {
		t.own.apply(m.st)
	}
	for _, k := range t.held {
		close(m.locks[k].released)
		delete(m.locks, k)
	}
	t.held = nil
	t.own = overlay{}
}

func (m *Store) Templates() repository.TemplateStore { return memTemplates{memScope{db: m}} }
func (m *Store) Slots() repository.SlotStore         { return memSlots{memScope{db: m}} }
func (m *Store) Packages() repository.PackageStore   { return memPackages{memScope{db: m}} }
func (m *Store) Bookings() repository.BookingStore   { return memBookings{memScope{db: m}} }
func (m *Store) Users() repository.UserStore         { return memUsers{memScope{db: m}} }

func (m *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Scope) error) error {
	t := m.begin()
	if err := fn(ctx, memScope{db: m, tx: t}); err != nil {
		t.end(false)
		return err
	}
	t.end(true)
	return nil
}

func (m *Store) Ping(ctx context.Context) error { return nil }

// Snapshot возвращает копию закоммиченного состояния для проверок
func (m *Store) Snapshot() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.clone()
}

// Mutate меняет закоммиченное состояние в обход репозиториев, например чтобы удалить строку "из-под" сервиса
func (m *Store) Mutate(fn func(st *State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.st)
}

type memScope struct {
	db *Store
	tx *txn // nil - каждый запрос в своей транзакции
}

func (s memScope) Templates() repository.TemplateStore { return memTemplates{s} }
func (s memScope) Slots() repository.SlotStore         { return memSlots{s} }
func (s memScope) Packages() repository.PackageStore   { return memPackages{s} }
func (s memScope) Bookings() repository.BookingStore   { return memBookings{s} }
func (s memScope) Users() repository.UserStore         { return memUsers{s} }

func (s memScope) run(ctx context.Context, fn func(t *txn) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	t := s.db.begin()
	if err := fn(t); err != nil {
		t.end(false)
		return err
	}
	t.end(true)
	return nil
}

// query - чтение без блокировок
func (s memScope) query(ctx context.Context, fn func(st *State, own *overlay)) error {
	return s.run(ctx, func(t *txn) error {
		t.view(fn)
		return nil
	})
}

// write - запись в одну строку под её блокировкой
func (s memScope) write(ctx context.Context, k rowKey, fn func(st *State, own *overlay)) error {
	return s.run(ctx, func(t *txn) error {
		if err := t.lock(ctx, k); err != nil {
			return err
		}
		t.view(fn)
		return nil
	})
}

type memTemplates struct{ memScope }

func (r memTemplates) Create(ctx context.Context, t *model.ScheduleTemplate) error {
	return r.query(ctx, func(st *State, own *overlay) {
		t.ID = st.id()
		t.CreatedAt = time.Now()
		put(&own.templates, t.ID, *t)
	})
}

func (r memTemplates) GetByID(ctx context.Context, id int64) (t *model.ScheduleTemplate, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		if v, ok := row(st.Templates, own.templates, id); ok {
			t = &v
		}
	})
	return t, err
}

func (r memTemplates) LockByID(ctx context.Context, id int64) (t *model.ScheduleTemplate, err error) {
	err = r.write(ctx, key("templates", id), func(st *State, own *overlay) {
		if v, ok := row(st.Templates, own.templates, id); ok {
			t = &v
		}
	})
	return t, err
}

type memSlots struct{ memScope }

func (r memSlots) Create(ctx context.Context, slot *model.ScheduleSlot) error {
	return r.query(ctx, func(st *State, own *overlay) {
		slot.ID = st.id()
		slot.BookedCount = 0
		slot.CreatedAt = time.Now()
		put(&own.slots, slot.ID, *slot)
	})
}

func (r memSlots) GetByID(ctx context.Context, id int64) (slot *model.ScheduleSlot, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		if v, ok := row(st.Slots, own.slots, id); ok {
			slot = &v
		}
	})
	return slot, err
}

func (r memSlots) List(ctx context.Context, f model.SlotFilter) (out []*model.ScheduleSlot, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		for _, v := range merged(st.Slots, own.slots) {
			switch {
			case f.TemplateID != 0 && v.TemplateID != f.TemplateID:
			case !f.From.IsZero() && v.StartTime.Before(f.From):
			case !f.To.IsZero() && !v.StartTime.Before(f.To):
			case f.OnlyAvailable && (!v.IsAvailable || v.BookedCount >= v.Capacity):
			default:
				out = append(out, &v)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, err
}

func (r memSlots) FindOverlapping(ctx context.Context, templateID int64, start, end time.Time, exclude int64) (out []*model.ScheduleSlot, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		for _, v := range merged(st.Slots, own.slots) {
			if v.TemplateID == templateID && v.ID != exclude && model.Overlaps(v.StartTime, v.EndTime, start, end) {
				out = append(out, &v)
			}
		}
	})
	return out, err
}

func (r memSlots) Update(ctx context.Context, slot *model.ScheduleSlot) (ok bool, err error) {
	err = r.write(ctx, key("slots", slot.ID), func(st *State, own *overlay) {
		cur, found := row(st.Slots, own.slots, slot.ID)
		if !found || cur.BookedCount > slot.Capacity {
			return
		}
		cur.StartTime, cur.EndTime = slot.StartTime, slot.EndTime
		cur.Capacity, cur.IsAvailable = slot.Capacity, slot.IsAvailable
		put(&own.slots, slot.ID, cur)
		slot.BookedCount = cur.BookedCount
		ok = true
	})
	return ok, err
}

func (r memSlots) ReserveCapacity(ctx context.Context, id int64) (ok bool, err error) {
	err = r.write(ctx, key("slots", id), func(st *State, own *overlay) {
		cur, found := row(st.Slots, own.slots, id)
		if !found || !cur.IsAvailable || cur.BookedCount >= cur.Capacity {
			return
		}
		cur.BookedCount++
		put(&own.slots, id, cur)
		ok = true
	})
	return ok, err
}

func (r memSlots) ReleaseCapacity(ctx context.Context, id int64) (ok bool, err error) {
	err = r.write(ctx, key("slots", id), func(st *State, own *overlay) {
		cur, found := row(st.Slots, own.slots, id)
		if !found {
			return
		}
		if cur.BookedCount > 0 {
			cur.BookedCount--
		}
		put(&own.slots, id, cur)
		ok = true
	})
	return ok, err
}

// DeleteIfUnbooked удаляет слот без активных записей; отменённые записи уходят каскадом
func (r memSlots) DeleteIfUnbooked(ctx context.Context, id int64) (ok bool, err error) {
	err = r.run(ctx, func(t *txn) error {
		if err := t.lock(ctx, key("slots", id)); err != nil {
			return err
		}

		var cascade []int64
		t.view(func(st *State, own *overlay) {
			if _, found := row(st.Slots, own.slots, id); !found {
				return
			}
			for bid, b := range merged(st.Bookings, own.bookings) {
				if b.ScheduleSlotID != id {
					continue
				}
				if b.Status != model.BookingStatusCancelled {
					cascade = nil
					return
				}
				cascade = append(cascade, bid)
			}
			ok = true
		})
		if !ok {
			return nil
		}

		for _, bid := range cascade {
			if err := t.lock(ctx, key("bookings", bid)); err != nil {
				return err
			}
		}
		t.view(func(st *State, own *overlay) {
			drop(&own.slots, id)
			for _, bid := range cascade {
				drop(&own.bookings, bid)
			}
		})
		return nil
	})
	return ok, err
}

type memPackages struct{ memScope }

// Create повторяет ON CONFLICT (purchase_id) DO NOTHING: вставка той же покупки ждёт первую
func (r memPackages) Create(ctx context.Context, pkg *model.UserPackage) (created bool, err error) {
	err = r.write(ctx, key("purchase", pkg.PurchaseID), func(st *State, own *overlay) {
		for _, v := range merged(st.Packages, own.packages) {
			if v.PurchaseID == pkg.PurchaseID {
				return
			}
		}
		pkg.ID = st.id()
		pkg.SessionsUsed = 0
		pkg.CreatedAt = time.Now()
		put(&own.packages, pkg.ID, *pkg)
		created = true
	})
	return created, err
}

func (r memPackages) GetByID(ctx context.Context, id int64) (pkg *model.UserPackage, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		if v, ok := row(st.Packages, own.packages, id); ok {
			pkg = &v
		}
	})
	return pkg, err
}

func (r memPackages) GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (pkg *model.UserPackage, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		for _, v := range merged(st.Packages, own.packages) {
			if v.PurchaseID == purchaseID {
				pkg = &v
				return
			}
		}
	})
	return pkg, err
}

func (r memPackages) List(ctx context.Context, f model.PackageFilter) (out []*model.UserPackage, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		for _, v := range merged(st.Packages, own.packages) {
			if (f.OwnerID == 0 || v.OwnerID == f.OwnerID) && (!f.OnlyActive || v.IsActive) {
				out = append(out, &v)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (r memPackages) ConsumeCredit(ctx context.Context, id, ownerID int64, now time.Time) (ok bool, err error) {
	err = r.write(ctx, key("packages", id), func(st *State, own *overlay) {
		cur, found := row(st.Packages, own.packages, id)
		if !found || cur.OwnerID != ownerID || !cur.Usable(now) {
			return
		}
		cur.SessionsUsed++
		put(&own.packages, id, cur)
		ok = true
	})
	return ok, err
}

func (r memPackages) RestoreCredit(ctx context.Context, id int64) (ok bool, err error) {
	err = r.write(ctx, key("packages", id), func(st *State, own *overlay) {
		cur, found := row(st.Packages, own.packages, id)
		if !found {
			return
		}
		if cur.SessionsUsed > 0 {
			cur.SessionsUsed--
		}
		put(&own.packages, id, cur)
		ok = true
	})
	return ok, err
}

func (r memPackages) Deactivate(ctx context.Context, id int64) (ok bool, err error) {
	err = r.write(ctx, key("packages", id), func(st *State, own *overlay) {
		cur, found := row(st.Packages, own.packages, id)
		if !found {
			return
		}
		cur.IsActive = false
		put(&own.packages, id, cur)
		ok = true
	})
	return ok, err
}

func (r memPackages) DeactivateExpired(ctx context.Context, now time.Time) (n int64, err error) {
	err = r.run(ctx, func(t *txn) error {
		var candidates []int64
		t.view(func(st *State, own *overlay) {
			for id, v := range merged(st.Packages, own.packages) {
				if v.IsActive && v.IsExpired(now) {
					candidates = append(candidates, id)
				}
			}
		})

		for _, id := range candidates {
			if err := t.lock(ctx, key("packages", id)); err != nil {
				return err
			}
			t.view(func(st *State, own *overlay) {
				cur, found := row(st.Packages, own.packages, id)
				if !found || !cur.IsActive || !cur.IsExpired(now) {
					return
				}
				cur.IsActive = false
				put(&own.packages, id, cur)
				n++
			})
		}
		return nil
	})
	return n, err
}

func (r memPackages) DeleteIfUnused(ctx context.Context, id int64) (ok bool, err error) {
	err = r.write(ctx, key("packages", id), func(st *State, own *overlay) {
		if _, found := row(st.Packages, own.packages, id); !found {
			return
		}
		for _, b := range merged(st.Bookings, own.bookings) {
			if b.UserPackageID == id && b.Status != model.BookingStatusCancelled {
				return
			}
		}
		drop(&own.packages, id)
		ok = true
	})
	return ok, err
}

type memBookings struct{ memScope }

func (r memBookings) Create(ctx context.Context, b *model.Booking) error {
	return r.query(ctx, func(st *State, own *overlay) {
		now := time.Now()
		b.ID = st.id()
		b.ReminderSent = false
		b.CreatedAt, b.UpdatedAt = now, now
		stored := *b
		stored.Slot, stored.Package = nil, nil
		put(&own.bookings, b.ID, stored)
	})
}

func (r memBookings) GetByID(ctx context.Context, id int64) (b *model.Booking, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		if v, ok := row(st.Bookings, own.bookings, id); ok {
			b = &v
		}
	})
	return b, err
}

func (r memBookings) List(ctx context.Context, f model.BookingFilter) (out []*model.Booking, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		for _, v := range merged(st.Bookings, own.bookings) {
			switch {
			case f.OwnerID != 0 && v.OwnerID != f.OwnerID:
			case f.SlotID != 0 && v.ScheduleSlotID != f.SlotID:
			case f.Status != "" && v.Status != f.Status:
			default:
				out = append(out, &v)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, err
}

func (r memBookings) TransitionStatus(ctx context.Context, id int64, from, to model.BookingStatus, reason *string) (ok bool, err error) {
	err = r.write(ctx, key("bookings", id), func(st *State, own *overlay) {
		cur, found := row(st.Bookings, own.bookings, id)
		if !found || cur.Status != from {
			return
		}
		cur.Status = to
		if reason != nil {
			cur.CancelledReason = reason
		}
		cur.UpdatedAt = time.Now()
		put(&own.bookings, id, cur)
		ok = true
	})
	return ok, err
}

func (r memBookings) UpdateDetails(ctx context.Context, id int64, d model.BookingDetails) (ok bool, err error) {
	err = r.write(ctx, key("bookings", id), func(st *State, own *overlay) {
		cur, found := row(st.Bookings, own.bookings, id)
		if !found {
			return
		}
		if d.Notes != nil {
			cur.Notes = *d.Notes
		}
		if d.CancelledReason != nil {
			cur.CancelledReason = d.CancelledReason
		}
		put(&own.bookings, id, cur)
		ok = true
	})
	return ok, err
}

func (r memBookings) Delete(ctx context.Context, id int64) (b *model.Booking, err error) {
	err = r.write(ctx, key("bookings", id), func(st *State, own *overlay) {
		if v, ok := row(st.Bookings, own.bookings, id); ok {
			drop(&own.bookings, id)
			b = &v
		}
	})
	return b, err
}

func (r memBookings) ListDueReminders(ctx context.Context, from, to time.Time, limit int) (out []*model.Booking, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		slots := merged(st.Slots, own.slots)
		for _, v := range merged(st.Bookings, own.bookings) {
			slot, ok := slots[v.ScheduleSlotID]
			if !ok || v.Status != model.BookingStatusConfirmed || v.ReminderSent {
				continue
			}
			if !slot.StartTime.Before(from) && slot.StartTime.Before(to) {
				out = append(out, &v)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r memBookings) MarkReminderSent(ctx context.Context, id int64) (ok bool, err error) {
	err = r.write(ctx, key("bookings", id), func(st *State, own *overlay) {
		cur, found := row(st.Bookings, own.bookings, id)
		if !found || cur.ReminderSent || cur.Status != model.BookingStatusConfirmed {
			return
		}
		cur.ReminderSent = true
		put(&own.bookings, id, cur)
		ok = true
	})
	return ok, err
}

type memUsers struct{ memScope }

func (r memUsers) GetByID(ctx context.Context, id int64) (u *model.User, err error) {
	err = r.query(ctx, func(st *State, own *overlay) {
		if v, ok := row(st.Users, own.users, id); ok {
			u = &v
		}
	})
	return u, err
}

func (r memUsers) Upsert(ctx context.Context, u *model.User) error {
	return r.write(ctx, key("users", u.ID), func(st *State, own *overlay) {
		if cur, ok := row(st.Users, own.users, u.ID); ok {
			u.CreatedAt = cur.CreatedAt
		} else {
			u.CreatedAt = time.Now()
		}
		put(&own.users, u.ID, *u)
	})
}
