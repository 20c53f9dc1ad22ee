package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/slotbook/slotbook/libs/locale"
	"github.com/slotbook/slotbook/services/appointment-service/internal/apperr"
	"github.com/slotbook/slotbook/services/appointment-service/internal/booking"
	"github.com/slotbook/slotbook/services/appointment-service/internal/clock"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slot = time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)

type fixture struct {
	store    *Store
	customer model.User
	other    model.User
	provider model.User
	avatar   model.Avatar
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	dir := store.Directory()
	avatar, err := dir.CreateFile(ctx, "me.png", "3f1c-me.png")
	require.NoError(t, err)

	f := fixture{store: store, avatar: avatar}
	f.customer, err = dir.CreateUser(ctx, model.User{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	f.other, err = dir.CreateUser(ctx, model.User{Name: "Bruno", Email: "bruno@example.com"})
	require.NoError(t, err)
	f.provider, err = dir.CreateUser(ctx, model.User{Name: "Dr. Paula", Email: "paula@example.com", Provider: true, AvatarID: avatar.ID})
	require.NoError(t, err)
	return f
}

func (f fixture) appointment(customerID string, date time.Time) model.Appointment {
	return model.Appointment{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		ProviderID: f.provider.ID,
		Date:       date,
		CreatedAt:  date.Add(-48 * time.Hour),
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.runMigrations())
	require.NoError(t, f.store.Ping(context.Background()))
}

func TestDirectoryFiltersProviders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.store.Directory()

	u, ok, err := dir.FindUser(ctx, f.customer.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, u.Provider)
	assert.Equal(t, "ana@example.com", u.Email)

	_, ok, err = dir.FindProviderByID(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	p, ok, err := dir.FindProviderByID(ctx, f.provider.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Provider)
	assert.Equal(t, f.avatar.ID, p.AvatarID)

	_, ok, err = dir.FindUser(ctx, "not-a-user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActiveSlotIsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.Appointments()

	first := f.appointment(f.customer.ID, slot)
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, f.appointment(f.other.ID, slot))
	require.ErrorIs(t, err, model.ErrSlotTaken)

	found, ok, err := repo.FindConflicting(ctx, f.provider.ID, slot)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, found.ID)
	assert.True(t, found.Date.Equal(slot))

	require.NoError(t, repo.Cancel(ctx, first.ID, slot.Add(-5*time.Hour)))
	_, ok, err = repo.FindConflicting(ctx, f.provider.ID, slot)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Create(ctx, f.appointment(f.other.ID, slot)), "a canceled slot can be booked again")
}

func TestCancelIsConditional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.Appointments()

	appt := f.appointment(f.customer.ID, slot)
	require.NoError(t, repo.Create(ctx, appt))

	at := slot.Add(-3 * time.Hour)
	require.NoError(t, repo.Cancel(ctx, appt.ID, at))
	require.ErrorIs(t, repo.Cancel(ctx, appt.ID, at.Add(time.Minute)), model.ErrAlreadyCanceled)

	d, err := repo.GetForUpdate(ctx, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, d.CanceledAt)
	assert.True(t, d.CanceledAt.Equal(at), "first cancellation time is kept")
	assert.Equal(t, "Ana", d.Customer.Name)
	assert.Equal(t, "ana@example.com", d.Customer.Email)
	assert.Equal(t, f.provider.ID, d.Provider.ID)
	assert.Equal(t, "paula@example.com", d.Provider.Email)

	_, err = repo.GetForUpdate(ctx, uuid.NewString())
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestListByCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.Appointments()

	later := f.appointment(f.customer.ID, slot.Add(24*time.Hour))
	earlier := f.appointment(f.customer.ID, slot)
	canceled := f.appointment(f.customer.ID, slot.Add(2*time.Hour))
	for _, a := range []model.Appointment{later, earlier, canceled, f.appointment(f.other.ID, slot.Add(time.Hour))} {
		require.NoError(t, repo.Create(ctx, a))
	}
	require.NoError(t, repo.Cancel(ctx, canceled.ID, slot.Add(-time.Hour)))

	rows, err := repo.ListByCustomer(ctx, f.customer.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, earlier.ID, rows[0].ID)
	assert.Equal(t, later.ID, rows[1].ID)
	assert.Equal(t, "Dr. Paula", rows[0].Provider.Name)
	require.NotNil(t, rows[0].Provider.Avatar)
	assert.Equal(t, "3f1c-me.png", rows[0].Provider.Avatar.Path)

	page2, err := repo.ListByCustomer(ctx, f.customer.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, later.ID, page2[0].ID)
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.Notifications()

	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		n := model.Notification{ID: uuid.NewString(), Content: "note", ProviderID: f.provider.ID, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.Create(ctx, n))
		ids = append(ids, n.ID)
	}

	list, err := repo.ListForProvider(ctx, f.provider.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
	assert.False(t, list[0].Read)

	n, err := repo.MarkRead(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, n.Read)
	assert.True(t, n.CreatedAt.Equal(base))

	_, err = repo.MarkRead(ctx, uuid.NewString())
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = repo.FindByID(ctx, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestInTxRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.Appointments()
	appt := f.appointment(f.customer.ID, slot)

	boom := errors.New("boom")
	err := f.store.InTx(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, appt); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := repo.FindConflicting(ctx, f.provider.ID, slot)
	require.NoError(t, err)
	assert.False(t, ok)
}

func newEngine(f fixture, now time.Time) *booking.Engine {
	return booking.NewEngine(booking.Deps{
		Tx:            f.store,
		Directory:     f.store.Directory(),
		Appointments:  f.store.Appointments(),
		Notifications: f.store.Notifications(),
		Jobs:          nopQueue{},
		Clock:         clock.NewFixed(now),
		Formatter:     locale.New("en", time.UTC),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

type nopQueue struct{}

func (nopQueue) Enqueue(context.Context, string, any) error { return nil }

func TestEngineConcurrentBookingOnSQLite(t *testing.T) {
	f := newFixture(t)
	engine := newEngine(f, slot.Add(-24*time.Hour))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		customer := f.customer
		if i%2 == 1 {
			customer = f.other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Book(context.Background(), booking.BookRequest{CustomerID: customer.ID, ProviderID: f.provider.ID, Date: slot.Add(15 * time.Minute)})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, apperr.ErrConflict) {
				conflicts++
			} else {
				assert.Failf(t, "unexpected error", "%v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, conflicts)

	notes, err := f.store.Notifications().ListForProvider(context.Background(), f.provider.ID, 20)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Content, "New appointment from")
}

func TestEngineStoresUTCHourSlots(t *testing.T) {
	f := newFixture(t)
	engine := newEngine(f, slot.Add(-24*time.Hour))
	ctx := context.Background()
	instant := slot.Add(15 * time.Minute)

	_, err := engine.Book(ctx, booking.BookRequest{CustomerID: f.customer.ID, ProviderID: f.provider.ID, Date: instant.In(time.FixedZone("IST", 5*3600+30*60))})
	require.NoError(t, err)

	_, err = engine.Book(ctx, booking.BookRequest{CustomerID: f.other.ID, ProviderID: f.provider.ID, Date: instant})
	require.ErrorIs(t, err, apperr.ErrConflict)

	rows, err := f.store.Appointments().ListByCustomer(ctx, f.customer.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Date.Equal(slot), "stored %s", rows[0].Date)
	assert.Zero(t, rows[0].Date.Minute())
}
