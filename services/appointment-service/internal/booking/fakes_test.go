package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

// memStore is an in-memory backend. InTx serializes transactions and rolls
// back appointment and notification writes when fn fails.
type memStore struct {
	txMu sync.Mutex

	mu            sync.Mutex
	users         map[string]model.User
	appointments  map[string]model.Appointment
	notifications []model.Notification

	hideConflicts bool
	failCreate    error
}

func newMemStore(users ...model.User) *memStore {
	s := &memStore{
		users:        map[string]model.User{},
		appointments: map[string]model.Appointment{},
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	appts := make(map[string]model.Appointment, len(s.appointments))
	for k, v := range s.appointments {
		appts[k] = v
	}
	notes := append([]model.Notification(nil), s.notifications...)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.appointments = appts
		s.notifications = notes
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) FindUser(_ context.Context, id string) (model.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *memStore) FindProviderByID(_ context.Context, id string) (model.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !u.Provider {
		return model.User{}, false, nil
	}
	return u, true, nil
}

func (s *memStore) FindConflicting(_ context.Context, providerID string, slot time.Time) (model.Appointment, bool, error) {
	if s.hideConflicts {
		return model.Appointment{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.ProviderID == providerID && a.Date.Equal(slot) && a.CanceledAt == nil {
			return a, true, nil
		}
	}
	return model.Appointment{}, false, nil
}

func (s *memStore) Create(_ context.Context, appt model.Appointment) error {
	if s.failCreate != nil {
		return s.failCreate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.ProviderID == appt.ProviderID && a.Date.Equal(appt.Date) && a.CanceledAt == nil {
			return model.ErrSlotTaken
		}
	}
	s.appointments[appt.ID] = appt
	return nil
}

func (s *memStore) GetForUpdate(_ context.Context, id string) (model.AppointmentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.AppointmentDetail{}, model.ErrNotFound
	}
	c, p := s.users[a.CustomerID], s.users[a.ProviderID]
	return model.AppointmentDetail{
		Appointment: a,
		Customer:    model.Party{ID: c.ID, Name: c.Name, Email: c.Email},
		Provider:    model.Party{ID: p.ID, Name: p.Name, Email: p.Email},
	}, nil
}

func (s *memStore) Cancel(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.ErrNotFound
	}
	if a.CanceledAt != nil {
		return model.ErrAlreadyCanceled
	}
	a.CanceledAt = &at
	s.appointments[id] = a
	return nil
}

func (s *memStore) ListByCustomer(_ context.Context, customerID string, limit, offset int) ([]model.AppointmentListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []model.Appointment
	for _, a := range s.appointments {
		if a.CustomerID == customerID && a.CanceledAt == nil {
			active = append(active, a)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Date.Before(active[j].Date) })
	if offset >= len(active) {
		return nil, nil
	}
	active = active[offset:]
	if len(active) > limit {
		active = active[:limit]
	}
	out := make([]model.AppointmentListing, 0, len(active))
	for _, a := range active {
		p := s.users[a.ProviderID]
		out = append(out, model.AppointmentListing{
			ID:       a.ID,
			Date:     a.Date,
			Provider: model.ProviderSummary{ID: p.ID, Name: p.Name},
		})
	}
	return out, nil
}

func (s *memStore) activeCount(providerID string, slot time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.appointments {
		if a.ProviderID == providerID && a.Date.Equal(slot) && a.CanceledAt == nil {
			n++
		}
	}
	return n
}

func (s *memStore) notificationsFor(providerID string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if n.ProviderID == providerID {
			out = append(out, n)
		}
	}
	return out
}

// memNotifications writes into the same store so rollbacks cover it.
type memNotifications struct{ s *memStore }

func (n memNotifications) Create(_ context.Context, note model.Notification) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	n.s.notifications = append(n.s.notifications, note)
	return nil
}

type recordedJob struct {
	kind    string
	payload any
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []recordedJob
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, kind string, payload any) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, recordedJob{kind: kind, payload: payload})
	return nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type plainNotice struct{}

func (plainNotice) NewBookingNotice(name string, slot time.Time) string {
	return "New appointment from " + name + " for " + slot.Format(time.RFC3339)
}

var errQueueDown = errors.New("queue down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
