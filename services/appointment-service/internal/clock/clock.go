package clock

import (
	"sync"
	"time"
)

// CancellationWindow is the minimum lead time before a slot for a cancellation.
const CancellationWindow = 2 * time.Hour

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// TruncateHour returns the start of the UTC hour containing t. The caller's
// offset never shifts the slot, so one instant always maps to one slot.
func TruncateHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

func IsPast(date, now time.Time) bool {
	return date.Before(now)
}

func CancellationDeadline(date time.Time) time.Time {
	return date.Add(-CancellationWindow)
}

// IsCancelable is the display label: true while now <= date - 2h.
func IsCancelable(date, now time.Time) bool {
	return !now.After(CancellationDeadline(date))
}

// CanCancel is the rule enforced on cancel: strictly before date - 2h.
func CanCancel(date, now time.Time) bool {
	return now.Before(CancellationDeadline(date))
}

// Fixed is a settable clock for tests and replay tools.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
