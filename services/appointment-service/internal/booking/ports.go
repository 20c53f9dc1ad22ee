package booking

import (
	"context"
	"time"

	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

type Directory interface {
	FindUser(ctx context.Context, id string) (model.User, bool, error)
	FindProviderByID(ctx context.Context, id string) (model.User, bool, error)
}

// AppointmentRepository must honor a transaction bound to ctx by Transactor.
type AppointmentRepository interface {
	FindConflicting(ctx context.Context, providerID string, slot time.Time) (model.Appointment, bool, error)
	// Create returns model.ErrSlotTaken when an active appointment already
	// holds (provider, date).
	Create(ctx context.Context, appt model.Appointment) error
	// GetForUpdate returns model.ErrNotFound for unknown ids and locks the row
	// where the backend supports it.
	GetForUpdate(ctx context.Context, id string) (model.AppointmentDetail, error)
	// Cancel returns model.ErrAlreadyCanceled when canceled_at is already set.
	Cancel(ctx context.Context, id string, at time.Time) error
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.AppointmentListing, error)
}

type NotificationWriter interface {
	Create(ctx context.Context, n model.Notification) error
}

type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type JobQueue interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

type NoticeFormatter interface {
	NewBookingNotice(customerName string, slot time.Time) string
}
