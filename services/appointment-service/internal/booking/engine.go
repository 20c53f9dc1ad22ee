// Package booking decides whether a customer may book or cancel a slot and
// performs the resulting writes.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/slotbook/slotbook/services/appointment-service/internal/apperr"
	"github.com/slotbook/slotbook/services/appointment-service/internal/clock"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

type Deps struct {
	Tx            Transactor
	Directory     Directory
	Appointments  AppointmentRepository
	Notifications NotificationWriter
	Jobs          JobQueue
	Clock         clock.Clock
	Formatter     NoticeFormatter
	Logger        *slog.Logger
}

type Engine struct {
	tx            Transactor
	directory     Directory
	appointments  AppointmentRepository
	notifications NotificationWriter
	jobs          JobQueue
	clock         clock.Clock
	formatter     NoticeFormatter
	logger        *slog.Logger
}

func NewEngine(d Deps) *Engine {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	return &Engine{
		tx:            d.Tx,
		directory:     d.Directory,
		appointments:  d.Appointments,
		notifications: d.Notifications,
		jobs:          d.Jobs,
		clock:         d.Clock,
		formatter:     d.Formatter,
		logger:        d.Logger,
	}
}

// Book creates an appointment for req.CustomerID with req.ProviderID at the
// hour containing req.Date, and notifies the provider in the same transaction.
func (e *Engine) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	if err := req.Validate(); err != nil {
		return model.Appointment{}, err
	}

	customer, ok, err := e.directory.FindUser(ctx, req.CustomerID)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load customer: %w", err)
	}
	if !ok {
		return model.Appointment{}, apperr.New(apperr.KindNotFound, ReasonUserNotFound)
	}
	if customer.Provider {
		return model.Appointment{}, apperr.New(apperr.KindAuthorization, ReasonProviderCannotBook)
	}

	provider, ok, err := e.directory.FindProviderByID(ctx, req.ProviderID)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load provider: %w", err)
	}
	if !ok {
		return model.Appointment{}, apperr.New(apperr.KindAuthorization, ReasonNotAProvider)
	}

	now := e.clock.Now()
	slot := clock.TruncateHour(req.Date)
	if clock.IsPast(slot, now) {
		return model.Appointment{}, apperr.New(apperr.KindTemporal, ReasonPastDate)
	}

	appt := model.Appointment{
		ID:         uuid.NewString(),
		CustomerID: customer.ID,
		ProviderID: provider.ID,
		Date:       slot,
		CreatedAt:  now,
	}
	notice := model.Notification{
		ID:         uuid.NewString(),
		Content:    e.formatter.NewBookingNotice(customer.Name, slot),
		ProviderID: provider.ID,
		CreatedAt:  now,
	}

	err = e.tx.InTx(ctx, func(ctx context.Context) error {
		if _, taken, err := e.appointments.FindConflicting(ctx, provider.ID, slot); err != nil {
			return fmt.Errorf("check slot: %w", err)
		} else if taken {
			return apperr.New(apperr.KindConflict, ReasonSlotUnavailable)
		}
		if err := e.appointments.Create(ctx, appt); err != nil {
			if errors.Is(err, model.ErrSlotTaken) {
				return apperr.New(apperr.KindConflict, ReasonSlotUnavailable)
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		if err := e.notifications.Create(ctx, notice); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}

	e.logger.Info("appointment booked", "appointment_id", appt.ID, "provider_id", appt.ProviderID, "date", appt.Date)
	return appt, nil
}

// Cancel marks the requester's appointment canceled and queues the provider
// email. A failure to queue is logged; the cancellation stands.
func (e *Engine) Cancel(ctx context.Context, requesterID, appointmentID string) (model.AppointmentDetail, error) {
	if _, err := uuid.Parse(appointmentID); err != nil {
		return model.AppointmentDetail{}, apperr.New(apperr.KindNotFound, ReasonAppointmentNotFound)
	}

	var canceled model.AppointmentDetail
	err := e.tx.InTx(ctx, func(ctx context.Context) error {
		d, err := e.appointments.GetForUpdate(ctx, appointmentID)
		if errors.Is(err, model.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, ReasonAppointmentNotFound)
		}
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if d.CustomerID != requesterID {
			return apperr.New(apperr.KindAuthorization, ReasonNotOwner)
		}
		if d.Canceled() {
			return apperr.New(apperr.KindTemporal, ReasonAlreadyCanceled)
		}

		now := e.clock.Now()
		if !clock.CanCancel(d.Date, now) {
			return apperr.New(apperr.KindTemporal, ReasonCancellationWindowOver)
		}
		if err := e.appointments.Cancel(ctx, d.ID, now); err != nil {
			if errors.Is(err, model.ErrAlreadyCanceled) {
				return apperr.New(apperr.KindTemporal, ReasonAlreadyCanceled)
			}
			return fmt.Errorf("cancel appointment: %w", err)
		}
		d.CanceledAt = &now
		canceled = d
		return nil
	})
	if err != nil {
		return model.AppointmentDetail{}, err
	}

	if err := e.jobs.Enqueue(ctx, CancellationJobKind, NewCancellationJob(canceled)); err != nil {
		e.logger.Error("cancellation email not queued", "appointment_id", canceled.ID, "err", err)
	}
	e.logger.Info("appointment canceled", "appointment_id", canceled.ID, "provider_id", canceled.ProviderID)
	return canceled, nil
}
