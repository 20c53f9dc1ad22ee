package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/slotbook/slotbook/services/appointment-service/internal/clock"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

const PageSize = 20

// AppointmentView is a listing row with the time-derived labels filled in.
type AppointmentView struct {
	ID         string
	Date       time.Time
	Past       bool
	Cancelable bool
	Provider   model.ProviderSummary
}

// List returns one page (1-based) of the customer's active appointments,
// earliest first.
func (e *Engine) List(ctx context.Context, customerID string, page int) ([]AppointmentView, error) {
	if page < 1 {
		page = 1
	}
	rows, err := e.appointments.ListByCustomer(ctx, customerID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	now := e.clock.Now()
	views := make([]AppointmentView, 0, len(rows))
	for _, r := range rows {
		views = append(views, AppointmentView{
			ID:         r.ID,
			Date:       r.Date,
			Past:       clock.IsPast(r.Date, now),
			Cancelable: clock.IsCancelable(r.Date, now),
			Provider:   r.Provider,
		})
	}
	return views, nil
}
