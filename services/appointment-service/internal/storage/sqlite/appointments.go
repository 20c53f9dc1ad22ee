package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

type AppointmentRepository struct {
	store *Store
}

type appointmentRow struct {
	ID         string         `db:"id"`
	CustomerID string         `db:"customer_id"`
	ProviderID string         `db:"provider_id"`
	Date       string         `db:"date"`
	CanceledAt sql.NullString `db:"canceled_at"`
	CreatedAt  string         `db:"created_at"`
}

func (r appointmentRow) toModel() (model.Appointment, error) {
	date, err := parseTime(r.Date)
	if err != nil {
		return model.Appointment{}, err
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	canceled, err := parseNullTime(r.CanceledAt)
	if err != nil {
		return model.Appointment{}, err
	}
	return model.Appointment{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		ProviderID: r.ProviderID,
		Date:       date,
		CanceledAt: canceled,
		CreatedAt:  created,
	}, nil
}

func (r *AppointmentRepository) FindConflicting(ctx context.Context, providerID string, slot time.Time) (model.Appointment, bool, error) {
	var row appointmentRow
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &row, `
		SELECT id, customer_id, provider_id, date, canceled_at, created_at
		FROM appointments
		WHERE provider_id = ? AND date = ? AND canceled_at IS NULL
	`, providerID, formatTime(slot))
	if isNoRows(err) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	appt, err := row.toModel()
	return appt, err == nil, err
}

func (r *AppointmentRepository) Create(ctx context.Context, appt model.Appointment) error {
	created := formatTime(appt.CreatedAt)
	_, err := r.store.ext(ctx).ExecContext(ctx, `
		INSERT INTO appointments (id, customer_id, provider_id, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, appt.ID, appt.CustomerID, appt.ProviderID, formatTime(appt.Date), created, created)
	if isUniqueViolation(err) {
		return model.ErrSlotTaken
	}
	return err
}

type detailRow struct {
	appointmentRow
	CustomerName  string `db:"customer_name"`
	CustomerEmail string `db:"customer_email"`
	ProviderName  string `db:"provider_name"`
	ProviderEmail string `db:"provider_email"`
}

// GetForUpdate needs no row lock: the single connection serializes writers.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, id string) (model.AppointmentDetail, error) {
	var row detailRow
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &row, `
		SELECT a.id, a.customer_id, a.provider_id, a.date, a.canceled_at, a.created_at,
			c.name AS customer_name, c.email AS customer_email,
			p.name AS provider_name, p.email AS provider_email
		FROM appointments a
		JOIN users c ON c.id = a.customer_id
		JOIN users p ON p.id = a.provider_id
		WHERE a.id = ?
	`, id)
	if isNoRows(err) {
		return model.AppointmentDetail{}, model.ErrNotFound
	}
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	appt, err := row.toModel()
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	return model.AppointmentDetail{
		Appointment: appt,
		Customer:    model.Party{ID: appt.CustomerID, Name: row.CustomerName, Email: row.CustomerEmail},
		Provider:    model.Party{ID: appt.ProviderID, Name: row.ProviderName, Email: row.ProviderEmail},
	}, nil
}

func (r *AppointmentRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	ts := formatTime(at)
	res, err := r.store.ext(ctx).ExecContext(ctx, `
		UPDATE appointments
		SET canceled_at = ?, updated_at = ?
		WHERE id = ? AND canceled_at IS NULL
	`, ts, ts, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrAlreadyCanceled
	}
	return nil
}

type listingRow struct {
	ID           string         `db:"id"`
	Date         string         `db:"date"`
	ProviderID   string         `db:"provider_id"`
	ProviderName string         `db:"provider_name"`
	AvatarID     sql.NullString `db:"avatar_id"`
	AvatarPath   sql.NullString `db:"avatar_path"`
}

func (r *AppointmentRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.AppointmentListing, error) {
	var rows []listingRow
	err := sqlx.SelectContext(ctx, r.store.ext(ctx), &rows, `
		SELECT a.id, a.date, p.id AS provider_id, p.name AS provider_name,
			f.id AS avatar_id, f.path AS avatar_path
		FROM appointments a
		JOIN users p ON p.id = a.provider_id
		LEFT JOIN files f ON f.id = p.avatar_id
		WHERE a.customer_id = ? AND a.canceled_at IS NULL
		ORDER BY a.date ASC
		LIMIT ? OFFSET ?
	`, customerID, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]model.AppointmentListing, 0, len(rows))
	for _, row := range rows {
		date, err := parseTime(row.Date)
		if err != nil {
			return nil, err
		}
		item := model.AppointmentListing{
			ID:       row.ID,
			Date:     date,
			Provider: model.ProviderSummary{ID: row.ProviderID, Name: row.ProviderName},
		}
		if row.AvatarID.Valid && row.AvatarPath.Valid {
			item.Provider.Avatar = &model.Avatar{ID: row.AvatarID.String, Path: row.AvatarPath.String}
		}
		out = append(out, item)
	}
	return out, nil
}
