// Package storage holds the Postgres repositories of the appointment service.
// Every method runs on the transaction bound to ctx by db.Pool.InTx, if any.
package storage

import (
	"context"
	"time"

	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) FindConflicting(ctx context.Context, providerID string, slot time.Time) (model.Appointment, bool, error) {
	var appt model.Appointment
	err := r.pool.Querier(ctx).QueryRow(ctx, `
		SELECT id, customer_id, provider_id, date, canceled_at, created_at
		FROM appointments
		WHERE provider_id = $1 AND date = $2 AND canceled_at IS NULL
	`, providerID, slot).Scan(&appt.ID, &appt.CustomerID, &appt.ProviderID, &appt.Date, &appt.CanceledAt, &appt.CreatedAt)
	if db.IsNotFound(err) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	return appt, true, nil
}

func (r *AppointmentRepository) Create(ctx context.Context, appt model.Appointment) error {
	_, err := r.pool.Querier(ctx).Exec(ctx, `
		INSERT INTO appointments (id, customer_id, provider_id, date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, appt.ID, appt.CustomerID, appt.ProviderID, appt.Date, appt.CreatedAt)
	if db.IsConflict(err) {
		return model.ErrSlotTaken
	}
	return err
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, id string) (model.AppointmentDetail, error) {
	var d model.AppointmentDetail
	err := r.pool.Querier(ctx).QueryRow(ctx, `
		SELECT a.id, a.customer_id, a.provider_id, a.date, a.canceled_at, a.created_at,
			c.name, c.email, p.name, p.email
		FROM appointments a
		JOIN users c ON c.id = a.customer_id
		JOIN users p ON p.id = a.provider_id
		WHERE a.id = $1
		FOR UPDATE OF a
	`, id).Scan(
		&d.ID,
		&d.CustomerID,
		&d.ProviderID,
		&d.Date,
		&d.CanceledAt,
		&d.CreatedAt,
		&d.Customer.Name,
		&d.Customer.Email,
		&d.Provider.Name,
		&d.Provider.Email,
	)
	if db.IsNotFound(err) {
		return model.AppointmentDetail{}, model.ErrNotFound
	}
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	d.Customer.ID = d.CustomerID
	d.Provider.ID = d.ProviderID
	return d, nil
}

func (r *AppointmentRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Querier(ctx).Exec(ctx, `
		UPDATE appointments
		SET canceled_at = $2, updated_at = $2
		WHERE id = $1 AND canceled_at IS NULL
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAlreadyCanceled
	}
	return nil
}

func (r *AppointmentRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]model.AppointmentListing, error) {
	rows, err := r.pool.Querier(ctx).Query(ctx, `
		SELECT a.id, a.date, p.id, p.name, f.id, f.path
		FROM appointments a
		JOIN users p ON p.id = a.provider_id
		LEFT JOIN files f ON f.id = p.avatar_id
		WHERE a.customer_id = $1 AND a.canceled_at IS NULL
		ORDER BY a.date ASC
		LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentListing
	for rows.Next() {
		var (
			item       model.AppointmentListing
			avatarID   *string
			avatarPath *string
		)
		if err := rows.Scan(&item.ID, &item.Date, &item.Provider.ID, &item.Provider.Name, &avatarID, &avatarPath); err != nil {
			return nil, err
		}
		if avatarID != nil && avatarPath != nil {
			item.Provider.Avatar = &model.Avatar{ID: *avatarID, Path: *avatarPath}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
