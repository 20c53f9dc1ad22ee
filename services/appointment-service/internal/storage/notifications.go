package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

type NotificationRepository struct {
	pool *db.Pool
}

func NewNotificationRepository(pool *db.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n model.Notification) error {
	_, err := r.pool.Querier(ctx).Exec(ctx, `
		INSERT INTO notifications (id, content, provider_id, read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, n.ID, n.Content, n.ProviderID, n.Read, n.CreatedAt)
	return err
}

func (r *NotificationRepository) ListForProvider(ctx context.Context, providerID string, limit int) ([]model.Notification, error) {
	rows, err := r.pool.Querier(ctx).Query(ctx, `
		SELECT id, content, provider_id, read, created_at
		FROM notifications
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.Content, &n.ProviderID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (model.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Notification{}, model.ErrNotFound
	}
	var n model.Notification
	err := r.pool.Querier(ctx).QueryRow(ctx, `
		SELECT id, content, provider_id, read, created_at
		FROM notifications
		WHERE id = $1
	`, id).Scan(&n.ID, &n.Content, &n.ProviderID, &n.Read, &n.CreatedAt)
	if db.IsNotFound(err) {
		return model.Notification{}, model.ErrNotFound
	}
	return n, err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (model.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Notification{}, model.ErrNotFound
	}
	var n model.Notification
	err := r.pool.Querier(ctx).QueryRow(ctx, `
		UPDATE notifications
		SET read = true, updated_at = now()
		WHERE id = $1
		RETURNING id, content, provider_id, read, created_at
	`, id).Scan(&n.ID, &n.Content, &n.ProviderID, &n.Read, &n.CreatedAt)
	if db.IsNotFound(err) {
		return model.Notification{}, model.ErrNotFound
	}
	return n, err
}
