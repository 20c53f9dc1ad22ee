package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

type NotificationRepository struct {
	store *Store
}

type notificationRow struct {
	ID         string `db:"id"`
	Content    string `db:"content"`
	ProviderID string `db:"provider_id"`
	Read       bool   `db:"read"`
	CreatedAt  string `db:"created_at"`
}

func (r notificationRow) toModel() (model.Notification, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return model.Notification{}, err
	}
	return model.Notification{
		ID:         r.ID,
		Content:    r.Content,
		ProviderID: r.ProviderID,
		Read:       r.Read,
		CreatedAt:  created,
	}, nil
}

func (r *NotificationRepository) Create(ctx context.Context, n model.Notification) error {
	created := formatTime(n.CreatedAt)
	_, err := r.store.ext(ctx).ExecContext(ctx, `
		INSERT INTO notifications (id, content, provider_id, read, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.Content, n.ProviderID, n.Read, created, created)
	return err
}

func (r *NotificationRepository) ListForProvider(ctx context.Context, providerID string, limit int) ([]model.Notification, error) {
	var rows []notificationRow
	err := sqlx.SelectContext(ctx, r.store.ext(ctx), &rows, `
		SELECT id, content, provider_id, read, created_at
		FROM notifications
		WHERE provider_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, providerID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (model.Notification, error) {
	var row notificationRow
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &row, `
		SELECT id, content, provider_id, read, created_at FROM notifications WHERE id = ?
	`, id)
	if isNoRows(err) {
		return model.Notification{}, model.ErrNotFound
	}
	if err != nil {
		return model.Notification{}, err
	}
	return row.toModel()
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (model.Notification, error) {
	res, err := r.store.ext(ctx).ExecContext(ctx, `
		UPDATE notifications SET read = 1, updated_at = ? WHERE id = ?
	`, formatTime(time.Now()), id)
	if err != nil {
		return model.Notification{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Notification{}, err
	} else if n == 0 {
		return model.Notification{}, model.ErrNotFound
	}
	return r.FindByID(ctx, id)
}
