package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

// Directory reads users and, for seeding and tests, writes them.
type Directory struct {
	store *Store
}

type userRow struct {
	ID       string         `db:"id"`
	Name     string         `db:"name"`
	Email    string         `db:"email"`
	Provider bool           `db:"provider"`
	AvatarID sql.NullString `db:"avatar_id"`
}

func (d *Directory) FindUser(ctx context.Context, id string) (model.User, bool, error) {
	return d.find(ctx, `SELECT id, name, email, provider, avatar_id FROM users WHERE id = ?`, id)
}

func (d *Directory) FindProviderByID(ctx context.Context, id string) (model.User, bool, error) {
	return d.find(ctx, `SELECT id, name, email, provider, avatar_id FROM users WHERE id = ? AND provider = 1`, id)
}

func (d *Directory) find(ctx context.Context, query, id string) (model.User, bool, error) {
	var row userRow
	err := sqlx.GetContext(ctx, d.store.ext(ctx), &row, query, id)
	if isNoRows(err) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	return model.User{
		ID:       row.ID,
		Name:     row.Name,
		Email:    row.Email,
		Provider: row.Provider,
		AvatarID: row.AvatarID.String,
	}, true, nil
}

// CreateUser inserts u, assigning an id when it has none.
func (d *Directory) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	var avatar sql.NullString
	if u.AvatarID != "" {
		avatar = sql.NullString{String: u.AvatarID, Valid: true}
	}
	_, err := d.store.ext(ctx).ExecContext(ctx, `
		INSERT INTO users (id, name, email, provider, avatar_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.Provider, avatar, formatTime(time.Now()))
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// CreateFile registers an uploaded file so it can serve as an avatar.
func (d *Directory) CreateFile(ctx context.Context, name, path string) (model.Avatar, error) {
	f := model.Avatar{ID: uuid.NewString(), Path: path}
	_, err := d.store.ext(ctx).ExecContext(ctx, `
		INSERT INTO files (id, name, path, created_at) VALUES (?, ?, ?, ?)
	`, f.ID, name, path, formatTime(time.Now()))
	if err != nil {
		return model.Avatar{}, err
	}
	return f, nil
}
