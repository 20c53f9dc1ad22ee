package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

// Directory reads users. Ids that are not UUIDs cannot exist and are reported
// as missing without a round trip.
type Directory struct {
	pool *db.Pool
}

func NewDirectory(pool *db.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) FindUser(ctx context.Context, id string) (model.User, bool, error) {
	return d.find(ctx, id, false)
}

func (d *Directory) FindProviderByID(ctx context.Context, id string) (model.User, bool, error) {
	return d.find(ctx, id, true)
}

func (d *Directory) find(ctx context.Context, id string, providersOnly bool) (model.User, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, false, nil
	}
	var (
		u        model.User
		avatarID *string
	)
	err := d.pool.Querier(ctx).QueryRow(ctx, `
		SELECT id, name, email, provider, avatar_id
		FROM users
		WHERE id = $1 AND (provider OR NOT $2)
	`, id, providersOnly).Scan(&u.ID, &u.Name, &u.Email, &u.Provider, &avatarID)
	if db.IsNotFound(err) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	if avatarID != nil {
		u.AvatarID = *avatarID
	}
	return u, true, nil
}
