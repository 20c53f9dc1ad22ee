// Package notifications is the caller-facing boundary of the notification
// store. The store itself trusts its callers; every role and ownership check
// lives here.
package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/slotbook/slotbook/services/appointment-service/internal/apperr"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

const ListLimit = 20

const (
	ReasonProvidersOnly = "only providers can load notifications"
	ReasonNotFound      = "notification not found"
	ReasonNotRecipient  = "you don't have permission to update this notification"
)

type Store interface {
	ListForProvider(ctx context.Context, providerID string, limit int) ([]model.Notification, error)
	FindByID(ctx context.Context, id string) (model.Notification, error)
	MarkRead(ctx context.Context, id string) (model.Notification, error)
}

type ProviderLookup interface {
	FindProviderByID(ctx context.Context, id string) (model.User, bool, error)
}

type Service struct {
	store     Store
	providers ProviderLookup
}

func NewService(store Store, providers ProviderLookup) *Service {
	return &Service{store: store, providers: providers}
}

// ListForProvider returns the newest notifications addressed to requesterID,
// who must be a provider.
func (s *Service) ListForProvider(ctx context.Context, requesterID string) ([]model.Notification, error) {
	if err := s.requireProvider(ctx, requesterID); err != nil {
		return nil, err
	}
	list, err := s.store.ListForProvider(ctx, requesterID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// MarkRead flags a notification as read. Only its recipient may do so.
func (s *Service) MarkRead(ctx context.Context, requesterID, id string) (model.Notification, error) {
	n, err := s.store.FindByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.Notification{}, apperr.New(apperr.KindNotFound, ReasonNotFound)
	}
	if err != nil {
		return model.Notification{}, fmt.Errorf("load notification: %w", err)
	}
	if n.ProviderID != requesterID {
		return model.Notification{}, apperr.New(apperr.KindAuthorization, ReasonNotRecipient)
	}
	if n.Read {
		return n, nil
	}

	updated, err := s.store.MarkRead(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.Notification{}, apperr.New(apperr.KindNotFound, ReasonNotFound)
	}
	if err != nil {
		return model.Notification{}, fmt.Errorf("mark notification read: %w", err)
	}
	return updated, nil
}

func (s *Service) requireProvider(ctx context.Context, userID string) error {
	_, ok, err := s.providers.FindProviderByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load provider: %w", err)
	}
	if !ok {
		return apperr.New(apperr.KindAuthorization, ReasonProvidersOnly)
	}
	return nil
}
