package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/slotbook/slotbook/libs/auth"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

type NotificationService interface {
	ListForProvider(ctx context.Context, requesterID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, requesterID, id string) (model.Notification, error)
}

type NotificationHandler struct {
	svc    NotificationService
	logger *slog.Logger
}

func NewNotificationHandler(svc NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

func (h *NotificationHandler) Register(r *mux.Router) {
	r.HandleFunc("/notifications", h.List).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{id}", h.MarkRead).Methods(http.MethodPut)
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	User      string    `json:"user"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationResponse(n model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Content:   n.Content,
		User:      n.ProviderID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListForProvider(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toNotificationResponse(n))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkRead(r.Context(), auth.UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toNotificationResponse(n))
}
