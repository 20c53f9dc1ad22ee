package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/slotbook/slotbook/libs/auth"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/appointment-service/internal/booking"
	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

type AppointmentService interface {
	Book(ctx context.Context, req booking.BookRequest) (model.Appointment, error)
	Cancel(ctx context.Context, requesterID, appointmentID string) (model.AppointmentDetail, error)
	List(ctx context.Context, customerID string, page int) ([]booking.AppointmentView, error)
}

type AppointmentHandler struct {
	svc          AppointmentService
	logger       *slog.Logger
	filesBaseURL string
}

func NewAppointmentHandler(svc AppointmentService, logger *slog.Logger, filesBaseURL string) *AppointmentHandler {
	return &AppointmentHandler{
		svc:          svc,
		logger:       logger,
		filesBaseURL: strings.TrimRight(filesBaseURL, "/"),
	}
}

func (h *AppointmentHandler) Register(r *mux.Router) {
	r.HandleFunc("/appointments", h.List).Methods(http.MethodGet)
	r.HandleFunc("/appointments", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/appointments/{id}", h.Cancel).Methods(http.MethodDelete)
}

type createAppointmentRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
}

type appointmentResponse struct {
	ID         string     `json:"id"`
	Date       time.Time  `json:"date"`
	CustomerID string     `json:"user_id"`
	ProviderID string     `json:"provider_id"`
	CanceledAt *time.Time `json:"canceled_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

type partyResponse struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type canceledAppointmentResponse struct {
	appointmentResponse
	Provider partyResponse `json:"provider"`
	User     partyResponse `json:"user"`
}

type avatarResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

type providerResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Avatar *avatarResponse `json:"avatar"`
}

type listItemResponse struct {
	ID         string           `json:"id"`
	Date       time.Time        `json:"date"`
	Past       bool             `json:"past"`
	Cancelable bool             `json:"cancelable"`
	Provider   providerResponse `json:"provider"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         a.ID,
		Date:       a.Date,
		CustomerID: a.CustomerID,
		ProviderID: a.ProviderID,
		CanceledAt: a.CanceledAt,
		CreatedAt:  a.CreatedAt,
	}
}

// List serves GET /appointments?page=N. "cancelable" is true while
// now <= date - 2h, but DELETE only succeeds strictly before date - 2h, so at
// that exact instant the label is true and a cancel is refused.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.WriteError(w, http.StatusBadRequest, booking.ReasonValidationFailed)
			return
		}
		page = n
	}

	views, err := h.svc.List(r.Context(), auth.UserIDFromContext(r.Context()), page)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]listItemResponse, 0, len(views))
	for _, v := range views {
		item := listItemResponse{
			ID:         v.ID,
			Date:       v.Date,
			Past:       v.Past,
			Cancelable: v.Cancelable,
			Provider:   providerResponse{ID: v.Provider.ID, Name: v.Provider.Name},
		}
		if a := v.Provider.Avatar; a != nil {
			item.Provider.Avatar = &avatarResponse{ID: a.ID, Path: a.Path, URL: h.fileURL(a.Path)}
		}
		out = append(out, item)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, booking.ReasonValidationFailed)
		return
	}

	req, err := booking.NewBookRequest(auth.UserIDFromContext(r.Context()), body.ProviderID, body.Date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	appt, err := h.svc.Book(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	d, err := h.svc.Cancel(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, canceledAppointmentResponse{
		appointmentResponse: toAppointmentResponse(d.Appointment),
		Provider:            partyResponse{Name: d.Provider.Name, Email: d.Provider.Email},
		User:                partyResponse{Name: d.Customer.Name},
	})
}

func (h *AppointmentHandler) fileURL(path string) string {
	return h.filesBaseURL + "/files/" + path
}
