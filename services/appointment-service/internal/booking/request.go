package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/slotbook/slotbook/services/appointment-service/internal/apperr"
)

// BookRequest is the validated input of Book. Build it with NewBookRequest.
type BookRequest struct {
	CustomerID string
	ProviderID string
	Date       time.Time
}

// NewBookRequest parses raw boundary input. The date must be RFC 3339.
func NewBookRequest(customerID, providerID, rawDate string) (BookRequest, error) {
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(rawDate))
	if err != nil {
		return BookRequest{}, apperr.New(apperr.KindValidation, ReasonValidationFailed)
	}
	req := BookRequest{
		CustomerID: strings.TrimSpace(customerID),
		ProviderID: strings.TrimSpace(providerID),
		Date:       date,
	}
	return req, req.Validate()
}

func (r BookRequest) Validate() error {
	if r.CustomerID == "" || r.Date.IsZero() {
		return apperr.New(apperr.KindValidation, ReasonValidationFailed)
	}
	if _, err := uuid.Parse(r.ProviderID); err != nil {
		return apperr.New(apperr.KindValidation, ReasonValidationFailed)
	}
	return nil
}
