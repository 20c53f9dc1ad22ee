package booking

import (
	"time"

	"github.com/slotbook/slotbook/services/appointment-service/internal/model"
)

// CancellationJobKind is also the Kafka topic the mail worker consumes.
const CancellationJobKind = "appointment.cancellation.requested.v1"

// CancellationJob carries everything the mail worker needs, so it never has
// to read the appointment back.
type CancellationJob struct {
	AppointmentID string    `json:"appointment_id"`
	Date          time.Time `json:"date"`
	CanceledAt    time.Time `json:"canceled_at"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	ProviderID    string    `json:"provider_id"`
	ProviderName  string    `json:"provider_name"`
	ProviderEmail string    `json:"provider_email"`
}

func (j CancellationJob) JobKey() string { return j.AppointmentID }

func NewCancellationJob(d model.AppointmentDetail) CancellationJob {
	job := CancellationJob{
		AppointmentID: d.ID,
		Date:          d.Date,
		CustomerID:    d.Customer.ID,
		CustomerName:  d.Customer.Name,
		CustomerEmail: d.Customer.Email,
		ProviderID:    d.Provider.ID,
		ProviderName:  d.Provider.Name,
		ProviderEmail: d.Provider.Email,
	}
	if d.CanceledAt != nil {
		job.CanceledAt = *d.CanceledAt
	}
	return job
}
