package model

import "time"

// Appointment is one booked slot. Date is always truncated to the hour and
// CanceledAt, once set, is never cleared.
type Appointment struct {
	ID         string
	CustomerID string
	ProviderID string
	Date       time.Time
	CanceledAt *time.Time
	CreatedAt  time.Time
}

func (a Appointment) Canceled() bool {
	return a.CanceledAt != nil
}

// Party is the denormalized identity of a participant, carried to the
// cancellation email job.
type Party struct {
	ID    string
	Name  string
	Email string
}

type AppointmentDetail struct {
	Appointment
	Customer Party
	Provider Party
}

type Avatar struct {
	ID   string
	Path string
}

type ProviderSummary struct {
	ID     string
	Name   string
	Avatar *Avatar
}

// AppointmentListing is the row shape of the customer's schedule read model.
type AppointmentListing struct {
	ID       string
	Date     time.Time
	Provider ProviderSummary
}
