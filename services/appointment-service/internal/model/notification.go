package model

import "time"

// Notification is a message addressed to a provider. Only Read ever changes.
type Notification struct {
	ID         string
	Content    string
	ProviderID string
	Read       bool
	CreatedAt  time.Time
}
