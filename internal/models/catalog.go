package models

import "time"

// Provider is a clinician that owns appointment slots.
type Provider struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// Slot is a bookable appointment time belonging to exactly one provider.
type Slot struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	Start      time.Time `json:"start"`
}

// StartISO renders the slot start as RFC 3339 in UTC.
func (s Slot) StartISO() string {
	return s.Start.UTC().Format(time.RFC3339)
}
