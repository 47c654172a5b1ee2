// Package models defines the records exchanged with the dispatch API.
package models

// LeadStatusFailed is the only lead status that gets distinct visual treatment.
const LeadStatusFailed = "failed"

// Lead is a customer service request captured at intake.
type Lead struct {
	ID               string  `json:"id" yaml:"id"`
	FullName         string  `json:"full_name" yaml:"full_name"`
	Email            *string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone            *string `json:"phone,omitempty" yaml:"phone,omitempty"`
	AddressLine1     string  `json:"address_line1" yaml:"address_line1"`
	AddressLine2     *string `json:"address_line2,omitempty" yaml:"address_line2,omitempty"`
	City             string  `json:"city" yaml:"city"`
	State            string  `json:"state" yaml:"state"`
	PostalCode       string  `json:"postal_code" yaml:"postal_code"`
	ServiceRequested string  `json:"service_requested" yaml:"service_requested"`
	Notes            *string `json:"notes,omitempty" yaml:"notes,omitempty"`
	UrgencyHint      *string `json:"urgency_hint,omitempty" yaml:"urgency_hint,omitempty"`
	Status           string  `json:"status" yaml:"status"`
}

// Failed reports whether the lead carries the distinguished failed status.
func (l Lead) Failed() bool {
	return l.Status == LeadStatusFailed
}

// Address renders the single-line postal address.
func (l Lead) Address() string {
	return l.AddressLine1 + ", " + l.City + ", " + l.State + " " + l.PostalCode
}

// LeadInput is the payload for creating or patching a lead.
// Nil fields are omitted so a patch only touches what was set.
type LeadInput struct {
	FullName         *string `json:"full_name,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	AddressLine1     *string `json:"address_line1,omitempty"`
	AddressLine2     *string `json:"address_line2,omitempty"`
	City             *string `json:"city,omitempty"`
	State            *string `json:"state,omitempty"`
	PostalCode       *string `json:"postal_code,omitempty"`
	ServiceRequested *string `json:"service_requested,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	UrgencyHint      *string `json:"urgency_hint,omitempty"`
	Status           *string `json:"status,omitempty"`
}
