package models

import "strings"

// Availability is a weekly window. DayOfWeek runs 0 (Sunday) to 6.
type Availability struct {
	ID          string `json:"id" yaml:"id"`
	DayOfWeek   int    `json:"day_of_week" yaml:"day_of_week"`
	WindowStart string `json:"window_start" yaml:"window_start"`
	WindowEnd   string `json:"window_end" yaml:"window_end"`
}

// Subcontractor is a partner that can be assigned jobs.
type Subcontractor struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Phone          string         `json:"phone" yaml:"phone"`
	Email          *string        `json:"email,omitempty" yaml:"email,omitempty"`
	ServiceCodes   []string       `json:"service_codes" yaml:"service_codes"`
	Availabilities []Availability `json:"subcontractor_availabilities,omitempty" yaml:"subcontractor_availabilities,omitempty"`
}

// Services joins the service codes for display and matching.
func (s Subcontractor) Services() string {
	return strings.Join(s.ServiceCodes, ", ")
}

// PricingRule is the per-service guardrail. All amounts are integer cents.
type PricingRule struct {
	ID             string `json:"id" yaml:"id"`
	ServiceCode    string `json:"service_code" yaml:"service_code"`
	MinPriceCents  int64  `json:"min_price_cents" yaml:"min_price_cents"`
	MaxPriceCents  int64  `json:"max_price_cents" yaml:"max_price_cents"`
	BasePriceCents int64  `json:"base_price_cents" yaml:"base_price_cents"`
}

// Service is a catalog entry.
type Service struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Code string `json:"code" yaml:"code"`
}

var weekdays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Weekday returns the short day name, or "?" outside 0-6.
func (a Availability) Weekday() string {
	if a.DayOfWeek < 0 || a.DayOfWeek >= len(weekdays) {
		return "?"
	}
	return weekdays[a.DayOfWeek]
}
