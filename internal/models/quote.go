package models

// QuoteLineItem is one priced line on a quote. Amounts are integer cents.
type QuoteLineItem struct {
	ID             string `json:"id" yaml:"id"`
	Description    string `json:"description" yaml:"description"`
	Quantity       int    `json:"quantity" yaml:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents" yaml:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents" yaml:"total_cents"`
}

// Quote is a priced proposal for a lead.
type Quote struct {
	ID            string          `json:"id" yaml:"id"`
	LeadID        string          `json:"lead_id" yaml:"lead_id"`
	SubtotalCents int64           `json:"subtotal_cents" yaml:"subtotal_cents"`
	TotalCents    int64           `json:"total_cents" yaml:"total_cents"`
	Confidence    Confidence      `json:"confidence" yaml:"confidence"`
	LineItems     []QuoteLineItem `json:"quote_line_items,omitempty" yaml:"quote_line_items,omitempty"`
}

// Notification is a customer message produced by an execute run.
type Notification struct {
	ID      string  `json:"id" yaml:"id"`
	Status  string  `json:"status" yaml:"status"`
	Channel string  `json:"channel" yaml:"channel"`
	To      string  `json:"to" yaml:"to"`
	Subject *string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Body    string  `json:"body" yaml:"body"`
	Lead    *Ref    `json:"lead,omitempty" yaml:"lead,omitempty"`
	Job     *Ref    `json:"job,omitempty" yaml:"job,omitempty"`
}
