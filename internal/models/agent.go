package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RunMode selects whether an agent run only plans or also executes.
type RunMode string

const (
	ModePlanOnly RunMode = "plan_only"
	ModeExecute  RunMode = "execute"
)

// ParseRunMode validates a mode string.
func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case ModePlanOnly, ModeExecute:
		return RunMode(s), nil
	}
	return "", fmt.Errorf("unknown run mode %q (want plan_only or execute)", s)
}

// Confidence is a score in [0,1]. The API sends it as a number or a
// numeric string; anything else is kept as a label.
type Confidence struct {
	Score float64
	Label string
	Known bool
}

// UnmarshalJSON accepts numbers, numeric strings, other strings and null.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	*c = Confidence{}
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode confidence: %w", err)
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		c.Label = s
		return nil
	}
	c.Score = f
	c.Known = true
	return nil
}

// MarshalJSON writes the score back as a number, or the label as a string.
func (c Confidence) MarshalJSON() ([]byte, error) {
	switch {
	case c.Known:
		return json.Marshal(c.Score)
	case c.Label != "":
		return json.Marshal(c.Label)
	}
	return []byte("null"), nil
}

// MarshalYAML renders the confidence as display text.
func (c Confidence) MarshalYAML() (any, error) {
	return c.String(), nil
}

// String renders "82%" for scores, the label otherwise, and the placeholder when absent.
func (c Confidence) String() string {
	switch {
	case c.Known:
		return FormatPercent(c.Score)
	case c.Label != "":
		return c.Label
	}
	return Placeholder
}

// Plan is the agent's proposal for a lead.
type Plan struct {
	ServiceCode     string     `json:"service_code" yaml:"service_code"`
	Urgency         string     `json:"urgency" yaml:"urgency"`
	TotalCents      *int64     `json:"total_cents,omitempty" yaml:"total_cents,omitempty"`
	ScheduledDate   string     `json:"scheduled_date,omitempty" yaml:"scheduled_date,omitempty"`
	WindowStart     string     `json:"window_start,omitempty" yaml:"window_start,omitempty"`
	WindowEnd       string     `json:"window_end,omitempty" yaml:"window_end,omitempty"`
	SubcontractorID string     `json:"subcontractor_id,omitempty" yaml:"subcontractor_id,omitempty"`
	CustomerMessage string     `json:"customer_message,omitempty" yaml:"customer_message,omitempty"`
	Confidence      Confidence `json:"confidence" yaml:"confidence"`

	// Raw is the plan exactly as the API returned it.
	Raw json.RawMessage `json:"-" yaml:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the raw document.
func (p *Plan) UnmarshalJSON(data []byte) error {
	type plan Plan
	var v plan
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode plan: %w", err)
	}
	*p = Plan(v)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Window renders the proposed schedule, or "" when none was proposed.
func (p Plan) Window() string {
	if p.ScheduledDate == "" && p.WindowStart == "" {
		return ""
	}
	return strings.TrimSpace(p.ScheduledDate + " " + p.WindowStart + "-" + p.WindowEnd)
}

// AgentRunResult is the bundle returned by one agent run. Quote, job,
// assignment and notification are only present when the run executed.
type AgentRunResult struct {
	AgentRun     json.RawMessage `json:"agent_run,omitempty" yaml:"-"`
	Plan         *Plan           `json:"plan,omitempty" yaml:"plan,omitempty"`
	Quote        *Quote          `json:"quote,omitempty" yaml:"quote,omitempty"`
	Job          *Job            `json:"job,omitempty" yaml:"job,omitempty"`
	Assignment   *Assignment     `json:"assignment,omitempty" yaml:"assignment,omitempty"`
	Notification *Notification   `json:"notification,omitempty" yaml:"notification,omitempty"`
	Errors       json.RawMessage `json:"errors,omitempty" yaml:"-"`
}

// Executed reports whether the run created any records.
func (r *AgentRunResult) Executed() bool {
	return r.Quote != nil || r.Job != nil || r.Assignment != nil || r.Notification != nil
}

// ErrorText returns the run-level errors as text, or "" when there are none.
func (r *AgentRunResult) ErrorText() string {
	s := strings.TrimSpace(string(r.Errors))
	switch s {
	case "", "null", "[]", "{}":
		return ""
	}
	var msg string
	if err := json.Unmarshal(r.Errors, &msg); err == nil {
		return msg
	}
	var list []string
	if err := json.Unmarshal(r.Errors, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return s
}
