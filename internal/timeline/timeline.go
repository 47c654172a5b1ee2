// Package timeline turns a lead's raw audit events into display entries.
package timeline

import (
	"strings"
	"sync"

	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

// Icon identifies the glyph drawn next to an entry.
type Icon string

const (
	IconAlert    Icon = "alert"
	IconAgent    Icon = "agent"
	IconSettings Icon = "settings"
	IconCheck    Icon = "check"
)

// Action type codes emitted by execute runs.
const (
	ActionValidatePlan        = "validate_plan"
	ActionCreateQuote         = "create_quote"
	ActionCreateJob           = "create_job"
	ActionAssignSubcontractor = "assign_subcontractor"
	ActionSendNotification    = "send_notification"
	ActionExecutePlan         = "execute_plan"
	ActionPlanOnly            = "plan_only"
	ActionAssignmentDeclined  = "assignment_declined"
)

var actionLabels = map[string]string{
	ActionValidatePlan:        "Validated plan",
	ActionCreateQuote:         "Created quote",
	ActionCreateJob:           "Created job",
	ActionAssignSubcontractor: "Assigned subcontractor",
	ActionSendNotification:    "Sent notification",
	ActionExecutePlan:         "Executed plan",
	ActionPlanOnly:            "Generated plan only",
	ActionAssignmentDeclined:  "Subcontractor declined",
}

// linkRule describes how an action cross-links to the record it created.
type linkRule struct {
	payloadKey string
	record     string
	collection string
	inline     bool
}

var actionLinks = map[string]linkRule{
	ActionCreateQuote:         {payloadKey: "quote_id", record: "quote", collection: "quotes", inline: true},
	ActionCreateJob:           {payloadKey: "job_id", record: "job", collection: "jobs", inline: true},
	ActionAssignSubcontractor: {payloadKey: "assignment_id", record: "assignment", collection: "assignments"},
	ActionSendNotification:    {payloadKey: "notification_id", record: "notification", collection: "notifications"},
}

// Link points an entry at a record detail view.
type Link struct {
	Record string // quote, job, assignment or notification
	ID     string
	Route  string // e.g. "/quotes/Q1"
	Label  string
	// Inline links make the title itself the link; others render as a
	// secondary "View ..." link below it.
	Inline bool
}

// Entry is one rendered timeline row.
type Entry struct {
	Key          string
	Kind         string
	ActionType   string
	Icon         Icon
	Title        string
	Status       string
	Model        string
	ErrorMessage string
	IsError      bool
	CreatedAt    string
	Timestamp    string
	Link         *Link
}

// Subtitle is the secondary line under the title: the model for agent
// runs, otherwise the humanized status.
func (e Entry) Subtitle() string {
	if e.Model != "" {
		return "Model: " + e.Model
	}
	return models.Humanize(e.Status)
}

// Normalize maps events to entries in source order. It is pure: the same
// input always yields the same output and nothing is dropped or reordered.
func Normalize(events []models.TimelineEvent) []Entry {
	entries := make([]Entry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, normalizeEvent(ev))
	}
	return entries
}

func normalizeEvent(ev models.TimelineEvent) Entry {
	e := Entry{
		Key:       ev.EventType() + "-" + ev.EventID(),
		Kind:      ev.EventType(),
		Status:    ev.EventStatus(),
		CreatedAt: ev.Timestamp(),
		Timestamp: models.FormatTimestamp(ev.Timestamp()),
	}

	switch ev := ev.(type) {
	case *models.AgentRunEvent:
		e.Title = agentRunTitle(ev.Status)
		if ev.Model != nil {
			e.Model = *ev.Model
		}
		e.ErrorMessage = textOf(ev.ErrorMessage)
		e.Icon = IconAgent
	case *models.ExecutionActionEvent:
		e.ActionType = ev.ActionType
		e.Title = ActionLabel(ev.ActionType)
		e.ErrorMessage = textOf(ev.ErrorMessage)
		e.Icon = IconCheck
		if ev.ActionType == ActionValidatePlan {
			e.Icon = IconSettings
		}
		e.Link = actionLink(ev)
	default:
		e.Title = "Activity"
		if t := strings.TrimSpace(ev.EventType()); t != "" {
			e.Title = models.Humanize(t)
		}
		if u, ok := ev.(*models.UnknownEvent); ok {
			e.ErrorMessage = textOf(u.ErrorMessage)
		}
		e.Icon = IconCheck
	}

	e.IsError = e.Status == models.EventStatusError || e.ErrorMessage != ""
	if e.IsError {
		e.Icon = IconAlert
	}
	return e
}

func agentRunTitle(status string) string {
	if status == "" {
		return "Agent run update"
	}
	return "Agent run " + status
}

// ActionLabel returns the label for an action code, falling back to the
// humanized code for types it does not know and to "Activity" when the
// code is blank.
func ActionLabel(actionType string) string {
	if label, ok := actionLabels[actionType]; ok {
		return label
	}
	if strings.TrimSpace(actionType) == "" {
		return "Activity"
	}
	return models.Humanize(actionType)
}

func textOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func actionLink(ev *models.ExecutionActionEvent) *Link {
	rule, ok := actionLinks[ev.ActionType]
	if !ok {
		return nil
	}
	id, ok := ev.PayloadID(rule.payloadKey)
	if !ok {
		return nil
	}
	link := &Link{
		Record: rule.record,
		ID:     id,
		Route:  "/" + rule.collection + "/" + id,
		Inline: rule.inline,
	}
	if rule.inline {
		link.Label = ActionLabel(ev.ActionType)
	} else {
		link.Label = "View " + rule.record
	}
	return link
}

// Normalizer memoizes Normalize on the identity of the input slice, so
// re-rendering an unchanged timeline does not rebuild its entries.
// Returned slices are shared and must not be modified.
type Normalizer struct {
	mu      sync.Mutex
	first   *models.TimelineEvent
	length  int
	entries []Entry
	runs    int
}

// Normalize returns the cached entries when events is the same slice as
// the previous call.
func (n *Normalizer) Normalize(events []models.TimelineEvent) []Entry {
	if len(events) == 0 {
		return []Entry{}
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.entries != nil && n.first == &events[0] && n.length == len(events) {
		return n.entries
	}
	n.first = &events[0]
	n.length = len(events)
	n.entries = Normalize(events)
	n.runs++
	return n.entries
}

// Runs reports how many times the normalizer recomputed.
func (n *Normalizer) Runs() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.runs
}
