package lead

import (
	"github.com/raphaelgruber/dispatchdesk/internal/models"
	"github.com/raphaelgruber/dispatchdesk/internal/timeline"
)

const (
	executeBlockedReason = "A subcontractor is already assigned to a job for this lead"
	runInFlightReason    = "An agent run is already in progress"
)

// View is an immutable snapshot of the detail view state.
type View struct {
	LeadID string
	Phase  Phase

	// Loading and Error are independent: a reload can be in flight while
	// the previous failure is still shown.
	Loading        bool
	Running        bool
	RunningMode    models.RunMode
	Error          string
	Stale          bool
	SignInRequired bool

	Lead           *models.Lead
	PricingRules   []models.PricingRule
	Subcontractors []models.Subcontractor
	Jobs           []models.Job
	Timeline       []timeline.Entry

	Result *models.AgentRunResult
	Plan   *PlanView

	ExecuteBlocked       bool
	ExecuteBlockedReason string

	subcontractorNames map[string]string
}

// PlanView is the agent plan formatted for display.
type PlanView struct {
	ServiceCode     string
	Urgency         string
	Total           string
	Schedule        string
	Subcontractor   string
	CustomerMessage string
	Confidence      string
	ConfidenceScore float64
	ConfidenceKnown bool
}

// Busy reports whether any request is in flight.
func (v View) Busy() bool {
	return v.Loading || v.Running
}

// CanRun reports whether mode may be started now, and if not, why.
func (v View) CanRun(mode models.RunMode) (bool, string) {
	if v.Running {
		return false, runInFlightReason
	}
	if mode == models.ModeExecute && v.ExecuteBlocked {
		return false, v.ExecuteBlockedReason
	}
	return true, ""
}

// SubcontractorName resolves a subcontractor id to its display name,
// falling back to the id itself and then to the placeholder.
func (v View) SubcontractorName(id string) string {
	if name, ok := v.subcontractorNames[id]; ok && name != "" {
		return name
	}
	if id != "" {
		return id
	}
	return models.Placeholder
}

// View returns a snapshot of the current state.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	v := View{
		LeadID:         o.leadID,
		Phase:          o.phase,
		Loading:        o.phase == PhaseLoading,
		Running:        o.running,
		RunningMode:    o.runMode,
		Error:          o.errMsg,
		Stale:          o.stale,
		SignInRequired: o.signInRequired,
		Lead:           o.lead,
		PricingRules:   o.pricingRules,
		Subcontractors: o.subcontractors,
		Jobs:           o.jobs,
		Result:         o.result,
		ExecuteBlocked: executeBlocked(o.jobs),
	}
	events := o.events
	o.mu.Unlock()

	v.Timeline = o.normalizer.Normalize(events)
	if v.ExecuteBlocked {
		v.ExecuteBlockedReason = executeBlockedReason
	}
	v.subcontractorNames = make(map[string]string, len(v.Subcontractors))
	for _, s := range v.Subcontractors {
		v.subcontractorNames[s.ID] = s.Name
	}
	if v.Result != nil && v.Result.Plan != nil {
		v.Plan = planView(*v.Result.Plan, v.SubcontractorName)
	}
	return v
}

func planView(p models.Plan, subName func(string) string) *PlanView {
	pv := &PlanView{
		ServiceCode:     orPlaceholder(p.ServiceCode),
		Urgency:         orPlaceholder(p.Urgency),
		Total:           models.FormatOptionalCents(p.TotalCents),
		Schedule:        orPlaceholder(p.Window()),
		Subcontractor:   models.Placeholder,
		CustomerMessage: orPlaceholder(p.CustomerMessage),
		Confidence:      p.Confidence.String(),
		ConfidenceScore: p.Confidence.Score,
		ConfidenceKnown: p.Confidence.Known,
	}
	if p.SubcontractorID != "" {
		pv.Subcontractor = subName(p.SubcontractorID)
	}
	return pv
}

func orPlaceholder(s string) string {
	if s == "" {
		return models.Placeholder
	}
	return s
}
