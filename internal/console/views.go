package console

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/dispatchdesk/internal/lead"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
	"github.com/raphaelgruber/dispatchdesk/internal/search"
	"github.com/raphaelgruber/dispatchdesk/internal/timeline"
)

var screenTitles = map[screen]string{
	screenLeads:          "Leads",
	screenLeadDetail:     "Lead",
	screenJobs:           "Jobs",
	screenSubcontractors: "Subcontractors",
	screenServices:       "Services & pricing",
	screenQuote:          "Quote",
	screenJob:            "Job",
	screenAssignment:     "Assignment",
	screenNotification:   "Notification",
	screenSignIn:         "Sign in required",
}

var icons = map[timeline.Icon]string{
	timeline.IconAlert:    "✗",
	timeline.IconAgent:    "●",
	timeline.IconSettings: "⚙",
	timeline.IconCheck:    "✓",
}

func (a *App) render() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.theme.titleStyle().Render("Dispatch · "+screenTitles[a.loc.screen]) + "\n")

	if a.searching {
		b.WriteString(a.input.View() + "\n")
		b.WriteString(a.renderSearch(a.agg.State()))
	}

	switch a.loc.screen {
	case screenSignIn:
		b.WriteString(a.renderSignIn())
		return b.String()
	case screenLeadDetail:
		b.WriteString(a.renderLeadDetail())
	default:
		if a.loading {
			b.WriteString(a.theme.hintStyle().Render("Loading...") + "\n")
		}
		if a.err != "" {
			b.WriteString(a.theme.errorStyle().Render(a.err) + "\n")
		}
		b.WriteString(a.renderScreen())
	}

	if a.status != "" {
		b.WriteString("\n" + a.theme.statusStyle().Render(a.status) + "\n")
	}
	b.WriteString("\n" + a.theme.hintStyle().Render(a.help()) + "\n")
	return b.String()
}

func (a *App) help() string {
	base := "1 leads · 2 jobs · 3 subcontractors · 4 services · / search · r refresh · esc back · q quit"
	switch a.loc.screen {
	case screenLeadDetail:
		return "p plan only · x execute · tab select · enter open · " + base
	case screenAssignment:
		return "d mark as refused · enter open job · " + base
	}
	return base
}

// cursorLine marks the selected row.
func (a *App) cursorLine(i int, line string) string {
	if i == a.cursor {
		return a.theme.selectedStyle().Render("> "+line) + "\n"
	}
	return "  " + line + "\n"
}

func (a *App) renderScreen() string {
	var b strings.Builder
	switch a.loc.screen {
	case screenLeads:
		if !a.loading && len(a.leads) == 0 {
			b.WriteString("No leads found.\n")
		}
		for i, l := range a.leads {
			line := fmt.Sprintf("%-24s %-22s %s", l.FullName, l.ServiceRequested, a.theme.badge(l.Status, l.Failed()))
			b.WriteString(a.cursorLine(i, line))
		}

	case screenJobs:
		if !a.loading && len(a.jobs) == 0 {
			b.WriteString("No jobs found.\n")
		}
		for i, j := range a.jobs {
			sub := j.SubcontractorName()
			if sub == "" {
				sub = "Unassigned"
			}
			line := fmt.Sprintf("%-10s %-12s %-24s %s", j.ID, j.Status, j.Schedule(), sub)
			b.WriteString(a.cursorLine(i, line))
		}

	case screenSubcontractors:
		for _, s := range a.subcontractors {
			b.WriteString(renderSubcontractor(s))
		}

	case screenServices:
		b.WriteString(a.theme.headingStyle().Render("Services") + "\n")
		for _, s := range a.services {
			fmt.Fprintf(&b, "  %-20s %s\n", s.Code, s.Name)
		}
		b.WriteString(a.theme.headingStyle().Render("Pricing rules") + "\n")
		for _, r := range a.pricingRules {
			b.WriteString("  " + renderPricingRule(r) + "\n")
		}

	case screenQuote:
		b.WriteString(a.renderQuote())
	case screenJob:
		b.WriteString(a.renderJob())
	case screenAssignment:
		b.WriteString(a.renderAssignment())
	case screenNotification:
		b.WriteString(a.renderNotification())
	}
	return b.String()
}

func renderSubcontractor(s models.Subcontractor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s  %s\n", s.Name, s.Phone)
	fmt.Fprintf(&b, "    Services: %s\n", s.Services())
	for _, av := range s.Availabilities {
		fmt.Fprintf(&b, "    %s %s-%s\n", av.Weekday(), av.WindowStart, av.WindowEnd)
	}
	return b.String()
}

func renderPricingRule(r models.PricingRule) string {
	return fmt.Sprintf("%-20s min %s / max %s / base %s", r.ServiceCode,
		models.FormatCents(r.MinPriceCents), models.FormatCents(r.MaxPriceCents), models.FormatCents(r.BasePriceCents))
}

func (a *App) renderQuote() string {
	q := a.quote
	if q == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Quote %s for lead %s\n", q.ID, q.LeadID)
	fmt.Fprintf(&b, "Confidence: %s\n", q.Confidence)
	b.WriteString(a.theme.headingStyle().Render("Line items") + "\n")
	for _, item := range q.LineItems {
		fmt.Fprintf(&b, "  %-32s %3d × %10s = %10s\n", item.Description, item.Quantity,
			models.FormatCents(item.UnitPriceCents), models.FormatCents(item.TotalCents))
	}
	fmt.Fprintf(&b, "\n  Subtotal %s\n  Total    %s\n", models.FormatCents(q.SubtotalCents), models.FormatCents(q.TotalCents))
	if q.LeadID != "" {
		b.WriteString(a.cursorLine(0, "Open lead"))
	}
	return b.String()
}

func (a *App) renderJob() string {
	j := a.job
	if j == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Job %s %s\n", j.ID, a.theme.badge(j.Status, false))
	fmt.Fprintf(&b, "Schedule: %s\n", j.Schedule())
	b.WriteString(a.theme.headingStyle().Render("Assignments") + "\n")
	i := 0
	if len(j.Assignments) == 0 {
		b.WriteString("  Unassigned\n")
	}
	for _, as := range j.Assignments {
		name := "Unassigned"
		if as.Subcontractor != nil && as.Subcontractor.Name != "" {
			name = as.Subcontractor.Name
		}
		line := name + " " + a.theme.badge(as.Status, as.Declined())
		if as.ID == "" {
			b.WriteString("  " + line + "\n")
			continue
		}
		b.WriteString(a.cursorLine(i, line))
		i++
	}
	b.WriteString(a.theme.headingStyle().Render("Notification") + "\n")
	if n := j.Notification; n != nil {
		line := fmt.Sprintf("%s to %s", n.Status, n.To)
		if n.ID != "" {
			b.WriteString(a.cursorLine(i, line))
		} else {
			b.WriteString("  " + line + "\n")
		}
	} else {
		b.WriteString("  " + models.Placeholder + "\n")
	}
	return b.String()
}

func (a *App) renderAssignment() string {
	as := a.assignment
	if as == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Assignment %s %s\n", as.ID, a.theme.badge(as.Status, as.Declined()))
	if as.Subcontractor != nil {
		fmt.Fprintf(&b, "Subcontractor: %s  %s\n", as.Subcontractor.Name, as.Subcontractor.Phone)
	}
	if id := as.LinkedJobID(); id != "" {
		b.WriteString(a.cursorLine(0, "Job "+id))
	}
	switch {
	case as.Declined():
		b.WriteString(a.theme.hintStyle().Render("Already refused.") + "\n")
	case a.updating:
		b.WriteString(a.theme.hintStyle().Render("Updating...") + "\n")
	default:
		b.WriteString(a.theme.hintStyle().Render("Press d to mark as refused.") + "\n")
	}
	return b.String()
}

func (a *App) renderNotification() string {
	n := a.notification
	if n == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Notification %s %s via %s\n", n.ID, a.theme.badge(n.Status, false), n.Channel)
	fmt.Fprintf(&b, "To: %s\n", n.To)
	fmt.Fprintf(&b, "Subject: %s\n", models.ValueOr(n.Subject))
	fmt.Fprintf(&b, "\n%s\n", n.Body)
	i := 0
	if n.Lead != nil && n.Lead.ID != "" {
		b.WriteString(a.cursorLine(i, "Lead "+n.Lead.ID))
		i++
	}
	if n.Job != nil && n.Job.ID != "" {
		b.WriteString(a.cursorLine(i, "Job "+n.Job.ID))
	}
	return b.String()
}

func (a *App) renderSignIn() string {
	url := a.signInURL
	if url == "" {
		url = "/sign-in"
	}
	return "\nYour session has expired.\nSign in at " + a.theme.statusStyle().Render(url) +
		" and restart the console.\n\n" + a.theme.hintStyle().Render("q quit") + "\n"
}

func (a *App) renderLeadDetail() string {
	if a.orch == nil {
		return ""
	}
	v := a.orch.View()
	var b strings.Builder

	switch {
	case v.Lead == nil && v.Loading:
		b.WriteString(a.theme.hintStyle().Render("Loading lead...") + "\n")
	case v.Loading:
		b.WriteString(a.theme.hintStyle().Render("Refreshing...") + "\n")
	}
	if v.Error != "" {
		b.WriteString(a.theme.errorStyle().Render(v.Error) + "\n")
	}
	if v.Stale {
		b.WriteString(a.theme.hintStyle().Render("Showing data from before the last agent run.") + "\n")
	}
	if v.Lead == nil {
		if !v.Loading {
			b.WriteString("Lead not found.\n")
		}
		return b.String()
	}

	l := v.Lead
	fmt.Fprintf(&b, "%s %s\n%s\n", a.theme.titleStyle().Render(l.FullName), a.theme.badge(l.Status, l.Failed()), l.ServiceRequested)
	fmt.Fprintf(&b, "Email: %s  Phone: %s\n", models.ValueOr(l.Email), models.ValueOr(l.Phone))
	fmt.Fprintf(&b, "Address: %s\n", l.Address())
	fmt.Fprintf(&b, "Urgency: %s  Notes: %s\n", models.ValueOr(l.UrgencyHint), models.ValueOr(l.Notes))

	b.WriteString(a.theme.headingStyle().Render("Pricing rules") + "\n")
	for _, r := range v.PricingRules {
		b.WriteString("  " + renderPricingRule(r) + "\n")
	}

	b.WriteString(a.theme.headingStyle().Render("Subcontractors") + "\n")
	for _, s := range v.Subcontractors {
		fmt.Fprintf(&b, "  %s  %s · %s\n", s.Name, s.Phone, s.Services())
	}

	b.WriteString(a.renderAgent(v))

	i := 0
	b.WriteString(a.theme.headingStyle().Render("Jobs") + "\n")
	if len(v.Jobs) == 0 {
		b.WriteString("  No jobs yet.\n")
	}
	for _, j := range v.Jobs {
		sub := j.SubcontractorName()
		if sub == "" {
			sub = "Unassigned"
		}
		b.WriteString(a.cursorLine(i, fmt.Sprintf("%s %s %s %s", j.ID, j.Status, j.Schedule(), sub)))
		i++
	}

	b.WriteString(a.theme.headingStyle().Render("Activity") + "\n")
	if len(v.Timeline) == 0 {
		b.WriteString("  No activity yet.\n")
	}
	for _, e := range v.Timeline {
		b.WriteString(a.renderEntry(e, &i))
	}
	return b.String()
}

func (a *App) renderAgent(v lead.View) string {
	var b strings.Builder
	b.WriteString(a.theme.headingStyle().Render("Agent output") + "\n")

	plan := "[p] Run agent (plan only)"
	execute := "[x] Run agent (execute)"
	if ok, _ := v.CanRun(models.ModePlanOnly); !ok {
		plan = a.theme.hintStyle().Render(plan)
	}
	if ok, reason := v.CanRun(models.ModeExecute); !ok {
		execute = a.theme.hintStyle().Render(execute + " · " + reason)
	}
	b.WriteString("  " + plan + "   " + execute + "\n")
	if v.Running {
		b.WriteString(a.theme.statusStyle().Render("  Agent running...") + "\n")
	}

	if v.Plan == nil {
		b.WriteString("  Run the agent to view the plan and generated records.\n")
		return b.String()
	}
	p := v.Plan
	fmt.Fprintf(&b, "  Service: %s  Urgency: %s\n", p.ServiceCode, p.Urgency)
	fmt.Fprintf(&b, "  Total: %s  Schedule: %s\n", p.Total, p.Schedule)
	fmt.Fprintf(&b, "  Subcontractor: %s\n", p.Subcontractor)
	if p.ConfidenceKnown {
		fmt.Fprintf(&b, "  Confidence: %s %s\n", a.bar.ViewAs(p.ConfidenceScore), p.Confidence)
	} else {
		fmt.Fprintf(&b, "  Confidence: %s\n", p.Confidence)
	}
	fmt.Fprintf(&b, "  Message: %s\n", p.CustomerMessage)

	r := v.Result
	if msg := r.ErrorText(); msg != "" {
		b.WriteString(a.theme.errorStyle().Render("  Errors: "+msg) + "\n")
	}
	if !r.Executed() {
		b.WriteString(a.theme.hintStyle().Render("  Plan only: no records were created.") + "\n")
		return b.String()
	}
	if r.Quote != nil {
		fmt.Fprintf(&b, "  Quote %s %s\n", r.Quote.ID, models.FormatCents(r.Quote.TotalCents))
	}
	if r.Job != nil {
		fmt.Fprintf(&b, "  Job %s %s\n", r.Job.ID, r.Job.Schedule())
	}
	if r.Assignment != nil {
		fmt.Fprintf(&b, "  Assignment %s %s\n", r.Assignment.ID, a.theme.badge(r.Assignment.Status, r.Assignment.Declined()))
	}
	if r.Notification != nil {
		fmt.Fprintf(&b, "  Notification %s %s\n", r.Notification.ID, r.Notification.Status)
	}
	return b.String()
}

// renderEntry draws one timeline row. Linked rows take the next cursor
// slot, matching the order targets() lists them.
func (a *App) renderEntry(e timeline.Entry, slot *int) string {
	icon := icons[e.Icon]
	title := e.Title
	style := a.theme.successStyle()
	if e.IsError {
		style = a.theme.errorStyle()
	}

	var b strings.Builder
	var linkLine string
	if e.Link != nil {
		if _, ok := routeLocation(e.Link.Route); ok {
			selected := *slot == a.cursor
			*slot++
			label := e.Link.Label + " →"
			if selected {
				label = a.theme.selectedStyle().Render("> " + label)
			}
			if e.Link.Inline {
				title = label
			} else {
				linkLine = "    " + label + "\n"
			}
		}
	}

	fmt.Fprintf(&b, "  %s %s  %s\n", style.Render(icon), title, a.theme.hintStyle().Render(e.Timestamp))
	if sub := e.Subtitle(); sub != "" {
		fmt.Fprintf(&b, "    %s\n", sub)
	}
	if e.ErrorMessage != "" {
		b.WriteString("    " + a.theme.errorStyle().Render(e.ErrorMessage) + "\n")
	}
	b.WriteString(linkLine)
	return b.String()
}

func (a *App) renderSearch(st search.State) string {
	if !st.Active {
		return ""
	}
	var b strings.Builder
	if st.Loading {
		b.WriteString(a.theme.hintStyle().Render("Searching...") + "\n")
	}
	if st.Error != "" {
		b.WriteString(a.theme.errorStyle().Render(st.Error) + "\n")
	}

	i := 0
	line := func(s string) {
		if i == a.searchCursor {
			b.WriteString(a.theme.selectedStyle().Render("> "+s) + "\n")
		} else {
			b.WriteString("  " + s + "\n")
		}
		i++
	}

	fmt.Fprintf(&b, "%s (%d)\n", a.theme.headingStyle().Render("Leads"), len(st.Results.Leads))
	for _, l := range st.TopLeads() {
		line(l.FullName + " · " + l.ServiceRequested)
	}
	fmt.Fprintf(&b, "%s (%d)\n", a.theme.headingStyle().Render("Jobs"), len(st.Results.Jobs))
	for _, j := range st.TopJobs() {
		line(j.ID + " · " + j.Status + " · " + j.Schedule())
	}
	fmt.Fprintf(&b, "%s (%d)\n", a.theme.headingStyle().Render("Subcontractors"), len(st.Results.Subcontractors))
	for _, s := range st.TopSubcontractors() {
		line(s.Name + " · " + s.Phone)
	}
	return b.String() + "\n"
}
