package console

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/dispatchdesk/internal/apitest"
	"github.com/raphaelgruber/dispatchdesk/internal/client"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
	"github.com/raphaelgruber/dispatchdesk/internal/search"
)

// drive runs cmd and feeds every resulting message back into the app
// until no command is left.
func drive(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			return
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				drive(t, a, c)
			}
			return
		}
		_, cmd = a.Update(msg)
	}
}

type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

type manualTimer struct{}

func (manualTimer) Stop() bool { return true }

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) search.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = []func(){f}
	return manualTimer{}
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func newTestServer(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.New(t)
	srv.Seed(func(d *apitest.Data) {
		d.Leads = []models.Lead{
			{ID: "L1", FullName: "Ada Park", ServiceRequested: "Tree removal", Status: "new"},
			{ID: "L2", FullName: "Ben Ortiz", ServiceRequested: "Gutter cleaning", Status: "failed"},
		}
		d.Subcontractors = []models.Subcontractor{{ID: "S1", Name: "Acme Trees", Phone: "512-555-0100", ServiceCodes: []string{"tree_removal"}}}
		d.PricingRules = []models.PricingRule{{ID: "P1", ServiceCode: "tree_removal", MinPriceCents: 20000, MaxPriceCents: 90000, BasePriceCents: 45000}}
		d.Services = []models.Service{{ID: "SV1", Name: "Tree removal", Code: "tree_removal"}}
		d.Quotes = []models.Quote{{ID: "Q1", LeadID: "L1", SubtotalCents: 45000, TotalCents: 45000}}
		d.Assignments = []models.Assignment{{ID: "A1", Status: models.AssignmentAssigned, JobID: "J1",
			Subcontractor: &models.SubcontractorRef{Name: "Acme Trees"}}}
		d.Timelines["L1"] = json.RawMessage(`[
			{"type":"agent_run","id":"r1","status":"completed","model":"gpt-4o"},
			{"type":"execution_action","id":"e1","action_type":"create_quote","status":"completed","payload":{"quote_id":"Q1"}}
		]`)
	})
	return srv
}

func newTestApp(t *testing.T, srv *apitest.Server, opts ...Option) *App {
	t.Helper()
	c := client.New(srv.BaseURL())
	a := New(c, append([]Option{WithSignInURL(srv.URL + "/sign-in")}, opts...)...)
	drive(t, a, a.Init())
	return a
}

func TestLeadsScreen(t *testing.T) {
	srv := newTestServer(t)
	a := newTestApp(t, srv)

	out := a.render()
	assert.Contains(t, out, "Ada Park")
	assert.Contains(t, out, "Ben Ortiz")
	assert.Contains(t, out, "[failed]")
	assert.False(t, a.loading)
	assert.Len(t, a.targets(), 2)
}

func TestOpenLeadAndRunPlanOnly(t *testing.T) {
	srv := newTestServer(t)
	a := newTestApp(t, srv)

	drive(t, a, a.handleKey("enter"))
	require.Equal(t, screenLeadDetail, a.loc.screen)
	require.NotNil(t, a.orch)

	out := a.render()
	assert.Contains(t, out, "Ada Park")
	assert.Contains(t, out, "No jobs yet.")
	assert.Contains(t, out, "Agent run completed")
	assert.Contains(t, out, "Model: gpt-4o")
	assert.Contains(t, out, "Created quote")
	assert.Contains(t, out, "Run the agent to view the plan")

	drive(t, a, a.handleKey("p"))
	out = a.render()
	assert.Contains(t, out, "82%")
	assert.Contains(t, out, "Plan only: no records were created.")
	assert.Equal(t, "Agent run finished", a.status)
	assert.Equal(t, 1, srv.Hits("POST /leads/{id}/agent_runs"))
	assert.Equal(t, 2, srv.Hits("GET /leads/{id}/timeline"))
}

func TestExecuteBlockedInConsole(t *testing.T) {
	srv := newTestServer(t)
	srv.Seed(func(d *apitest.Data) {
		d.Jobs = []models.Job{{ID: "J1", LeadID: "L1", Status: "scheduled",
			Assignments: []models.Assignment{{ID: "A1", Status: models.AssignmentConfirmed}}}}
	})
	a := newTestApp(t, srv)
	drive(t, a, a.handleKey("enter"))

	cmd := a.handleKey("x")
	assert.Nil(t, cmd)
	assert.Equal(t, "A subcontractor is already assigned to a job for this lead", a.status)
	assert.Contains(t, a.render(), "already assigned")
	assert.Zero(t, srv.Hits("POST /leads/{id}/agent_runs"))
}

func TestTimelineLinkOpensQuote(t *testing.T) {
	srv := newTestServer(t)
	a := newTestApp(t, srv)
	drive(t, a, a.handleKey("enter"))

	targets := a.targets()
	require.Len(t, targets, 1)
	assert.Equal(t, location{screen: screenQuote, id: "Q1"}, targets[0])

	drive(t, a, a.handleKey("enter"))
	require.Equal(t, screenQuote, a.loc.screen)
	assert.Nil(t, a.orch)
	assert.Contains(t, a.render(), "$450.00")

	drive(t, a, a.handleKey("esc"))
	assert.Equal(t, screenLeadDetail, a.loc.screen)
	assert.Equal(t, "L1", a.loc.id)
}

func TestDeclineAssignment(t *testing.T) {
	srv := newTestServer(t)
	a := newTestApp(t, srv)
	drive(t, a, a.navigate(location{screen: screenAssignment, id: "A1"}))
	assert.Contains(t, a.render(), "Press d to mark as refused.")

	drive(t, a, a.handleKey("d"))
	require.NotNil(t, a.assignment)
	assert.True(t, a.assignment.Declined())
	assert.Contains(t, a.render(), "Already refused.")
	assert.JSONEq(t, `{"assignment":{"status":"declined"}}`, string(srv.LastBody("PATCH /assignments/{id}")))

	assert.Nil(t, a.handleKey("d"))
	assert.Equal(t, 1, srv.Hits("PATCH /assignments/{id}"))
}

func TestUnauthorizedShowsSignIn(t *testing.T) {
	srv := newTestServer(t)
	srv.Fail("GET /leads", http.StatusUnauthorized, "")
	a := newTestApp(t, srv)

	assert.Equal(t, screenSignIn, a.loc.screen)
	out := a.render()
	assert.Contains(t, out, "Your session has expired.")
	assert.Contains(t, out, srv.URL+"/sign-in")
}

func TestStaleScreenResponseDropped(t *testing.T) {
	srv := newTestServer(t)
	a := newTestApp(t, srv)

	stale := a.refresh()
	drive(t, a, a.jump(location{screen: screenJobs}))

	srv.Seed(func(d *apitest.Data) { d.Leads = nil })
	drive(t, a, stale)

	assert.Equal(t, screenJobs, a.loc.screen)
	assert.Len(t, a.leads, 2)
}

func TestServicesScreen(t *testing.T) {
	srv := newTestServer(t)
	a := newTestApp(t, srv)

	drive(t, a, a.handleKey("4"))
	out := a.render()
	assert.Contains(t, out, "tree_removal")
	assert.Contains(t, out, "min $200.00 / max $900.00 / base $450.00")
}

func TestSearchBox(t *testing.T) {
	srv := newTestServer(t)
	sched := &manualScheduler{}
	a := newTestApp(t, srv, WithSearchOptions(search.WithScheduler(sched)))

	a.handleKey("/")
	require.True(t, a.searching)

	a.input.SetValue("a")
	a.setQuery("a")
	sched.fire()
	assert.Zero(t, srv.Hits("GET /subcontractors"))

	a.input.SetValue("acme")
	a.setQuery("acme")
	sched.fire()
	a.Update(searchUpdatedMsg{})

	st := a.agg.State()
	require.True(t, st.Active)
	require.Len(t, st.TopSubcontractors(), 1)
	assert.Contains(t, a.render(), "Acme Trees · 512-555-0100")

	target, ok := searchTarget(st, 0)
	require.True(t, ok)
	assert.Equal(t, screenSubcontractors, target.screen)

	a.closeSearch()
	assert.False(t, a.searching)
	assert.False(t, a.agg.State().Active)
}

func TestRouteLocation(t *testing.T) {
	tests := []struct {
		route string
		want  location
		ok    bool
	}{
		{"/quotes/Q1", location{screen: screenQuote, id: "Q1"}, true},
		{"/jobs/42", location{screen: screenJob, id: "42"}, true},
		{"/assignments/A1", location{screen: screenAssignment, id: "A1"}, true},
		{"/notifications/N1", location{screen: screenNotification, id: "N1"}, true},
		{"/quotes/undefined", location{}, false},
		{"/invoices/I1", location{}, false},
		{"/quotes", location{}, false},
	}
	for _, tt := range tests {
		got, ok := routeLocation(tt.route)
		assert.Equal(t, tt.ok, ok, tt.route)
		assert.Equal(t, tt.want, got, tt.route)
	}
}
