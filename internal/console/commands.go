package console

import (
	"context"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/dispatchdesk/internal/lead"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

// loadedMsg carries a finished read for the screen identified by seq.
// apply commits the data; it runs inside Update.
type loadedMsg struct {
	seq   int
	err   error
	apply func(a *App)
}

// leadMsg reports that an orchestrator finished a load or run.
type leadMsg struct {
	orch *lead.Orchestrator
	run  bool
	err  error
}

// searchUpdatedMsg signals that the aggregator state changed.
type searchUpdatedMsg struct{}

// load starts the read for the current location.
func (a *App) load() tea.Cmd {
	seq, id, api := a.seq, a.loc.id, a.api

	switch a.loc.screen {
	case screenLeads:
		return func() tea.Msg {
			leads, err := api.GetLeads(context.Background())
			return loadedMsg{seq: seq, err: err, apply: func(a *App) { a.leads = leads }}
		}

	case screenJobs:
		return func() tea.Msg {
			jobs, err := api.GetJobs(context.Background())
			return loadedMsg{seq: seq, err: err, apply: func(a *App) { a.jobs = jobs }}
		}

	case screenSubcontractors:
		return func() tea.Msg {
			subs, err := api.GetSubcontractors(context.Background())
			return loadedMsg{seq: seq, err: err, apply: func(a *App) { a.subcontractors = subs }}
		}

	case screenServices:
		return func() tea.Msg {
			var (
				services []models.Service
				rules    []models.PricingRule
			)
			g, ctx := errgroup.WithContext(context.Background())
			g.Go(func() (err error) {
				services, err = api.GetServices(ctx)
				return err
			})
			g.Go(func() (err error) {
				rules, err = api.GetPricingRules(ctx)
				return err
			})
			err := g.Wait()
			return loadedMsg{seq: seq, err: err, apply: func(a *App) {
				a.services = services
				a.pricingRules = rules
			}}
		}

	case screenQuote:
		return func() tea.Msg {
			quote, err := api.GetQuote(context.Background(), id)
			return loadedMsg{seq: seq, err: err, apply: func(a *App) { a.quote = quote }}
		}

	case screenJob:
		return func() tea.Msg {
			job, err := api.GetJob(context.Background(), id)
			return loadedMsg{seq: seq, err: err, apply: func(a *App) { a.job = job }}
		}

	case screenAssignment:
		return func() tea.Msg {
			as, err := api.GetAssignment(context.Background(), id)
			return loadedMsg{seq: seq, err: err, apply: func(a *App) { a.assignment = as }}
		}

	case screenNotification:
		return func() tea.Msg {
			n, err := api.GetNotification(context.Background(), id)
			return loadedMsg{seq: seq, err: err, apply: func(a *App) { a.notification = n }}
		}

	case screenLeadDetail:
		if a.orch == nil {
			a.orch = lead.New(api, id, lead.WithLogger(a.logger))
		}
		orch := a.orch
		return func() tea.Msg {
			err := orch.LoadAll(context.Background())
			return leadMsg{orch: orch, err: err}
		}
	}

	a.loading = false
	return nil
}

func runAgentCmd(orch *lead.Orchestrator, mode models.RunMode) tea.Cmd {
	return func() tea.Msg {
		_, err := orch.RunAgent(context.Background(), mode)
		return leadMsg{orch: orch, run: true, err: err}
	}
}

// declineCmd marks an assignment as refused, then re-reads it so the
// screen shows the server's state rather than a local patch.
func declineCmd(api API, seq int, id string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		_, err := api.UpdateAssignment(ctx, id, models.AssignmentInput{Status: models.AssignmentDeclined})
		if err != nil {
			return loadedMsg{seq: seq, err: err, apply: func(*App) {}}
		}
		as, err := api.GetAssignment(ctx, id)
		return loadedMsg{seq: seq, err: err, apply: func(a *App) {
			a.assignment = as
			a.status = "Assignment marked as refused"
		}}
	}
}
