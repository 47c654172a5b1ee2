// Package console is the interactive terminal console: lead, job and
// subcontractor screens, the lead detail view and the global search box.
package console

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/raphaelgruber/dispatchdesk/internal/client"
	"github.com/raphaelgruber/dispatchdesk/internal/lead"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
	"github.com/raphaelgruber/dispatchdesk/internal/search"
)

// API is everything the console reads and writes.
type API interface {
	lead.API
	search.Source
	GetServices(ctx context.Context) ([]models.Service, error)
	GetQuote(ctx context.Context, id string) (*models.Quote, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	UpdateAssignment(ctx context.Context, id string, input models.AssignmentInput) (*models.Assignment, error)
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
}

type screen int

const (
	screenLeads screen = iota
	screenLeadDetail
	screenJobs
	screenSubcontractors
	screenServices
	screenQuote
	screenJob
	screenAssignment
	screenNotification
	screenSignIn
)

// location is a screen plus the record it shows, if any.
type location struct {
	screen screen
	id     string
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSignInURL sets the URL shown when the session has expired.
func WithSignInURL(u string) Option {
	return func(a *App) { a.signInURL = u }
}

// WithSearchOptions passes options through to the search aggregator.
func WithSearchOptions(opts ...search.Option) Option {
	return func(a *App) { a.searchOpts = append(a.searchOpts, opts...) }
}

// App is the bubbletea model for the console.
type App struct {
	api       API
	logger    *slog.Logger
	theme     Theme
	signInURL string

	// send delivers messages produced outside Update (search results).
	send func(tea.Msg)

	loc   location
	stack []location
	// seq changes on every navigation; responses carrying an older seq
	// belong to a screen the operator already left.
	seq     int
	cursor  int
	loading bool
	err     string
	status  string

	leads          []models.Lead
	jobs           []models.Job
	subcontractors []models.Subcontractor
	services       []models.Service
	pricingRules   []models.PricingRule
	quote          *models.Quote
	job            *models.Job
	assignment     *models.Assignment
	notification   *models.Notification
	updating       bool

	orch *lead.Orchestrator

	searching    bool
	input        textinput.Model
	searchOpts   []search.Option
	agg          *search.Aggregator
	searchCursor int

	bar      progress.Model
	width    int
	quitting bool
}

// New creates the console model. It starts on the leads screen.
func New(api API, opts ...Option) *App {
	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = "Search leads, jobs, subcontractors"

	a := &App{
		api:    api,
		logger: slog.New(slog.DiscardHandler),
		theme:  defaultTheme,
		input:  input,
		bar: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
		loc: location{screen: screenLeads},
	}
	for _, opt := range opts {
		opt(a)
	}

	searchOpts := append([]search.Option{
		search.WithLogger(a.logger),
		search.OnUpdate(func(search.State) { a.post(searchUpdatedMsg{}) }),
	}, a.searchOpts...)
	a.agg = search.New(api, searchOpts...)
	return a
}

// post delivers msg to the running program without blocking the caller,
// which may be Update itself.
func (a *App) post(msg tea.Msg) {
	if a.send != nil {
		go a.send(msg)
	}
}

// Init loads the first screen.
func (a *App) Init() tea.Cmd {
	a.loading = true
	return a.load()
}

// Update handles messages and returns the updated model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		return a, nil

	case tea.KeyPressMsg:
		if a.searching {
			return a, a.handleSearchKey(msg)
		}
		return a, a.handleKey(msg.String())

	case loadedMsg:
		a.handleLoaded(msg)
		return a, nil

	case leadMsg:
		return a, a.handleLeadMsg(msg)

	case searchUpdatedMsg:
		st := a.agg.State()
		if a.searchCursor >= searchResultCount(st) {
			a.searchCursor = 0
		}
		return a, nil

	case progress.FrameMsg:
		var cmd tea.Cmd
		a.bar, cmd = a.bar.Update(msg)
		return a, cmd
	}
	return a, nil
}

// View renders the current screen.
func (a *App) View() tea.View {
	return tea.NewView(a.render())
}

// handleKey applies a key outside the search box.
func (a *App) handleKey(key string) tea.Cmd {
	switch key {
	case "ctrl+c", "q":
		return a.quit()
	case "/":
		a.searching = true
		return a.input.Focus()
	case "esc", "backspace":
		return a.back()
	case "1":
		return a.jump(location{screen: screenLeads})
	case "2":
		return a.jump(location{screen: screenJobs})
	case "3":
		return a.jump(location{screen: screenSubcontractors})
	case "4":
		return a.jump(location{screen: screenServices})
	case "r":
		return a.refresh()
	case "up", "k", "shift+tab":
		if a.cursor > 0 {
			a.cursor--
		}
		return nil
	case "down", "j", "tab":
		if a.cursor < len(a.targets())-1 {
			a.cursor++
		}
		return nil
	case "enter":
		targets := a.targets()
		if a.cursor < len(targets) {
			return a.navigate(targets[a.cursor])
		}
		return nil
	}

	switch a.loc.screen {
	case screenLeadDetail:
		switch key {
		case "p":
			return a.runAgent(models.ModePlanOnly)
		case "x":
			return a.runAgent(models.ModeExecute)
		}
	case screenAssignment:
		if key == "d" {
			return a.declineAssignment()
		}
	}
	return nil
}

func (a *App) quit() tea.Cmd {
	a.quitting = true
	a.leaveLead()
	a.agg.Close()
	return tea.Quit
}

func (a *App) handleSearchKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return a.quit()
	case "esc":
		a.closeSearch()
		return nil
	case "up":
		if a.searchCursor > 0 {
			a.searchCursor--
		}
		return nil
	case "down", "tab":
		if a.searchCursor < searchResultCount(a.agg.State())-1 {
			a.searchCursor++
		}
		return nil
	case "enter":
		target, ok := searchTarget(a.agg.State(), a.searchCursor)
		if !ok {
			return nil
		}
		a.closeSearch()
		return a.navigate(target)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.setQuery(a.input.Value())
	return cmd
}

func (a *App) setQuery(q string) {
	a.searchCursor = 0
	a.agg.SetQuery(q)
}

func (a *App) closeSearch() {
	a.searching = false
	a.input.Blur()
	a.input.SetValue("")
	a.setQuery("")
}

// navigate opens loc, remembering the current screen for back.
func (a *App) navigate(loc location) tea.Cmd {
	a.stack = append(a.stack, a.loc)
	return a.enter(loc)
}

// jump opens a top-level screen and forgets the history.
func (a *App) jump(loc location) tea.Cmd {
	a.stack = nil
	return a.enter(loc)
}

func (a *App) back() tea.Cmd {
	if len(a.stack) == 0 {
		return nil
	}
	prev := a.stack[len(a.stack)-1]
	a.stack = a.stack[:len(a.stack)-1]
	return a.enter(prev)
}

func (a *App) enter(loc location) tea.Cmd {
	a.leaveLead()
	a.loc = loc
	a.seq++
	a.cursor = 0
	a.err = ""
	a.status = ""
	a.loading = true
	a.logger.Debug("navigate", "screen", loc.screen, "id", loc.id)
	return a.load()
}

func (a *App) refresh() tea.Cmd {
	a.seq++
	a.err = ""
	a.loading = true
	return a.load()
}

// leaveLead closes the lead orchestrator so its late results are dropped.
func (a *App) leaveLead() {
	if a.orch != nil {
		a.orch.Close()
		a.orch = nil
	}
}

// signIn switches to the sign-in notice. Nothing on it can be retried.
func (a *App) signIn() {
	a.leaveLead()
	a.stack = nil
	a.loc = location{screen: screenSignIn}
	a.seq++
	a.loading = false
	a.err = ""
}

func (a *App) handleLoaded(msg loadedMsg) {
	if msg.seq != a.seq {
		return
	}
	a.loading = false
	a.updating = false
	if msg.err != nil {
		if client.IsUnauthorized(msg.err) {
			a.signIn()
			return
		}
		a.err = client.Message(msg.err)
		a.logger.Warn("load failed", "screen", a.loc.screen, "error", msg.err)
		return
	}
	a.err = ""
	msg.apply(a)
	if n := len(a.targets()); a.cursor >= n {
		a.cursor = max(n-1, 0)
	}
}

func (a *App) handleLeadMsg(msg leadMsg) tea.Cmd {
	if msg.orch != a.orch {
		return nil
	}
	a.loading = false
	v := a.orch.View()
	if v.SignInRequired {
		a.signIn()
		return nil
	}
	if msg.run {
		a.status = ""
		switch {
		case errors.Is(msg.err, lead.ErrRunInFlight), errors.Is(msg.err, lead.ErrExecuteBlocked):
			a.status = msg.err.Error()
		case msg.err == nil && v.Stale:
			a.status = "Agent run finished; refresh failed, data may be stale"
		case msg.err == nil:
			a.status = "Agent run finished"
		}
	}
	if n := len(a.targets()); a.cursor >= n {
		a.cursor = max(n-1, 0)
	}
	return nil
}

func (a *App) runAgent(mode models.RunMode) tea.Cmd {
	if a.orch == nil {
		return nil
	}
	if ok, reason := a.orch.View().CanRun(mode); !ok {
		a.status = reason
		return nil
	}
	a.status = "Running agent (" + strings.ReplaceAll(string(mode), "_", " ") + ")..."
	return runAgentCmd(a.orch, mode)
}

func (a *App) declineAssignment() tea.Cmd {
	if a.assignment == nil || a.assignment.Declined() || a.updating {
		return nil
	}
	a.updating = true
	return declineCmd(a.api, a.seq, a.assignment.ID)
}

// targets lists the selectable destinations on the current screen, in
// display order.
func (a *App) targets() []location {
	var out []location
	switch a.loc.screen {
	case screenLeads:
		for _, l := range a.leads {
			out = append(out, location{screen: screenLeadDetail, id: l.ID})
		}
	case screenJobs:
		for _, j := range a.jobs {
			out = append(out, location{screen: screenJob, id: j.ID})
		}
	case screenLeadDetail:
		if a.orch == nil {
			return nil
		}
		v := a.orch.View()
		for _, j := range v.Jobs {
			out = append(out, location{screen: screenJob, id: j.ID})
		}
		for _, e := range v.Timeline {
			if e.Link == nil {
				continue
			}
			if loc, ok := routeLocation(e.Link.Route); ok {
				out = append(out, loc)
			}
		}
	case screenJob:
		if a.job == nil {
			return nil
		}
		for _, as := range a.job.Assignments {
			if as.ID != "" {
				out = append(out, location{screen: screenAssignment, id: as.ID})
			}
		}
		if a.job.Notification != nil && a.job.Notification.ID != "" {
			out = append(out, location{screen: screenNotification, id: a.job.Notification.ID})
		}
	case screenQuote:
		if a.quote != nil && a.quote.LeadID != "" {
			out = append(out, location{screen: screenLeadDetail, id: a.quote.LeadID})
		}
	case screenAssignment:
		if a.assignment != nil {
			if id := a.assignment.LinkedJobID(); id != "" {
				out = append(out, location{screen: screenJob, id: id})
			}
		}
	case screenNotification:
		if a.notification != nil {
			if a.notification.Lead != nil && a.notification.Lead.ID != "" {
				out = append(out, location{screen: screenLeadDetail, id: a.notification.Lead.ID})
			}
			if a.notification.Job != nil && a.notification.Job.ID != "" {
				out = append(out, location{screen: screenJob, id: a.notification.Job.ID})
			}
		}
	}
	return out
}

// routeLocation maps a record route such as "/quotes/Q1" to a screen.
func routeLocation(route string) (location, bool) {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	if len(parts) != 2 || !client.ValidID(parts[1]) {
		return location{}, false
	}
	screens := map[string]screen{
		"leads":         screenLeadDetail,
		"quotes":        screenQuote,
		"jobs":          screenJob,
		"assignments":   screenAssignment,
		"notifications": screenNotification,
	}
	s, ok := screens[parts[0]]
	if !ok {
		return location{}, false
	}
	return location{screen: s, id: parts[1]}, true
}

func searchResultCount(st search.State) int {
	return len(st.TopLeads()) + len(st.TopJobs()) + len(st.TopSubcontractors())
}

// searchTarget resolves the i-th visible search result.
func searchTarget(st search.State, i int) (location, bool) {
	if !st.Active {
		return location{}, false
	}
	leads, jobs, subs := st.TopLeads(), st.TopJobs(), st.TopSubcontractors()
	switch {
	case i < 0:
		return location{}, false
	case i < len(leads):
		return location{screen: screenLeadDetail, id: leads[i].ID}, true
	case i < len(leads)+len(jobs):
		return location{screen: screenJob, id: jobs[i-len(leads)].ID}, true
	case i < len(leads)+len(jobs)+len(subs):
		return location{screen: screenSubcontractors}, true
	}
	return location{}, false
}
