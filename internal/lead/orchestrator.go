// Package lead coordinates everything the lead detail view shows: the
// parallel reads that assemble it, the agent run action and its guards.
package lead

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/dispatchdesk/internal/client"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
	"github.com/raphaelgruber/dispatchdesk/internal/timeline"
)

// API is the subset of the dispatch client the orchestrator needs.
type API interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	GetPricingRules(ctx context.Context) ([]models.PricingRule, error)
	GetSubcontractors(ctx context.Context) ([]models.Subcontractor, error)
	GetTimeline(ctx context.Context, leadID string) ([]models.TimelineEvent, error)
	GetJobs(ctx context.Context) ([]models.Job, error)
	RunAgent(ctx context.Context, leadID string, mode models.RunMode) (*models.AgentRunResult, error)
}

var (
	// ErrRunInFlight is returned when an agent run is requested while
	// another one has not finished.
	ErrRunInFlight = errors.New("agent run already in progress")

	// ErrExecuteBlocked is returned for execute runs while a linked job
	// already has an active assignment.
	ErrExecuteBlocked = errors.New("execute blocked: a subcontractor is already assigned")

	// ErrDiscarded is returned when a result arrived after it was
	// superseded by a newer load or the orchestrator was closed.
	ErrDiscarded = errors.New("result discarded")
)

const (
	loadFailedMessage = "Failed to load lead"
	runFailedMessage  = "Agent run failed"
)

// Phase is the load state of the detail view.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// OnChange registers a callback invoked with a fresh View after every
// state transition. It runs on the goroutine that caused the change and
// must not call back into the orchestrator synchronously.
func OnChange(fn func(View)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// Orchestrator owns the state of one lead detail view. It is safe for
// concurrent use; state commits are serialized and tagged with a load
// generation so only the newest load is ever applied.
type Orchestrator struct {
	api      API
	leadID   string
	logger   *slog.Logger
	onChange func(View)

	normalizer timeline.Normalizer

	// base is cancelled by Close; every request context derives from it.
	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	phase   Phase
	gen     uint64
	closed  bool
	running bool
	runMode models.RunMode

	lead           *models.Lead
	pricingRules   []models.PricingRule
	subcontractors []models.Subcontractor
	jobs           []models.Job
	events         []models.TimelineEvent
	result         *models.AgentRunResult

	errMsg         string
	stale          bool
	signInRequired bool
}

// New creates an orchestrator for leadID. Nothing is fetched until LoadAll.
func New(api API, leadID string, opts ...Option) *Orchestrator {
	base, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		api:    api,
		leadID: leadID,
		logger: slog.New(slog.DiscardHandler),
		base:   base,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LeadID returns the lead this orchestrator was created for.
func (o *Orchestrator) LeadID() string {
	return o.leadID
}

// Close cancels in-flight requests. Results that still arrive are dropped.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()
}

// requestContext ties ctx to the orchestrator's lifetime.
func (o *Orchestrator) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(o.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// guard rejects absent or placeholder lead ids without touching the network.
func (o *Orchestrator) guard() error {
	if err := client.CheckID(o.leadID, "Lead"); err != nil {
		o.mu.Lock()
		o.errMsg = err.Error()
		if o.phase == PhaseIdle {
			o.phase = PhaseError
		}
		o.mu.Unlock()
		o.notify()
		return err
	}
	return nil
}

// loadResult holds one complete set of reads.
type loadResult struct {
	lead           *models.Lead
	pricingRules   []models.PricingRule
	subcontractors []models.Subcontractor
	jobs           []models.Job
	events         []models.TimelineEvent
}

// LoadAll fetches the lead, pricing rules, subcontractors, timeline and
// jobs in parallel and commits them together. On failure the previous
// data stays visible and the error message is set.
func (o *Orchestrator) LoadAll(ctx context.Context) error {
	if err := o.guard(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrDiscarded
	}
	o.gen++
	gen := o.gen
	o.phase = PhaseLoading
	o.mu.Unlock()
	o.notify()

	ctx, cancel := o.requestContext(ctx)
	defer cancel()

	res, err := o.fetch(ctx)

	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		o.logger.Debug("dropping superseded load", "lead_id", o.leadID, "generation", gen)
		return ErrDiscarded
	}
	if err != nil {
		o.phase = PhaseError
		o.setErrorLocked(err, loadFailedMessage)
		o.mu.Unlock()
		o.logger.Warn("lead load failed", "lead_id", o.leadID, "error", err)
		o.notify()
		return err
	}
	o.lead = res.lead
	o.pricingRules = res.pricingRules
	o.subcontractors = res.subcontractors
	o.jobs = res.jobs
	o.events = res.events
	o.phase = PhaseReady
	o.errMsg = ""
	o.stale = false
	o.signInRequired = false
	o.mu.Unlock()

	o.logger.Debug("lead loaded", "lead_id", o.leadID, "jobs", len(res.jobs), "events", len(res.events))
	o.notify()
	return nil
}

// Reload is LoadAll under the name the view's refresh action uses.
func (o *Orchestrator) Reload(ctx context.Context) error {
	return o.LoadAll(ctx)
}

func (o *Orchestrator) fetch(ctx context.Context) (loadResult, error) {
	var res loadResult
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lead, err := o.api.GetLead(ctx, o.leadID)
		if err != nil {
			return fmt.Errorf("get lead: %w", err)
		}
		res.lead = lead
		return nil
	})
	g.Go(func() error {
		rules, err := o.api.GetPricingRules(ctx)
		if err != nil {
			return fmt.Errorf("get pricing rules: %w", err)
		}
		res.pricingRules = rules
		return nil
	})
	g.Go(func() error {
		subs, err := o.api.GetSubcontractors(ctx)
		if err != nil {
			return fmt.Errorf("get subcontractors: %w", err)
		}
		res.subcontractors = subs
		return nil
	})
	g.Go(func() error {
		events, err := o.api.GetTimeline(ctx, o.leadID)
		if err != nil {
			return fmt.Errorf("get timeline: %w", err)
		}
		res.events = events
		return nil
	})
	g.Go(func() error {
		jobs, err := o.api.GetJobs(ctx)
		if err != nil {
			return fmt.Errorf("get jobs: %w", err)
		}
		res.jobs = jobsForLead(jobs, o.leadID)
		return nil
	})

	if err := g.Wait(); err != nil {
		return loadResult{}, err
	}
	return res, nil
}

func jobsForLead(jobs []models.Job, leadID string) []models.Job {
	linked := make([]models.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.LeadID == leadID {
			linked = append(linked, job)
		}
	}
	return linked
}

// RunAgent triggers an agent run. Execute mode is refused while a linked
// job already has an active assignment, and any mode is refused while a
// run is in flight; neither case reaches the network. A successful run
// replaces the previous result and is followed by a full reload. If that
// reload fails the result is kept and the view is marked stale.
func (o *Orchestrator) RunAgent(ctx context.Context, mode models.RunMode) (*models.AgentRunResult, error) {
	if err := o.guard(); err != nil {
		return nil, err
	}
	if _, err := models.ParseRunMode(string(mode)); err != nil {
		return nil, err
	}

	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		return nil, ErrDiscarded
	case o.running:
		o.mu.Unlock()
		return nil, ErrRunInFlight
	case mode == models.ModeExecute && executeBlocked(o.jobs):
		o.mu.Unlock()
		return nil, ErrExecuteBlocked
	}
	o.running = true
	o.runMode = mode
	o.mu.Unlock()
	o.notify()

	runCtx, cancel := o.requestContext(ctx)
	result, err := o.api.RunAgent(runCtx, o.leadID, mode)
	cancel()

	o.mu.Lock()
	o.running = false
	o.runMode = ""
	if o.closed {
		o.mu.Unlock()
		return nil, ErrDiscarded
	}
	if err != nil {
		o.setErrorLocked(err, runFailedMessage)
		o.mu.Unlock()
		o.logger.Warn("agent run failed", "lead_id", o.leadID, "mode", mode, "error", err)
		o.notify()
		return nil, err
	}
	o.result = result
	o.mu.Unlock()

	o.logger.Info("agent run completed", "lead_id", o.leadID, "mode", mode, "executed", result.Executed())
	o.notify()

	if err := o.LoadAll(ctx); err != nil && !errors.Is(err, ErrDiscarded) {
		o.mu.Lock()
		o.stale = true
		o.mu.Unlock()
		o.notify()
	}
	return result, nil
}

// setErrorLocked converts err to the banner message. Authentication
// failures raise the sign-in flag instead. Caller must hold o.mu.
func (o *Orchestrator) setErrorLocked(err error, fallback string) {
	if client.IsUnauthorized(err) {
		o.signInRequired = true
		return
	}
	msg := client.Message(err)
	if msg == "" {
		msg = fallback
	}
	o.errMsg = msg
}

func executeBlocked(jobs []models.Job) bool {
	for _, job := range jobs {
		if job.HasActiveAssignment() {
			return true
		}
	}
	return false
}

func (o *Orchestrator) notify() {
	if o.onChange == nil {
		return
	}
	o.onChange(o.View())
}
