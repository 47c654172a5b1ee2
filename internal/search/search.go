// Package search implements the console's global search box: a debounced,
// client-side substring match over leads, jobs and subcontractors.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/dispatchdesk/internal/client"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

const (
	// DefaultDelay is the settle time between the last keystroke and the fetch.
	DefaultDelay = 300 * time.Millisecond
	// DefaultLimit caps each result group for display.
	DefaultLimit = 5
	// MinQueryLength is the shortest normalized query that triggers a search.
	MinQueryLength = 2
)

// Source provides the three collections searched.
type Source interface {
	GetLeads(ctx context.Context) ([]models.Lead, error)
	GetJobs(ctx context.Context) ([]models.Job, error)
	GetSubcontractors(ctx context.Context) ([]models.Subcontractor, error)
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d, on another goroutine or later call; f
// must never run before AfterFunc returns. Tests substitute a manual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Results holds every match; counts are never capped.
type Results struct {
	Query          string                 `json:"query" yaml:"query"`
	Leads          []models.Lead          `json:"leads" yaml:"leads"`
	Jobs           []models.Job           `json:"jobs" yaml:"jobs"`
	Subcontractors []models.Subcontractor `json:"subcontractors" yaml:"subcontractors"`
}

// Total is the number of matches across all groups.
func (r Results) Total() int {
	return len(r.Leads) + len(r.Jobs) + len(r.Subcontractors)
}

// State is what the search panel renders.
type State struct {
	// Query is the normalized (trimmed, lower-cased) query.
	Query string
	// Active is false below the length threshold; the panel is hidden.
	Active  bool
	Loading bool
	Error   string
	Results Results

	limit int
}

// TopLeads returns at most the display limit of lead matches.
func (s State) TopLeads() []models.Lead { return capped(s.Results.Leads, s.limit) }

// TopJobs returns at most the display limit of job matches.
func (s State) TopJobs() []models.Job { return capped(s.Results.Jobs, s.limit) }

// TopSubcontractors returns at most the display limit of subcontractor matches.
func (s State) TopSubcontractors() []models.Subcontractor {
	return capped(s.Results.Subcontractors, s.limit)
}

func capped[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDelay overrides the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.delay = d
		}
	}
}

// WithScheduler replaces the timer source.
func WithScheduler(s Scheduler) Option {
	return func(a *Aggregator) {
		if s != nil {
			a.sched = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLimit overrides the per-group display cap.
func WithLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.limit = n
		}
	}
}

// OnUpdate registers a callback invoked with the new State after every
// change. It is called without internal locks held.
func OnUpdate(fn func(State)) Option {
	return func(a *Aggregator) { a.onUpdate = fn }
}

// Aggregator debounces query changes and keeps only the newest query's
// results. Each SetQuery bumps a generation counter; a fetch commits only
// if its generation is still current when it returns.
type Aggregator struct {
	src      Source
	delay    time.Duration
	sched    Scheduler
	logger   *slog.Logger
	limit    int
	onUpdate func(State)

	mu     sync.Mutex
	gen    uint64
	timer  Timer
	cancel context.CancelFunc
	state  State
	closed bool
}

// New creates an aggregator over src.
func New(src Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:    src,
		delay:  DefaultDelay,
		sched:  realScheduler{},
		logger: slog.New(slog.DiscardHandler),
		limit:  DefaultLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.state.limit = a.limit
	return a
}

// Normalize trims and lower-cases a raw query.
func Normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Eligible reports whether a normalized query is long enough to search.
func Eligible(q string) bool {
	return utf8.RuneCountInString(q) >= MinQueryLength
}

// SetQuery records a new query. Any pending timer is stopped and any
// in-flight fetch is cancelled; a fetch is scheduled after the debounce
// delay when the query is long enough.
func (a *Aggregator) SetQuery(raw string) {
	q := Normalize(raw)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.gen++
	gen := a.gen
	a.stopLocked()

	if !Eligible(q) {
		a.state = State{Query: q, limit: a.limit}
		a.mu.Unlock()
		a.notify()
		return
	}

	a.state.Query = q
	a.state.Active = true
	a.state.Loading = true
	a.timer = a.sched.AfterFunc(a.delay, func() { a.run(gen, q) })
	a.mu.Unlock()
	a.notify()
}

// stopLocked cancels the pending timer and in-flight fetch. Caller must hold a.mu.
func (a *Aggregator) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *Aggregator) run(gen uint64, q string) {
	a.mu.Lock()
	if a.closed || gen != a.gen {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.timer = nil
	a.mu.Unlock()
	defer cancel()

	res, err := a.fetch(ctx, q)

	a.mu.Lock()
	if a.closed || gen != a.gen {
		a.mu.Unlock()
		a.logger.Debug("dropping superseded search", "query", q, "generation", gen)
		return
	}
	a.cancel = nil
	a.state.Loading = false
	if err != nil {
		a.state.Error = client.Message(err)
	} else {
		a.state.Error = ""
		a.state.Results = res
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("search failed", "query", q, "error", err)
	}
	a.notify()
}

// Search runs one undebounced search. Queries below the threshold return
// empty results without fetching.
func (a *Aggregator) Search(ctx context.Context, raw string) (Results, error) {
	q := Normalize(raw)
	if !Eligible(q) {
		return Results{Query: q}, nil
	}
	return a.fetch(ctx, q)
}

func (a *Aggregator) fetch(ctx context.Context, q string) (Results, error) {
	var (
		leads []models.Lead
		jobs  []models.Job
		subs  []models.Subcontractor
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if leads, err = a.src.GetLeads(ctx); err != nil {
			return fmt.Errorf("get leads: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if jobs, err = a.src.GetJobs(ctx); err != nil {
			return fmt.Errorf("get jobs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if subs, err = a.src.GetSubcontractors(ctx); err != nil {
			return fmt.Errorf("get subcontractors: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Results{}, err
	}

	return Results{
		Query:          q,
		Leads:          filter(leads, q, leadFields),
		Jobs:           filter(jobs, q, jobFields),
		Subcontractors: filter(subs, q, subcontractorFields),
	}, nil
}

// State returns the current panel state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Close stops the pending timer and drops any in-flight result.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.gen++
	a.stopLocked()
}

func (a *Aggregator) notify() {
	if a.onUpdate != nil {
		a.onUpdate(a.State())
	}
}
