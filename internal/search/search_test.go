package search_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/dispatchdesk/internal/models"
	"github.com/raphaelgruber/dispatchdesk/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualScheduler collects timers and fires them on demand.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
	delay   time.Duration
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) search.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f, delay: d}
	s.timers = append(s.timers, t)
	return t
}

// fire runs every timer that is still pending, as if the delay elapsed.
func (s *manualScheduler) fire() {
	s.mu.Lock()
	timers := append([]*manualTimer(nil), s.timers...)
	s.mu.Unlock()
	for _, t := range timers {
		t.mu.Lock()
		run := !t.stopped && !t.fired
		t.fired = true
		t.mu.Unlock()
		if run {
			t.f()
		}
	}
}

func (s *manualScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// fakeSource returns fixed collections and counts aggregate fetches by
// GetLeads calls. hook, if set, runs inside GetLeads.
type fakeSource struct {
	mu    sync.Mutex
	calls int
	hook  func(call int) error

	leads []models.Lead
	jobs  []models.Job
	subs  []models.Subcontractor
}

func (f *fakeSource) GetLeads(ctx context.Context) ([]models.Lead, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(call); err != nil {
			return nil, err
		}
	}
	return f.leads, nil
}

func (f *fakeSource) GetJobs(ctx context.Context) ([]models.Job, error) {
	return f.jobs, nil
}

func (f *fakeSource) GetSubcontractors(ctx context.Context) ([]models.Subcontractor, error) {
	return f.subs, nil
}

func (f *fakeSource) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newSource() *fakeSource {
	urgent := "Urgent"
	return &fakeSource{
		leads: []models.Lead{
			{ID: "L1", FullName: "Abby Cole", ServiceRequested: "Tree removal", Status: "new"},
			{ID: "L2", FullName: "Ben Abcott", ServiceRequested: "Gutter cleaning", Status: "failed"},
			{ID: "L3", FullName: "Cara Diaz", ServiceRequested: "Roofing", Status: "new", UrgencyHint: &urgent},
		},
		jobs: []models.Job{
			{ID: "J1", Status: "scheduled", ScheduledDate: "2024-05-01", ScheduledWindowStart: "09:00", ScheduledWindowEnd: "11:00",
				Assignments: []models.Assignment{{ID: "A1", Subcontractor: &models.SubcontractorRef{Name: "Abacus Roofing"}}}},
			{ID: "J2", Status: "completed", ScheduledDate: "2024-06-12"},
		},
		subs: []models.Subcontractor{
			{ID: "S1", Name: "Abacus Roofing", Phone: "512-555-0100", ServiceCodes: []string{"roofing"}},
			{ID: "S2", Name: "Bolt Electric", Phone: "512-555-0199", ServiceCodes: []string{"electrical", "ev_chargers"}},
		},
	}
}

func TestDebounceCoalescesKeystrokes(t *testing.T) {
	src := newSource()
	sched := &manualScheduler{}
	a := search.New(src, search.WithScheduler(sched))

	a.SetQuery("a")
	a.SetQuery("ab")
	sched.fire()

	assert.Equal(t, 1, src.fetches())
	st := a.State()
	assert.Equal(t, "ab", st.Query)
	assert.False(t, st.Loading)
	assert.Equal(t, "ab", st.Results.Query)
	assert.Equal(t, 1, sched.scheduled())
}

func TestNewKeystrokeCancelsPendingSearch(t *testing.T) {
	src := newSource()
	sched := &manualScheduler{}
	a := search.New(src, search.WithScheduler(sched))

	a.SetQuery("ab")
	a.SetQuery("abc")
	sched.fire()

	assert.Equal(t, 1, src.fetches())
	assert.Equal(t, "abc", a.State().Results.Query)
}

func TestQueryBelowThresholdDoesNotFetch(t *testing.T) {
	tests := []string{"", "a", "  A  ", " "}
	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			src := newSource()
			sched := &manualScheduler{}
			a := search.New(src, search.WithScheduler(sched))

			a.SetQuery(q)
			sched.fire()

			assert.Zero(t, src.fetches())
			assert.Zero(t, sched.scheduled())
			assert.False(t, a.State().Active)

			res, err := a.Search(context.Background(), q)
			require.NoError(t, err)
			assert.Zero(t, res.Total())
			assert.Zero(t, src.fetches())
		})
	}
}

func TestShorteningQueryHidesPanel(t *testing.T) {
	src := newSource()
	sched := &manualScheduler{}
	a := search.New(src, search.WithScheduler(sched))

	a.SetQuery("ab")
	sched.fire()
	require.True(t, a.State().Active)
	require.NotZero(t, a.State().Results.Total())

	a.SetQuery("a")
	st := a.State()
	assert.False(t, st.Active)
	assert.Zero(t, st.Results.Total())
}

func TestStaleResultsNeverOverwriteNewer(t *testing.T) {
	src := newSource()
	sched := &manualScheduler{}

	started := make(chan struct{})
	release := make(chan struct{})
	src.hook = func(call int) error {
		if call == 1 {
			close(started)
			<-release
		}
		return nil
	}

	a := search.New(src, search.WithScheduler(sched))
	a.SetQuery("ab")

	slow := make(chan struct{})
	go func() {
		sched.fire()
		close(slow)
	}()
	<-started

	a.SetQuery("abc")
	sched.fire()
	require.Equal(t, "abc", a.State().Results.Query)

	// The "ab" response arrives after the "abc" one.
	close(release)
	<-slow

	st := a.State()
	assert.Equal(t, "abc", st.Query)
	assert.Equal(t, "abc", st.Results.Query)
	require.Len(t, st.Results.Leads, 1)
	assert.Equal(t, "L2", st.Results.Leads[0].ID)
	assert.Equal(t, 2, src.fetches())
}

func TestMatchingFields(t *testing.T) {
	src := newSource()
	a := search.New(src)
	ctx := context.Background()

	tests := []struct {
		query     string
		wantLeads []string
		wantJobs  []string
		wantSubs  []string
	}{
		{"abby", []string{"L1"}, nil, nil},
		{"GUTTER", []string{"L2"}, nil, nil},
		{"failed", []string{"L2"}, nil, nil},
		{"urgent", []string{"L3"}, nil, nil},
		{"roofing", []string{"L3"}, []string{"J1"}, []string{"S1"}},
		{"2024-06", nil, []string{"J2"}, nil},
		{"09:00", nil, []string{"J1"}, nil},
		{"0199", nil, nil, []string{"S2"}},
		{"ev_chargers", nil, nil, []string{"S2"}},
		{"electrical, ev", nil, nil, []string{"S2"}},
		{"zzz", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := a.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLeads, ids(res.Leads, func(l models.Lead) string { return l.ID }))
			assert.Equal(t, tt.wantJobs, ids(res.Jobs, func(j models.Job) string { return j.ID }))
			assert.Equal(t, tt.wantSubs, ids(res.Subcontractors, func(s models.Subcontractor) string { return s.ID }))
		})
	}
}

func ids[T any](items []T, id func(T) string) []string {
	var out []string
	for _, item := range items {
		out = append(out, id(item))
	}
	return out
}

func TestDisplayCapKeepsCounts(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < 8; i++ {
		src.leads = append(src.leads, models.Lead{ID: string(rune('a' + i)), FullName: "Smith"})
	}
	sched := &manualScheduler{}
	a := search.New(src, search.WithScheduler(sched))

	a.SetQuery("smith")
	sched.fire()

	st := a.State()
	assert.Len(t, st.Results.Leads, 8)
	assert.Len(t, st.TopLeads(), 5)
	assert.Empty(t, st.TopJobs())

	b := search.New(src, search.WithScheduler(sched), search.WithLimit(3))
	b.SetQuery("smith")
	sched.fire()
	assert.Len(t, b.State().TopLeads(), 3)
}

func TestFetchErrorSurfaces(t *testing.T) {
	src := newSource()
	src.hook = func(int) error { return errors.New("offline") }
	sched := &manualScheduler{}
	a := search.New(src, search.WithScheduler(sched))

	a.SetQuery("ab")
	sched.fire()

	st := a.State()
	assert.False(t, st.Loading)
	assert.Equal(t, "get leads: offline", st.Error)
}

func TestCloseStopsPendingTimer(t *testing.T) {
	src := newSource()
	sched := &manualScheduler{}
	var updates int
	a := search.New(src, search.WithScheduler(sched), search.OnUpdate(func(search.State) { updates++ }))

	a.SetQuery("ab")
	a.Close()
	sched.fire()

	assert.Zero(t, src.fetches())
	assert.Equal(t, 1, updates)

	a.SetQuery("abc")
	assert.Equal(t, 1, updates)
}

func TestRealSchedulerDebounces(t *testing.T) {
	src := newSource()
	done := make(chan search.State, 4)
	a := search.New(src, search.WithDelay(20*time.Millisecond), search.OnUpdate(func(s search.State) {
		if !s.Loading && s.Active {
			done <- s
		}
	}))
	defer a.Close()

	a.SetQuery("a")
	a.SetQuery("ab")

	select {
	case st := <-done:
		assert.Equal(t, "ab", st.Results.Query)
	case <-time.After(2 * time.Second):
		t.Fatal("search did not run")
	}
	assert.Equal(t, 1, src.fetches())
}
