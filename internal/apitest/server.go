// Package apitest provides an in-memory fake of the dispatch API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

// Data is the fake API's record store. Timelines hold raw JSON event
// arrays keyed by lead id so tests can send shapes the client must tolerate.
type Data struct {
	Leads          []models.Lead
	Jobs           []models.Job
	Quotes         []models.Quote
	Assignments    []models.Assignment
	Notifications  []models.Notification
	Subcontractors []models.Subcontractor
	Services       []models.Service
	PricingRules   []models.PricingRule
	Timelines      map[string]json.RawMessage
}

// AgentRunFunc answers POST /leads/{id}/agent_runs with a status and a body.
type AgentRunFunc func(leadID string, mode models.RunMode) (int, any)

// Server is a chi-routed httptest server serving Data.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	data     Data
	agentRun AgentRunFunc
	failures map[string]failure
	gates    map[string]chan struct{}
	hits     map[string]int
	lastBody map[string]json.RawMessage
	headers  map[string]http.Header
}

type failure struct {
	status  int
	message string
}

// New starts a fake API. It is closed when the test ends.
func New(t interface {
	Cleanup(func())
}) *Server {
	s := &Server{
		failures: make(map[string]failure),
		gates:    make(map[string]chan struct{}),
		hits:     make(map[string]int),
		lastBody: make(map[string]json.RawMessage),
		headers:  make(map[string]http.Header),
		data:     Data{Timelines: make(map[string]json.RawMessage)},
	}
	s.agentRun = s.defaultAgentRun
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to the client.
func (s *Server) BaseURL() string {
	return s.URL + "/api/v1"
}

// Seed replaces the store contents.
func (s *Server) Seed(fn func(d *Data)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.data)
	if s.data.Timelines == nil {
		s.data.Timelines = make(map[string]json.RawMessage)
	}
}

// OnAgentRun overrides the agent run responder.
func (s *Server) OnAgentRun(fn AgentRunFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentRun = fn
}

// Fail makes every request to key (e.g. "GET /jobs") answer with status
// and an {"error": message} body. A zero status clears the failure.
func (s *Server) Fail(key string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, key)
		return
	}
	s.failures[key] = failure{status: status, message: message}
}

// Block holds requests to key until the returned release func is called
// or the request is cancelled.
func (s *Server) Block(key string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[key] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, key)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Hits returns how many requests reached key.
func (s *Server) Hits(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// TotalHits returns the number of requests across all endpoints.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// LastBody returns the most recent request body sent to key.
func (s *Server) LastBody(key string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBody[key]
}

// LastHeader returns the most recent request headers sent to key.
func (s *Server) LastHeader(key string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[key]
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		s.handle(r, http.MethodGet, "/leads", s.listLeads)
		s.handle(r, http.MethodPost, "/leads", s.createLead)
		s.handle(r, http.MethodGet, "/leads/{id}", s.getLead)
		s.handle(r, http.MethodPatch, "/leads/{id}", s.updateLead)
		s.handle(r, http.MethodGet, "/leads/{id}/timeline", s.getTimeline)
		s.handle(r, http.MethodPost, "/leads/{id}/agent_runs", s.runAgent)
		s.handle(r, http.MethodGet, "/jobs", s.listJobs)
		s.handle(r, http.MethodGet, "/jobs/{id}", s.getJob)
		s.handle(r, http.MethodGet, "/quotes", s.listQuotes)
		s.handle(r, http.MethodGet, "/quotes/{id}", s.getQuote)
		s.handle(r, http.MethodGet, "/assignments", s.listAssignments)
		s.handle(r, http.MethodGet, "/assignments/{id}", s.getAssignment)
		s.handle(r, http.MethodPatch, "/assignments/{id}", s.updateAssignment)
		s.handle(r, http.MethodGet, "/notifications", s.listNotifications)
		s.handle(r, http.MethodGet, "/notifications/{id}", s.getNotification)
		s.handle(r, http.MethodGet, "/subcontractors", s.listSubcontractors)
		s.handle(r, http.MethodGet, "/services", s.listServices)
		s.handle(r, http.MethodGet, "/pricing_rules", s.listPricingRules)
	})
	return r
}

// handle registers fn under method+pattern, applying hit counting, gates
// and injected failures keyed by "<METHOD> <pattern>".
func (s *Server) handle(r chi.Router, method, pattern string, fn http.HandlerFunc) {
	key := method + " " + pattern
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body json.RawMessage
		if req.Body != nil {
			_ = json.NewDecoder(req.Body).Decode(&body)
		}

		s.mu.Lock()
		s.hits[key]++
		s.lastBody[key] = body
		s.headers[key] = req.Header.Clone()
		gate := s.gates[key]
		fail, failing := s.failures[key]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-req.Context().Done():
				return
			}
		}
		if failing {
			writeJSON(w, fail.status, map[string]string{"error": fail.message})
			return
		}
		req = req.WithContext(withBody(req.Context(), body))
		fn(w, req)
	}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": what + " not found"})
}
