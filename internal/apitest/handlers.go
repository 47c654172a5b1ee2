package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
)

type bodyKey struct{}

func withBody(ctx context.Context, body json.RawMessage) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func requestBody(r *http.Request) json.RawMessage {
	body, _ := r.Context().Value(bodyKey{}).(json.RawMessage)
	return body
}

func find[T any](items []T, id string, idOf func(T) string) (T, bool) {
	for _, item := range items {
		if idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (s *Server) snapshot() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"leads": s.snapshot().Leads})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	lead, ok := find(s.snapshot().Leads, chi.URLParam(r, "id"), func(l models.Lead) string { return l.ID })
	if !ok {
		notFound(w, "Lead")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lead": lead})
}

func (s *Server) createLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lead models.Lead `json:"lead"`
	}
	if err := json.Unmarshal(requestBody(r), &req); err != nil || req.Lead.FullName == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Full name can't be blank"})
		return
	}
	s.mu.Lock()
	req.Lead.ID = "L" + strconv.Itoa(len(s.data.Leads)+1)
	if req.Lead.Status == "" {
		req.Lead.Status = "new"
	}
	s.data.Leads = append(s.data.Leads, req.Lead)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"lead": req.Lead})
}

func (s *Server) updateLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Lead map[string]any `json:"lead"`
	}
	_ = json.Unmarshal(requestBody(r), &req)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.Leads {
		if s.data.Leads[i].ID != id {
			continue
		}
		// Merge the patch through JSON so only the sent fields change.
		current, _ := json.Marshal(s.data.Leads[i])
		merged := map[string]any{}
		_ = json.Unmarshal(current, &merged)
		for k, v := range req.Lead {
			merged[k] = v
		}
		data, _ := json.Marshal(merged)
		var lead models.Lead
		_ = json.Unmarshal(data, &lead)
		s.data.Leads[i] = lead
		writeJSON(w, http.StatusOK, map[string]any{"lead": lead})
		return
	}
	notFound(w, "Lead")
}

func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	events, ok := s.snapshot().Timelines[chi.URLParam(r, "id")]
	if !ok {
		events = json.RawMessage("[]")
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeline": events})
}

func (s *Server) runAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode models.RunMode `json:"mode"`
	}
	_ = json.Unmarshal(requestBody(r), &req)
	s.mu.Lock()
	fn := s.agentRun
	s.mu.Unlock()
	status, body := fn(chi.URLParam(r, "id"), req.Mode)
	writeJSON(w, status, body)
}

// defaultAgentRun returns a plan with no side effects for plan_only and
// records nothing else; execute runs must be scripted with OnAgentRun.
func (s *Server) defaultAgentRun(leadID string, mode models.RunMode) (int, any) {
	if _, ok := find(s.snapshot().Leads, leadID, func(l models.Lead) string { return l.ID }); !ok {
		return http.StatusNotFound, map[string]string{"error": "Lead not found"}
	}
	return http.StatusCreated, map[string]any{
		"agent_run": map[string]any{"id": "run-1", "status": "completed", "mode": mode},
		"plan":      map[string]any{"service_code": "tree_removal", "confidence": 0.82},
	}
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.snapshot().Jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := find(s.snapshot().Jobs, chi.URLParam(r, "id"), func(j models.Job) string { return j.ID })
	if !ok {
		notFound(w, "Job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listQuotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"quotes": s.snapshot().Quotes})
}

func (s *Server) getQuote(w http.ResponseWriter, r *http.Request) {
	quote, ok := find(s.snapshot().Quotes, chi.URLParam(r, "id"), func(q models.Quote) string { return q.ID })
	if !ok {
		notFound(w, "Quote")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": quote})
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"assignments": s.snapshot().Assignments})
}

func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	a, ok := find(s.snapshot().Assignments, chi.URLParam(r, "id"), func(a models.Assignment) string { return a.ID })
	if !ok {
		notFound(w, "Assignment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignment": a})
}

func (s *Server) updateAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Assignment models.AssignmentInput `json:"assignment"`
	}
	_ = json.Unmarshal(requestBody(r), &req)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.Assignments {
		if s.data.Assignments[i].ID == id {
			s.data.Assignments[i].Status = req.Assignment.Status
			writeJSON(w, http.StatusOK, map[string]any{"assignment": s.data.Assignments[i]})
			return
		}
	}
	notFound(w, "Assignment")
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notifications": s.snapshot().Notifications})
}

func (s *Server) getNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := find(s.snapshot().Notifications, chi.URLParam(r, "id"), func(n models.Notification) string { return n.ID })
	if !ok {
		notFound(w, "Notification")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notification": n})
}

func (s *Server) listSubcontractors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"subcontractors": s.snapshot().Subcontractors})
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": s.snapshot().Services})
}

func (s *Server) listPricingRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pricing_rules": s.snapshot().PricingRules})
}
