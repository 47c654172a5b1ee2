package lead_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/raphaelgruber/dispatchdesk/internal/apitest"
	"github.com/raphaelgruber/dispatchdesk/internal/client"
	"github.com/raphaelgruber/dispatchdesk/internal/lead"
	"github.com/raphaelgruber/dispatchdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestratorAgainstFakeAPI(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(func(d *apitest.Data) {
		d.Leads = []models.Lead{{ID: "L1", FullName: "Ada Park", Status: "new"}}
		d.Subcontractors = []models.Subcontractor{{ID: "S1", Name: "Acme Trees"}}
		d.Timelines["L1"] = json.RawMessage(`[{"type":"agent_run","id":"r0","status":"completed"}]`)
	})
	srv.OnAgentRun(func(leadID string, mode models.RunMode) (int, any) {
		return http.StatusCreated, map[string]any{
			"plan": map[string]any{"service_code": "tree_removal", "total_cents": 45000, "subcontractor_id": "S1", "confidence": 0.82},
		}
	})

	o := lead.New(client.New(srv.BaseURL()), "L1")
	defer o.Close()
	require.NoError(t, o.LoadAll(context.Background()))

	_, err := o.RunAgent(context.Background(), models.ModePlanOnly)
	require.NoError(t, err)

	v := o.View()
	require.NotNil(t, v.Plan)
	assert.Equal(t, "82%", v.Plan.Confidence)
	assert.Equal(t, "$450.00", v.Plan.Total)
	assert.Equal(t, "Acme Trees", v.Plan.Subcontractor)
	assert.Equal(t, 2, srv.Hits("GET /leads/{id}"))
	assert.Equal(t, 2, srv.Hits("GET /jobs"))
	assert.Equal(t, 1, srv.Hits("POST /leads/{id}/agent_runs"))
}

func TestOrchestratorExecuteBlockedAgainstFakeAPI(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(func(d *apitest.Data) {
		d.Leads = []models.Lead{{ID: "L1", FullName: "Ada Park"}}
		d.Jobs = []models.Job{{
			ID: "J1", LeadID: "L1",
			Assignments: []models.Assignment{{ID: "A1", Status: models.AssignmentConfirmed}},
		}}
	})

	o := lead.New(client.New(srv.BaseURL()), "L1")
	require.NoError(t, o.LoadAll(context.Background()))

	_, err := o.RunAgent(context.Background(), models.ModeExecute)
	require.ErrorIs(t, err, lead.ErrExecuteBlocked)
	assert.Zero(t, srv.Hits("POST /leads/{id}/agent_runs"))
}
