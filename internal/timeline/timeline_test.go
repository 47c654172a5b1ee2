package timeline_test

import (
	"testing"

	"github.com/raphaelgruber/dispatchdesk/internal/models"
	"github.com/raphaelgruber/dispatchdesk/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) []models.TimelineEvent {
	t.Helper()
	events, err := models.DecodeTimeline([]byte(raw))
	require.NoError(t, err)
	return events
}

func TestCreatedQuoteLinksToQuote(t *testing.T) {
	events := decode(t, `[{"type":"execution_action","id":"e1","action_type":"create_quote","status":"completed","payload":{"quote_id":"Q1"}}]`)

	entries := timeline.Normalize(events)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "Created quote", e.Title)
	assert.Equal(t, "execution_action-e1", e.Key)
	assert.Equal(t, timeline.IconCheck, e.Icon)
	require.NotNil(t, e.Link)
	assert.Equal(t, "/quotes/Q1", e.Link.Route)
	assert.Equal(t, "quote", e.Link.Record)
	assert.True(t, e.Link.Inline)
}

func TestUnknownActionIsHumanized(t *testing.T) {
	events := decode(t, `[{"type":"execution_action","id":"e2","action_type":"unknown_code_xyz"}]`)

	entries := timeline.Normalize(events)
	require.Len(t, entries, 1)
	assert.Equal(t, "unknown code xyz", entries[0].Title)
	assert.Nil(t, entries[0].Link)
	assert.False(t, entries[0].IsError)
}

func TestLinksPerAction(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantRoute  string
		wantLabel  string
		wantInline bool
	}{
		{
			name:       "job inline",
			raw:        `{"type":"execution_action","id":1,"action_type":"create_job","payload":{"job_id":42}}`,
			wantRoute:  "/jobs/42",
			wantLabel:  "Created job",
			wantInline: true,
		},
		{
			name:      "assignment secondary",
			raw:       `{"type":"execution_action","id":2,"action_type":"assign_subcontractor","payload":{"assignment_id":"A9"}}`,
			wantRoute: "/assignments/A9",
			wantLabel: "View assignment",
		},
		{
			name:      "notification secondary",
			raw:       `{"type":"execution_action","id":3,"action_type":"send_notification","payload":{"notification_id":"N3"}}`,
			wantRoute: "/notifications/N3",
			wantLabel: "View notification",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := timeline.Normalize(decode(t, "["+tt.raw+"]"))
			require.Len(t, entries, 1)
			require.NotNil(t, entries[0].Link)
			assert.Equal(t, tt.wantRoute, entries[0].Link.Route)
			assert.Equal(t, tt.wantLabel, entries[0].Link.Label)
			assert.Equal(t, tt.wantInline, entries[0].Link.Inline)
		})
	}
}

func TestMissingPayloadIDRendersPlain(t *testing.T) {
	events := decode(t, `[
		{"type":"execution_action","id":"a","action_type":"create_quote"},
		{"type":"execution_action","id":"b","action_type":"create_job","payload":{"job_id":null}},
		{"type":"execution_action","id":"c","action_type":"send_notification","payload":{"notification_id":""}}
	]`)

	for _, e := range timeline.Normalize(events) {
		assert.Nil(t, e.Link, e.Key)
		assert.False(t, e.IsError, e.Key)
	}
}

func TestErrorFlagging(t *testing.T) {
	events := decode(t, `[
		{"type":"execution_action","id":"1","action_type":"create_job","status":"error"},
		{"type":"execution_action","id":"2","action_type":"send_notification","status":"completed","error_message":"SMS bounced"},
		{"type":"execution_action","id":"3","action_type":"validate_plan","status":"completed","error_message":""},
		{"type":"agent_run","id":"4","status":"error","model":"gpt-4o"},
		{"type":"agent_run","id":"5","status":"failed","error_message":"model timeout"},
		{"type":"manual_note","id":"6","status":"ok","error_message":"note rejected"}
	]`)

	entries := timeline.Normalize(events)
	require.Len(t, entries, 6)

	assert.True(t, entries[0].IsError)
	assert.Equal(t, timeline.IconAlert, entries[0].Icon)

	assert.True(t, entries[1].IsError)
	assert.Equal(t, "SMS bounced", entries[1].ErrorMessage)

	assert.False(t, entries[2].IsError)
	assert.Equal(t, timeline.IconSettings, entries[2].Icon)

	assert.True(t, entries[3].IsError)
	assert.Equal(t, timeline.IconAlert, entries[3].Icon)

	assert.Equal(t, "Agent run failed", entries[4].Title)
	assert.True(t, entries[4].IsError)
	assert.Equal(t, timeline.IconAlert, entries[4].Icon)
	assert.Equal(t, "model timeout", entries[4].ErrorMessage)

	assert.True(t, entries[5].IsError)
	assert.Equal(t, "note rejected", entries[5].ErrorMessage)
}

func TestBlankActionTypeFallsBackToActivity(t *testing.T) {
	events := decode(t, `[{"type":"execution_action","id":"a1","status":"ok"}]`)

	entries := timeline.Normalize(events)
	require.Len(t, entries, 1)
	assert.Equal(t, "Activity", entries[0].Title)
	assert.Nil(t, entries[0].Link)

	assert.Equal(t, "Activity", timeline.ActionLabel("  "))
	assert.Equal(t, "Created quote", timeline.ActionLabel("create_quote"))
}

func TestAgentRunTitles(t *testing.T) {
	events := decode(t, `[
		{"type":"agent_run","id":"r1","status":"completed","model":"gpt-4o","created_at":"not a date"},
		{"type":"agent_run","id":"r2"}
	]`)

	entries := timeline.Normalize(events)
	assert.Equal(t, "Agent run completed", entries[0].Title)
	assert.Equal(t, "Model: gpt-4o", entries[0].Subtitle())
	assert.Equal(t, timeline.IconAgent, entries[0].Icon)
	assert.Equal(t, "unknown", entries[0].Timestamp)

	assert.Equal(t, "Agent run update", entries[1].Title)
	assert.Equal(t, "—", entries[1].Timestamp)
}

func TestUnknownEventKept(t *testing.T) {
	events := decode(t, `[
		{"type":"agent_run","id":"1","status":"completed"},
		{"type":"manual_note","id":"2"},
		{"id":"3"}
	]`)

	entries := timeline.Normalize(events)
	require.Len(t, entries, 3)
	assert.Equal(t, "manual note", entries[1].Title)
	assert.Equal(t, "Activity", entries[2].Title)
}

func TestSourceOrderPreserved(t *testing.T) {
	events := decode(t, `[
		{"type":"execution_action","id":"2","action_type":"create_job","created_at":"2024-05-02T10:00:00Z"},
		{"type":"execution_action","id":"1","action_type":"create_quote","created_at":"2024-05-01T10:00:00Z"},
		{"type":"execution_action","id":"1","action_type":"create_quote","created_at":"2024-05-01T10:00:00Z"}
	]`)

	entries := timeline.Normalize(events)
	require.Len(t, entries, 3)
	assert.Equal(t, "execution_action-2", entries[0].Key)
	assert.Equal(t, "execution_action-1", entries[1].Key)
	assert.Equal(t, "execution_action-1", entries[2].Key)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	events := decode(t, `[
		{"type":"agent_run","id":"r1","status":"completed","model":"m"},
		{"type":"execution_action","id":"e1","action_type":"create_quote","payload":{"quote_id":"Q1"}},
		{"type":"execution_action","id":"e2","action_type":"mystery","status":"error"}
	]`)

	assert.Equal(t, timeline.Normalize(events), timeline.Normalize(events))
	assert.Empty(t, timeline.Normalize(nil))
}

func TestNormalizerMemoizesOnIdentity(t *testing.T) {
	events := decode(t, `[{"type":"agent_run","id":"r1","status":"completed"}]`)
	var n timeline.Normalizer

	first := n.Normalize(events)
	second := n.Normalize(events)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, n.Runs())

	refreshed := decode(t, `[{"type":"agent_run","id":"r1","status":"completed"}]`)
	third := n.Normalize(refreshed)
	assert.Equal(t, first, third)
	assert.Equal(t, 2, n.Runs())

	assert.Empty(t, n.Normalize(nil))
	assert.Equal(t, 2, n.Runs())
}
