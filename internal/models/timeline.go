package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Timeline event types.
const (
	EventAgentRun        = "agent_run"
	EventExecutionAction = "execution_action"
)

// EventStatusError marks a failed agent run or execution action.
const EventStatusError = "error"

// TimelineEvent is one entry of a lead's audit history. The concrete type is
// one of *AgentRunEvent, *ExecutionActionEvent or *UnknownEvent.
type TimelineEvent interface {
	EventType() string
	EventID() string
	EventStatus() string
	Timestamp() string
	timelineEvent()
}

// AgentRunEvent records one invocation of the planning agent.
type AgentRunEvent struct {
	ID           string
	Status       string
	Model        *string
	CreatedAt    string
	ErrorMessage *string
}

// ExecutionActionEvent records one side-effecting step of an execute run.
// Payload may carry the id of the record the step created.
type ExecutionActionEvent struct {
	ID           string
	ActionType   string
	Status       string
	CreatedAt    string
	ErrorMessage *string
	Payload      map[string]any
}

// UnknownEvent keeps entries of a type this console does not know.
type UnknownEvent struct {
	Type         string
	ID           string
	Status       string
	CreatedAt    string
	ErrorMessage *string
}

func (e *AgentRunEvent) EventType() string   { return EventAgentRun }
func (e *AgentRunEvent) EventID() string     { return e.ID }
func (e *AgentRunEvent) EventStatus() string { return e.Status }
func (e *AgentRunEvent) Timestamp() string   { return e.CreatedAt }
func (e *AgentRunEvent) timelineEvent()      {}

func (e *ExecutionActionEvent) EventType() string   { return EventExecutionAction }
func (e *ExecutionActionEvent) EventID() string     { return e.ID }
func (e *ExecutionActionEvent) EventStatus() string { return e.Status }
func (e *ExecutionActionEvent) Timestamp() string   { return e.CreatedAt }
func (e *ExecutionActionEvent) timelineEvent()      {}

func (e *UnknownEvent) EventType() string   { return e.Type }
func (e *UnknownEvent) EventID() string     { return e.ID }
func (e *UnknownEvent) EventStatus() string { return e.Status }
func (e *UnknownEvent) Timestamp() string   { return e.CreatedAt }
func (e *UnknownEvent) timelineEvent()      {}

// PayloadID returns payload[key] as a string id. Numbers are formatted
// without a fraction; missing, null and empty values report false.
func (e *ExecutionActionEvent) PayloadID(key string) (string, bool) {
	v, ok := e.Payload[key]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, id != ""
	case json.Number:
		return id.String(), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	}
	return "", false
}

// rawEvent is the wire shape shared by every event type. Model and
// error_message are optional text and are decoded with optionalText.
type rawEvent struct {
	Type         string          `json:"type"`
	ID           json.RawMessage `json:"id"`
	ActionType   string          `json:"action_type"`
	Status       string          `json:"status"`
	CreatedAt    string          `json:"created_at"`
	ErrorMessage json.RawMessage `json:"error_message"`
	Model        json.RawMessage `json:"model"`
	Payload      json.RawMessage `json:"payload"`
}

// DecodeTimeline decodes a JSON array of heterogeneous events, preserving order.
func DecodeTimeline(data []byte) ([]TimelineEvent, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	events := make([]TimelineEvent, 0, len(raws))
	for i, raw := range raws {
		ev, err := decodeEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("decode timeline event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeEvent(data []byte) (TimelineEvent, error) {
	var r rawEvent
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	id, err := decodeID(r.ID)
	if err != nil {
		return nil, err
	}

	errMsg := optionalText(r.ErrorMessage)

	switch r.Type {
	case EventAgentRun:
		return &AgentRunEvent{
			ID:           id,
			Status:       r.Status,
			Model:        optionalText(r.Model),
			CreatedAt:    r.CreatedAt,
			ErrorMessage: errMsg,
		}, nil
	case EventExecutionAction:
		payload, err := decodePayload(r.Payload)
		if err != nil {
			return nil, err
		}
		return &ExecutionActionEvent{
			ID:           id,
			ActionType:   r.ActionType,
			Status:       r.Status,
			CreatedAt:    r.CreatedAt,
			ErrorMessage: errMsg,
			Payload:      payload,
		}, nil
	}
	return &UnknownEvent{Type: r.Type, ID: id, Status: r.Status, CreatedAt: r.CreatedAt, ErrorMessage: errMsg}, nil
}

// optionalText decodes an optional text field. Absent, null and empty
// values give nil; a value of any other JSON type is kept as its compact
// JSON text, so an odd field never fails the whole timeline.
func optionalText(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	} else {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil
		}
		s = buf.String()
	}
	if s == "" {
		return nil
	}
	return &s
}

// decodeID accepts string or numeric ids.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode id: %w", err)
	}
	return n.String(), nil
}

// decodePayload keeps numbers as json.Number so numeric ids survive intact.
// A payload that is not an object is ignored.
func decodePayload(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
