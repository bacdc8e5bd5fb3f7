// Package event defines the four message shapes flowing through the routing
// pipeline: requests, tool signals, plans, and results. Payloads implement
// the semstreams message.Payload contract so they can travel inside
// BaseMessage envelopes and be resolved through the global payload registry.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semstreams/message"
)

// Result statuses carried by ResultEvent.
const (
	StatusTool   = "tool"
	StatusPlan   = "plan"
	StatusFailed = "failed"
)

// SignalToolReady is the only ToolSignal status the coordinator acts on.
const SignalToolReady = "TOOL_READY"

// Message types for the routing domain.
var (
	RequestEventType = message.Type{Domain: "route", Category: "request", Version: "v1"}
	ToolSignalType   = message.Type{Domain: "route", Category: "tool-signal", Version: "v1"}
	PlanEventType    = message.Type{Domain: "route", Category: "plan", Version: "v1"}
	ResultEventType  = message.Type{Domain: "route", Category: "result", Version: "v1"}
)

// RequestEvent is published by ingress once per incoming query.
// It is immutable after publish.
type RequestEvent struct {
	RequestID       string         `json:"request_id"`
	NormalizedQuery string         `json:"normalized_query"`
	SessionID       string         `json:"session_id,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Schema implements message.Payload.
func (e *RequestEvent) Schema() message.Type { return RequestEventType }

// Validate implements message.Payload.
func (e *RequestEvent) Validate() error {
	if e.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if e.NormalizedQuery == "" {
		return fmt.Errorf("normalized_query is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e *RequestEvent) MarshalJSON() ([]byte, error) {
	type Alias RequestEvent
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *RequestEvent) UnmarshalJSON(data []byte) error {
	type Alias RequestEvent
	return json.Unmarshal(data, (*Alias)(e))
}

// ToolSignal is emitted by the matcher when a tool is confidently identified.
// At most one signal is ever emitted per request.
type ToolSignal struct {
	RequestID  string         `json:"request_id"`
	ToolID     string         `json:"tool_id"`
	ServerID   string         `json:"server_id"`
	Params     map[string]any `json:"params,omitempty"`
	Confidence float64        `json:"confidence"`
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Schema implements message.Payload.
func (s *ToolSignal) Schema() message.Type { return ToolSignalType }

// Validate implements message.Payload.
func (s *ToolSignal) Validate() error {
	if s.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if s.ToolID == "" {
		return fmt.Errorf("tool_id is required")
	}
	if s.ServerID == "" {
		return fmt.Errorf("server_id is required")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %v", s.Confidence)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s *ToolSignal) MarshalJSON() ([]byte, error) {
	type Alias ToolSignal
	return json.Marshal((*Alias)(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ToolSignal) UnmarshalJSON(data []byte) error {
	type Alias ToolSignal
	return json.Unmarshal(data, (*Alias)(s))
}

// PlanStep is one step of an externally produced plan.
type PlanStep struct {
	StepID      string         `json:"step_id,omitempty"`
	Description string         `json:"description"`
	ToolID      string         `json:"tool_id,omitempty"`
	ServerID    string         `json:"server_id,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// PlanEvent is an external planner's fallback decision. The coordinator
// passes it through opaquely and never executes its steps.
type PlanEvent struct {
	RequestID             string     `json:"request_id"`
	Plan                  []PlanStep `json:"plan"`
	RequiresOrchestration bool       `json:"requires_orchestration,omitempty"`
	Confidence            float64    `json:"confidence,omitempty"`
	Timestamp             time.Time  `json:"timestamp"`
}

// Schema implements message.Payload.
func (p *PlanEvent) Schema() message.Type { return PlanEventType }

// Validate implements message.Payload.
func (p *PlanEvent) Validate() error {
	if p.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *PlanEvent) MarshalJSON() ([]byte, error) {
	type Alias PlanEvent
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PlanEvent) UnmarshalJSON(data []byte) error {
	type Alias PlanEvent
	return json.Unmarshal(data, (*Alias)(p))
}

// ResultEvent is the single outcome published per request id. Broker
// redelivery may still produce duplicates; consumers tolerate them.
type ResultEvent struct {
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Tool      string          `json:"tool,omitempty"`
	ToolPath  string          `json:"tool_path,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Plan      *PlanEvent      `json:"plan,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Schema implements message.Payload.
func (r *ResultEvent) Schema() message.Type { return ResultEventType }

// Validate implements message.Payload.
func (r *ResultEvent) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	switch r.Status {
	case StatusTool, StatusPlan, StatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid status %q", r.Status)
	}
}

// MarshalJSON implements json.Marshaler.
func (r *ResultEvent) MarshalJSON() ([]byte, error) {
	type Alias ResultEvent
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ResultEvent) UnmarshalJSON(data []byte) error {
	type Alias ResultEvent
	return json.Unmarshal(data, (*Alias)(r))
}

// NewRequestEvent builds a request event with a fresh request ID.
func NewRequestEvent(normalizedQuery string) *RequestEvent {
	return &RequestEvent{
		RequestID:       uuid.NewString(),
		NormalizedQuery: normalizedQuery,
		Timestamp:       time.Now().UTC(),
	}
}

// NewToolResult builds a successful tool execution result.
func NewToolResult(requestID, serverID, toolID string, result json.RawMessage) *ResultEvent {
	return &ResultEvent{
		RequestID: requestID,
		Status:    StatusTool,
		Tool:      toolID,
		ToolPath:  serverID + "/" + toolID,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}
}

// NewFailedResult builds a failed result carrying the invocation error message.
func NewFailedResult(requestID, errMsg string) *ResultEvent {
	return &ResultEvent{
		RequestID: requestID,
		Status:    StatusFailed,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlanResult wraps an external plan as a result without executing it.
func NewPlanResult(plan *PlanEvent) *ResultEvent {
	return &ResultEvent{
		RequestID: plan.RequestID,
		Status:    StatusPlan,
		Plan:      plan,
		Timestamp: time.Now().UTC(),
	}
}
