package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semroute/event"
	"github.com/c360studio/semstreams/component"
)

// fakeInvoker records invocations and returns a canned result or error.
type fakeInvoker struct {
	result json.RawMessage
	err    error
	calls  int
}

func (f *fakeInvoker) Invoke(_ context.Context, _, _ string, _ map[string]any) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testCoordinator(invoker *fakeInvoker) *Component {
	return &Component{
		name:    "coordinator",
		config:  DefaultConfig(),
		logger:  slog.Default(),
		invoker: invoker,
		claims:  NewClaimTable(5 * time.Minute),
	}
}

func testSignal(requestID string) *event.ToolSignal {
	return &event.ToolSignal{
		RequestID:  requestID,
		ToolID:     "web_search_exa",
		ServerID:   "exa",
		Params:     map[string]any{"query": "radiohead concert"},
		Confidence: 0.85,
		Status:     event.SignalToolReady,
		Timestamp:  time.Now().UTC(),
	}
}

func TestResolveToolSignalSuccess(t *testing.T) {
	inv := &fakeInvoker{result: json.RawMessage(`{"hits":3}`)}
	c := testCoordinator(inv)

	result, claimed := c.resolveToolSignal(context.Background(), testSignal("req-1"))
	require.True(t, claimed)
	require.NotNil(t, result)

	assert.Equal(t, event.StatusTool, result.Status)
	assert.Equal(t, "web_search_exa", result.Tool)
	assert.Equal(t, "exa/web_search_exa", result.ToolPath)
	assert.JSONEq(t, `{"hits":3}`, string(result.Result))
	assert.Equal(t, 1, inv.calls)
}

func TestResolveToolSignalInvocationError(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("rate limited")}
	c := testCoordinator(inv)

	result, claimed := c.resolveToolSignal(context.Background(), testSignal("req-1"))
	require.True(t, claimed)

	assert.Equal(t, event.StatusFailed, result.Status)
	assert.Equal(t, "rate limited", result.Error)

	// The claim survives the failure; a retry of the same request is dropped.
	_, claimed = c.resolveToolSignal(context.Background(), testSignal("req-1"))
	assert.False(t, claimed)
	assert.Equal(t, 1, inv.calls)
}

func TestLatePlanAfterToolIsNoOp(t *testing.T) {
	inv := &fakeInvoker{result: json.RawMessage(`"ok"`)}
	c := testCoordinator(inv)

	_, claimed := c.resolveToolSignal(context.Background(), testSignal("req-1"))
	require.True(t, claimed)

	plan := &event.PlanEvent{
		RequestID: "req-1",
		Plan:      []event.PlanStep{{Description: "search manually"}},
		Timestamp: time.Now().UTC(),
	}
	result, claimed := c.resolvePlan(plan)
	assert.False(t, claimed)
	assert.Nil(t, result)
}

func TestLateSignalAfterPlanIsNoOp(t *testing.T) {
	inv := &fakeInvoker{result: json.RawMessage(`"ok"`)}
	c := testCoordinator(inv)

	plan := &event.PlanEvent{
		RequestID: "req-1",
		Plan:      []event.PlanStep{{Description: "search manually"}},
		Timestamp: time.Now().UTC(),
	}
	result, claimed := c.resolvePlan(plan)
	require.True(t, claimed)
	assert.Equal(t, event.StatusPlan, result.Status)
	require.NotNil(t, result.Plan)
	assert.Equal(t, "req-1", result.Plan.RequestID)

	_, claimed = c.resolveToolSignal(context.Background(), testSignal("req-1"))
	assert.False(t, claimed)
	assert.Zero(t, inv.calls)
}

func TestNewComponentDefaults(t *testing.T) {
	comp, err := NewComponent(json.RawMessage(`{}`), component.Dependencies{})
	require.NoError(t, err)

	c, ok := comp.(*Component)
	require.True(t, ok)
	assert.Equal(t, "ROUTE", c.config.StreamName)
	assert.Equal(t, "coordinator-signals", c.config.SignalConsumerName)
	assert.Equal(t, "coordinator-plans", c.config.PlanConsumerName)
	assert.Equal(t, 5*time.Minute, c.config.GetClaimTTL())
	assert.False(t, c.IsRunning())
}

func TestNewComponentInvalidClaimTTL(t *testing.T) {
	_, err := NewComponent(json.RawMessage(`{"claim_ttl":"soon"}`), component.Dependencies{})
	assert.Error(t, err)
}
