// Package coordinator resolves each request exactly once. Tool signals and
// plan events race on the same request id; whichever claims the id first is
// authoritative and produces the single result event. Tool signals trigger the
// external invocation capability; plans are passed through without execution.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semroute/event"
	"github.com/c360studio/semroute/invoke"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
)

// Component implements the coordinator processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	invoker invoke.Invoker
	claims  *ClaimTable

	// JetStream consumers, one per inbound stream.
	stream         jetstream.Stream
	signalConsumer jetstream.Consumer
	planConsumer   jetstream.Consumer

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	signalsProcessed atomic.Int64
	plansProcessed   atomic.Int64
	resultsPublished atomic.Int64
	duplicatesDropped atomic.Int64
	invocationsFailed atomic.Int64
	errorCount        atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// NewComponent creates a new coordinator processor.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults
	defaults := DefaultConfig()
	if config.StreamName == "" {
		config.StreamName = defaults.StreamName
	}
	if config.SignalConsumerName == "" {
		config.SignalConsumerName = defaults.SignalConsumerName
	}
	if config.PlanConsumerName == "" {
		config.PlanConsumerName = defaults.PlanConsumerName
	}
	if config.SignalSubject == "" {
		config.SignalSubject = defaults.SignalSubject
	}
	if config.PlanSubject == "" {
		config.PlanSubject = defaults.PlanSubject
	}
	if config.ResultSubject == "" {
		config.ResultSubject = defaults.ResultSubject
	}
	if config.ClaimTTL == "" {
		config.ClaimTTL = defaults.ClaimTTL
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var invoker invoke.Invoker = &invoke.NotConfigured{}
	if config.InvokerURL != "" {
		client, err := invoke.NewHTTPInvoker(config.InvokerURL, invoke.WithLogger(deps.GetLogger()))
		if err != nil {
			return nil, fmt.Errorf("invoker client: %w", err)
		}
		invoker = client
	}

	return &Component{
		name:       "coordinator",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
		invoker:    invoker,
		claims:     NewClaimTable(config.GetClaimTTL()),
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized coordinator",
		"stream", c.config.StreamName,
		"signal_subject", c.config.SignalSubject,
		"plan_subject", c.config.PlanSubject,
		"claim_ttl", c.config.GetClaimTTL())
	return nil
}

// Start begins consuming tool signals and plans.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	js, err := c.natsClient.JetStream()
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get jetstream: %w", err)
	}

	stream, err := js.Stream(subCtx, c.config.StreamName)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.StreamName, err)
	}
	c.stream = stream

	signalConsumer, err := stream.CreateOrUpdateConsumer(subCtx, jetstream.ConsumerConfig{
		Durable:       c.config.SignalConsumerName,
		FilterSubject: c.config.SignalSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       3 * time.Minute,
		MaxDeliver:    3,
	})
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create signal consumer: %w", err)
	}
	c.signalConsumer = signalConsumer

	planConsumer, err := stream.CreateOrUpdateConsumer(subCtx, jetstream.ConsumerConfig{
		Durable:       c.config.PlanConsumerName,
		FilterSubject: c.config.PlanSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       time.Minute,
		MaxDeliver:    3,
	})
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create plan consumer: %w", err)
	}
	c.planConsumer = planConsumer

	go c.consumeLoop(subCtx, signalConsumer, "tool-signals", c.handleToolSignal)
	go c.consumeLoop(subCtx, planConsumer, "plans", c.handlePlan)
	go c.sweepClaims(subCtx)

	c.logger.Info("coordinator started",
		"stream", c.config.StreamName,
		"signal_subject", c.config.SignalSubject,
		"plan_subject", c.config.PlanSubject,
		"result_subject", c.config.ResultSubject)

	return nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

// consumeLoop continuously consumes messages from one consumer. Per-message
// handler failures never stop the loop.
func (c *Component) consumeLoop(ctx context.Context, consumer jetstream.Consumer, name string, handler func(context.Context, jetstream.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "consumer", name, "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			handler(ctx, msg)
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			c.logger.Warn("Message fetch error", "consumer", name, "error", msgs.Error())
		}
	}
}

// sweepClaims periodically drops expired claims to bound memory.
func (c *Component) sweepClaims(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := c.claims.Sweep(); dropped > 0 {
				c.logger.Debug("Expired claims swept", "dropped", dropped)
			}
		}
	}
}

// handleToolSignal resolves one tool signal: claim, invoke, publish result.
func (c *Component) handleToolSignal(ctx context.Context, msg jetstream.Msg) {
	c.signalsProcessed.Add(1)
	c.updateLastActivity()

	signal, err := event.ParseEnvelope[event.ToolSignal](msg.Data())
	if err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to parse tool signal", "error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	// Only ready signals resolve a request. Anything else is dropped without
	// claiming so a later message can still win the id.
	if signal.Status != event.SignalToolReady {
		c.logger.Debug("Ignoring tool signal with non-ready status",
			"request_id", signal.RequestID,
			"status", signal.Status)
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ACK message", "error", err)
		}
		return
	}

	result, claimed := c.resolveToolSignal(ctx, signal)
	if !claimed {
		reason, _ := c.claims.Reason(signal.RequestID)
		c.duplicatesDropped.Add(1)
		c.logger.Debug("Request already claimed, dropping tool signal",
			"request_id", signal.RequestID,
			"claimed_by", reason)
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ACK message", "error", err)
		}
		return
	}

	if err := c.publishResult(ctx, result); err != nil {
		c.errorCount.Add(1)
		// The claim is already taken; a redelivered signal would be dropped,
		// so the caller's wait expires instead of seeing a duplicate result.
		c.logger.Error("Failed to publish result",
			"request_id", signal.RequestID,
			"error", err)
	} else {
		c.resultsPublished.Add(1)
		c.logger.Info("Resolved request via tool",
			"request_id", signal.RequestID,
			"tool_path", result.ToolPath,
			"status", result.Status)
	}

	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK message", "error", err)
	}
}

// resolveToolSignal claims the request and runs the invocation. Returns the
// result to publish and whether this signal won the claim. The invocation
// capability owns its own retries and transport; any error becomes a failed
// result and the claim stands either way.
func (c *Component) resolveToolSignal(ctx context.Context, signal *event.ToolSignal) (*event.ResultEvent, bool) {
	if !c.claims.Claim(signal.RequestID, ReasonTool) {
		return nil, false
	}

	raw, err := c.invoker.Invoke(ctx, signal.ServerID, signal.ToolID, signal.Params)
	if err != nil {
		c.invocationsFailed.Add(1)
		c.logger.Warn("Tool invocation failed",
			"request_id", signal.RequestID,
			"server_id", signal.ServerID,
			"tool_id", signal.ToolID,
			"error", err)
		return event.NewFailedResult(signal.RequestID, err.Error()), true
	}
	return event.NewToolResult(signal.RequestID, signal.ServerID, signal.ToolID, raw), true
}

// resolvePlan claims the request for plan pass-through. Returns the wrapped
// plan result and whether the plan won the claim.
func (c *Component) resolvePlan(plan *event.PlanEvent) (*event.ResultEvent, bool) {
	if !c.claims.Claim(plan.RequestID, ReasonPlan) {
		return nil, false
	}
	return event.NewPlanResult(plan), true
}

// handlePlan republishes an external plan as a result without executing it.
func (c *Component) handlePlan(ctx context.Context, msg jetstream.Msg) {
	c.plansProcessed.Add(1)
	c.updateLastActivity()

	plan, err := event.ParseEnvelope[event.PlanEvent](msg.Data())
	if err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to parse plan event", "error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	result, claimed := c.resolvePlan(plan)
	if !claimed {
		reason, _ := c.claims.Reason(plan.RequestID)
		c.duplicatesDropped.Add(1)
		c.logger.Debug("Request already claimed, dropping plan",
			"request_id", plan.RequestID,
			"claimed_by", reason)
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ACK message", "error", err)
		}
		return
	}

	if err := c.publishResult(ctx, result); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to publish plan result",
			"request_id", plan.RequestID,
			"error", err)
	} else {
		c.resultsPublished.Add(1)
		c.logger.Info("Resolved request via plan",
			"request_id", plan.RequestID,
			"steps", len(plan.Plan))
	}

	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK message", "error", err)
	}
}

func (c *Component) publishResult(ctx context.Context, result *event.ResultEvent) error {
	baseMsg := message.NewBaseMessage(result.Schema(), result, c.name)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := c.natsClient.PublishToStream(ctx, c.config.ResultSubject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", c.config.ResultSubject, err)
	}
	return nil
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("coordinator stopped",
		"signals_processed", c.signalsProcessed.Load(),
		"plans_processed", c.plansProcessed.Load(),
		"results_published", c.resultsPublished.Load(),
		"duplicates_dropped", c.duplicatesDropped.Load(),
		"invocations_failed", c.invocationsFailed.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "coordinator",
		Type:        "processor",
		Description: "Claims each request once and resolves it via tool invocation or plan pass-through",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionInput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionOutput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return coordinatorSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}

// IsRunning returns whether the component is running.
func (c *Component) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
