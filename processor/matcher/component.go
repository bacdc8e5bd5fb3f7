// Package matcher consumes request events and decides whether a known tool
// confidently answers each query. Matching runs in two stages: an ordered
// table of coarse keyword rules, then a similarity scorer over a point-in-time
// catalog of registry tools. A confident match is re-verified against the
// registry before a tool signal is emitted; at most one signal is ever
// emitted per request and there are no retries.
package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semroute/event"
	"github.com/c360studio/semroute/registry"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
)

// Component implements the matcher processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	lookup registry.Lookup

	// Catalog snapshot, built once at start.
	index []IndexEntry

	// Rule table, swappable under hot reload.
	rulesMu sync.RWMutex
	rules   *RuleTable

	rulesWatcher *ruleWatcher

	// JetStream consumer
	consumer jetstream.Consumer
	stream   jetstream.Stream

	// Processed request ids, for redelivery dedup.
	seenMu sync.Mutex
	seen   map[string]time.Time

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	requestsProcessed atomic.Int64
	signalsEmitted    atomic.Int64
	matchesDropped    atomic.Int64
	errorCount        atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// NewComponent creates a new matcher processor.
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
	if config.ConsumerName == "" {
		config.ConsumerName = defaults.ConsumerName
	}
	if config.RequestSubject == "" {
		config.RequestSubject = defaults.RequestSubject
	}
	if config.SignalSubject == "" {
		config.SignalSubject = defaults.SignalSubject
	}
	if config.ConfidenceThreshold == 0 {
		config.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var lookup registry.Lookup = &registry.NotConfigured{}
	if config.RegistryURL != "" {
		client, err := registry.NewHTTPClient(config.RegistryURL, registry.WithLogger(deps.GetLogger()))
		if err != nil {
			return nil, fmt.Errorf("registry client: %w", err)
		}
		lookup = client
	}

	rules := DefaultRules()
	if config.RulesFile != "" {
		loaded, err := LoadRulesFile(config.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		rules = loaded
	}

	return &Component{
		name:       "matcher",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
		lookup:     lookup,
		rules:      rules,
		seen:       make(map[string]time.Time),
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized matcher",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"request_subject", c.config.RequestSubject,
		"threshold", c.config.ConfidenceThreshold,
		"rules", c.ruleTable().Len())
	return nil
}

// Start builds the tool catalog and begins consuming request events.
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

	// Build the catalog snapshot. A registry failure is not fatal: rule
	// matching still works, only the similarity fallback is empty.
	index, err := BuildIndex(subCtx, c.lookup)
	if err != nil {
		if !errors.Is(err, registry.ErrNotConfigured) {
			c.logger.Warn("Failed to build tool catalog, similarity matching disabled", "error", err)
		}
		index = nil
	}
	c.index = index

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

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: c.config.RequestSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       time.Minute,
		MaxDeliver:    3,
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, consumerConfig)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	c.consumer = consumer

	if c.config.WatchRules {
		watcher, err := newRuleWatcher(c.config.RulesFile, c.logger, func(table *RuleTable) {
			c.rulesMu.Lock()
			c.rules = table
			c.rulesMu.Unlock()
			c.logger.Info("Reloaded routing rules", "rules", table.Len())
		})
		if err != nil {
			c.rollbackStart(cancel)
			return fmt.Errorf("watch rules: %w", err)
		}
		c.rulesWatcher = watcher
		watcher.Start(subCtx)
	}

	go c.consumeLoop(subCtx)
	go c.sweepSeen(subCtx)

	c.logger.Info("matcher started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"subject", c.config.RequestSubject,
		"catalog_entries", len(c.index),
		"rules", c.ruleTable().Len())

	return nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

func (c *Component) ruleTable() *RuleTable {
	c.rulesMu.RLock()
	defer c.rulesMu.RUnlock()
	return c.rules
}

// consumeLoop continuously consumes request events.
func (c *Component) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleRequest(ctx, msg)
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			c.logger.Warn("Message fetch error", "error", msgs.Error())
		}
	}
}

// sweepSeen periodically drops expired request ids from the dedup set.
func (c *Component) sweepSeen(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-seenTTL)
			c.seenMu.Lock()
			for id, at := range c.seen {
				if at.Before(cutoff) {
					delete(c.seen, id)
				}
			}
			c.seenMu.Unlock()
		}
	}
}

// handleRequest matches one request event. Per-message errors never stop the
// consumer loop.
func (c *Component) handleRequest(ctx context.Context, msg jetstream.Msg) {
	c.requestsProcessed.Add(1)
	c.updateLastActivity()

	req, err := event.ParseEnvelope[event.RequestEvent](msg.Data())
	if err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to parse request event", "error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	// Redelivery of an already-matched request must not produce a second
	// signal.
	c.seenMu.Lock()
	_, dup := c.seen[req.RequestID]
	c.seenMu.Unlock()
	if dup {
		c.logger.Debug("Duplicate request delivery", "request_id", req.RequestID)
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ACK message", "error", err)
		}
		return
	}

	decision := c.match(req.NormalizedQuery)
	if decision == nil {
		c.logger.Debug("No confident match",
			"request_id", req.RequestID,
			"query", req.NormalizedQuery)
		c.markSeen(req.RequestID)
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ACK message", "error", err)
		}
		return
	}

	// The catalog may be stale. A confident match against a server or tool
	// the registry no longer has is dropped without a signal; the caller
	// times out or falls through to an external planner.
	if !c.verify(ctx, decision.serverID, decision.toolID) {
		c.matchesDropped.Add(1)
		c.logger.Debug("Dropping stale match",
			"request_id", req.RequestID,
			"server_id", decision.serverID,
			"tool_id", decision.toolID)
		c.markSeen(req.RequestID)
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ACK message", "error", err)
		}
		return
	}

	signal := &event.ToolSignal{
		RequestID:  req.RequestID,
		ToolID:     decision.toolID,
		ServerID:   decision.serverID,
		Params:     extractParams(req.NormalizedQuery),
		Confidence: decision.confidence,
		Status:     event.SignalToolReady,
		Timestamp:  time.Now().UTC(),
	}

	if err := c.publishSignal(ctx, signal); err != nil {
		c.errorCount.Add(1)
		c.logger.Error("Failed to publish tool signal",
			"request_id", req.RequestID,
			"error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	c.signalsEmitted.Add(1)
	c.markSeen(req.RequestID)
	c.logger.Info("Emitted tool signal",
		"request_id", req.RequestID,
		"server_id", decision.serverID,
		"tool_id", decision.toolID,
		"confidence", decision.confidence,
		"via", decision.via)

	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK message", "error", err)
	}
}

func (c *Component) markSeen(requestID string) {
	c.seenMu.Lock()
	c.seen[requestID] = time.Now()
	c.seenMu.Unlock()
}

// matchDecision is an accepted candidate tool for a query.
type matchDecision struct {
	serverID   string
	toolID     string
	confidence float64
	via        string
}

// match runs the two matching stages. Stage 1 is the ordered rule table; the
// first matching rule wins and, when its confidence clears the threshold,
// short-circuits stage 2 entirely. Stage 2 scores every catalog entry and
// keeps the single best. Returns nil when no candidate clears the threshold.
func (c *Component) match(query string) *matchDecision {
	if rule := c.ruleTable().Match(query); rule != nil && rule.Confidence >= c.config.ConfidenceThreshold {
		return &matchDecision{
			serverID:   rule.ServerID,
			toolID:     rule.ToolID,
			confidence: rule.Confidence,
			via:        "rule:" + rule.Name,
		}
	}

	queryKeywords := keywordSet(query)
	var best *matchDecision
	for i := range c.index {
		entry := &c.index[i]
		score := similarityScore(query, queryKeywords, entry)
		if best == nil || score > best.confidence {
			best = &matchDecision{
				serverID:   entry.ServerID,
				toolID:     entry.ToolID,
				confidence: score,
				via:        "similarity",
			}
		}
	}
	if best == nil || best.confidence < c.config.ConfidenceThreshold {
		return nil
	}
	return best
}

// verify re-checks that the chosen server still exists and still exposes the
// chosen tool. Any lookup failure counts as a miss. Without a configured
// registry there is nothing to check against, so rule matches pass through.
func (c *Component) verify(ctx context.Context, serverID, toolID string) bool {
	srv, err := c.lookup.GetServer(ctx, serverID)
	if err != nil {
		return errors.Is(err, registry.ErrNotConfigured)
	}
	return srv.HasTool(toolID)
}

func (c *Component) publishSignal(ctx context.Context, signal *event.ToolSignal) error {
	baseMsg := message.NewBaseMessage(signal.Schema(), signal, c.name)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	if err := c.natsClient.PublishToStream(ctx, c.config.SignalSubject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", c.config.SignalSubject, err)
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

	if c.rulesWatcher != nil {
		if err := c.rulesWatcher.Stop(); err != nil {
			c.logger.Warn("Failed to stop rules watcher", "error", err)
		}
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("matcher stopped",
		"requests_processed", c.requestsProcessed.Load(),
		"signals_emitted", c.signalsEmitted.Load(),
		"matches_dropped", c.matchesDropped.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "matcher",
		Type:        "processor",
		Description: "Matches request events to registered tools via rules and similarity scoring",
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
	return matcherSchema
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
