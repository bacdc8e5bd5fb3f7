// Package gateway composes the synchronous caller-facing API over the
// asynchronous pipeline: submit a query, then wait for its result.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360studio/semroute/event"
	"github.com/c360studio/semroute/ingress"
	"github.com/c360studio/semroute/resultwatch"
)

// Gateway pairs an ingress with a result watcher.
type Gateway struct {
	ingress *ingress.Ingress
	watcher *resultwatch.Watcher
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithTimeout sets the default wait timeout for SubmitAndWait.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

// New creates a Gateway.
func New(ing *ingress.Ingress, watcher *resultwatch.Watcher, opts ...Option) *Gateway {
	g := &Gateway{
		ingress: ing,
		watcher: watcher,
		logger:  slog.Default(),
		timeout: resultwatch.DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SubmitAndWait publishes the query and blocks until its result arrives or
// the timeout fires. A timeout of zero or less uses the gateway default.
func (g *Gateway) SubmitAndWait(ctx context.Context, query string, timeout time.Duration, opts ...ingress.SubmitOption) (*event.ResultEvent, error) {
	if timeout <= 0 {
		timeout = g.timeout
	}

	requestID, err := g.ingress.Submit(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Waiting for result",
		"request_id", requestID,
		"timeout", timeout)

	return g.watcher.WaitFor(ctx, requestID, timeout)
}
