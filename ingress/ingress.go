// Package ingress accepts raw user queries, normalizes them, and publishes
// request events for the routing pipeline. Submission is synchronous up to
// broker acknowledgment: a request ID is only returned once the event has
// been accepted by the stream.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/semroute/event"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
)

// ErrEmptyQuery is returned when a query normalizes to the empty string.
var ErrEmptyQuery = errors.New("query is empty after normalization")

// Ingress publishes normalized request events.
type Ingress struct {
	natsClient *natsclient.Client
	logger     *slog.Logger
	subject    string
}

// Option configures an Ingress.
type Option func(*Ingress)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingress) {
		i.logger = logger
	}
}

// WithSubject overrides the publish subject.
func WithSubject(subject string) Option {
	return func(i *Ingress) {
		i.subject = subject
	}
}

// New creates an Ingress publishing to the request subject.
func New(nc *natsclient.Client, opts ...Option) *Ingress {
	i := &Ingress{
		natsClient: nc,
		logger:     slog.Default(),
		subject:    event.SubjectRequest,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SubmitOption attaches optional request metadata.
type SubmitOption func(*event.RequestEvent)

// WithSessionID tags the request with a session identifier.
func WithSessionID(sessionID string) SubmitOption {
	return func(e *event.RequestEvent) {
		e.SessionID = sessionID
	}
}

// WithContext attaches a context snapshot to the request.
func WithContext(snapshot map[string]any) SubmitOption {
	return func(e *event.RequestEvent) {
		e.Context = snapshot
	}
}

// Submit normalizes the query, assigns a request ID, and publishes the
// request event. It returns the request ID on success. Publish failures are
// returned to the caller; nothing is retried or buffered.
func (i *Ingress) Submit(ctx context.Context, query string, opts ...SubmitOption) (string, error) {
	normalized := Normalize(query)
	if normalized == "" {
		return "", ErrEmptyQuery
	}

	evt := event.NewRequestEvent(normalized)
	for _, opt := range opts {
		opt(evt)
	}

	baseMsg := message.NewBaseMessage(evt.Schema(), evt, "ingress")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return "", fmt.Errorf("marshal request event: %w", err)
	}

	if err := i.natsClient.PublishToStream(ctx, i.subject, data); err != nil {
		return "", fmt.Errorf("publish to %s: %w", i.subject, err)
	}

	i.logger.Debug("Submitted request",
		"request_id", evt.RequestID,
		"query", normalized)

	return evt.RequestID, nil
}
