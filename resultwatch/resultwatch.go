// Package resultwatch bridges the asynchronous result topic back to
// synchronous callers. A single long-lived core subscription fans results out
// to per-request waits; each wait resolves at most once and carries its own
// timeout.
package resultwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/semroute/event"
	"github.com/c360studio/semstreams/natsclient"
)

// DefaultWaitTimeout bounds a wait when the caller does not pass a timeout.
const DefaultWaitTimeout = 20 * time.Second

var (
	// ErrWaitTimeout is returned when no result arrives within the deadline.
	ErrWaitTimeout = errors.New("resultwatch: wait timed out")

	// ErrNotRunning is returned by WaitFor when the subscription is not
	// active. Waits are never queued for a future subscription.
	ErrNotRunning = errors.New("resultwatch: watcher not running")

	// ErrDuplicateWait is returned when a wait for the request id is already
	// outstanding. Callers serialize waits per request id.
	ErrDuplicateWait = errors.New("resultwatch: wait already pending for request id")
)

// Watcher owns the result subscription and the pending-wait table.
type Watcher struct {
	natsClient *natsclient.Client
	logger     *slog.Logger
	subject    string

	mu      sync.Mutex
	running bool
	sub     *nats.Subscription
	pending map[string]chan *event.ResultEvent

	// Metrics
	resultsMatched atomic.Int64
	resultsDropped atomic.Int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithSubject overrides the result subject.
func WithSubject(subject string) Option {
	return func(w *Watcher) {
		w.subject = subject
	}
}

// New creates a Watcher on the result subject.
func New(nc *natsclient.Client, opts ...Option) *Watcher {
	w := &Watcher{
		natsClient: nc,
		logger:     slog.Default(),
		subject:    event.SubjectResult,
		pending:    make(map[string]chan *event.ResultEvent),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start establishes the result subscription. Subscription failure is fatal to
// the caller; there is no retry here.
func (w *Watcher) Start(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if w.natsClient == nil {
		return fmt.Errorf("NATS client required")
	}

	conn := w.natsClient.GetConnection()
	if conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	sub, err := conn.Subscribe(w.subject, w.handleResult)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", w.subject, err)
	}

	w.sub = sub
	w.running = true
	w.logger.Info("Result watcher started", "subject", w.subject)
	return nil
}

// Stop drains the subscription and fails all outstanding waits.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false

	var err error
	if w.sub != nil {
		err = w.sub.Unsubscribe()
		w.sub = nil
	}

	for id, ch := range w.pending {
		close(ch)
		delete(w.pending, id)
	}

	w.logger.Info("Result watcher stopped",
		"results_matched", w.resultsMatched.Load(),
		"results_dropped", w.resultsDropped.Load())
	return err
}

// IsRunning reports whether the subscription is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// WaitFor blocks until a result for requestID arrives, the timeout fires, or
// the context is cancelled. A timeout of zero or less uses DefaultWaitTimeout.
func (w *Watcher) WaitFor(ctx context.Context, requestID string, timeout time.Duration) (*event.ResultEvent, error) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	ch, err := w.register(requestID)
	if err != nil {
		return nil, err
	}
	defer w.unregister(requestID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: request %s after %s", ErrWaitTimeout, requestID, timeout)
	case result, ok := <-ch:
		if !ok {
			return nil, ErrNotRunning
		}
		return result, nil
	}
}

func (w *Watcher) register(requestID string) (chan *event.ResultEvent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil, ErrNotRunning
	}
	if _, exists := w.pending[requestID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateWait, requestID)
	}

	ch := make(chan *event.ResultEvent, 1)
	w.pending[requestID] = ch
	return ch, nil
}

func (w *Watcher) unregister(requestID string) {
	w.mu.Lock()
	delete(w.pending, requestID)
	w.mu.Unlock()
}

// handleResult resolves the pending wait for an incoming result. Results with
// no pending wait (late arrivals, duplicate deliveries) are logged and
// dropped; they never error the subscription.
func (w *Watcher) handleResult(msg *nats.Msg) {
	result, err := event.ParseEnvelope[event.ResultEvent](msg.Data)
	if err != nil {
		w.resultsDropped.Add(1)
		w.logger.Warn("Failed to parse result event", "error", err)
		return
	}

	w.mu.Lock()
	ch, ok := w.pending[result.RequestID]
	if ok {
		delete(w.pending, result.RequestID)
	}
	w.mu.Unlock()

	if !ok {
		w.resultsDropped.Add(1)
		w.logger.Debug("No pending wait for result, dropping",
			"request_id", result.RequestID,
			"status", result.Status)
		return
	}

	ch <- result
	w.resultsMatched.Add(1)
}
