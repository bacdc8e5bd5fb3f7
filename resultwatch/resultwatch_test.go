package resultwatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semroute/event"
)

// startedWatcher returns a Watcher in the running state without a broker; the
// tests drive handleResult directly.
func startedWatcher() *Watcher {
	w := New(nil)
	w.running = true
	return w
}

func resultMsg(t *testing.T, result *event.ResultEvent) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(result)
	require.NoError(t, err)
	return &nats.Msg{Subject: event.SubjectResult, Data: data}
}

func TestWaitForNotRunning(t *testing.T) {
	w := New(nil)

	_, err := w.WaitFor(context.Background(), "req-1", time.Second)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestWaitForResolves(t *testing.T) {
	w := startedWatcher()

	done := make(chan struct{})
	var got *event.ResultEvent
	var waitErr error
	go func() {
		got, waitErr = w.WaitFor(context.Background(), "req-1", 5*time.Second)
		close(done)
	}()

	// Wait until the pending entry is registered.
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		_, ok := w.pending["req-1"]
		return ok
	}, time.Second, 5*time.Millisecond)

	w.handleResult(resultMsg(t, event.NewToolResult("req-1", "exa", "web_search_exa", json.RawMessage(`{"hits":1}`))))

	<-done
	require.NoError(t, waitErr)
	assert.Equal(t, event.StatusTool, got.Status)
	assert.Equal(t, "exa/web_search_exa", got.ToolPath)
	assert.Equal(t, int64(1), w.resultsMatched.Load())
}

func TestWaitForTimeout(t *testing.T) {
	w := startedWatcher()

	start := time.Now()
	_, err := w.WaitFor(context.Background(), "req-1", 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	// The wait was removed on timeout.
	w.mu.Lock()
	_, ok := w.pending["req-1"]
	w.mu.Unlock()
	assert.False(t, ok)
}

func TestWaitForContextCancelled(t *testing.T) {
	w := startedWatcher()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := w.WaitFor(ctx, "req-1", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForDuplicate(t *testing.T) {
	w := startedWatcher()

	go func() {
		_, _ = w.WaitFor(context.Background(), "req-1", time.Second)
	}()
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		_, ok := w.pending["req-1"]
		return ok
	}, time.Second, 5*time.Millisecond)

	_, err := w.WaitFor(context.Background(), "req-1", time.Second)
	assert.ErrorIs(t, err, ErrDuplicateWait)
}

func TestUnmatchedResultDropped(t *testing.T) {
	w := startedWatcher()

	w.handleResult(resultMsg(t, event.NewFailedResult("nobody-waiting", "boom")))
	assert.Equal(t, int64(1), w.resultsDropped.Load())
	assert.Equal(t, int64(0), w.resultsMatched.Load())
}

func TestMalformedResultDropped(t *testing.T) {
	w := startedWatcher()

	w.handleResult(&nats.Msg{Subject: event.SubjectResult, Data: []byte("not json")})
	assert.Equal(t, int64(1), w.resultsDropped.Load())
}

func TestStopFailsPendingWaits(t *testing.T) {
	w := startedWatcher()

	done := make(chan error, 1)
	go func() {
		_, err := w.WaitFor(context.Background(), "req-1", time.Minute)
		done <- err
	}()
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		_, ok := w.pending["req-1"]
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNotRunning)
	case <-time.After(time.Second):
		t.Fatal("wait did not fail after Stop")
	}
}
