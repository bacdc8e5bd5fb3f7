// Package invoke exposes the tool invocation collaborator. The actual
// transport to the remote tool endpoint (HTTP, stdio, retries, fallback)
// lives outside this module; the coordinator only needs a single Invoke
// call that returns a raw result or an error.
package invoke

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotConfigured is returned by the NotConfigured variant.
var ErrNotConfigured = errors.New("invoke: invoker not configured")

// Invoker executes a tool on a registered server. Implementations may retry
// internally; the coordinator never retries on top of them.
type Invoker interface {
	Invoke(ctx context.Context, serverID, toolID string, args map[string]any) (json.RawMessage, error)
}

// NotConfigured is the explicit "no invoker wired" variant. Every call fails
// with ErrNotConfigured, which the coordinator republishes as a failed result.
type NotConfigured struct{}

// Invoke implements Invoker.
func (NotConfigured) Invoke(context.Context, string, string, map[string]any) (json.RawMessage, error) {
	return nil, ErrNotConfigured
}
