// Package registry exposes the tool registry collaborator behind a narrow
// lookup interface. The registry itself (persistence, CRUD, auth) lives
// outside this module; the matcher only needs to list servers with their
// tools and to re-fetch a single server.
package registry

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by the NotConfigured variant. Callers that can
// run without a registry check for it explicitly rather than probing at
// runtime.
var ErrNotConfigured = errors.New("registry: lookup not configured")

// ErrNotFound is returned by GetServer when the server id is unknown.
var ErrNotFound = errors.New("registry: server not found")

// Tool is a named remote capability exposed by a registered server.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Server is a registered source of one or more tools.
type Server struct {
	ID    string `json:"server_id"`
	Name  string `json:"name"`
	Tools []Tool `json:"tools,omitempty"`
}

// HasTool reports whether the server exposes a tool with the given name.
func (s *Server) HasTool(name string) bool {
	for _, t := range s.Tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Lookup is the read-only registry capability used by the matcher for
// catalog builds and match re-verification.
type Lookup interface {
	// ListServers returns all registered servers with their tools.
	ListServers(ctx context.Context) ([]Server, error)

	// GetServer fetches one server by id. Returns ErrNotFound when the
	// server no longer exists.
	GetServer(ctx context.Context, serverID string) (*Server, error)
}

// NotConfigured is the explicit "no registry wired" variant. Every call
// fails with ErrNotConfigured.
type NotConfigured struct{}

// ListServers implements Lookup.
func (NotConfigured) ListServers(context.Context) ([]Server, error) {
	return nil, ErrNotConfigured
}

// GetServer implements Lookup.
func (NotConfigured) GetServer(context.Context, string) (*Server, error) {
	return nil, ErrNotConfigured
}
