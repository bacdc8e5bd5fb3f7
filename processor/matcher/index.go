package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/semroute/registry"
)

// IndexEntry is one (server, tool) pair in the matcher's catalog. The catalog
// is a point-in-time snapshot of the registry built at component start; it is
// not refreshed automatically and may go stale.
type IndexEntry struct {
	ServerID    string
	ToolID      string
	Description string
	Keywords    map[string]struct{}
	SearchText  string
}

// BuildIndex lists every server from the registry and produces one index
// entry per exposed tool.
func BuildIndex(ctx context.Context, lookup registry.Lookup) ([]IndexEntry, error) {
	servers, err := lookup.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	var entries []IndexEntry
	for _, srv := range servers {
		for _, tool := range srv.Tools {
			entries = append(entries, NewIndexEntry(srv.ID, tool.Name, tool.Description))
		}
	}
	return entries, nil
}

// NewIndexEntry builds the searchable form of a single tool.
func NewIndexEntry(serverID, toolID, description string) IndexEntry {
	// Tool ids use underscores; fold them into the search text as words so
	// "web_search_exa" can match "web search".
	searchText := strings.ToLower(strings.ReplaceAll(toolID, "_", " ") + " " + description)
	return IndexEntry{
		ServerID:    serverID,
		ToolID:      toolID,
		Description: description,
		Keywords:    keywordSet(searchText),
		SearchText:  strings.TrimSpace(searchText),
	}
}
