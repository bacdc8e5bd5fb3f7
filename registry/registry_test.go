package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HasTool(t *testing.T) {
	server := Server{
		ID:   "exa",
		Name: "Exa Search",
		Tools: []Tool{
			{Name: "web_search_exa", Description: "Search the web"},
			{Name: "find_similar", Description: "Find similar pages"},
		},
	}

	assert.True(t, server.HasTool("web_search_exa"))
	assert.False(t, server.HasTool("browser_navigate"))
}

func TestNotConfigured(t *testing.T) {
	var lookup Lookup = NotConfigured{}

	_, err := lookup.ListServers(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = lookup.GetServer(context.Background(), "exa")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHTTPClient_ListServers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/servers", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"server_id":"exa","name":"Exa Search","tools":[{"name":"web_search_exa","description":"Search the web"}]},
			{"server_id":"browser","name":"Browser","tools":[{"name":"browser_navigate"}]}
		]`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL)
	require.NoError(t, err)

	servers, err := client.ListServers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "exa", servers[0].ID)
	assert.Equal(t, "web_search_exa", servers[0].Tools[0].Name)
}

func TestHTTPClient_GetServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/servers/exa":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"server_id":"exa","name":"Exa Search","tools":[{"name":"web_search_exa"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL)
	require.NoError(t, err)

	server, err := client.GetServer(context.Background(), "exa")
	require.NoError(t, err)
	assert.Equal(t, "Exa Search", server.Name)
	assert.True(t, server.HasTool("web_search_exa"))

	_, err = client.GetServer(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL)
	require.NoError(t, err)

	_, err = client.ListServers(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient("")
	assert.Error(t, err)
}
