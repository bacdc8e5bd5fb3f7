package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseSize limits registry response bodies to prevent memory exhaustion.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// HTTPClient talks to the registry service over its JSON API:
// GET {base}/servers and GET {base}/servers/{id}.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(client *HTTPClient) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(client *HTTPClient) {
		client.logger = logger
	}
}

// NewHTTPClient creates a registry lookup client for the given base URL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("registry base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid registry base URL: %w", err)
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ListServers implements Lookup.
func (c *HTTPClient) ListServers(ctx context.Context) ([]Server, error) {
	var servers []Server
	if err := c.get(ctx, c.baseURL+"/servers", &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// GetServer implements Lookup.
func (c *HTTPClient) GetServer(ctx context.Context, serverID string) (*Server, error) {
	if serverID == "" {
		return nil, fmt.Errorf("server id is required")
	}

	var server Server
	endpoint := c.baseURL + "/servers/" + url.PathEscape(serverID)
	if err := c.get(ctx, endpoint, &server); err != nil {
		return nil, err
	}
	return &server, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Failed to close registry response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("registry returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read registry response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}
	return nil
}
