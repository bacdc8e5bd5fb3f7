package invoke

import (
	"bytes"
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

// maxResponseSize limits invocation response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// invokeRequest is the JSON body posted to the invocation endpoint.
type invokeRequest struct {
	ServerID  string         `json:"server_id"`
	ToolID    string         `json:"tool_id"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// invokeResponse is the JSON body returned by the invocation endpoint.
type invokeResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// HTTPInvoker executes tools through the invocation service's JSON API:
// POST {base}/invoke with {server_id, tool_id, arguments}.
type HTTPInvoker struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPOption configures an HTTPInvoker.
type HTTPOption func(*HTTPInvoker)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(inv *HTTPInvoker) {
		inv.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(inv *HTTPInvoker) {
		inv.logger = logger
	}
}

// NewHTTPInvoker creates an invoker for the given invocation service URL.
func NewHTTPInvoker(baseURL string, opts ...HTTPOption) (*HTTPInvoker, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("invoker base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid invoker base URL: %w", err)
	}

	inv := &HTTPInvoker{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Remote tools may be slow
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(inv)
	}

	return inv, nil
}

// Invoke implements Invoker.
func (inv *HTTPInvoker) Invoke(ctx context.Context, serverID, toolID string, args map[string]any) (json.RawMessage, error) {
	if serverID == "" || toolID == "" {
		return nil, fmt.Errorf("server id and tool id are required")
	}

	body, err := json.Marshal(invokeRequest{
		ServerID:  serverID,
		ToolID:    toolID,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal invoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inv.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := inv.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke %s/%s: %w", serverID, toolID, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			inv.logger.Debug("Failed to close invoke response body", "error", closeErr)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read invoke response: %w", err)
	}

	var decoded invokeResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode invoke response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if decoded.Error != "" {
			return nil, fmt.Errorf("%s", decoded.Error)
		}
		return nil, fmt.Errorf("invoker returned %d", resp.StatusCode)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("%s", decoded.Error)
	}

	return decoded.Result, nil
}
