package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
)

// ClientOption allows for customization of the client
type ClientOption func(*Client)

// Client talks to the X API v2 on behalf of one account.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logrus.Logger
	observer   RateLimitObserver
	scope      string
}

// WithRateLimitObserver reports quota headers for scope, usually the account id.
func WithRateLimitObserver(obs RateLimitObserver, scope string) ClientOption {
	return func(c *Client) {
		c.observer = obs
		c.scope = scope
	}
}

// NewClient wraps an already authenticated http client.
func NewClient(config *Config, httpClient *http.Client, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	client := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// do sends the request, records rate limit headers and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.config.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	observe(ctx, c.observer, method+" "+route, c.scope, resp.Header)

	if err := c.handleResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// handleResponse turns a non-2xx response into an *APIError.
func (c *Client) handleResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}

	var errResp struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		apiErr.Title = errResp.Title
		apiErr.Detail = errResp.Detail
		if len(errResp.Errors) > 0 {
			apiErr.Code = errResp.Errors[0].Code
			if apiErr.Detail == "" {
				apiErr.Detail = errResp.Errors[0].Message
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"error_code":  apiErr.Code,
		"detail":      apiErr.Detail,
		"scope":       c.scope,
	}).Warn("X API error")

	return apiErr
}
