// Package monday is a small GraphQL client for the monday.com board API,
// covering the item queries and mutations a sync run needs.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the public GraphQL endpoint.
const DefaultURL = "https://api.monday.com/v2"

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a non-JSON error body ends up in messages.
const maxErrorBody = 512

// Authenticator applies credentials to a request.
type Authenticator interface {
	Apply(req *http.Request, token string)
}

// HeaderAuth sends the token verbatim in a header. monday.com expects the
// personal API token in Authorization without a scheme.
type HeaderAuth struct {
	Header string
}

// Apply implements Authenticator.
func (a *HeaderAuth) Apply(req *http.Request, token string) {
	req.Header.Set(a.Header, token)
}

// Options configures a Client.
type Options struct {
	URL        string
	Token      string
	APIVersion string
	Timeout    time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Auth       Authenticator
}

// Client issues GraphQL requests.
type Client struct {
	http     *http.Client
	auth     Authenticator
	endpoint string
	token    string
	version  string
}

// NewClient returns a client for opts.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Auth == nil {
		opts.Auth = &HeaderAuth{Header: "Authorization"}
	}
	return &Client{
		http:     opts.HTTPClient,
		auth:     opts.Auth,
		endpoint: opts.URL,
		token:    opts.Token,
		version:  opts.APIVersion,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`

	// Legacy top-level error shape still returned by some endpoints.
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Do runs one GraphQL operation and decodes its data into out.
func (c *Client) Do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	if c.token == "" {
		return ErrMissingToken
	}

	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("monday: %s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("monday: %s: create request: %w", op, err)
	}
	c.auth.Apply(req, c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.version != "" {
		req.Header.Set("API-Version", c.version)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("monday: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("monday: %s: read response: %w", op, err)
	}

	var gr gqlResponse
	if jsonErr := json.Unmarshal(raw, &gr); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Op: op, StatusCode: resp.StatusCode, Message: truncate(string(raw))}
		}
		return fmt.Errorf("monday: %s: decode response: %w", op, jsonErr)
	}

	if apiErr := gr.apiError(op, resp.StatusCode); apiErr != nil {
		return apiErr
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("monday: %s: decode data: %w", op, err)
	}
	return nil
}

func (gr *gqlResponse) apiError(op string, status int) *APIError {
	if len(gr.Errors) > 0 {
		first := gr.Errors[0]
		return &APIError{Op: op, StatusCode: status, Code: first.Extensions.Code, Message: first.Message}
	}
	if gr.ErrorMessage != "" || gr.ErrorCode != "" {
		return &APIError{Op: op, StatusCode: status, Code: gr.ErrorCode, Message: gr.ErrorMessage}
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
