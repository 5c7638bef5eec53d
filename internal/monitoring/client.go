package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ClientConfig configures the monitoring service client.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration // per request
	AuthToken string        // sent as a bearer token when set
}

// Client talks to a Perfana-compatible monitoring service.
type Client struct {
	httpClient *http.Client
	config     ClientConfig
}

// NewClient creates a new monitoring client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}
}

// BaseURL returns the service URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// PostTest sends one run-progress notice. Non-2xx statuses are errors.
func (c *Client) PostTest(ctx context.Context, meta RunMetadata, completed bool) error {
	body, err := json.Marshal(meta.payload(completed))
	if err != nil {
		return fmt.Errorf("failed to marshal test payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/test", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain response body to reuse connection
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// BenchmarkResultsURL returns the assertion endpoint for a run.
func (c *Client) BenchmarkResultsURL(application, testRunID string) string {
	return strings.Join([]string{
		c.config.BaseURL,
		"get-benchmark-results",
		pathEscape(application),
		pathEscape(testRunID),
	}, "/")
}

// GetBenchmarkResults performs a single GET of the assertion endpoint. err is
// set only for transport failures; any HTTP status is returned as is.
func (c *Client) GetBenchmarkResults(ctx context.Context, endpoint string) (status int, body []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}
}

// pathEscape uses form encoding with spaces as %20.
func pathEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
