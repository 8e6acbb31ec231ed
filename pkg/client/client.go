// Package client provides the HTTP client for JSON management APIs that the
// REST provider collects configuration from. It classifies failures, retries
// server and network errors, and surfaces rate-limit rejections as coded
// errors so the fetch pipeline can requeue them.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_api_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_api_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_api_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// PagesHeader carries the total page count of a paginated listing.
const PagesHeader = "X-Pages"

// maxErrorBody caps how much of a failed response is read for the envelope.
const maxErrorBody = 64 << 10

// Client is a JSON management API client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, e.g. "https://api.example.com".
	BaseURL string `yaml:"base_url"`

	// UserAgent header sent with every request (REQUIRED).
	UserAgent string `yaml:"user_agent"`

	// Timeout per HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries after the first attempt for server and network errors.
	// Zero uses the per-class defaults.
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff overrides the per-class initial backoff when set.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		config:     cfg,
		logger:     log.With().Str("component", "api-client").Logger(),
	}, nil
}

// GetJSON performs a GET request and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.get(ctx, path, query, out)
	return err
}

// GetPage fetches one page of a paginated listing into out and returns the
// total number of pages announced in the X-Pages header. A missing header
// means a single page.
func (c *Client) GetPage(ctx context.Context, path string, query url.Values, page int, out any) (int, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(page))

	header, err := c.get(ctx, path, q, out)
	if err != nil {
		return 0, err
	}

	pages := 1
	if v := header.Get(PagesHeader); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid %s header %q", PagesHeader, v)
		}
		pages = n
	}
	return pages, nil
}

// get runs the request with retries and returns the successful response's headers.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	endpoint := path
	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	target := c.resolve(path, query)

	var header http.Header
	err := retryWithBackoff(ctx, c.logger, c.retryConfig, func() (ErrorClass, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return ErrorClassClient, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")

		c.logger.Debug().
			Str("endpoint", endpoint).
			Msg("Executing API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			if ctx.Err() != nil {
				// Cancelled by the caller: nothing to retry.
				return ErrorClassClient, err
			}
			return ErrorClassNetwork, err
		}
		defer resp.Body.Close()

		apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			apiErr := newAPIError(resp.StatusCode, resp.Status, body)
			apiErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

			c.logger.Debug().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("code", apiErr.Code).
				Str("error_class", string(apiErr.ErrorClass)).
				Msg("API request error")
			return apiErr.ErrorClass, apiErr
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return ErrorClassClient, fmt.Errorf("decode %s: %w", endpoint, err)
			}
		}
		header = resp.Header
		return "", nil
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// retryConfig applies the client's overrides to the per-class defaults.
func (c *Client) retryConfig(class ErrorClass) RetryConfig {
	rc := RetryConfigForErrorClass(class)
	if c.config.MaxRetries > 0 {
		rc.MaxAttempts = c.config.MaxRetries + 1
	}
	if c.config.InitialBackoff > 0 {
		rc.InitialBackoff = c.config.InitialBackoff
		if rc.MaxBackoff < rc.InitialBackoff {
			rc.MaxBackoff = rc.InitialBackoff
		}
	}
	return rc
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
