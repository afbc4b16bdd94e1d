package spoonacular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/internal/infrastructure/metrics"
	"github.com/recipebox/backend/internal/logging"
)

const (
	// DefaultBaseURL is the Spoonacular recipes API root
	DefaultBaseURL = "https://api.spoonacular.com/recipes"

	apiKeyParam     = "apiKey"
	maxResponseSize = 4 << 20
)

// ClientConfig configures a catalog client
type ClientConfig struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	RequestsPerHour int // <= 0 disables outbound rate limiting
	Logger          zerolog.Logger
	Metrics         *metrics.Metrics
}

// Client handles communication with the Spoonacular recipe API
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	maxRetries  int
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewClient creates a new Spoonacular API client
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	// burst of 10 requests
	limit := rate.Inf
	if cfg.RequestsPerHour > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerHour) / 3600)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		maxRetries:  maxRetries,
		rateLimiter: rate.NewLimiter(limit, 10),
		backoff:     exponentialBackoff,
		logger:      logging.Component(cfg.Logger, "spoonacular"),
		metrics:     cfg.Metrics,
	}
}

// exponentialBackoff returns the wait before retrying after the given attempt
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "RecipeBox/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error carries the request URL, which includes the API key
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogFailure, err)
	}

	return resp, nil
}

// Fetch performs a GET against path with params plus the shared API key and
// returns the raw JSON body. Transport errors, 429 and 5xx responses are
// retried; other 4xx responses and bodies that are not JSON are not.
func (c *Client) Fetch(ctx context.Context, path string, params domain.QueryParams) ([]byte, error) {
	endpoint := endpointLabel(path)

	values := params.Values()
	values.Set(apiKeyParam, c.apiKey)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, strings.TrimLeft(path, "/"), values.Encode())

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			c.metrics.ObserveCatalogRequest(endpoint, "rate_limited")
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Msg("request error")
			lastErr = err
			if !c.wait(ctx, attempt) {
				break
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK && readErr != nil:
			lastErr = fmt.Errorf("%w: failed to read body: %v", domain.ErrCatalogFailure, readErr)

		case resp.StatusCode == http.StatusOK:
			if !json.Valid(body) {
				c.metrics.ObserveCatalogRequest(endpoint, "malformed")
				return nil, fmt.Errorf("%w: %s returned invalid JSON", domain.ErrMalformedResponse, endpoint)
			}
			c.metrics.ObserveCatalogRequest(endpoint, "ok")
			c.logger.Debug().Str("endpoint", endpoint).Int("bytes", len(body)).Msg("catalog response")
			return body, nil

		case resp.StatusCode == http.StatusNotFound:
			c.metrics.ObserveCatalogRequest(endpoint, "not_found")
			return nil, domain.ErrRecipeNotFound

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.logger.Warn().Str("endpoint", endpoint).Int("status", resp.StatusCode).Int("attempt", attempt).Msg("catalog error, retrying")
			lastErr = fmt.Errorf("%w: status %d", domain.ErrCatalogFailure, resp.StatusCode)

		default:
			// 401/402 mean a bad key or an exhausted quota, retrying will not help
			c.metrics.ObserveCatalogRequest(endpoint, "error")
			return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrCatalogFailure, resp.StatusCode, truncate(string(body), 200))
		}

		if !c.wait(ctx, attempt) {
			break
		}
	}

	c.metrics.ObserveCatalogRequest(endpoint, "error")
	c.logger.Warn().Err(lastErr).Str("endpoint", endpoint).Msg("all retries failed")
	return nil, lastErr
}

// wait sleeps before the next attempt. It returns false when there is no next
// attempt or the context ended first.
func (c *Client) wait(ctx context.Context, attempt int) bool {
	if attempt >= c.maxRetries {
		return false
	}
	timer := time.NewTimer(c.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// endpointLabel maps a request path to a low-cardinality metrics label
func endpointLabel(path string) string {
	path = strings.Trim(path, "/")
	switch {
	case path == "complexSearch":
		return "search"
	case path == "random":
		return "random"
	case strings.HasSuffix(path, "/information"):
		return "details"
	default:
		return "other"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
