package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 90 * time.Second
	MinTimeout     = 60 * time.Second
	MaxTimeout     = 120 * time.Second

	analyzePath = "/analyze-fashion"
	healthPath  = "/health"
)

// AnalysisRequest is the body of POST /analyze-fashion.
type AnalysisRequest struct {
	Images     []string `json:"images"`
	ReviewType string   `json:"reviewType"`
}

// AnalysisResponse is the 200 body of POST /analyze-fashion. Analysis holds
// the nested analysis document as a string, possibly wrapped in code fences.
type AnalysisResponse struct {
	Success    bool   `json:"success"`
	Analysis   string `json:"analysis"`
	ReviewType string `json:"reviewType"`
	Timestamp  string `json:"timestamp"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ClientOpts struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the fashion analysis service.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

// NewClient validates the base URL and builds a client. The timeout is
// clamped to the 60-120s range vision inference needs.
func NewClient(opts ClientOpts) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base url %q", ErrConfiguration, opts.BaseURL)
	}

	timeout := opts.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultTimeout
	case timeout < MinTimeout:
		timeout = MinTimeout
	case timeout > MaxTimeout:
		timeout = MaxTimeout
	}

	c := &Client{baseURL: base}
	c.httpClient = resty.New().
		SetDebug(false).
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": "drip-check",
		})
	return c, nil
}

// BaseURL returns the service base url without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AnalyzeFashion posts the request and classifies the response status into
// the package error taxonomy.
func (c *Client) AnalyzeFashion(ctx context.Context, req AnalysisRequest) (*AnalysisResponse, error) {
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("%w: no images", ErrImageProcessingFailed)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request body: %v", ErrImageProcessingFailed, err)
	}

	start := time.Now()
	res, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(analyzePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrAnalysisTimeout, err)
	}

	log.Info().
		Str("reviewType", req.ReviewType).
		Int("images", len(req.Images)).
		Int("status", res.StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("analysis request completed")

	return decodeAnalysisResponse(res.StatusCode(), res.Body())
}

func decodeAnalysisResponse(status int, body []byte) (*AnalysisResponse, error) {
	switch status {
	case http.StatusOK:
		var resp AnalysisResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			log.Warn().Err(err).Msg("failed to decode analysis response")
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return &resp, nil

	case http.StatusBadRequest:
		if msg, ok := errorMessage(body); ok {
			return nil, &BadRequestError{Message: msg}
		}
		return nil, &BadRequestError{Message: ErrImageProcessingFailed.Error()}

	case http.StatusTooManyRequests:
		return nil, ErrRateLimited

	case http.StatusInternalServerError:
		if msg, ok := errorMessage(body); ok {
			return nil, &ServerError{Message: msg}
		}
		return nil, ErrAnalysisTimeout

	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrAnalysisTimeout, status)
	}
}

func errorMessage(body []byte) (string, bool) {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == "" {
		return "", false
	}
	return resp.Error, true
}

// Health reports nil when GET /health answers 200 with {"status":"OK"}.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.httpClient.R().
		SetContext(ctx).
		Get(healthPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", res.StatusCode())
	}
	var result HealthResponse
	if err := json.Unmarshal(res.Body(), &result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result.Status != "OK" {
		return fmt.Errorf("health check failed: status %q", result.Status)
	}
	return nil
}

// IsHealthy is a convenience wrapper around Health.
func (c *Client) IsHealthy(ctx context.Context) bool {
	if err := c.Health(ctx); err != nil {
		log.Warn().Err(err).Str("baseURL", c.baseURL).Msg("analysis service unhealthy")
		return false
	}
	return true
}

// Retryable reports whether another attempt could succeed after err.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	// Per-request timeouts wrap context.DeadlineExceeded but are worth retrying.
	if errors.Is(err, ErrAnalysisTimeout) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var badRequest *BadRequestError
	if errors.As(err, &badRequest) {
		return false
	}
	if errors.Is(err, ErrConfiguration) {
		return false
	}
	if errors.Is(err, ErrImageProcessingFailed) && !errors.Is(err, ErrMalformedResponse) {
		return false
	}
	return true
}
