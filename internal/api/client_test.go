package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := NewClient(ClientOpts{BaseURL: ts.URL + "/api/"})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestAnalyzeFashion_Success(t *testing.T) {
	var got AnalysisRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/analyze-fashion", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, AnalysisResponse{
			Success:    true,
			Analysis:   "```json\n{}\n```",
			ReviewType: "color",
			Timestamp:  "2025-06-04T10:00:00Z",
		})
	})

	resp, err := c.AnalyzeFashion(context.Background(), AnalysisRequest{Images: []string{"aGVsbG8="}, ReviewType: "color"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "```json\n{}\n```", resp.Analysis)
	assert.Equal(t, []string{"aGVsbG8="}, got.Images)
	assert.Equal(t, "color", got.ReviewType)
}

func TestAnalyzeFashion_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		check     func(t *testing.T, err error)
		retryable bool
	}{
		{
			name:   "malformed 200",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				assert.ErrorIs(t, err, ErrImageProcessingFailed)
			},
			retryable: true,
		},
		{
			name:   "400 with message",
			status: http.StatusBadRequest,
			body:   `{"error": "At least one image is required"}`,
			check: func(t *testing.T, err error) {
				var br *BadRequestError
				require.ErrorAs(t, err, &br)
				assert.Equal(t, "At least one image is required", br.Message)
			},
		},
		{
			name:   "400 without body",
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				var br *BadRequestError
				require.ErrorAs(t, err, &br)
				assert.Equal(t, ErrImageProcessingFailed.Error(), br.Message)
			},
		},
		{
			name:   "429",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrRateLimited)
			},
			retryable: true,
		},
		{
			name:   "500 with message",
			status: http.StatusInternalServerError,
			body:   `{"error": "model overloaded"}`,
			check: func(t *testing.T, err error) {
				var se *ServerError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, "model overloaded", se.Message)
			},
			retryable: true,
		},
		{
			name:   "500 without body",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAnalysisTimeout)
			},
			retryable: true,
		},
		{
			name:   "502",
			status: http.StatusBadGateway,
			body:   `{"error": "ignored"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAnalysisTimeout)
			},
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			resp, err := c.AnalyzeFashion(context.Background(), AnalysisRequest{Images: []string{"x"}, ReviewType: "single"})
			assert.Nil(t, resp)
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, tt.retryable, Retryable(err))
		})
	}
}

func TestAnalyzeFashion_NoImages(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.AnalyzeFashion(context.Background(), AnalysisRequest{ReviewType: "single"})
	assert.ErrorIs(t, err, ErrImageProcessingFailed)
	assert.False(t, called)
	assert.False(t, Retryable(err))
}

func TestAnalyzeFashion_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should have been canceled")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.AnalyzeFashion(ctx, AnalysisRequest{Images: []string{"x"}, ReviewType: "single"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, Retryable(err))
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "not a url", "ftp://example.com", "http://"} {
		_, err := NewClient(ClientOpts{BaseURL: base})
		assert.ErrorIs(t, err, ErrConfiguration, base)
		assert.False(t, Retryable(err))
	}
}

func TestNewClient_ClampsTimeout(t *testing.T) {
	c, err := NewClient(ClientOpts{BaseURL: "https://example.com/api", Timeout: 1})
	require.NoError(t, err)
	assert.Equal(t, MinTimeout, c.httpClient.GetClient().Timeout)

	c, err = NewClient(ClientOpts{BaseURL: "https://example.com/api", Timeout: 10 * MaxTimeout})
	require.NoError(t, err)
	assert.Equal(t, MaxTimeout, c.httpClient.GetClient().Timeout)
	assert.Equal(t, "https://example.com/api", c.BaseURL())
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		healthy bool
	}{
		{"ok", http.StatusOK, `{"status": "OK"}`, true},
		{"wrong status text", http.StatusOK, `{"status": "degraded"}`, false},
		{"not json", http.StatusOK, `OK`, false},
		{"server error", http.StatusServiceUnavailable, `{"status": "OK"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/health", r.URL.Path)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			assert.Equal(t, tt.healthy, c.IsHealthy(context.Background()))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(&BadRequestError{Message: "bad"}))
	assert.False(t, Retryable(fmt.Errorf("wrapped: %w", &BadRequestError{Message: "bad"})))
	assert.True(t, Retryable(&ServerError{Message: "boom"}))
	assert.True(t, Retryable(ErrRateLimited))
	assert.True(t, Retryable(fmt.Errorf("%w: %w", ErrAnalysisTimeout, context.DeadlineExceeded)))
	assert.False(t, Retryable(context.Canceled))
	assert.True(t, Retryable(errors.New("connection reset")))
}
