package analyzer

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/raine/drip-check/internal/analysis"
	"github.com/raine/drip-check/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *snapshotRecorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *snapshotRecorder) stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Stage
	for _, s := range r.snaps {
		if len(out) == 0 || out[len(out)-1] != s.Stage {
			out = append(out, s.Stage)
		}
	}
	return out
}

func TestSession_Success(t *testing.T) {
	transport := &fakeTransport{replies: []reply{ok(singleAnalysis)}}
	a, _ := newTestAnalyzer(transport, nil)
	rec := &snapshotRecorder{}
	s := NewSession(a, rec.record)

	_, err := s.Start(context.Background(), [][]byte{testPNG(t)}, analysis.ReviewSingle)
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.False(t, snap.IsAnalyzing)
	assert.False(t, snap.ShowError)
	assert.Empty(t, snap.ErrorMessage)
	require.NotNil(t, snap.Result)
	assert.Equal(t, analysis.KindSingle, snap.Result.Kind)

	assert.Equal(t, []Stage{StageIdle, StageEncoding, StageRequesting, StageParsing, StageDone}, rec.stages())
	assert.True(t, rec.snaps[0].IsAnalyzing)
}

func TestSession_ClearsAnalyzingOnEveryExit(t *testing.T) {
	tests := []struct {
		name    string
		replies []reply
		images  [][]byte
		message string
	}{
		{"transport error", []reply{failWith(&api.BadRequestError{Message: "Unsupported image"})}, nil, "Unsupported image"},
		{"exhausted retries", []reply{failWith(api.ErrRateLimited)}, nil, msgRateLimited},
		{"decode error", []reply{ok("{}")}, nil, "Failed to parse analysis: Missing key: overall_impression"},
		{"no images", []reply{ok(singleAnalysis)}, [][]byte{}, msgImages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{replies: tt.replies}
			a, _ := newTestAnalyzer(transport, nil)
			s := NewSession(a, nil)

			images := tt.images
			if images == nil {
				images = [][]byte{testPNG(t)}
			}
			s.Start(context.Background(), images, analysis.ReviewSingle)

			snap := s.Snapshot()
			assert.False(t, snap.IsAnalyzing)
			assert.True(t, snap.ShowError)
			assert.Equal(t, tt.message, snap.ErrorMessage)
			assert.Equal(t, StageDone, snap.Stage)
		})
	}
}

func TestSession_RejectsConcurrentStart(t *testing.T) {
	transport := &fakeTransport{replies: []reply{ok(singleAnalysis)}, block: make(chan struct{})}
	a, _ := newTestAnalyzer(transport, nil)
	s := NewSession(a, nil)
	img := testPNG(t)

	done := make(chan error, 1)
	go func() {
		_, err := s.Start(context.Background(), [][]byte{img}, analysis.ReviewSingle)
		done <- err
	}()

	require.Eventually(t, func() bool { return transport.callCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, s.Snapshot().IsAnalyzing)

	_, err := s.Start(context.Background(), [][]byte{img}, analysis.ReviewSingle)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	close(transport.block)
	require.NoError(t, <-done)
	assert.False(t, s.Snapshot().IsAnalyzing)
	assert.Equal(t, 1, transport.callCount())
}

func TestSession_Retry(t *testing.T) {
	transport := &fakeTransport{replies: []reply{
		failWith(&api.BadRequestError{Message: "try again"}),
		ok(singleAnalysis),
	}}
	a, _ := newTestAnalyzer(transport, nil)
	s := NewSession(a, nil)

	_, err := s.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)

	_, err = s.Start(context.Background(), [][]byte{testPNG(t)}, analysis.ReviewSingle)
	require.Error(t, err)
	assert.True(t, s.Snapshot().ShowError)

	result, err := s.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, analysis.KindSingle, result.Kind)
	assert.False(t, s.Snapshot().ShowError)
	assert.Equal(t, transport.Calls[0].Request, transport.Calls[1].Request)
}

func TestSession_Reset(t *testing.T) {
	transport := &fakeTransport{replies: []reply{failWith(&api.BadRequestError{Message: "nope"})}}
	a, _ := newTestAnalyzer(transport, nil)
	s := NewSession(a, nil)

	s.Start(context.Background(), [][]byte{testPNG(t)}, analysis.ReviewSingle)
	require.True(t, s.Snapshot().ShowError)

	s.Reset()
	assert.Equal(t, Snapshot{}, s.Snapshot())
}

func TestSession_RetryAfterReset(t *testing.T) {
	transport := &fakeTransport{replies: []reply{
		failWith(&api.BadRequestError{Message: "nope"}),
		ok(singleAnalysis),
	}}
	a, _ := newTestAnalyzer(transport, nil)
	s := NewSession(a, nil)

	s.Start(context.Background(), [][]byte{testPNG(t)}, analysis.ReviewSingle)
	s.Reset()

	result, err := s.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, analysis.KindSingle, result.Kind)
	assert.False(t, s.Snapshot().ShowError)
	assert.Equal(t, 2, transport.callCount())
}

func TestUserMessage(t *testing.T) {
	dialErr := &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"bad request", &api.BadRequestError{Message: "At least one image is required"}, "At least one image is required"},
		{"server error", &api.ServerError{Message: "model overloaded"}, "model overloaded"},
		{"rate limited", api.ErrRateLimited, msgRateLimited},
		{"configuration", fmt.Errorf("%w: bad url", api.ErrConfiguration), msgConfiguration},
		{"images", fmt.Errorf("%w: no images", api.ErrImageProcessingFailed), msgImages},
		{"malformed", api.ErrMalformedResponse, msgImages},
		{"no connection", fmt.Errorf("%w: %w", api.ErrAnalysisTimeout, dialErr), msgNoConnection},
		{"timeout", api.ErrAnalysisTimeout, msgTimedOut},
		{"deadline", context.DeadlineExceeded, msgTimedOut},
		{"canceled", context.Canceled, msgCanceled},
		{"in progress", ErrAnalysisInProgress, msgInProgress},
		{"unknown", fmt.Errorf("boom"), msgAnalysisFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
