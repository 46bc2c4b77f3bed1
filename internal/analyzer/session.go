package analyzer

import (
	"context"
	"errors"
	"sync"

	"github.com/raine/drip-check/internal/analysis"
)

var (
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrNothingToRetry     = errors.New("no previous analysis to retry")
)

// Snapshot is the observable state of a Session.
type Snapshot struct {
	Stage        Stage
	IsAnalyzing  bool
	Result       *analysis.Result
	ShowError    bool
	ErrorMessage string
}

type pendingRequest struct {
	images     [][]byte
	reviewType analysis.ReviewType
}

// Session holds the state a screen renders while an analysis runs. Only one
// request may be in flight; state is read and written under mu and change
// notifications receive copies.
type Session struct {
	analyzer *Analyzer
	onChange func(Snapshot)

	mu      sync.Mutex
	state   Snapshot
	last    *pendingRequest
	running bool
}

// NewSession creates a session. onChange may be nil.
func NewSession(a *Analyzer, onChange func(Snapshot)) *Session {
	return &Session{analyzer: a, onChange: onChange}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start runs an analysis and records its outcome. It fails with
// ErrAnalysisInProgress if another analysis has not finished yet.
func (s *Session) Start(ctx context.Context, raw [][]byte, reviewType analysis.ReviewType) (analysis.Result, error) {
	return s.run(ctx, &pendingRequest{images: raw, reviewType: reviewType})
}

// Retry re-runs the most recent request.
func (s *Session) Retry(ctx context.Context) (analysis.Result, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return analysis.ErrorResult(msgNothingToRetry), ErrNothingToRetry
	}
	return s.run(ctx, last)
}

// Reset clears the result and error state. It is a no-op while analyzing.
func (s *Session) Reset() {
	s.update(func(st *Snapshot) {
		if st.IsAnalyzing {
			return
		}
		*st = Snapshot{}
	})
}

func (s *Session) run(ctx context.Context, req *pendingRequest) (analysis.Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return analysis.ErrorResult(msgInProgress), ErrAnalysisInProgress
	}
	s.running = true
	s.last = req
	s.mu.Unlock()

	s.update(func(st *Snapshot) {
		*st = Snapshot{Stage: StageIdle, IsAnalyzing: true}
	})

	var (
		result analysis.Result
		err    error
	)
	defer func() {
		s.mu.Lock()
		st := &s.state
		st.Stage = StageDone
		st.IsAnalyzing = false
		st.Result = &result
		switch {
		case err != nil:
			st.ShowError = true
			st.ErrorMessage = UserMessage(err)
		case result.IsError():
			st.ShowError = true
			st.ErrorMessage = result.Message
		}
		snap := s.state
		s.running = false
		s.mu.Unlock()
		s.notify(snap)
	}()

	result, err = s.analyzer.analyze(ctx, req.images, req.reviewType, func(stage Stage) {
		s.update(func(st *Snapshot) { st.Stage = stage })
	})
	return result, err
}

func (s *Session) update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Session) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
