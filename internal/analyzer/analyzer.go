package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raine/drip-check/internal/analysis"
	"github.com/raine/drip-check/internal/api"
	"github.com/raine/drip-check/internal/history"
	"github.com/raine/drip-check/internal/images"
	"github.com/rs/zerolog/log"
)

const DefaultMaxRetries = 3

// Transport sends one analysis request. *api.Client implements it.
type Transport interface {
	AnalyzeFashion(ctx context.Context, req api.AnalysisRequest) (*api.AnalysisResponse, error)
}

// Stage is a step of a single analysis request.
type Stage int

const (
	StageIdle Stage = iota
	StageEncoding
	StageRequesting
	StageParsing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageEncoding:
		return "encoding"
	case StageRequesting:
		return "requesting"
	case StageParsing:
		return "parsing"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Analyzer runs encode, request, parse and persist for one set of images.
type Analyzer struct {
	transport  Transport
	history    history.Store
	upload     *images.Encoder
	archive    *images.Encoder
	maxRetries int

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an analyzer. store may be nil, in which case nothing is
// persisted. maxRetries below 1 falls back to DefaultMaxRetries.
func New(transport Transport, store history.Store, maxRetries int) *Analyzer {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return &Analyzer{
		transport:  transport,
		history:    store,
		upload:     images.NewEncoder(images.UploadQuality),
		archive:    images.NewEncoder(images.HistoryQuality),
		maxRetries: maxRetries,
		sleep:      sleepContext,
		now:        time.Now,
	}
}

// LinearBackoff is the wait after the given failed attempt: 2s, 4s, 6s...
func LinearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 2 * time.Second
}

// Analyze sends the images for review and returns the parsed result. Decode
// failures come back as an error Result with a nil error. Transport failures
// that survive the retry loop are returned as errors alongside an error
// Result carrying the user-facing message.
func (a *Analyzer) Analyze(ctx context.Context, raw [][]byte, reviewType analysis.ReviewType) (analysis.Result, error) {
	return a.analyze(ctx, raw, reviewType, nil)
}

func (a *Analyzer) analyze(ctx context.Context, raw [][]byte, reviewType analysis.ReviewType, progress func(Stage)) (analysis.Result, error) {
	report := func(s Stage) {
		if progress != nil {
			progress(s)
		}
	}

	fail := func(err error) (analysis.Result, error) {
		report(StageDone)
		return analysis.ErrorResult(UserMessage(err)), err
	}

	if err := validateCount(len(raw), reviewType); err != nil {
		return fail(err)
	}

	report(StageEncoding)
	encoded, err := a.upload.EncodeBase64(raw)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", api.ErrImageProcessingFailed, err))
	}
	if err := validateCount(len(encoded), reviewType); err != nil {
		return fail(err)
	}

	report(StageRequesting)
	resp, err := a.send(ctx, api.AnalysisRequest{Images: encoded, ReviewType: reviewType.WireName()})
	if err != nil {
		return fail(err)
	}

	report(StageParsing)
	if !resp.Success {
		log.Warn().Str("reviewType", string(reviewType)).Msg("service reported success=false, parsing analysis anyway")
	}
	result := analysis.Parse(resp.Analysis, reviewType)
	if result.IsError() {
		log.Warn().Str("reviewType", string(reviewType)).Str("message", result.Message).Msg("analysis could not be decoded")
	} else {
		a.saveHistory(result, raw)
	}

	report(StageDone)
	return result, nil
}

// send runs the retry loop. The delay after attempt n is LinearBackoff(n).
func (a *Analyzer) send(ctx context.Context, req api.AnalysisRequest) (*api.AnalysisResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := a.transport.AnalyzeFashion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !api.Retryable(err) {
			log.Warn().Err(err).Int("attempt", attempt).Msg("analysis failed, not retrying")
			return nil, err
		}
		if attempt == a.maxRetries {
			break
		}

		delay := LinearBackoff(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxRetries", a.maxRetries).
			Dur("delay", delay).
			Msg("analysis attempt failed, retrying")
		if err := a.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	log.Error().Err(lastErr).Int("attempts", a.maxRetries).Msg("analysis failed after all retries")
	return nil, lastErr
}

// saveHistory persists a successful result. Failures are logged only.
func (a *Analyzer) saveHistory(result analysis.Result, raw [][]byte) {
	if a.history == nil {
		return
	}
	stored, err := a.archive.EncodeJPEG(raw)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode history images")
		return
	}
	item, ok := history.NewItem(result, stored, a.now())
	if !ok {
		return
	}
	if err := a.history.Save(item); err != nil {
		log.Warn().Err(err).Str("id", item.ID.String()).Msg("failed to save analysis to history")
		return
	}
	log.Debug().Str("id", item.ID.String()).Str("reviewType", string(item.Type)).Msg("saved analysis to history")
}

func validateCount(n int, reviewType analysis.ReviewType) error {
	if n == 0 {
		return fmt.Errorf("%w: no images", api.ErrImageProcessingFailed)
	}
	lo, hi := reviewType.ImageRange()
	if n < lo || n > hi {
		return fmt.Errorf("%w: %s needs %d-%d images, got %d", api.ErrImageProcessingFailed, reviewType.DisplayName(), lo, hi, n)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsCanceled reports whether err came from the caller abandoning the request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
