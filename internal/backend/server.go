package backend

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/raine/drip-check/internal/analysis"
	"github.com/raine/drip-check/internal/api"
	"github.com/raine/drip-check/internal/llm"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	maxImages      = 3
	maxRequestBody = 32 << 20
	requestTimeout = 110 * time.Second
)

// Messages sent to clients, which show them verbatim.
const (
	msgBodyTooLarge      = "Request body is too large"
	msgInvalidBody       = "Invalid request body"
	msgRateLimited       = "Too many requests"
	msgGenerationFailed  = "Failed to analyze outfit. Please try again."
	msgNoImages          = "At least one image is required"
	msgTooManyImages     = "A maximum of %d images is allowed"
	msgInvalidReviewType = "Invalid review type %q"
	msgImageCount        = "%s needs between %d and %d images"
	msgInvalidImage      = "Image %d is not valid base64"
)

// validationError rejects a request with a client-facing message.
type validationError struct {
	message string
}

func (e *validationError) Error() string {
	return e.message
}

func invalid(format string, args ...any) error {
	return &validationError{message: fmt.Sprintf(format, args...)}
}

type Options struct {
	// RateLimit is the number of analysis requests accepted per minute.
	RateLimit int
}

// Server answers the analysis API the client talks to.
type Server struct {
	router    *chi.Mux
	generator llm.Generator
	limiter   *rate.Limiter
	now       func() time.Time
}

func New(generator llm.Generator, opts Options) *Server {
	perMinute := opts.RateLimit
	if perMinute < 1 {
		perMinute = 30
	}
	s := &Server{
		router:    chi.NewRouter(),
		generator: generator,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		now:       time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.With(middleware.Timeout(requestTimeout), s.rateLimit).Post("/analyze-fashion", s.handleAnalyze)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			log.Warn().Str("remote", r.RemoteAddr).Msg("analysis rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "OK"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req api.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, msgBodyTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	reviewType, images, err := validateRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	gen, err := s.generator.GenerateAnalysis(r.Context(), reviewType, images)
	if err != nil {
		log.Error().Err(err).Str("reviewType", string(reviewType)).Msg("analysis generation failed")
		writeError(w, http.StatusInternalServerError, msgGenerationFailed)
		return
	}

	text, err := normalizeAnalysis(gen.Text, reviewType)
	if err != nil {
		log.Error().Err(err).Str("reviewType", string(reviewType)).Msg("model returned an invalid analysis")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, api.AnalysisResponse{
		Success:    true,
		Analysis:   text,
		ReviewType: reviewType.WireName(),
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	})
}

// validateRequest returns a *validationError when the request is rejected.
func validateRequest(req api.AnalysisRequest) (analysis.ReviewType, [][]byte, error) {
	if len(req.Images) == 0 {
		return "", nil, invalid(msgNoImages)
	}
	if len(req.Images) > maxImages {
		return "", nil, invalid(msgTooManyImages, maxImages)
	}
	reviewType, err := analysis.ParseReviewType(req.ReviewType)
	if err != nil {
		return "", nil, invalid(msgInvalidReviewType, req.ReviewType)
	}
	lo, hi := reviewType.ImageRange()
	if len(req.Images) < lo || len(req.Images) > hi {
		return "", nil, invalid(msgImageCount, reviewType.DisplayName(), lo, hi)
	}

	images := make([][]byte, len(req.Images))
	for i, encoded := range req.Images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(data) == 0 {
			return "", nil, invalid(msgInvalidImage, i+1)
		}
		images[i] = data
	}
	return reviewType, images, nil
}

// normalizeAnalysis checks the model output against the analysis schema and
// re-encodes it. An empty color match is passed through as "{}".
func normalizeAnalysis(text string, reviewType analysis.ReviewType) (string, error) {
	result := analysis.Parse(text, reviewType)
	if result.IsError() {
		if result.Message == analysis.EmptyResultsMessage {
			return "{}", nil
		}
		return "", errors.New(result.Message)
	}
	encoded, err := analysis.Encode(result)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}

// requestLogger logs every request with zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("requestId", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}
