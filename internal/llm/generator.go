package llm

import (
	"context"

	"github.com/raine/drip-check/internal/analysis"
)

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Generation is the raw analysis document produced by a model.
type Generation struct {
	Text  string
	Usage Usage
}

// Generator produces the analysis document for a set of outfit photos.
type Generator interface {
	GenerateAnalysis(ctx context.Context, reviewType analysis.ReviewType, images [][]byte) (*Generation, error)
}
