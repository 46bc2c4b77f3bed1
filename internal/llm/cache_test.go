package llm

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/raine/drip-check/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validColorDoc = `{
  "skin_tone_analysis": {"tone_category": "Neutral", "hex_color": "#D1A27C", "description": "Balanced"},
  "recommended_colors": {"primary_palette": ["teal"], "seasonal_suggestion": "Summer", "rationale": "Soft contrast"},
  "avoid_colors": [],
  "style_examples": [],
  "summary": "Soft tones work.",
  "score": 0.6
}`

type mockGenerator struct {
	calls int
	text  string
	err   error
}

func (m *mockGenerator) GenerateAnalysis(ctx context.Context, reviewType analysis.ReviewType, images [][]byte) (*Generation, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &Generation{Text: m.text, Usage: Usage{InputTokens: 100}}, nil
}

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCachedGenerator_HitAfterMiss(t *testing.T) {
	inner := &mockGenerator{text: validColorDoc}
	g := NewCachedGenerator(inner, newTestCache(t))
	images := [][]byte{[]byte("photo")}

	first, err := g.GenerateAnalysis(context.Background(), analysis.ReviewColorMatcher, images)
	require.NoError(t, err)
	assert.Equal(t, int64(100), first.Usage.InputTokens)

	second, err := g.GenerateAnalysis(context.Background(), analysis.ReviewColorMatcher, images)
	require.NoError(t, err)
	assert.Equal(t, validColorDoc, second.Text)
	assert.Zero(t, second.Usage.InputTokens)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedGenerator_KeyIncludesReviewTypeAndBoundaries(t *testing.T) {
	assert.NotEqual(t,
		cacheKey(analysis.ReviewSingle, [][]byte{[]byte("a")}),
		cacheKey(analysis.ReviewColorMatcher, [][]byte{[]byte("a")}))
	assert.NotEqual(t,
		cacheKey(analysis.ReviewComparison, [][]byte{[]byte("ab"), []byte("c")}),
		cacheKey(analysis.ReviewComparison, [][]byte{[]byte("a"), []byte("bc")}))
}

func TestCachedGenerator_InvalidOutputNotCached(t *testing.T) {
	inner := &mockGenerator{text: `{"summary": "incomplete"}`}
	g := NewCachedGenerator(inner, newTestCache(t))
	images := [][]byte{[]byte("photo")}

	for i := 0; i < 2; i++ {
		_, err := g.GenerateAnalysis(context.Background(), analysis.ReviewColorMatcher, images)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGenerator_ErrorPassesThrough(t *testing.T) {
	inner := &mockGenerator{err: errors.New("quota")}
	g := NewCachedGenerator(inner, newTestCache(t))

	_, err := g.GenerateAnalysis(context.Background(), analysis.ReviewSingle, [][]byte{[]byte("x")})
	assert.EqualError(t, err, "quota")
}

func TestCachedGenerator_NilStore(t *testing.T) {
	inner := &mockGenerator{text: validColorDoc}
	g := NewCachedGenerator(inner, nil)

	for i := 0; i < 2; i++ {
		_, err := g.GenerateAnalysis(context.Background(), analysis.ReviewColorMatcher, [][]byte{[]byte("x")})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.calls)
}
