package llm

import (
	"testing"

	"github.com/raine/drip-check/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestPrompt(t *testing.T) {
	for _, rt := range analysis.ReviewTypes {
		p, err := Prompt(rt, 2)
		require.NoError(t, err, rt)
		assert.NotEmpty(t, p)
		assert.NotContains(t, p, "\t")
	}

	p, err := Prompt(analysis.ReviewComparison, 3)
	require.NoError(t, err)
	assert.Contains(t, p, "Compare the 3 outfits")

	_, err = Prompt("bogus", 1)
	assert.Error(t, err)
}

func TestResponseSchema_Single(t *testing.T) {
	s, err := ResponseSchema(analysis.ReviewSingle)
	require.NoError(t, err)

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{
		"overall_impression", "style_analysis", "color_coordination", "fit_and_silhouette",
		"styling_tips", "fashion_score", "strengths", "areas_for_improvement",
	}, s.Required)

	tips := s.Properties["styling_tips"]
	require.NotNil(t, tips)
	assert.Equal(t, genai.TypeArray, tips.Type)
	assert.Equal(t, genai.TypeString, tips.Items.Type)

	score := s.Properties["fashion_score"]
	require.NotNil(t, score)
	assert.Equal(t, genai.TypeNumber, score.Properties["score"].Type)
	assert.Equal(t, genai.TypeString, score.Properties["explanation"].Type)
}

func TestResponseSchema_Comparison(t *testing.T) {
	s, err := ResponseSchema(analysis.ReviewComparison)
	require.NoError(t, err)

	outfits := s.Properties["outfits"]
	require.NotNil(t, outfits)
	assert.Equal(t, genai.TypeArray, outfits.Type)
	assert.Equal(t, genai.TypeInteger, outfits.Items.Properties["outfit_number"].Type)

	best := s.Properties["comparison"].Properties["best_outfit"]
	require.NotNil(t, best)
	assert.Equal(t, []string{"number", "reason", "score"}, best.Required)
}

func TestResponseSchema_ColorMatch(t *testing.T) {
	s, err := ResponseSchema(analysis.ReviewColorMatcher)
	require.NoError(t, err)
	assert.Contains(t, s.Required, "skin_tone_analysis")
	assert.Equal(t, genai.TypeNumber, s.Properties["score"].Type)

	_, err = ResponseSchema("bogus")
	assert.Error(t, err)
}

func TestImageMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", imageMIMEType([]byte("\x89PNG\r\n\x1a\n0000")))
	assert.Equal(t, "image/jpeg", imageMIMEType([]byte{0xff, 0xd8, 0xff, 0xe0}))
	assert.Equal(t, "image/jpeg", imageMIMEType([]byte("plain text")))
}

func TestCalculateGeminiCost(t *testing.T) {
	assert.InDelta(t, 0.30+2.50, calculateGeminiCost(1_000_000, 1_000_000), 1e-9)
	assert.Zero(t, calculateGeminiCost(0, 0))
}
