package analysis

import (
	"encoding/json"
	"fmt"
)

// ReviewType selects which analysis schema and prompt applies.
type ReviewType string

const (
	ReviewSingle       ReviewType = "single"
	ReviewComparison   ReviewType = "comparison"
	ReviewColorMatcher ReviewType = "color_matcher"
)

// ReviewTypes lists every review type in display order.
var ReviewTypes = []ReviewType{ReviewSingle, ReviewComparison, ReviewColorMatcher}

// ParseReviewType accepts both the persisted names and the wire name "color".
func ParseReviewType(s string) (ReviewType, error) {
	switch s {
	case "single":
		return ReviewSingle, nil
	case "comparison":
		return ReviewComparison, nil
	case "color_matcher", "color":
		return ReviewColorMatcher, nil
	}
	return "", fmt.Errorf("unknown review type %q", s)
}

// WireName is the value sent as reviewType to the analysis service.
func (t ReviewType) WireName() string {
	if t == ReviewColorMatcher {
		return "color"
	}
	return string(t)
}

func (t ReviewType) DisplayName() string {
	switch t {
	case ReviewSingle:
		return "Single Outfit"
	case ReviewComparison:
		return "Outfit Comparison"
	case ReviewColorMatcher:
		return "Color Matching"
	}
	return string(t)
}

// ImageRange returns the allowed number of images for the review type.
func (t ReviewType) ImageRange() (min, max int) {
	if t == ReviewComparison {
		return 2, 3
	}
	return 1, 1
}

// Kind discriminates the populated variant of a Result.
type Kind int

const (
	KindError Kind = iota
	KindSingle
	KindComparison
	KindColorMatch
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindComparison:
		return "comparison"
	case KindColorMatch:
		return "color_match"
	default:
		return "error"
	}
}

// Result is the outcome of one analysis. Exactly one payload matching Kind is
// set; a KindError result carries only Message.
type Result struct {
	Kind       Kind
	Single     *SingleOutfitAnalysis
	Comparison *ComparisonAnalysis
	ColorMatch *ColorMatch
	Message    string
}

func SingleResult(a *SingleOutfitAnalysis) Result {
	return Result{Kind: KindSingle, Single: a}
}

func ComparisonResult(a *ComparisonAnalysis) Result {
	return Result{Kind: KindComparison, Comparison: a}
}

func ColorMatchResult(a *ColorMatch) Result {
	return Result{Kind: KindColorMatch, ColorMatch: a}
}

func ErrorResult(message string) Result {
	return Result{Kind: KindError, Message: message}
}

func (r Result) IsError() bool {
	return r.Kind == KindError
}

// ReviewType reports the review type a successful result belongs to.
func (r Result) ReviewType() (ReviewType, bool) {
	switch r.Kind {
	case KindSingle:
		return ReviewSingle, true
	case KindComparison:
		return ReviewComparison, true
	case KindColorMatch:
		return ReviewColorMatcher, true
	}
	return "", false
}

// Summary is the one-line text kept with a history entry.
func (r Result) Summary() string {
	switch r.Kind {
	case KindSingle:
		return r.Single.OverallImpression
	case KindComparison:
		return r.Comparison.Summary
	case KindColorMatch:
		return r.ColorMatch.Summary
	}
	return r.Message
}

// Score extracts the headline score: fashion score for a single outfit, the
// best outfit's score for a comparison and the match score for colors.
func (r Result) Score() (float64, bool) {
	switch r.Kind {
	case KindSingle:
		return r.Single.FashionScore.Score, true
	case KindComparison:
		return r.Comparison.Comparison.BestOutfit.Score, true
	case KindColorMatch:
		return r.ColorMatch.Score, true
	}
	return 0, false
}

// SingleOutfitAnalysis is the schema for a single outfit review.
type SingleOutfitAnalysis struct {
	OverallImpression   string            `json:"overall_impression"`
	StyleAnalysis       StyleAnalysis     `json:"style_analysis"`
	ColorCoordination   ColorCoordination `json:"color_coordination"`
	FitAndSilhouette    FitAndSilhouette  `json:"fit_and_silhouette"`
	StylingTips         []string          `json:"styling_tips"`
	FashionScore        FashionScore      `json:"fashion_score"`
	Strengths           []string          `json:"strengths"`
	AreasForImprovement []string          `json:"areas_for_improvement"`
}

type StyleAnalysis struct {
	Category  string `json:"category"`
	Execution string `json:"execution"`
	Aesthetic string `json:"aesthetic"`
}

type ColorCoordination struct {
	PrimaryColors []string `json:"primary_colors"`
	Harmony       string   `json:"harmony"`
	Rating        float64  `json:"rating"` // 0-10
}

type FitAndSilhouette struct {
	Assessment string  `json:"assessment"`
	Silhouette string  `json:"silhouette"`
	Rating     float64 `json:"rating"` // 0-10
}

type FashionScore struct {
	Score       float64 `json:"score"` // 0-10
	Explanation string  `json:"explanation"`
}

// ComparisonAnalysis is the schema for comparing two or three outfits.
type ComparisonAnalysis struct {
	Outfits    []OutfitSummary   `json:"outfits"`
	Comparison ComparisonDetails `json:"comparison"`
	Summary    string            `json:"summary"`
}

type OutfitSummary struct {
	OutfitNumber  int      `json:"outfit_number"`
	Description   string   `json:"description"`
	StyleCategory string   `json:"style_category"`
	ColorPalette  []string `json:"color_palette"`
	Strengths     []string `json:"strengths"`
	Score         float64  `json:"score"`
}

// UnmarshalJSON accepts whole-number floats such as 1.0 for the outfit number.
// checkShape has already rejected fractional values.
func (o *OutfitSummary) UnmarshalJSON(data []byte) error {
	type plain OutfitSummary
	aux := struct {
		*plain
		OutfitNumber float64 `json:"outfit_number"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.OutfitNumber = int(aux.OutfitNumber)
	return nil
}

type ComparisonDetails struct {
	StyleAnalysis     string     `json:"style_analysis"`
	ColorCoordination string     `json:"color_coordination"`
	BestOutfit        BestOutfit `json:"best_outfit"`
	ImprovementTips   []string   `json:"improvement_tips"`
}

type BestOutfit struct {
	Number int     `json:"number"`
	Reason string  `json:"reason"`
	Score  float64 `json:"score"`
}

func (b *BestOutfit) UnmarshalJSON(data []byte) error {
	type plain BestOutfit
	aux := struct {
		*plain
		Number float64 `json:"number"`
	}{plain: (*plain)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.Number = int(aux.Number)
	return nil
}

// ColorMatch is the schema for a skin tone and palette review.
type ColorMatch struct {
	SkinToneAnalysis  SkinToneAnalysis  `json:"skin_tone_analysis"`
	RecommendedColors RecommendedColors `json:"recommended_colors"`
	AvoidColors       []string          `json:"avoid_colors"`
	StyleExamples     []StyleExample    `json:"style_examples"`
	Summary           string            `json:"summary"`
	Score             float64           `json:"score"` // 0-1
}

type SkinToneAnalysis struct {
	ToneCategory string `json:"tone_category"`
	HexColor     string `json:"hex_color"`
	Description  string `json:"description"`
}

type RecommendedColors struct {
	PrimaryPalette     []string `json:"primary_palette"`
	SeasonalSuggestion string   `json:"seasonal_suggestion"`
	Rationale          string   `json:"rationale"`
}

type StyleExample struct {
	OutfitType       string   `json:"outfit_type"`
	ColorCombination []string `json:"color_combination"`
	Comment          string   `json:"comment"`
}
