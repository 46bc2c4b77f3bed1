package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/drip-check/internal/analysis"
	"github.com/raine/drip-check/internal/history"
)

const dateFormat = "2006-01-02 15:04"

func formatText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

const singleText = `
	%s

	Overall: %s

	Style: %s, %s (%s)
	Colors: %s, %s (%.1f/10)
	Fit: %s, %s (%.1f/10)

	Strengths:
	%s
	Could be better:
	%s
	Styling tips:
	%s
	Fashion score: %.1f/10, %s
`

const comparisonText = `
	%s

	%s

	Best outfit: #%d (%.1f/10), %s

	Style: %s
	Colors: %s

	Tips:
	%s
	Summary: %s
`

const colorMatchText = `
	%s

	Skin tone: %s %s
	%s

	Palette (%s): %s
	%s

	Avoid: %s

	Examples:
	%s
	Summary: %s
	Match score: %.0f%%
`

func renderResult(w io.Writer, r analysis.Result) {
	switch r.Kind {
	case analysis.KindSingle:
		a := r.Single
		fmt.Fprintln(w, formatText(singleText,
			analysis.ReviewSingle.DisplayName(),
			a.OverallImpression,
			a.StyleAnalysis.Category, a.StyleAnalysis.Aesthetic, a.StyleAnalysis.Execution,
			strings.Join(a.ColorCoordination.PrimaryColors, ", "), a.ColorCoordination.Harmony, a.ColorCoordination.Rating,
			a.FitAndSilhouette.Assessment, a.FitAndSilhouette.Silhouette, a.FitAndSilhouette.Rating,
			bullets(a.Strengths),
			bullets(a.AreasForImprovement),
			bullets(a.StylingTips),
			a.FashionScore.Score, a.FashionScore.Explanation,
		))
	case analysis.KindComparison:
		a := r.Comparison
		var outfits []string
		for _, o := range a.Outfits {
			outfits = append(outfits, fmt.Sprintf("#%d %s (%s) %.1f/10: %s",
				o.OutfitNumber, o.StyleCategory, strings.Join(o.ColorPalette, ", "), o.Score, o.Description))
		}
		best := a.Comparison.BestOutfit
		fmt.Fprintln(w, formatText(comparisonText,
			analysis.ReviewComparison.DisplayName(),
			strings.Join(outfits, "\n"),
			best.Number, best.Score, best.Reason,
			a.Comparison.StyleAnalysis,
			a.Comparison.ColorCoordination,
			bullets(a.Comparison.ImprovementTips),
			a.Summary,
		))
	case analysis.KindColorMatch:
		a := r.ColorMatch
		var examples []string
		for _, e := range a.StyleExamples {
			examples = append(examples, fmt.Sprintf("%s: %s. %s", e.OutfitType, strings.Join(e.ColorCombination, " + "), e.Comment))
		}
		fmt.Fprintln(w, formatText(colorMatchText,
			analysis.ReviewColorMatcher.DisplayName(),
			a.SkinToneAnalysis.ToneCategory, a.SkinToneAnalysis.HexColor,
			a.SkinToneAnalysis.Description,
			a.RecommendedColors.SeasonalSuggestion, strings.Join(a.RecommendedColors.PrimaryPalette, ", "),
			a.RecommendedColors.Rationale,
			strings.Join(a.AvoidColors, ", "),
			bullets(examples),
			a.Summary,
			a.Score*100,
		))
	default:
		fmt.Fprintln(w, r.Message)
	}
}

// bullets renders one "- item" line per entry, each ending in a newline.
func bullets(items []string) string {
	if len(items) == 0 {
		return "- none\n"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

func renderHistoryList(w io.Writer, rt analysis.ReviewType, items []history.Item) {
	fmt.Fprintf(w, "%s (%d)\n", rt.DisplayName(), len(items))
	for _, item := range items {
		fmt.Fprintf(w, "  %s  %s  %-6s  %s\n", item.ID, item.Date.Local().Format(dateFormat), formatScore(item.Type, item.OverallScore), item.Summary)
	}
}

func renderHistoryItem(w io.Writer, item *history.Item) {
	fmt.Fprintln(w, formatText(`
		%s
		Date:    %s
		Score:   %s
		Images:  %d
		Summary: %s`,
		item.Type.DisplayName(),
		item.Date.Local().Format(dateFormat),
		formatScore(item.Type, item.OverallScore),
		len(item.Images),
		item.Summary,
	))
}

// formatScore prints color match scores (0-1) as a percentage and the
// others out of 10.
func formatScore(rt analysis.ReviewType, score *float64) string {
	if score == nil {
		return "-"
	}
	if rt == analysis.ReviewColorMatcher {
		return fmt.Sprintf("%.0f%%", *score*100)
	}
	return fmt.Sprintf("%.1f", *score)
}
