package llm

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/drip-check/internal/analysis"
	"google.golang.org/genai"
)

const systemInstruction = `You are a professional fashion stylist. You give honest, specific and encouraging feedback on outfits shown in photos. Scores are out of 10 unless stated otherwise. Respond ONLY with a JSON object that follows the response schema, no markdown or other text.`

var singlePrompt = dedent.Dedent(`
	Review the outfit in this photo.

	Describe the overall impression, the style category and how well it is executed,
	the main colors and how they work together, and the fit and silhouette.
	Give practical styling tips, the strongest points and what could be improved.
	Rate color coordination and fit from 0 to 10 and give an overall fashion score from 0 to 10
	with a short explanation.
`)

var comparisonPrompt = dedent.Dedent(`
	Compare the %d outfits shown in these photos. The photos are numbered in the order given,
	starting from 1.

	For each outfit give its number, a short description, the style category, the color palette,
	its strengths and a score from 0 to 10.
	Then compare the outfits on style and color coordination, pick the best outfit with the reason
	and its score, and list tips that would improve the others. Finish with a one sentence summary.
`)

var colorPrompt = dedent.Dedent(`
	Analyze the skin tone of the person in this photo and recommend colors that suit them.

	Describe the skin tone category, give a representative hex color and a short description.
	Recommend a primary palette with a seasonal color suggestion and the rationale,
	list colors to avoid, and give example outfits with their color combinations.
	Finish with a one sentence summary and a match score from 0 to 1 describing how well
	the colors currently worn suit the person.
`)

// Prompt returns the user prompt for the review type.
func Prompt(reviewType analysis.ReviewType, imageCount int) (string, error) {
	switch reviewType {
	case analysis.ReviewSingle:
		return strings.TrimSpace(singlePrompt), nil
	case analysis.ReviewComparison:
		return strings.TrimSpace(fmt.Sprintf(comparisonPrompt, imageCount)), nil
	case analysis.ReviewColorMatcher:
		return strings.TrimSpace(colorPrompt), nil
	}
	return "", fmt.Errorf("no prompt for review type %q", reviewType)
}

// ResponseSchema builds the structured output schema for the review type
// from the analysis document types, so the model and the parser agree on keys.
func ResponseSchema(reviewType analysis.ReviewType) (*genai.Schema, error) {
	switch reviewType {
	case analysis.ReviewSingle:
		return schemaFor(reflect.TypeOf(analysis.SingleOutfitAnalysis{})), nil
	case analysis.ReviewComparison:
		return schemaFor(reflect.TypeOf(analysis.ComparisonAnalysis{})), nil
	case analysis.ReviewColorMatcher:
		return schemaFor(reflect.TypeOf(analysis.ColorMatch{})), nil
	}
	return nil, fmt.Errorf("no response schema for review type %q", reviewType)
}

func schemaFor(t reflect.Type) *genai.Schema {
	switch t.Kind() {
	case reflect.Struct:
		s := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, t.NumField()),
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			key := strings.Split(f.Tag.Get("json"), ",")[0]
			if key == "" || key == "-" {
				continue
			}
			s.Properties[key] = schemaFor(f.Type)
			s.Required = append(s.Required, key)
		}
		return s
	case reflect.Slice:
		return &genai.Schema{Type: genai.TypeArray, Items: schemaFor(t.Elem())}
	case reflect.Int, reflect.Int64:
		return &genai.Schema{Type: genai.TypeInteger}
	case reflect.Float32, reflect.Float64:
		return &genai.Schema{Type: genai.TypeNumber}
	case reflect.Bool:
		return &genai.Schema{Type: genai.TypeBoolean}
	default:
		return &genai.Schema{Type: genai.TypeString}
	}
}
