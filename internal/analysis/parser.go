package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// EmptyResultsMessage is returned when the color matcher comes back with "{}".
const EmptyResultsMessage = "Analysis failed: Server returned empty results."

const parseFailurePrefix = "Failed to parse analysis: "

// StripFences removes markdown code fences and surrounding whitespace that
// language models tend to wrap JSON in.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// Parse decodes the embedded analysis document for the expected review type.
// It never fails: anything that cannot be decoded becomes an error result.
func Parse(raw string, expected ReviewType) Result {
	cleaned := StripFences(raw)

	if expected == ReviewColorMatcher && cleaned == "{}" {
		log.Warn().Str("reviewType", string(expected)).Msg("analysis service returned empty color match")
		return ErrorResult(EmptyResultsMessage)
	}

	var target any
	switch expected {
	case ReviewSingle:
		target = &SingleOutfitAnalysis{}
	case ReviewComparison:
		target = &ComparisonAnalysis{}
	case ReviewColorMatcher:
		target = &ColorMatch{}
	default:
		return ErrorResult(fmt.Sprintf("%sunsupported review type %q", parseFailurePrefix, expected))
	}

	if err := decodeStrict(cleaned, target); err != nil {
		log.Warn().Err(err).Str("reviewType", string(expected)).Msg("failed to decode analysis")
		return ErrorResult(parseFailurePrefix + err.Error())
	}

	switch a := target.(type) {
	case *SingleOutfitAnalysis:
		return SingleResult(a)
	case *ComparisonAnalysis:
		return ComparisonResult(a)
	default:
		return ColorMatchResult(a.(*ColorMatch))
	}
}

// decodeStrict validates the document shape against target's type before
// unmarshalling so failures can name the offending field.
func decodeStrict(text string, target any) error {
	if !gjson.Valid(text) {
		var raw json.RawMessage
		err := json.Unmarshal([]byte(text), &raw)
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return &DecodeError{failure: dataCorrupted, Path: fmt.Sprintf("offset %d", syntaxErr.Offset)}
		}
		return &DecodeError{failure: dataCorrupted, Path: "offset 0"}
	}

	if err := checkShape(gjson.Parse(text), reflect.TypeOf(target).Elem(), ""); err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(text), target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &DecodeError{failure: typeMismatch, Path: typeErr.Field, Expected: typeErr.Type.String()}
		}
		return err
	}
	return nil
}

// Encode serializes a successful result back into its wire document.
func Encode(r Result) ([]byte, error) {
	switch r.Kind {
	case KindSingle:
		return json.Marshal(r.Single)
	case KindComparison:
		return json.Marshal(r.Comparison)
	case KindColorMatch:
		return json.Marshal(r.ColorMatch)
	}
	return nil, fmt.Errorf("cannot encode error result: %s", r.Message)
}
