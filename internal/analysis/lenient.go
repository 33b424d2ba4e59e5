package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var reJSONObject = regexp.MustCompile(`\{[\s\S]*\}`)

// ErrNoJSON is returned when the analyzer response carries no JSON object.
var ErrNoJSON = errors.New("no JSON object in analyzer response")

// ExtractJSON pulls the JSON document out of raw model text. The model is
// told to answer with bare JSON but often wraps it in prose or markdown
// fences; fall back to the outermost braced block.
func ExtractJSON(text string) ([]byte, error) {
	trimmed := []byte(text)
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		if _, ok := v.(map[string]any); ok {
			return trimmed, nil
		}
	}
	match := reJSONObject.FindString(text)
	if match == "" {
		return nil, ErrNoJSON
	}
	if err := json.Unmarshal([]byte(match), &v); err != nil {
		return nil, fmt.Errorf("extracted block is not valid JSON: %w", err)
	}
	return []byte(match), nil
}

// ParseBillAnalysis turns raw analyzer text into a validated BillAnalysis:
// extract the JSON, sanitize it, validate against the schema, then decode.
// Every failure here is a recoverable analysis error, not a terminal one.
func ParseBillAnalysis(text string) (*BillAnalysis, []string, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, nil, err
	}
	cleaned, touched, err := SanitizeBillJSON(raw)
	if err != nil {
		return nil, touched, err
	}
	if err := ValidateBillJSON(cleaned); err != nil {
		return nil, touched, fmt.Errorf("schema validation failed: %w", err)
	}
	var bill BillAnalysis
	if err := json.Unmarshal(cleaned, &bill); err != nil {
		return nil, touched, fmt.Errorf("decode bill analysis: %w", err)
	}
	return &bill, touched, nil
}
