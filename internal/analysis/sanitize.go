package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var numericKeys = []string{
	"totalConsumption_kWh",
	"totalAmountForConsumption_DKK",
	"averagePrice_kr_per_kWh",
}

var allowedKeys = map[string]struct{}{
	"providerName": {}, "productName": {}, "priceType": {},
	"isFinalSettlement": {}, "isGreenEnergy": {}, "consumptionPeriod": {},
	"totalConsumption_kWh": {}, "costBreakdown_DKK": {},
	"totalAmountForConsumption_DKK": {}, "averagePrice_kr_per_kWh": {},
	"pricePeriods": {}, "notes": {},
}

// SanitizeBillJSON normalizes model output before schema validation:
// numeric strings are coerced to numbers (models sometimes quote amounts),
// strings are trimmed, priceType is lowercased, and unknown keys are removed
// so additionalProperties=false doesn't reject an otherwise usable document.
// Returns the cleaned document plus the list of touched keys.
func SanitizeBillJSON(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var touched []string

	for _, k := range numericKeys {
		if coerceNumber(m, k) {
			touched = append(touched, k)
		}
	}

	if cb, ok := m["costBreakdown_DKK"].(map[string]any); ok {
		for k := range cb {
			if coerceNumber(cb, k) {
				touched = append(touched, "costBreakdown_DKK."+k)
			}
		}
	}

	for _, k := range []string{"providerName", "productName", "notes"} {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				m[k] = nil
				touched = append(touched, k+"(empty)")
			} else if s != v {
				m[k] = s
				touched = append(touched, k)
			}
		}
	}

	if v, ok := m["priceType"].(string); ok {
		pt := strings.ToLower(strings.TrimSpace(v))
		switch pt {
		case "fixed", "variable", "unknown":
			m["priceType"] = pt
		default:
			m["priceType"] = nil
			touched = append(touched, "priceType(invalid)")
		}
	}

	for k := range m {
		if _, ok := allowedKeys[k]; !ok {
			delete(m, k)
			touched = append(touched, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, touched, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, touched, nil
}

// coerceNumber converts a quoted number into a float. Empty and "null"
// strings become JSON null. Reports whether the value changed.
func coerceNumber(m map[string]any, k string) bool {
	v, ok := m[k]
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		m[k] = nil
		return true
	}
	// Danish bills use comma decimals; the model is told to use dots but
	// doesn't always listen.
	s = strings.ReplaceAll(s, ",", ".")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		m[k] = f
		return true
	}
	m[k] = nil
	return true
}
