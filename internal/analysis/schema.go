package analysis

// BuildBillJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. Used locally to validate model output before anything
// downstream trusts it. All fields are nullable; the model is instructed to
// return null over a guess.
func BuildBillJSONSchema() map[string]any {
	datePattern := `^\d{4}-\d{2}-\d{2}$`

	period := map[string]any{
		"type": []string{"object", "null"},
		"properties": map[string]any{
			"startDate": map[string]any{"type": "string", "pattern": datePattern},
			"endDate":   map[string]any{"type": "string", "pattern": datePattern},
		},
		"required":             []string{"startDate", "endDate"},
		"additionalProperties": false,
	}

	breakdownProps := map[string]any{}
	for _, k := range []string{
		"pureElectricity", "transportAndGrid", "stateTaxes", "elafgift",
		"psoAfgift", "providerSubscriptions", "oneOffFees", "vat",
	} {
		breakdownProps[k] = nonNegativeOrNull()
	}

	props := map[string]any{
		"providerName": nullableString(),
		"productName":  nullableString(),
		"priceType": map[string]any{
			"type": []string{"string", "null"},
			"enum": []any{"fixed", "variable", "unknown", nil},
		},
		"isFinalSettlement": map[string]any{"type": []string{"boolean", "null"}},
		"isGreenEnergy":     map[string]any{"type": []string{"boolean", "null"}},
		"consumptionPeriod": period,
		"totalConsumption_kWh": map[string]any{
			"type":             []string{"number", "null"},
			"exclusiveMinimum": 0.0,
		},
		"costBreakdown_DKK": map[string]any{
			"type":                 []string{"object", "null"},
			"properties":           breakdownProps,
			"additionalProperties": false,
		},
		"totalAmountForConsumption_DKK": map[string]any{"type": []string{"number", "null"}},
		"averagePrice_kr_per_kWh": map[string]any{
			"type":             []string{"number", "null"},
			"exclusiveMinimum": 0.0,
		},
		"pricePeriods": map[string]any{
			"type": []string{"array", "null"},
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"startDate":   map[string]any{"type": "string", "pattern": datePattern},
					"endDate":     map[string]any{"type": "string", "pattern": datePattern},
					"pricePerKwh": map[string]any{"type": "number", "exclusiveMinimum": 0.0},
				},
				"required":             []string{"startDate", "endDate", "pricePerKwh"},
				"additionalProperties": false,
			},
		},
		"notes": nullableString(),
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func nonNegativeOrNull() map[string]any {
	return map[string]any{"type": []string{"number", "null"}, "minimum": 0.0}
}
