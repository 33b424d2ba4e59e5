package analysis

// Tier classifies how much of the bill the model managed to extract.
type Tier string

const (
	TierFull    Tier = "full"    // critical + important + nice-to-have groups present
	TierPartial Tier = "partial" // critical + important
	TierBasic   Tier = "basic"   // critical only
	TierFailed  Tier = "failed"  // critical group missing
)

// ClassifyTier maps which optional field groups are present to a tier.
// Pure: no I/O, independently testable from the network code.
func ClassifyTier(b *BillAnalysis) Tier {
	if b == nil || !hasCriticalFields(b) {
		return TierFailed
	}
	if !hasImportantFields(b) {
		return TierBasic
	}
	if !hasNiceToHaveFields(b) {
		return TierPartial
	}
	return TierFull
}

func hasCriticalFields(b *BillAnalysis) bool {
	return b.TotalConsumptionKWh != nil && *b.TotalConsumptionKWh > 0 &&
		b.TotalAmountForConsumptionDKK != nil
}

func hasImportantFields(b *BillAnalysis) bool {
	return b.ProviderName != nil && *b.ProviderName != "" &&
		b.CostBreakdownDKK != nil &&
		b.ConsumptionPeriod != nil &&
		b.ConsumptionPeriod.StartDate != "" &&
		b.ConsumptionPeriod.EndDate != ""
}

func hasNiceToHaveFields(b *BillAnalysis) bool {
	// pricePeriods may legitimately be null on fixed-price bills
	return b.PriceType != nil && b.IsGreenEnergy != nil
}
