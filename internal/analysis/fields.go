package analysis

// Period is a date range in YYYY-MM-DD form.
type Period struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// CostBreakdown splits the billed amount into the usual Danish line items.
// Every field is nullable: the model returns null rather than guessing.
type CostBreakdown struct {
	PureElectricity       *float64 `json:"pureElectricity"`
	TransportAndGrid      *float64 `json:"transportAndGrid"`
	StateTaxes            *float64 `json:"stateTaxes"`
	Elafgift              *float64 `json:"elafgift"`
	PSOAfgift             *float64 `json:"psoAfgift"`
	ProviderSubscriptions *float64 `json:"providerSubscriptions"`
	OneOffFees            *float64 `json:"oneOffFees"`
	VAT                   *float64 `json:"vat"`
}

// PricePeriod is one priced interval on a variable-price bill.
type PricePeriod struct {
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	PricePerKwh float64 `json:"pricePerKwh"`
}

// BillAnalysis is the validated shape extracted from one electricity bill.
// Fields are grouped by how much they matter for the success tier:
// critical (TotalConsumptionKWh, TotalAmountForConsumptionDKK), important
// (ProviderName, CostBreakdownDKK, ConsumptionPeriod) and nice-to-have
// (PriceType, IsGreenEnergy, PricePeriods).
type BillAnalysis struct {
	ProviderName                 *string        `json:"providerName"`
	ProductName                  *string        `json:"productName"`
	PriceType                    *string        `json:"priceType"` // fixed | variable | unknown
	IsFinalSettlement            *bool          `json:"isFinalSettlement"`
	IsGreenEnergy                *bool          `json:"isGreenEnergy"`
	ConsumptionPeriod            *Period        `json:"consumptionPeriod"`
	TotalConsumptionKWh          *float64       `json:"totalConsumption_kWh"`
	CostBreakdownDKK             *CostBreakdown `json:"costBreakdown_DKK"`
	TotalAmountForConsumptionDKK *float64       `json:"totalAmountForConsumption_DKK"`
	AveragePriceKrPerKWh         *float64       `json:"averagePrice_kr_per_kWh"`
	PricePeriods                 []PricePeriod  `json:"pricePeriods"`
	Notes                        *string        `json:"notes"`
}
