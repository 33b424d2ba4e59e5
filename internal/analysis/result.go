package analysis

// Result is the terminal success payload stored on a completed job: the
// validated data plus its tier classification.
type Result struct {
	Success          bool          `json:"success"`
	Data             *BillAnalysis `json:"data,omitempty"`
	Tier             Tier          `json:"tier"`
	ProcessingTimeMs int64         `json:"processingTime,omitempty"`
	RawResponse      string        `json:"rawResponse,omitempty"`
	Warning          string        `json:"warning,omitempty"`
}
