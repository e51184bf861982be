package domain

// FeatureRecord is the fixed-shape derived summary of a transaction plus
// its recent history. One record is derived per request and discarded
// after classification.
type FeatureRecord struct {
	Amount    float64 `json:"amount"`
	Recipient string  `json:"recipient"`

	HourOfDay int `json:"hourOfDay"`
	DayOfWeek int `json:"dayOfWeek"`

	// Aggregates over the 24-hour lookback window.
	TxCount24h       int     `json:"txCount24h"`
	AmountMean24h    float64 `json:"amountMean24h"`
	AmountStd24h     float64 `json:"amountStd24h"`
	AmountMax24h     float64 `json:"amountMax24h"`
	HoursSinceLastTx float64 `json:"hoursSinceLastTx"`

	TxPerHour         float64 `json:"txPerHour"`
	TxPerDay          float64 `json:"txPerDay"`
	AmountToMeanRatio float64 `json:"amountToMeanRatio"`

	HasKnownPrefixPattern bool `json:"hasKnownPrefixPattern"`
	HasHexAddressPattern  bool `json:"hasHexAddressPattern"`

	// Caller-supplied extras after merging. Keys that collide with a
	// derived field have already overwritten it.
	Extras map[string]float64 `json:"extras,omitempty"`
}

// ToMap flattens the record into the canonical snake_case key set used by
// the custom rules engine and by extras-override resolution.
func (f *FeatureRecord) ToMap() map[string]float64 {
	m := map[string]float64{
		"amount":               f.Amount,
		"hour_of_day":          float64(f.HourOfDay),
		"day_of_week":          float64(f.DayOfWeek),
		"tx_count_24h":         float64(f.TxCount24h),
		"amount_mean_24h":      f.AmountMean24h,
		"amount_std_24h":       f.AmountStd24h,
		"amount_max_24h":       f.AmountMax24h,
		"hours_since_last_tx":  f.HoursSinceLastTx,
		"tx_per_hour":          f.TxPerHour,
		"tx_per_day":           f.TxPerDay,
		"amount_to_mean_ratio": f.AmountToMeanRatio,
	}
	for k, v := range f.Extras {
		m[k] = v
	}
	return m
}
