package models

// DatePolicy decides what happens to a row whose date matches no known shape.
type DatePolicy string

const (
	// DatePolicyKeep keeps the row with an unparsed date and counts it.
	DatePolicyKeep DatePolicy = "keep"
	// DatePolicyFail aborts the run on the first unparsed date.
	DatePolicyFail DatePolicy = "fail"
)

// PricePolicy decides what happens to a row whose price is not numeric.
type PricePolicy string

const (
	// PricePolicyFail aborts the run with a MalformedPriceError.
	PricePolicyFail PricePolicy = "fail"
	// PricePolicyZero coerces the price to 0.00 and counts the row.
	PricePolicyZero PricePolicy = "zero"
)

// NormalizeStats counts rows that went through a fallback path while
// normalizing.
type NormalizeStats struct {
	Rows          int
	UnparsedDates int
	CoercedPrices int
}

// EnrichStats counts rows whose drink matched no volume rule.
type EnrichStats struct {
	Rows            int
	UnmatchedDrinks int
}
