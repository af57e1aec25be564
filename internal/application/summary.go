package application

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

func summarize(t BucketTotalsDTO) *AssignmentSummaryDTO {
	return &AssignmentSummaryDTO{
		Totals:            t,
		CompletionPercent: percent(t.Approved, t.Assigned),
		YieldPercent:      percent(t.Approved, t.Approved+t.Rejected),
	}
}

// percent returns num/den*100 rounded half away from zero to two places
func percent(num, den int) string {
	if den == 0 {
		return "0.00"
	}
	return decimal.NewFromInt(int64(num)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(den))).
		StringFixed(2)
}
