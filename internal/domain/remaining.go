package domain

// RemainingWork holds the values derived from a bucket. They are never stored.
type RemainingWork struct {
	Pending             int `json:"pending"`
	AwaitingReplacement int `json:"awaitingReplacement"`
	RemainingToPick     int `json:"remainingToPick"`
	Unverified          int `json:"unverified"`
}

// CalculateRemaining derives the remaining work of a bucket. Picking and QC
// read these values from here and nowhere else.
//
// Unverified is returned as computed; a negative value is reported by
// CheckState, not hidden.
func CalculateRemaining(b SizeBucket) RemainingWork {
	pending := max(0, b.Assigned-b.Picked)
	awaiting := max(0, b.RejectedCumulative-b.ReplacedCumulative)

	return RemainingWork{
		Pending:             pending,
		AwaitingReplacement: awaiting,
		RemainingToPick:     pending + awaiting,
		Unverified:          b.Picked - (b.ApprovedCumulative + awaiting),
	}
}
