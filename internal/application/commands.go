package application

// OpenAssignmentCommand opens an assignment with one bucket per size
type OpenAssignmentCommand struct {
	AssignmentID string
	OrderID      string
	BatchID      string
	ProductID    string
	Sizes        map[string]int
}

// CloseAssignmentCommand stops further picks and QC verdicts
type CloseAssignmentCommand struct {
	AssignmentID string
	Reason       string
}

// SubmitPickCommand records units picked into a bucket
type SubmitPickCommand struct {
	AssignmentID string
	Size         string
	Quantity     int
	Picker       string
}

// SubmitQCVerdictCommand records a QC inspection of picked units
type SubmitQCVerdictCommand struct {
	AssignmentID string
	Size         string
	Approved     int
	Rejected     int
	Remarks      string
	Inspector    string
}

// GetAssignmentQuery gets an assignment with its buckets and summary
type GetAssignmentQuery struct {
	AssignmentID string
}

// GetBucketQuery gets one size bucket
type GetBucketQuery struct {
	AssignmentID string
	Size         string
}

// ListSizeBucketsQuery lists all buckets of an assignment
type ListSizeBucketsQuery struct {
	AssignmentID string
}

// AuditQuery reads the pick or QC history of one bucket
type AuditQuery struct {
	AssignmentID string
	Size         string
}
