package dto

// OpenAssignmentRequest represents the request to open an assignment
type OpenAssignmentRequest struct {
	AssignmentID string         `json:"assignmentId" binding:"required,entity_id"`
	OrderID      string         `json:"orderId,omitempty" binding:"omitempty,entity_id"`
	BatchID      string         `json:"batchId,omitempty" binding:"omitempty,entity_id"`
	ProductID    string         `json:"productId,omitempty" binding:"omitempty,entity_id"`
	Sizes        map[string]int `json:"sizes" binding:"required,min=1,dive,keys,size_code,endkeys,max=1000000"`
}

// CloseAssignmentRequest represents the request to close an assignment
type CloseAssignmentRequest struct {
	Reason string `json:"reason,omitempty" binding:"max=256"`
}

// SubmitPickRequest records units picked into one size bucket. A zero
// quantity is accepted and only frees units awaiting replacement.
type SubmitPickRequest struct {
	Quantity *int   `json:"quantity" binding:"required,min=0,max=1000000"`
	Picker   string `json:"picker,omitempty" binding:"max=128"`
}

// SubmitQCVerdictRequest records one QC inspection of picked units
type SubmitQCVerdictRequest struct {
	Approved  *int   `json:"approved" binding:"required,min=0,max=1000000"`
	Rejected  *int   `json:"rejected" binding:"required,min=0,max=1000000"`
	Remarks   string `json:"remarks,omitempty" binding:"max=1024"`
	Inspector string `json:"inspector,omitempty" binding:"max=128"`
}
