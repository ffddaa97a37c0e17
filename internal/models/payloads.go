package models

// EventRecord is one medical event extracted from the record. Values are opaque
// strings exactly as the model emitted them.
type EventRecord struct {
	Date            string `json:"date" firestore:"date"`
	Description     string `json:"description" firestore:"description"`
	MedicalFindings string `json:"medical_findings" firestore:"medicalFindings"`
	Diagnoses       string `json:"diagnoses" firestore:"diagnoses"`
	NewOrders       string `json:"new_orders" firestore:"newOrders"`
	FollowUpActions string `json:"follow_up_actions" firestore:"followUpActions"`
}

// EventList is ordered by the model's emission order, not by date.
type EventList []EventRecord

// ExtractionOutput is the JSON document handed back to callers.
type ExtractionOutput struct {
	Events EventList `json:"events"`
}

// These structs define the JSON payloads exchanged with the downstream Cloud Workflow.

// WorkflowArgument is the execution argument passed to the hand-off workflow.
type WorkflowArgument struct {
	DocumentID   string `json:"documentId"`
	OutputGCSUri string `json:"outputGcsUri"`
	EventCount   int    `json:"eventCount"`
	Partial      bool   `json:"partial"`
}

// ReportRequest is sent by the workflow to look up a finished job.
type ReportRequest struct {
	DocumentID string `json:"documentId"`
}

// ReportResponse summarises a job and, once it finished, carries its events.
type ReportResponse struct {
	DocumentID   string    `json:"documentId"`
	Status       string    `json:"status"`
	ErrorDetails string    `json:"errorDetails,omitempty"`
	PageCount    int       `json:"pageCount"`
	EventCount   int       `json:"eventCount"`
	FailedPages  []string  `json:"failedPages,omitempty"`
	OutputGCSUri string    `json:"outputGcsUri,omitempty"`
	Events       EventList `json:"events,omitempty"`
}
