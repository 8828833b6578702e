package schema

import (
	"encoding/json"
)

// SyncResultEntry is the outcome of one submitted candidate
type SyncResultEntry struct {
	Task       string       `json:"task"`
	Status     ResultStatus `json:"status"`
	Action     Action       `json:"action,omitempty"`
	CaseName   string       `json:"case_name,omitempty"`
	ImageCount int          `json:"image_count"`
	Message    string       `json:"message,omitempty"`
}

// Summary counts entries by status
type Summary struct {
	Success   int `json:"success"`
	Duplicate int `json:"duplicate"`
	Error     int `json:"error"`
}

// Total returns the number of entries counted
func (s Summary) Total() int {
	return s.Success + s.Duplicate + s.Error
}

// WriteResult is what a create-or-update call against the test-management
// system reports back
type WriteResult struct {
	Status     WriteStatus `json:"status"`
	CaseID     int         `json:"case_id,omitempty"`
	CaseName   string      `json:"case_name"`
	ImageCount int         `json:"image_count"`
}

// DuplicateConflict is the single candidate waiting for an overwrite decision
type DuplicateConflict struct {
	Candidate        TestCaseCandidate `json:"candidate"`
	ExistingCaseName string            `json:"existing_case_name"`
	ExistingCaseID   int               `json:"existing_case_id,omitempty"`
}

// SyncReport is the result set of one sync operation as seen by callers
type SyncReport struct {
	OperationID string             `json:"operation_id"`
	State       State              `json:"state"`
	Target      SyncTarget         `json:"target"`
	Entries     []SyncResultEntry  `json:"entries"`
	Summary     Summary            `json:"summary"`
	Conflict    *DuplicateConflict `json:"conflict,omitempty"`
	Error       string             `json:"error,omitempty"`

	// Err is the terminal error that stopped the operation early, if any
	Err error `json:"-"`
}

// AwaitingDecision reports whether the operation is paused on a duplicate
func (r *SyncReport) AwaitingDecision() bool {
	return r != nil && r.State == StateAwaitingConflictDecision
}

// ToJSON serializes the report
func (r *SyncReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
