package domain

import "github.com/google/uuid"

// CheckResult is one evaluation of a check at a point in time. Results live in
// a time-series store keyed by the check's fully-qualified name; the check
// entity may cache the most recent one for fast reads.
type CheckResult struct {
	ID                   uuid.UUID   `json:"id"`
	CheckFQN             string      `json:"checkFQN"`
	Timestamp            int64       `json:"timestamp"`
	Status               CheckStatus `json:"status"`
	Result               string      `json:"result,omitempty"`
	PassedRows           *int64      `json:"passedRows,omitempty"`
	FailedRows           *int64      `json:"failedRows,omitempty"`
	PassedRowsPercentage *float64    `json:"passedRowsPercentage,omitempty"`
	FailedRowsPercentage *float64    `json:"failedRowsPercentage,omitempty"`
	MinBound             *float64    `json:"minBound,omitempty"`
	MaxBound             *float64    `json:"maxBound,omitempty"`
	IncidentID           *uuid.UUID  `json:"incidentId,omitempty"`
}
