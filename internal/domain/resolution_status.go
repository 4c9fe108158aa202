package domain

import "github.com/google/uuid"

// ResolutionStatusType is the kind of a resolution-status timeline record.
type ResolutionStatusType string

const (
	ResolutionStatusNew      ResolutionStatusType = "New"
	ResolutionStatusAck      ResolutionStatusType = "Ack"
	ResolutionStatusAssigned ResolutionStatusType = "Assigned"
	ResolutionStatusResolved ResolutionStatusType = "Resolved"
)

// FailureReason classifies why a check failure was resolved.
type FailureReason string

const (
	FailureReasonFalsePositive FailureReason = "FalsePositive"
	FailureReasonMissingData   FailureReason = "MissingData"
	FailureReasonDuplicates    FailureReason = "Duplicates"
	FailureReasonOutOfBounds   FailureReason = "OutOfBounds"
	FailureReasonOther         FailureReason = "Other"
)

// Resolved carries the diagnostic details of a Resolved record.
type Resolved struct {
	Reason     FailureReason    `json:"reason"`
	Comment    string           `json:"comment,omitempty"`
	ResolvedBy *EntityReference `json:"resolvedBy,omitempty"`
}

// ResolutionStatus is an immutable, timestamped record in an incident's
// timeline. StateID groups every record belonging to one logical incident;
// records are only ever appended, and the current state of an incident is the
// record with the latest timestamp.
type ResolutionStatus struct {
	ID             uuid.UUID            `json:"id"`
	StateID        uuid.UUID            `json:"stateId"`
	Timestamp      int64                `json:"timestamp"`
	Type           ResolutionStatusType `json:"type"`
	Resolved       *Resolved            `json:"resolved,omitempty"`
	CheckReference *EntityReference     `json:"checkReference,omitempty"`
	UpdatedBy      *EntityReference     `json:"updatedBy,omitempty"`
	UpdatedAt      int64                `json:"updatedAt"`
}
