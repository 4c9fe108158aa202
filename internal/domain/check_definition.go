package domain

import (
	"time"

	"github.com/google/uuid"
)

// Comparator is the relation a validation rule asserts between two parameter values.
type Comparator string

const (
	ComparatorGreaterThanOrEquals Comparator = "GREATER_THAN_OR_EQUALS"
	ComparatorLessThanOrEquals    Comparator = "LESS_THAN_OR_EQUALS"
	ComparatorEquals              Comparator = "EQUALS"
	ComparatorNotEquals           Comparator = "NOT_EQUALS"
)

// ParameterValidationRule cross-validates a parameter against another
// parameter's value.
type ParameterValidationRule struct {
	ParameterField string     `json:"parameterField"`
	Rule           Comparator `json:"rule"`
}

// ParameterDefinition declares one named parameter a check may supply.
type ParameterDefinition struct {
	Name           string                   `json:"name"`
	DisplayName    string                   `json:"displayName,omitempty"`
	Description    string                   `json:"description,omitempty"`
	Required       bool                     `json:"required"`
	ValidationRule *ParameterValidationRule `json:"validationRule,omitempty"`
}

// CheckDefinition describes the parameter schema shared by checks of one kind.
type CheckDefinition struct {
	ID                 uuid.UUID             `json:"id"`
	Name               string                `json:"name"`
	FullyQualifiedName string                `json:"fullyQualifiedName"`
	Description        string                `json:"description,omitempty"`
	Parameters         []ParameterDefinition `json:"parameters,omitempty"`
	Version            int64                 `json:"version"`
	Deleted            bool                  `json:"deleted"`
	UpdatedBy          string                `json:"updatedBy,omitempty"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

// Reference returns an EntityReference pointing at this definition.
func (d *CheckDefinition) Reference() EntityReference {
	return EntityReference{
		ID:                 d.ID,
		Kind:               KindCheckDefinition,
		Name:               d.Name,
		FullyQualifiedName: d.FullyQualifiedName,
	}
}
