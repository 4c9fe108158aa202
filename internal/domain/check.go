package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckStatus is the last evaluated outcome of a check.
type CheckStatus string

const (
	CheckStatusSuccess CheckStatus = "Success"
	CheckStatusFailed  CheckStatus = "Failed"
	CheckStatusAborted CheckStatus = "Aborted"
	CheckStatusQueued  CheckStatus = "Queued"
)

// EntityReference is a lightweight pointer to another entity.
type EntityReference struct {
	ID                 uuid.UUID  `json:"id"`
	Kind               EntityKind `json:"kind"`
	Name               string     `json:"name"`
	FullyQualifiedName string     `json:"fullyQualifiedName"`
	Inherited          bool       `json:"inherited,omitempty"`
}

// TagLabel is a classification tag applied to an entity or one of its columns.
type TagLabel struct {
	TagFQN string `json:"tagFQN"`
	Source string `json:"source,omitempty"`
}

// ParameterValue is a named opaque scalar supplied for one defined parameter.
type ParameterValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Check is a data-quality test case attached to a field of a parent entity.
// Group, Groups, Definition, LatestResult, IncidentID, Owners, Domain and Tags
// are derived fields: they are reconstructed from relationship edges and the
// parent entity on read, never stored as foreign keys on the record itself.
type Check struct {
	ID                          uuid.UUID          `json:"id"`
	Name                        string             `json:"name"`
	FullyQualifiedName          string             `json:"fullyQualifiedName"`
	Description                 string             `json:"description,omitempty"`
	EntityLink                  string             `json:"entityLink"`
	EntityFQN                   string             `json:"entityFQN"`
	Group                       *EntityReference   `json:"group,omitempty"`
	Groups                      []CheckGroup       `json:"groups,omitempty"`
	Definition                  *EntityReference   `json:"definition,omitempty"`
	ParameterValues             []ParameterValue   `json:"parameterValues,omitempty"`
	ComputePassedFailedRowCount *bool              `json:"computePassedFailedRowCount,omitempty"`
	UseDynamicAssertion         *bool              `json:"useDynamicAssertion,omitempty"`
	InspectionQuery             string             `json:"inspectionQuery,omitempty"`
	Status                      CheckStatus        `json:"status,omitempty"`
	LatestResult                *CheckResult       `json:"latestResult,omitempty"`
	IncidentID                  *uuid.UUID         `json:"incidentId,omitempty"`
	Owners                      []EntityReference  `json:"owners,omitempty"`
	Domain                      *EntityReference   `json:"domain,omitempty"`
	Tags                        []TagLabel         `json:"tags,omitempty"`
	ChangeDescription           *ChangeDescription `json:"changeDescription,omitempty"`
	Version                     int64              `json:"version"`
	Deleted                     bool               `json:"deleted"`
	UpdatedBy                   string             `json:"updatedBy,omitempty"`
	UpdatedAt                   time.Time          `json:"updatedAt"`
}

// Reference returns an EntityReference pointing at this check.
func (c *Check) Reference() EntityReference {
	return EntityReference{
		ID:                 c.ID,
		Kind:               KindCheck,
		Name:               c.Name,
		FullyQualifiedName: c.FullyQualifiedName,
	}
}

// SetFullyQualifiedName derives the FQN from the entity-link locator and the
// check name, and records the parent field's own FQN alongside it.
func (c *Check) SetFullyQualifiedName() error {
	link, err := ParseEntityLink(c.EntityLink)
	if err != nil {
		return err
	}
	c.EntityFQN = link.FullyQualifiedFieldValue()
	c.FullyQualifiedName = BuildFQN(c.EntityFQN, c.Name)
	return nil
}

// FieldSet names the derived fields a caller wants populated. Unrequested
// fields are cleared during resolution so serialized output reflects intent.
type FieldSet struct {
	fields map[string]struct{}
}

// Derived field names accepted in a FieldSet.
const (
	FieldGroup        = "group"
	FieldGroups       = "groups"
	FieldDefinition   = "definition"
	FieldLatestResult = "latestResult"
	FieldIncident     = "incidentId"
	FieldOwners       = "owners"
	FieldDomain       = "domain"
	FieldTags         = "tags"
)

// NewFieldSet builds a FieldSet from the given field names.
func NewFieldSet(names ...string) FieldSet {
	set := FieldSet{fields: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if name != "" {
			set.fields[name] = struct{}{}
		}
	}
	return set
}

// AllFields returns a FieldSet covering every derived field.
func AllFields() FieldSet {
	return NewFieldSet(
		FieldGroup, FieldGroups, FieldDefinition, FieldLatestResult,
		FieldIncident, FieldOwners, FieldDomain, FieldTags,
	)
}

// EmptyFields returns a FieldSet requesting nothing.
func EmptyFields() FieldSet {
	return NewFieldSet()
}

// Contains reports whether the named field was requested.
func (f FieldSet) Contains(name string) bool {
	_, ok := f.fields[name]
	return ok
}
