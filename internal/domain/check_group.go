package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckGroup is a container of checks. An executable group is the single
// group that runs a check; logical groups are additional labels. Exactly one
// executable group must contain any given check at all times.
type CheckGroup struct {
	ID                 uuid.UUID          `json:"id"`
	Name               string             `json:"name"`
	FullyQualifiedName string             `json:"fullyQualifiedName"`
	Description        string             `json:"description,omitempty"`
	Executable         bool               `json:"executable"`
	Inherited          bool               `json:"inherited,omitempty"`
	Owners             []EntityReference  `json:"owners,omitempty"`
	Domain             *EntityReference   `json:"domain,omitempty"`
	ChangeDescription  *ChangeDescription `json:"changeDescription,omitempty"`
	Version            int64              `json:"version"`
	Deleted            bool               `json:"deleted"`
	UpdatedBy          string             `json:"updatedBy,omitempty"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Reference returns an EntityReference pointing at this group.
func (g *CheckGroup) Reference() EntityReference {
	return EntityReference{
		ID:                 g.ID,
		Kind:               KindCheckGroup,
		Name:               g.Name,
		FullyQualifiedName: g.FullyQualifiedName,
	}
}

// AsInherited returns a copy annotated as inherited with its own owners and
// domain kept but its change history stripped. Derived views must not leak
// group mutation history.
func (g CheckGroup) AsInherited() CheckGroup {
	g.Inherited = true
	g.ChangeDescription = nil
	return g
}
