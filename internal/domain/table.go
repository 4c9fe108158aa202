package domain

import (
	"time"

	"github.com/google/uuid"
)

// Column is one column of a parent table, carrying its own tags.
type Column struct {
	Name               string     `json:"name"`
	FullyQualifiedName string     `json:"fullyQualifiedName"`
	DataType           string     `json:"dataType,omitempty"`
	Tags               []TagLabel `json:"tags,omitempty"`
}

// Table is the parent entity a check is attached to. Only the fields the
// resolver inherits from are modeled here.
type Table struct {
	ID                 uuid.UUID         `json:"id"`
	Name               string            `json:"name"`
	FullyQualifiedName string            `json:"fullyQualifiedName"`
	Columns            []Column          `json:"columns,omitempty"`
	Owners             []EntityReference `json:"owners,omitempty"`
	Domain             *EntityReference  `json:"domain,omitempty"`
	Tags               []TagLabel        `json:"tags,omitempty"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// Column returns the named column, if present.
func (t *Table) Column(name string) (Column, bool) {
	for _, column := range t.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// User is an identity that resolves or closes incidents.
type User struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	FullyQualifiedName string    `json:"fullyQualifiedName"`
	DisplayName        string    `json:"displayName,omitempty"`
}

// Reference returns an EntityReference pointing at this user.
func (u *User) Reference() EntityReference {
	return EntityReference{
		ID:                 u.ID,
		Kind:               KindUser,
		Name:               u.Name,
		FullyQualifiedName: u.FullyQualifiedName,
	}
}
