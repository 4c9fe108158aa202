package domain

import (
	"fmt"
	"strings"
)

// EntityLink is a structured locator addressing a field of another entity,
// optionally down to an array element such as a table column. The wire format
// is <#E::entityType::entityFQN[::fieldName[::arrayFieldName]]>.
type EntityLink struct {
	EntityType     string
	EntityFQN      string
	FieldName      string
	ArrayFieldName string
}

const (
	entityLinkPrefix = "<#E::"
	entityLinkSuffix = ">"
)

// ParseEntityLink parses the raw locator string.
func ParseEntityLink(raw string) (EntityLink, error) {
	if !strings.HasPrefix(raw, entityLinkPrefix) || !strings.HasSuffix(raw, entityLinkSuffix) {
		return EntityLink{}, NewValidationError("entityLink", raw, "invalid entity link format")
	}

	body := strings.TrimSuffix(strings.TrimPrefix(raw, entityLinkPrefix), entityLinkSuffix)
	parts := strings.Split(body, "::")
	if len(parts) < 2 || len(parts) > 4 {
		return EntityLink{}, NewValidationError("entityLink", raw, "invalid entity link format")
	}

	link := EntityLink{EntityType: parts[0], EntityFQN: parts[1]}
	if link.EntityType == "" || link.EntityFQN == "" {
		return EntityLink{}, NewValidationError("entityLink", raw, "entity link is missing type or name")
	}
	if len(parts) > 2 {
		link.FieldName = parts[2]
	}
	if len(parts) > 3 {
		link.ArrayFieldName = parts[3]
	}

	return link, nil
}

// String renders the locator back to its wire format.
func (l EntityLink) String() string {
	var b strings.Builder
	b.WriteString(entityLinkPrefix)
	b.WriteString(l.EntityType)
	b.WriteString("::")
	b.WriteString(l.EntityFQN)
	if l.FieldName != "" {
		b.WriteString("::")
		b.WriteString(l.FieldName)
	}
	if l.ArrayFieldName != "" {
		b.WriteString("::")
		b.WriteString(l.ArrayFieldName)
	}
	b.WriteString(entityLinkSuffix)
	return b.String()
}

// FullyQualifiedFieldValue returns the fully-qualified name of the addressed
// field: the entity FQN extended with field and array-field segments.
func (l EntityLink) FullyQualifiedFieldValue() string {
	value := l.EntityFQN
	if l.FieldName != "" {
		value = value + "." + l.FieldName
	}
	if l.ArrayFieldName != "" {
		value = value + "." + l.ArrayFieldName
	}
	return value
}

// IsColumnLink reports whether the locator addresses a column of the parent table.
func (l EntityLink) IsColumnLink() bool {
	return l.FieldName == "columns" && l.ArrayFieldName != ""
}

// BuildFQN joins a parent locator value with a quoted check name.
func BuildFQN(parent, name string) string {
	return parent + "." + quoteName(name)
}

// quoteName wraps names containing dots or quotes so FQN segments stay unambiguous.
func quoteName(name string) string {
	if strings.ContainsAny(name, ".\"") {
		return fmt.Sprintf("%q", name)
	}
	return name
}
