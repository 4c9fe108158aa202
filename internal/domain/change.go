package domain

import "encoding/json"

// FieldChange records the old and new value of one entity field.
type FieldChange struct {
	Name     string          `json:"name"`
	OldValue json.RawMessage `json:"oldValue,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
}

// ChangeDescription is the field-level diff between two versions of an entity.
type ChangeDescription struct {
	FieldsAdded     []FieldChange `json:"fieldsAdded,omitempty"`
	FieldsUpdated   []FieldChange `json:"fieldsUpdated,omitempty"`
	FieldsDeleted   []FieldChange `json:"fieldsDeleted,omitempty"`
	PreviousVersion int64         `json:"previousVersion"`
}

// IsEmpty reports whether the description records no change at all.
func (c *ChangeDescription) IsEmpty() bool {
	return c == nil ||
		(len(c.FieldsAdded) == 0 && len(c.FieldsUpdated) == 0 && len(c.FieldsDeleted) == 0)
}

// ChangeTracker accumulates field changes between an original and updated
// version of an entity. Recording an identical value is a no-op, so callers
// track every mutable field unconditionally.
type ChangeTracker struct {
	change ChangeDescription
}

// NewChangeTracker starts a tracker against the given previous version.
func NewChangeTracker(previousVersion int64) *ChangeTracker {
	return &ChangeTracker{change: ChangeDescription{PreviousVersion: previousVersion}}
}

// RecordChange compares old and new values for the named field and records an
// added, updated or deleted change when they differ. Values are compared by
// their canonical JSON encoding.
func (t *ChangeTracker) RecordChange(name string, oldValue, newValue any) {
	oldJSON := marshalFieldValue(oldValue)
	newJSON := marshalFieldValue(newValue)

	switch {
	case oldJSON == nil && newJSON == nil:
	case oldJSON == nil:
		t.change.FieldsAdded = append(t.change.FieldsAdded, FieldChange{Name: name, NewValue: newJSON})
	case newJSON == nil:
		t.change.FieldsDeleted = append(t.change.FieldsDeleted, FieldChange{Name: name, OldValue: oldJSON})
	case string(oldJSON) != string(newJSON):
		t.change.FieldsUpdated = append(t.change.FieldsUpdated, FieldChange{
			Name:     name,
			OldValue: oldJSON,
			NewValue: newJSON,
		})
	}
}

// Changed reports whether any change was recorded so far.
func (t *ChangeTracker) Changed() bool {
	return !t.change.IsEmpty()
}

// Description returns the accumulated change description, or nil when no
// change was recorded.
func (t *ChangeTracker) Description() *ChangeDescription {
	if t.change.IsEmpty() {
		return nil
	}
	change := t.change
	return &change
}

func marshalFieldValue(value any) json.RawMessage {
	if value == nil {
		return nil
	}
	switch typed := value.(type) {
	case *bool:
		if typed == nil {
			return nil
		}
	case *string:
		if typed == nil {
			return nil
		}
	case string:
		if typed == "" {
			return nil
		}
	case []ParameterValue:
		if len(typed) == 0 {
			return nil
		}
	case CheckStatus:
		if typed == "" {
			return nil
		}
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	if string(encoded) == "null" {
		return nil
	}
	return encoded
}
