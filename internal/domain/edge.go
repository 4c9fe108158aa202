package domain

import "github.com/google/uuid"

// EdgeType is the relation carried by a directed edge.
type EdgeType string

const (
	EdgeContains EdgeType = "CONTAINS"
	EdgeHas      EdgeType = "HAS"
)

// EntityKind identifies which entity table an edge endpoint lives in.
type EntityKind string

const (
	KindCheck           EntityKind = "check"
	KindCheckGroup      EntityKind = "checkGroup"
	KindCheckDefinition EntityKind = "checkDefinition"
	KindTable           EntityKind = "table"
	KindUser            EntityKind = "user"
	KindDomain          EntityKind = "domain"
)

// Edge is a directed typed relationship record between two entities. Edges are
// the sole source of truth for group membership and definition linkage; the
// check record never embeds them as foreign keys.
type Edge struct {
	SourceID   uuid.UUID  `json:"sourceId"`
	TargetID   uuid.UUID  `json:"targetId"`
	SourceKind EntityKind `json:"sourceKind"`
	TargetKind EntityKind `json:"targetKind"`
	Type       EdgeType   `json:"type"`
}

// EdgeEnd is one endpoint of an edge as returned by directional queries.
type EdgeEnd struct {
	ID   uuid.UUID  `json:"id"`
	Kind EntityKind `json:"kind"`
}
