package common

import "time"

// EntityKind identifies which source-of-truth table a graph node projects.
// The set is closed: every node in a world graph represents exactly one of
// these five entity families.
type EntityKind string

const (
	KindCharacter EntityKind = "character"
	KindLocation  EntityKind = "location"
	KindEvent     EntityKind = "event"
	KindStory     EntityKind = "story"
	KindBeat      EntityKind = "beat"
)

// SyncOrder is the fixed order in which the sync coordinator processes
// entity kinds within a single run.
var SyncOrder = []EntityKind{KindCharacter, KindLocation, KindEvent, KindStory, KindBeat}

// Relationship types used by the edge builders.
const (
	RelKnows     = "knows"
	RelMentions  = "mentions"
	RelAppearsIn = "appears_in"
	RelContains  = "contains"
	RelPartOf    = "part_of"
)

// GraphNode is one vertex of a world's knowledge graph. A node projects a
// single source entity: at most one node exists per
// (world_id, entity_type, entity_id), enforced by upsert-by-key semantics
// in the store.
//
// Embedding is absent (nil) when the embedding provider failed for the
// node's text or the text was blank. ContentHash covers only the fields
// that determine the node's semantic content and exists purely for change
// detection.
type GraphNode struct {
	ID              string     `json:"id"`
	WorldID         string     `json:"world_id"`
	EntityType      EntityKind `json:"entity_type"`
	EntityID        string     `json:"entity_id"`
	ContentHash     string     `json:"content_hash"`
	Embedding       []float32  `json:"embedding,omitempty"`
	SemanticSummary string     `json:"semantic_summary"`
	ImportanceScore float64    `json:"importance_score"`
}

// GraphEdge is a directed, typed, weighted relationship between two nodes
// of the same world. Mutual relationships are represented as two edges,
// one per direction.
type GraphEdge struct {
	ID               string            `json:"id"`
	WorldID          string            `json:"world_id"`
	SourceNodeID     string            `json:"source_node_id"`
	TargetNodeID     string            `json:"target_node_id"`
	RelationshipType string            `json:"relationship_type"`
	Strength         float64           `json:"strength"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// SyncStatus is the per-world sync bookkeeping record. Mutual exclusion
// itself rides on the lease table; InProgress mirrors it for observability.
type SyncStatus struct {
	WorldID             string     `json:"world_id"`
	LastFullSync        *time.Time `json:"last_full_sync,omitempty"`
	LastIncrementalSync *time.Time `json:"last_incremental_sync,omitempty"`
	NodeCount           int64      `json:"node_count"`
	EdgeCount           int64      `json:"edge_count"`
	InProgress          bool       `json:"sync_in_progress"`
	LastError           string     `json:"last_error,omitempty"`
}

// Sync outcome states.
const (
	SyncCompleted = "completed"
	SyncSkipped   = "skipped"
	SyncFailed    = "error"
)

// SyncResult reports what a single sync run did. A "skipped" result means
// another sync already held the world's lease; it is a defined outcome,
// not an error.
type SyncResult struct {
	Status       string   `json:"status"`
	NodesCreated int      `json:"nodes_created"`
	NodesUpdated int      `json:"nodes_updated"`
	EdgesCreated int      `json:"edges_created"`
	Errors       []string `json:"errors,omitempty"`
	Message      string   `json:"message,omitempty"`
}
