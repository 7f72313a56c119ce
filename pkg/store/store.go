package store

import (
	"context"

	"github.com/fablekit/worldgraph/pkg/common"
)

// GraphStore is the persistence surface for world knowledge graphs.
// Lookups return (nil, nil) when the record does not exist; "not yet
// synced" is an expected condition for callers, not an error.
type GraphStore interface {
	// UpsertNode inserts or updates the node keyed by
	// (world_id, entity_type, entity_id) and reports whether a new row was
	// created. The node's ID is assigned on creation and preserved on update.
	UpsertNode(ctx context.Context, node *common.GraphNode) (created bool, err error)
	GetNodeByKey(ctx context.Context, worldID string, kind common.EntityKind, entityID string) (*common.GraphNode, error)
	// GetNodesByIDs returns the world's nodes whose ids appear in ids.
	// Missing ids are silently omitted.
	GetNodesByIDs(ctx context.Context, worldID string, ids []string) ([]common.GraphNode, error)
	// ListNodes returns all nodes of a world, optionally limited to one
	// entity kind when kind is non-empty.
	ListNodes(ctx context.Context, worldID string, kind common.EntityKind) ([]common.GraphNode, error)
	DeleteWorldNodes(ctx context.Context, worldID string) error
	CountNodes(ctx context.Context, worldID string) (int64, error)

	AddEdge(ctx context.Context, edge *common.GraphEdge) error
	// ListEdgesForNode returns every edge touching the node, incoming and
	// outgoing.
	ListEdgesForNode(ctx context.Context, worldID string, nodeID string) ([]common.GraphEdge, error)
	DeleteWorldEdges(ctx context.Context, worldID string) error
	CountEdges(ctx context.Context, worldID string) (int64, error)

	GetSyncStatus(ctx context.Context, worldID string) (*common.SyncStatus, error)
	SaveSyncStatus(ctx context.Context, status *common.SyncStatus) error
}

// ChunkRange invokes fn over [start,end) windows of size chunk covering n
// items. Used to bound batch sizes for embedding calls and bulk writes.
func ChunkRange(n int, chunk int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	if chunk <= 0 {
		chunk = n
	}
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}
