package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/fablekit/worldgraph/pkg/common"
)

const insertEdgeSQL = `
INSERT INTO world_graph_edges
    (id, world_id, source_node_id, target_node_id, relationship_type, strength, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`

// AddEdge inserts a directed edge. Both endpoints must already exist in the
// same world; the foreign keys reject dangling references.
func (s *GraphDBStorage) AddEdge(ctx context.Context, edge *common.GraphEdge) error {
	if edge.SourceNodeID == "" || edge.TargetNodeID == "" {
		return fmt.Errorf("edge endpoints are incomplete: source=%q target=%q",
			edge.SourceNodeID, edge.TargetNodeID)
	}

	if edge.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		edge.ID = id
	}

	var metadata any
	if len(edge.Metadata) > 0 {
		raw, err := json.Marshal(edge.Metadata)
		if err != nil {
			return err
		}
		metadata = raw
	}

	_, err := s.conn.Exec(ctx, insertEdgeSQL,
		edge.ID, edge.WorldID, edge.SourceNodeID, edge.TargetNodeID,
		edge.RelationshipType, edge.Strength, metadata,
	)
	return err
}

const listEdgesForNodeSQL = `
SELECT id, world_id, source_node_id, target_node_id, relationship_type, strength, metadata
FROM world_graph_edges
WHERE world_id = $1 AND (source_node_id = $2 OR target_node_id = $2)
ORDER BY id;
`

// ListEdgesForNode returns every edge touching the node, incoming and
// outgoing.
func (s *GraphDBStorage) ListEdgesForNode(
	ctx context.Context,
	worldID string,
	nodeID string,
) ([]common.GraphEdge, error) {
	rows, err := s.conn.Query(ctx, listEdgesForNodeSQL, worldID, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := make([]common.GraphEdge, 0)
	for rows.Next() {
		var (
			edge common.GraphEdge
			raw  []byte
		)
		err := rows.Scan(
			&edge.ID, &edge.WorldID, &edge.SourceNodeID, &edge.TargetNodeID,
			&edge.RelationshipType, &edge.Strength, &raw,
		)
		if err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &edge.Metadata); err != nil {
				return nil, err
			}
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// DeleteWorldEdges removes every edge of a world.
func (s *GraphDBStorage) DeleteWorldEdges(ctx context.Context, worldID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM world_graph_edges WHERE world_id = $1`, worldID)
	return err
}

func (s *GraphDBStorage) CountEdges(ctx context.Context, worldID string) (int64, error) {
	var count int64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM world_graph_edges WHERE world_id = $1`, worldID,
	).Scan(&count)
	return count, err
}
