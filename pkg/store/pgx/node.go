package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pgvector/pgvector-go"

	"github.com/fablekit/worldgraph/pkg/common"
)

const upsertNodeSQL = `
INSERT INTO world_graph_nodes
    (id, world_id, entity_type, entity_id, content_hash, embedding, semantic_summary, importance_score, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (world_id, entity_type, entity_id) DO UPDATE
SET content_hash     = EXCLUDED.content_hash,
    embedding        = EXCLUDED.embedding,
    semantic_summary = EXCLUDED.semantic_summary,
    importance_score = EXCLUDED.importance_score,
    updated_at       = now()
RETURNING id, (xmax = 0) AS inserted;
`

// UpsertNode inserts or updates a node by its (world, type, entity) key.
// The stored row keeps its original id across updates; node.ID is set to
// that id on return.
func (s *GraphDBStorage) UpsertNode(ctx context.Context, node *common.GraphNode) (bool, error) {
	if node.WorldID == "" || node.EntityType == "" || node.EntityID == "" {
		return false, fmt.Errorf("node key is incomplete: world=%q type=%q entity=%q",
			node.WorldID, node.EntityType, node.EntityID)
	}

	if node.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return false, err
		}
		node.ID = id
	}

	var embedding any
	if len(node.Embedding) > 0 {
		embedding = pgvector.NewVector(node.Embedding)
	}

	var (
		id       string
		inserted bool
	)
	err := s.conn.QueryRow(ctx, upsertNodeSQL,
		node.ID, node.WorldID, string(node.EntityType), node.EntityID,
		node.ContentHash, embedding, node.SemanticSummary, node.ImportanceScore,
	).Scan(&id, &inserted)
	if err != nil {
		return false, err
	}
	node.ID = id
	return inserted, nil
}

const selectNodeColumns = `
SELECT id, world_id, entity_type, entity_id, content_hash, embedding, semantic_summary, importance_score
FROM world_graph_nodes
`

// GetNodeByKey fetches a node by its upsert key. Returns (nil, nil) when no
// node exists for the key.
func (s *GraphDBStorage) GetNodeByKey(
	ctx context.Context,
	worldID string,
	kind common.EntityKind,
	entityID string,
) (*common.GraphNode, error) {
	row := s.conn.QueryRow(ctx,
		selectNodeColumns+`WHERE world_id = $1 AND entity_type = $2 AND entity_id = $3`,
		worldID, string(kind), entityID,
	)
	node, err := scanNode(row)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return node, nil
}

// GetNodesByIDs returns the world's nodes whose ids appear in ids. Missing
// ids are silently omitted.
func (s *GraphDBStorage) GetNodesByIDs(
	ctx context.Context,
	worldID string,
	ids []string,
) ([]common.GraphNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx,
		selectNodeColumns+`WHERE world_id = $1 AND id = ANY($2) ORDER BY id`,
		worldID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make([]common.GraphNode, 0, len(ids))
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// ListNodes returns all nodes of a world, limited to one entity kind when
// kind is non-empty.
func (s *GraphDBStorage) ListNodes(
	ctx context.Context,
	worldID string,
	kind common.EntityKind,
) ([]common.GraphNode, error) {
	var (
		rows pgxv5.Rows
		err  error
	)
	if kind != "" {
		rows, err = s.conn.Query(ctx,
			selectNodeColumns+`WHERE world_id = $1 AND entity_type = $2 ORDER BY id`,
			worldID, string(kind),
		)
	} else {
		rows, err = s.conn.Query(ctx,
			selectNodeColumns+`WHERE world_id = $1 ORDER BY id`,
			worldID,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make([]common.GraphNode, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// DeleteWorldNodes removes every node of a world. Edges reference nodes, so
// callers delete edges first.
func (s *GraphDBStorage) DeleteWorldNodes(ctx context.Context, worldID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM world_graph_nodes WHERE world_id = $1`, worldID)
	return err
}

func (s *GraphDBStorage) CountNodes(ctx context.Context, worldID string) (int64, error) {
	var count int64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM world_graph_nodes WHERE world_id = $1`, worldID,
	).Scan(&count)
	return count, err
}

func scanNode(row pgxv5.Row) (*common.GraphNode, error) {
	var (
		node       common.GraphNode
		entityType string
		embedding  *pgvector.Vector
	)
	err := row.Scan(
		&node.ID, &node.WorldID, &entityType, &node.EntityID,
		&node.ContentHash, &embedding, &node.SemanticSummary, &node.ImportanceScore,
	)
	if err != nil {
		return nil, err
	}
	node.EntityType = common.EntityKind(entityType)
	if embedding != nil {
		node.Embedding = embedding.Slice()
	}
	return &node, nil
}
