package graph

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/fablekit/worldgraph/pkg/common"
	"github.com/fablekit/worldgraph/pkg/logger"
)

const defaultSearchLimit = 10

// SearchParams are the inputs to SemanticSearch. An empty EntityTypes
// means all kinds. A zero Limit falls back to the default of 10.
type SearchParams struct {
	WorldID       string              `json:"world_id" validate:"required"`
	Query         string              `json:"query"`
	EntityTypes   []common.EntityKind `json:"entity_types,omitempty"`
	Limit         int                 `json:"limit" validate:"gte=0"`
	MinSimilarity float64             `json:"min_similarity" validate:"gte=0,lte=1"`
}

// SearchResult is one ranked hit of a semantic search.
type SearchResult struct {
	EntityType common.EntityKind `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Summary    string            `json:"summary"`
	Importance float64           `json:"importance"`
	Similarity float64           `json:"similarity"`
}

// SemanticSearch embeds the query and ranks the world's nodes by cosine
// similarity, highest first, with importance breaking ties. A blank query
// or a failed query embedding yields an empty result list, not an error.
// Results run concurrently with syncs and may observe a partially updated
// graph.
func (e *Engine) SemanticSearch(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	if err := e.validate.Struct(params); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Query) == "" {
		return []SearchResult{}, nil
	}

	queryVec, err := e.aiClient.GenerateEmbedding(ctx, []byte(params.Query))
	if err != nil {
		logger.Warn("[Graph][Search] Query embedding failed", "world_id", params.WorldID, "err", err)
		return []SearchResult{}, nil
	}
	if len(queryVec) == 0 || isZeroVector(queryVec) {
		return []SearchResult{}, nil
	}

	// A single requested kind is pushed down to the store; multiple kinds
	// are filtered in memory after one load.
	var listKind common.EntityKind
	if len(params.EntityTypes) == 1 {
		listKind = params.EntityTypes[0]
	}
	nodes, err := e.store.ListNodes(ctx, params.WorldID, listKind)
	if err != nil {
		return nil, err
	}

	wantKind := make(map[common.EntityKind]bool, len(params.EntityTypes))
	for _, kind := range params.EntityTypes {
		wantKind[kind] = true
	}

	results := make([]SearchResult, 0, len(nodes))
	for _, node := range nodes {
		if len(wantKind) > 0 && !wantKind[node.EntityType] {
			continue
		}
		if len(node.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(queryVec, node.Embedding)
		if sim < params.MinSimilarity {
			continue
		}
		results = append(results, SearchResult{
			EntityType: node.EntityType,
			EntityID:   node.EntityID,
			Summary:    node.SemanticSummary,
			Importance: node.ImportanceScore,
			Similarity: sim,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Importance > results[j].Importance
	})

	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// cosineSimilarity returns dot(a,b) / (|a|*|b|). Mismatched dimensions or
// a zero-norm vector on either side score 0.0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
