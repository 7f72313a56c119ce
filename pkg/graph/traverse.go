package graph

import (
	"context"

	"github.com/fablekit/worldgraph/pkg/common"
)

// TraverseParams are the inputs to FindRelatedEntities. An empty
// RelationshipTypes means every edge family is traversable.
type TraverseParams struct {
	WorldID           string            `json:"world_id" validate:"required"`
	EntityType        common.EntityKind `json:"entity_type" validate:"required"`
	EntityID          string            `json:"entity_id" validate:"required"`
	Depth             int               `json:"depth" validate:"gte=0"`
	RelationshipTypes []string          `json:"relationship_types,omitempty"`
}

// Subgraph is the induced subgraph around a seed node: the visited nodes
// (seed included) and every stored edge whose both endpoints were visited.
type Subgraph struct {
	Nodes []common.GraphNode `json:"nodes"`
	Edges []common.GraphEdge `json:"edges"`
}

// BeatContext buckets a beat's 1-hop neighborhood by entity kind.
type BeatContext struct {
	Characters   []common.GraphNode `json:"characters"`
	Locations    []common.GraphNode `json:"locations"`
	Events       []common.GraphNode `json:"events"`
	RelatedBeats []common.GraphNode `json:"related_beats"`
}

// CharacterArc enumerates the beats a character appears in.
type CharacterArc struct {
	Appearances int                `json:"appearances"`
	Beats       []common.GraphNode `json:"beats"`
}

// FindRelatedEntities expands breadth-first from the seed node up to
// Depth hops, following edges in both directions, and returns the induced
// subgraph over the visited nodes. A missing seed ("entity not yet
// synced") yields an empty subgraph, not an error. Like search, traversal
// reads concurrently with syncs and may observe a partially updated graph.
func (e *Engine) FindRelatedEntities(ctx context.Context, params TraverseParams) (*Subgraph, error) {
	if err := e.validate.Struct(params); err != nil {
		return nil, err
	}

	seed, err := e.store.GetNodeByKey(ctx, params.WorldID, params.EntityType, params.EntityID)
	if err != nil {
		return nil, err
	}
	if seed == nil {
		return &Subgraph{Nodes: []common.GraphNode{}, Edges: []common.GraphEdge{}}, nil
	}

	wantRel := make(map[string]bool, len(params.RelationshipTypes))
	for _, rel := range params.RelationshipTypes {
		wantRel[rel] = true
	}

	visited := map[string]bool{seed.ID: true}
	edgesByNode := make(map[string][]common.GraphEdge)
	frontier := []string{seed.ID}

	for hop := 0; hop < params.Depth && len(frontier) > 0; hop++ {
		var next []string
		for _, nodeID := range frontier {
			edges, err := e.store.ListEdgesForNode(ctx, params.WorldID, nodeID)
			if err != nil {
				return nil, err
			}
			edgesByNode[nodeID] = edges
			for _, edge := range edges {
				if len(wantRel) > 0 && !wantRel[edge.RelationshipType] {
					continue
				}
				neighbor := edge.TargetNodeID
				if neighbor == nodeID {
					neighbor = edge.SourceNodeID
				}
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	// The induced edge set needs every visited node's adjacency, including
	// nodes discovered on the final hop that the BFS never expanded.
	seen := make(map[string]bool)
	var edges []common.GraphEdge
	for nodeID := range visited {
		nodeEdges, ok := edgesByNode[nodeID]
		if !ok {
			nodeEdges, err = e.store.ListEdgesForNode(ctx, params.WorldID, nodeID)
			if err != nil {
				return nil, err
			}
		}
		for _, edge := range nodeEdges {
			if seen[edge.ID] {
				continue
			}
			if !visited[edge.SourceNodeID] || !visited[edge.TargetNodeID] {
				continue
			}
			seen[edge.ID] = true
			edges = append(edges, edge)
		}
	}

	ids := make([]string, 0, len(visited))
	for nodeID := range visited {
		ids = append(ids, nodeID)
	}
	nodes, err := e.store.GetNodesByIDs(ctx, params.WorldID, ids)
	if err != nil {
		return nil, err
	}

	if edges == nil {
		edges = []common.GraphEdge{}
	}
	return &Subgraph{Nodes: nodes, Edges: edges}, nil
}

// ContextForBeat collects the beat's direct neighborhood bucketed by
// entity kind, each bucket capped at maxEntities. A beat with no node
// yields empty buckets.
func (e *Engine) ContextForBeat(ctx context.Context, worldID string, beatID string, maxEntities int) (*BeatContext, error) {
	sub, err := e.FindRelatedEntities(ctx, TraverseParams{
		WorldID:    worldID,
		EntityType: common.KindBeat,
		EntityID:   beatID,
		Depth:      1,
	})
	if err != nil {
		return nil, err
	}

	out := &BeatContext{
		Characters:   []common.GraphNode{},
		Locations:    []common.GraphNode{},
		Events:       []common.GraphNode{},
		RelatedBeats: []common.GraphNode{},
	}
	for _, node := range sub.Nodes {
		if node.EntityType == common.KindBeat && node.EntityID == beatID {
			continue
		}
		switch node.EntityType {
		case common.KindCharacter:
			out.Characters = capAppend(out.Characters, node, maxEntities)
		case common.KindLocation:
			out.Locations = capAppend(out.Locations, node, maxEntities)
		case common.KindEvent:
			out.Events = capAppend(out.Events, node, maxEntities)
		case common.KindBeat:
			out.RelatedBeats = capAppend(out.RelatedBeats, node, maxEntities)
		}
	}
	return out, nil
}

// ArcForCharacter follows the character's "appears_in" edges to the beats
// it appears in. A character with no node yields an empty arc.
func (e *Engine) ArcForCharacter(ctx context.Context, worldID string, characterID string) (*CharacterArc, error) {
	sub, err := e.FindRelatedEntities(ctx, TraverseParams{
		WorldID:           worldID,
		EntityType:        common.KindCharacter,
		EntityID:          characterID,
		Depth:             1,
		RelationshipTypes: []string{common.RelAppearsIn},
	})
	if err != nil {
		return nil, err
	}

	arc := &CharacterArc{Beats: []common.GraphNode{}}
	for _, node := range sub.Nodes {
		if node.EntityType != common.KindBeat {
			continue
		}
		arc.Beats = append(arc.Beats, node)
	}
	arc.Appearances = len(arc.Beats)
	return arc, nil
}

func capAppend(list []common.GraphNode, node common.GraphNode, max int) []common.GraphNode {
	if max > 0 && len(list) >= max {
		return list
	}
	return append(list, node)
}
