package graph

import (
	"context"
	"fmt"

	"github.com/fablekit/worldgraph/pkg/common"
)

// Edge strengths per relationship family.
const (
	strengthKnows     = 0.8
	strengthMention   = 0.7
	strengthHierarchy = 1.0
)

// buildRelationshipEdges emits one "knows" edge per direction for every
// explicit character relationship. Relationships whose endpoints have no
// node (the character record disappeared between reads) are skipped
// silently; edge write failures are recorded and do not abort the pass.
func (e *Engine) buildRelationshipEdges(
	ctx context.Context,
	worldID string,
	snap *worldSnapshot,
	index map[common.EntityKind]map[string]string,
	res *common.SyncResult,
) {
	characters := index[common.KindCharacter]
	for _, rel := range snap.relations {
		sourceID, okA := characters[rel.CharacterAID]
		targetID, okB := characters[rel.CharacterBID]
		if !okA || !okB {
			continue
		}
		meta := map[string]string{"relationship_type": rel.Type}
		if rel.Description != "" {
			meta["description"] = rel.Description
		}
		e.addEdge(ctx, worldID, sourceID, targetID, common.RelKnows, strengthKnows, meta, res)
		e.addEdge(ctx, worldID, targetID, sourceID, common.RelKnows, strengthKnows, meta, res)
	}
}

// buildMentionEdges emits a "mentions" edge from each beat to every entity
// its text references, plus the reverse "appears_in" edge. Mentions of
// entities with no node are skipped silently.
func (e *Engine) buildMentionEdges(
	ctx context.Context,
	worldID string,
	snap *worldSnapshot,
	index map[common.EntityKind]map[string]string,
	res *common.SyncResult,
) {
	beats := index[common.KindBeat]
	for beatID, mentions := range snap.mentions {
		beatNodeID, ok := beats[beatID]
		if !ok {
			continue
		}
		for _, mention := range mentions {
			entityNodeID, ok := index[mention.EntityKind][mention.EntityID]
			if !ok {
				continue
			}
			var meta map[string]string
			if mention.Subtype != "" {
				meta = map[string]string{"mention_type": mention.Subtype}
			}
			e.addEdge(ctx, worldID, beatNodeID, entityNodeID, common.RelMentions, strengthMention, meta, res)
			e.addEdge(ctx, worldID, entityNodeID, beatNodeID, common.RelAppearsIn, strengthMention, meta, res)
		}
	}
}

// buildHierarchyEdges emits structural edges: "contains" from a parent
// location to each child, "contains" from a story to each of its beats,
// and "part_of" from each beat back to its story.
func (e *Engine) buildHierarchyEdges(
	ctx context.Context,
	worldID string,
	snap *worldSnapshot,
	index map[common.EntityKind]map[string]string,
	res *common.SyncResult,
) {
	locations := index[common.KindLocation]
	for _, loc := range snap.locations {
		if loc.ParentID == "" {
			continue
		}
		parentID, okP := locations[loc.ParentID]
		childID, okC := locations[loc.ID]
		if !okP || !okC {
			continue
		}
		e.addEdge(ctx, worldID, parentID, childID, common.RelContains, strengthHierarchy, nil, res)
	}

	stories := index[common.KindStory]
	beats := index[common.KindBeat]
	for _, beat := range snap.beats {
		storyNodeID, okS := stories[beat.StoryID]
		beatNodeID, okB := beats[beat.ID]
		if !okS || !okB {
			continue
		}
		e.addEdge(ctx, worldID, storyNodeID, beatNodeID, common.RelContains, strengthHierarchy, nil, res)
		e.addEdge(ctx, worldID, beatNodeID, storyNodeID, common.RelPartOf, strengthHierarchy, nil, res)
	}
}

func (e *Engine) addEdge(
	ctx context.Context,
	worldID string,
	sourceID string,
	targetID string,
	relType string,
	strength float64,
	meta map[string]string,
	res *common.SyncResult,
) {
	edge := &common.GraphEdge{
		WorldID:          worldID,
		SourceNodeID:     sourceID,
		TargetNodeID:     targetID,
		RelationshipType: relType,
		Strength:         strength,
		Metadata:         meta,
	}
	if err := e.store.AddEdge(ctx, edge); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("edge %s %s->%s: %v", relType, sourceID, targetID, err))
		return
	}
	res.EdgesCreated++
}
