package graph

import (
	"context"
	"errors"
	"time"

	"github.com/fablekit/worldgraph/pkg/common"
	"github.com/fablekit/worldgraph/pkg/leaselock"
	"github.com/fablekit/worldgraph/pkg/logger"
)

// SyncWorldGraph rebuilds or incrementally updates a world's knowledge
// graph. A full rebuild clears the world's graph first; an incremental sync
// reuses unchanged nodes and reprocesses only changed or new entities.
//
// At most one sync runs per world: if another sync holds the world's lease
// the call returns a "skipped" result immediately. A fatal error aborts the
// current sync only, is recorded as the world's last_error, and releases
// the lease; all writes are idempotent upserts, so no partial state needs
// repair.
func (e *Engine) SyncWorldGraph(ctx context.Context, worldID string, fullRebuild bool) (*common.SyncResult, error) {
	if worldID == "" {
		return nil, errors.New("world id is empty")
	}

	lease, err := e.locks.AcquireWorld(ctx, worldID)
	if err != nil {
		if errors.Is(err, leaselock.ErrBusy) {
			logger.Info("[Graph][Sync] Sync already in progress, skipping", "world_id", worldID)
			return &common.SyncResult{
				Status:  common.SyncSkipped,
				Message: "sync already in progress for world",
			}, nil
		}
		return nil, err
	}
	defer func() {
		_ = lease.Release(context.Background())
	}()
	syncCtx := lease.Ctx()

	startedAt := time.Now().UTC()
	logger.Info("[Graph][Sync] Starting", "world_id", worldID, "full_rebuild", fullRebuild)

	status, err := e.store.GetSyncStatus(syncCtx, worldID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		status = &common.SyncStatus{WorldID: worldID}
	}
	status.InProgress = true
	status.LastError = ""
	if err := e.store.SaveSyncStatus(syncCtx, status); err != nil {
		return nil, err
	}

	res := &common.SyncResult{Status: common.SyncCompleted}
	syncErr := e.runSync(syncCtx, worldID, fullRebuild, res)

	if syncErr != nil {
		res.Status = common.SyncFailed
		res.Message = syncErr.Error()
		status.LastError = syncErr.Error()
		logger.Error("[Graph][Sync] Failed", "world_id", worldID, "err", syncErr)
	} else {
		if fullRebuild {
			status.LastFullSync = &startedAt
		} else {
			status.LastIncrementalSync = &startedAt
		}
		logger.Info("[Graph][Sync] Completed",
			"world_id", worldID,
			"nodes_created", res.NodesCreated,
			"nodes_updated", res.NodesUpdated,
			"edges_created", res.EdgesCreated,
			"errors", len(res.Errors),
		)
	}
	status.InProgress = false

	// The sync context may already be dead (cancellation, lost lease); the
	// bookkeeping write gets its own deadline so the flag never sticks.
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if count, err := e.store.CountNodes(finishCtx, worldID); err == nil {
		status.NodeCount = count
	}
	if count, err := e.store.CountEdges(finishCtx, worldID); err == nil {
		status.EdgeCount = count
	}
	if err := e.store.SaveSyncStatus(finishCtx, status); err != nil {
		logger.Warn("[Graph][Sync] Failed to save sync status", "world_id", worldID, "err", err)
	}

	return res, syncErr
}

// worldSnapshot is one consistent read of a world's source entities.
type worldSnapshot struct {
	characters []common.Character
	locations  []common.Location
	events     []common.Event
	stories    []common.Story
	beats      []common.Beat
	relations  []common.CharacterRelationship
	mentions   map[string][]common.BeatMention
}

func (e *Engine) runSync(ctx context.Context, worldID string, fullRebuild bool, res *common.SyncResult) error {
	if fullRebuild {
		// Edges reference nodes, so they go first.
		if err := e.store.DeleteWorldEdges(ctx, worldID); err != nil {
			return err
		}
		if err := e.store.DeleteWorldNodes(ctx, worldID); err != nil {
			return err
		}
	}

	snap, err := e.readWorld(ctx, worldID)
	if err != nil {
		return err
	}

	for _, kind := range common.SyncOrder {
		if err := e.syncKindNodes(ctx, worldID, kind, snap.sourcesOf(kind), res); err != nil {
			return err
		}
	}

	// Edges are always cleared and re-derived, full rebuild or not, so
	// repeated incremental syncs cannot accumulate duplicates.
	if !fullRebuild {
		if err := e.store.DeleteWorldEdges(ctx, worldID); err != nil {
			return err
		}
	}

	index, err := e.nodeIndex(ctx, worldID)
	if err != nil {
		return err
	}

	e.buildRelationshipEdges(ctx, worldID, snap, index, res)
	e.buildMentionEdges(ctx, worldID, snap, index, res)
	e.buildHierarchyEdges(ctx, worldID, snap, index, res)

	return nil
}

func (e *Engine) readWorld(ctx context.Context, worldID string) (*worldSnapshot, error) {
	snap := &worldSnapshot{mentions: make(map[string][]common.BeatMention)}

	var err error
	if snap.characters, err = e.reader.ListCharacters(ctx, worldID); err != nil {
		return nil, err
	}
	if snap.locations, err = e.reader.ListLocations(ctx, worldID); err != nil {
		return nil, err
	}
	if snap.events, err = e.reader.ListEvents(ctx, worldID); err != nil {
		return nil, err
	}
	if snap.stories, err = e.reader.ListStories(ctx, worldID); err != nil {
		return nil, err
	}
	if snap.relations, err = e.reader.ListRelationships(ctx, worldID); err != nil {
		return nil, err
	}

	for _, story := range snap.stories {
		beats, err := e.reader.ListBeats(ctx, story.ID)
		if err != nil {
			return nil, err
		}
		snap.beats = append(snap.beats, beats...)
	}
	for _, beat := range snap.beats {
		mentions, err := e.reader.ListMentions(ctx, beat.ID)
		if err != nil {
			return nil, err
		}
		if len(mentions) > 0 {
			snap.mentions[beat.ID] = mentions
		}
	}

	return snap, nil
}

func (s *worldSnapshot) sourcesOf(kind common.EntityKind) []common.Source {
	switch kind {
	case common.KindCharacter:
		out := make([]common.Source, len(s.characters))
		for i := range s.characters {
			out[i] = s.characters[i]
		}
		return out
	case common.KindLocation:
		out := make([]common.Source, len(s.locations))
		for i := range s.locations {
			out[i] = s.locations[i]
		}
		return out
	case common.KindEvent:
		out := make([]common.Source, len(s.events))
		for i := range s.events {
			out[i] = s.events[i]
		}
		return out
	case common.KindStory:
		out := make([]common.Source, len(s.stories))
		for i := range s.stories {
			out[i] = s.stories[i]
		}
		return out
	case common.KindBeat:
		out := make([]common.Source, len(s.beats))
		for i := range s.beats {
			out[i] = s.beats[i]
		}
		return out
	default:
		return nil
	}
}

// nodeIndex maps (kind, entity id) to the stored node id so the edge
// builders can resolve endpoints without further queries.
func (e *Engine) nodeIndex(ctx context.Context, worldID string) (map[common.EntityKind]map[string]string, error) {
	nodes, err := e.store.ListNodes(ctx, worldID, "")
	if err != nil {
		return nil, err
	}
	index := make(map[common.EntityKind]map[string]string)
	for _, node := range nodes {
		byEntity, ok := index[node.EntityType]
		if !ok {
			byEntity = make(map[string]string)
			index[node.EntityType] = byEntity
		}
		byEntity[node.EntityID] = node.ID
	}
	return index, nil
}
