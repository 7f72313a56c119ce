package graph

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fablekit/worldgraph/internal/util"
	"github.com/fablekit/worldgraph/pkg/ai"
	"github.com/fablekit/worldgraph/pkg/common"
	"github.com/fablekit/worldgraph/pkg/logger"
	"github.com/fablekit/worldgraph/pkg/store"
)

// Provider calls retry transiently before the engine degrades to absent
// embeddings or fallback summaries.
const maxProviderRetries = 3

// pendingEntity is a changed or new source entity awaiting embedding,
// summary and upsert. existing is nil for new entities.
type pendingEntity struct {
	src      common.Source
	hash     string
	existing *common.GraphNode
}

// syncKindNodes brings one entity kind's nodes in line with the source
// entities. Entities whose content hash matches the stored node are skipped
// outright: no provider calls, no writes. Changed and new entities get
// batched embeddings, a generated summary, and an upsert.
func (e *Engine) syncKindNodes(
	ctx context.Context,
	worldID string,
	kind common.EntityKind,
	sources []common.Source,
	res *common.SyncResult,
) error {
	if len(sources) == 0 {
		return nil
	}

	existing, err := e.store.ListNodes(ctx, worldID, kind)
	if err != nil {
		return err
	}
	byEntity := make(map[string]*common.GraphNode, len(existing))
	for i := range existing {
		byEntity[existing[i].EntityID] = &existing[i]
	}

	changed := make([]pendingEntity, 0, len(sources))
	for _, src := range sources {
		hash := common.HashContent(src.HashInput())
		node := byEntity[src.EntityID()]
		if node != nil && node.ContentHash == hash {
			continue
		}
		changed = append(changed, pendingEntity{src: src, hash: hash, existing: node})
	}
	if len(changed) == 0 {
		logger.Debug("[Graph][Sync] No changes", "world_id", worldID, "entity_type", kind)
		return nil
	}
	logger.Debug("[Graph][Sync] Processing changed entities",
		"world_id", worldID, "entity_type", kind, "count", len(changed))

	embeddings := e.embedChanged(ctx, kind, changed)
	summaries := e.summarizeChanged(ctx, kind, changed)

	for i, p := range changed {
		node := &common.GraphNode{
			WorldID:         worldID,
			EntityType:      kind,
			EntityID:        p.src.EntityID(),
			ContentHash:     p.hash,
			Embedding:       embeddings[i],
			SemanticSummary: summaries[i],
			ImportanceScore: p.src.Importance(),
		}
		if p.existing != nil {
			node.ID = p.existing.ID
		}

		created, err := e.store.UpsertNode(ctx, node)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", kind, p.src.EntityID(), err))
			continue
		}
		if created {
			res.NodesCreated++
		} else {
			res.NodesUpdated++
		}
	}
	return nil
}

// embedChanged generates embeddings for the changed entities, one provider
// call per batch, batches issued concurrently up to the engine's
// parallelism limit. A failed batch degrades to absent embeddings for its
// entities rather than aborting the kind. The result is index-aligned with
// changed.
func (e *Engine) embedChanged(ctx context.Context, kind common.EntityKind, changed []pendingEntity) [][]float32 {
	out := make([][]float32, len(changed))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(e.maxParallel)
	_ = store.ChunkRange(len(changed), e.embedBatch, func(start, end int) error {
		eg.Go(func() error {
			inputs := make([][]byte, end-start)
			for i := start; i < end; i++ {
				inputs[i-start] = []byte(changed[i].src.DisplayText())
			}
			vectors, err := util.RetryWithContext(ectx, maxProviderRetries, func(ctx context.Context) ([][]float32, error) {
				return e.aiClient.GenerateEmbeddings(ctx, inputs)
			})
			if err != nil {
				logger.Warn("[Graph][Sync] Embedding batch failed, continuing without embeddings",
					"entity_type", kind, "batch_size", end-start, "err", err)
				return nil
			}
			for i := range vectors {
				if isZeroVector(vectors[i]) {
					continue
				}
				out[start+i] = vectors[i]
			}
			return nil
		})
		return nil
	})
	_ = eg.Wait()

	return out
}

// summarizeChanged generates a semantic summary per changed entity,
// requests issued concurrently up to the engine's parallelism limit. A
// failed or blank completion falls back to the deterministic "Kind: Name"
// label. The result is index-aligned with changed.
func (e *Engine) summarizeChanged(ctx context.Context, kind common.EntityKind, changed []pendingEntity) []string {
	out := make([]string, len(changed))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(e.maxParallel)
	for i := range changed {
		idx := i
		src := changed[i].src
		eg.Go(func() error {
			prompt := fmt.Sprintf(ai.SummaryPrompt, kind, src.DisplayText())
			summary, err := util.RetryWithContext(ectx, maxProviderRetries, func(ctx context.Context) (string, error) {
				return e.aiClient.GenerateCompletion(ctx, prompt)
			})
			if err != nil || strings.TrimSpace(summary) == "" {
				if err != nil {
					logger.Warn("[Graph][Sync] Summary generation failed, using fallback",
						"entity_type", kind, "entity_id", src.EntityID(), "err", err)
				}
				out[idx] = common.FallbackSummary(src)
				return nil
			}
			out[idx] = strings.TrimSpace(summary)
			return nil
		})
	}
	_ = eg.Wait()

	return out
}

func isZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
