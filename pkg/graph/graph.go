package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator"

	"github.com/fablekit/worldgraph/internal/util"
	"github.com/fablekit/worldgraph/pkg/ai"
	"github.com/fablekit/worldgraph/pkg/leaselock"
	"github.com/fablekit/worldgraph/pkg/source"
	"github.com/fablekit/worldgraph/pkg/store"
)

// Lease is a held per-world sync lock. Context is cancelled when the lease
// is lost; the sync runs under it.
type Lease interface {
	Ctx() context.Context
	Release(ctx context.Context) error
}

// Locker serializes syncs per world. AcquireWorld returns
// leaselock.ErrBusy when a sync is already in flight, which the engine
// maps to a "skipped" sync result.
type Locker interface {
	AcquireWorld(ctx context.Context, worldID string) (Lease, error)
}

// Engine is the world knowledge-graph engine: it keeps each world's graph
// synchronized with its source entities and answers similarity and
// relationship queries over it. Search and traversal are pure readers and
// may run concurrently with a sync, observing a partially updated graph;
// callers get eventual consistency with the most recent successful sync.
type Engine struct {
	store    store.GraphStore
	reader   source.Reader
	aiClient ai.GraphAIClient
	locks    Locker

	validate *validator.Validate

	embedBatch  int
	maxParallel int
}

// NewEngineParams wires the engine's collaborators.
type NewEngineParams struct {
	Store    store.GraphStore
	Reader   source.Reader
	AIClient ai.GraphAIClient
	Locks    Locker
}

// NewEngine creates an Engine. Batch size and provider parallelism come
// from AI_EMBED_BATCH and AI_PARALLEL_REQ.
func NewEngine(params NewEngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if params.AIClient == nil {
		return nil, fmt.Errorf("ai client is required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("locker is required")
	}

	return &Engine{
		store:    params.Store,
		reader:   params.Reader,
		aiClient: params.AIClient,
		locks:    params.Locks,

		validate: validator.New(),

		embedBatch:  int(util.GetEnvNumeric("AI_EMBED_BATCH", 64)),
		maxParallel: int(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
	}, nil
}

// LeaseLocker adapts a leaselock.Client to the engine's Locker interface,
// one lease key per world.
type LeaseLocker struct {
	client *leaselock.Client
	ttl    time.Duration
}

// NewLeaseLocker creates a LeaseLocker. A zero ttl falls back to
// SYNC_LEASE_TTL_MIN (default 10 minutes).
func NewLeaseLocker(client *leaselock.Client, ttl time.Duration) *LeaseLocker {
	if ttl <= 0 {
		ttl = time.Minute * time.Duration(util.GetEnvNumeric("SYNC_LEASE_TTL_MIN", 10))
	}
	return &LeaseLocker{client: client, ttl: ttl}
}

func (l *LeaseLocker) AcquireWorld(ctx context.Context, worldID string) (Lease, error) {
	lease, err := l.client.Acquire(ctx, "world_graph_sync:"+worldID, leaselock.Options{
		TTL:         l.ttl,
		TokenPrefix: "sync_",
	})
	if err != nil {
		return nil, err
	}
	return &heldLease{lease: lease}, nil
}

type heldLease struct {
	lease *leaselock.Lease
}

func (h *heldLease) Ctx() context.Context              { return h.lease.Context }
func (h *heldLease) Release(ctx context.Context) error { return h.lease.Release(ctx) }
