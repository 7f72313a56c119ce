package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator"

	"github.com/fablekit/worldgraph/pkg/ai"
	"github.com/fablekit/worldgraph/pkg/common"
	"github.com/fablekit/worldgraph/pkg/leaselock"
	"github.com/fablekit/worldgraph/pkg/source"
)

// memStore is an in-memory GraphStore for engine tests.
type memStore struct {
	mu     sync.Mutex
	nextID int
	nodes  map[string]*common.GraphNode
	edges  map[string]*common.GraphEdge
	status map[string]*common.SyncStatus
}

func newMemStore() *memStore {
	return &memStore{
		nodes:  make(map[string]*common.GraphNode),
		edges:  make(map[string]*common.GraphEdge),
		status: make(map[string]*common.SyncStatus),
	}
}

func (s *memStore) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s%d", prefix, s.nextID)
}

func (s *memStore) UpsertNode(ctx context.Context, node *common.GraphNode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.nodes {
		if existing.WorldID == node.WorldID &&
			existing.EntityType == node.EntityType &&
			existing.EntityID == node.EntityID {
			node.ID = existing.ID
			cp := *node
			s.nodes[existing.ID] = &cp
			return false, nil
		}
	}
	node.ID = s.newID("n")
	cp := *node
	s.nodes[node.ID] = &cp
	return true, nil
}

func (s *memStore) GetNodeByKey(ctx context.Context, worldID string, kind common.EntityKind, entityID string) (*common.GraphNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, node := range s.nodes {
		if node.WorldID == worldID && node.EntityType == kind && node.EntityID == entityID {
			cp := *node
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetNodesByIDs(ctx context.Context, worldID string, ids []string) ([]common.GraphNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []common.GraphNode
	for _, node := range s.nodes {
		if node.WorldID == worldID && want[node.ID] {
			out = append(out, *node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListNodes(ctx context.Context, worldID string, kind common.EntityKind) ([]common.GraphNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []common.GraphNode
	for _, node := range s.nodes {
		if node.WorldID != worldID {
			continue
		}
		if kind != "" && node.EntityType != kind {
			continue
		}
		out = append(out, *node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) DeleteWorldNodes(ctx context.Context, worldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, node := range s.nodes {
		if node.WorldID == worldID {
			delete(s.nodes, id)
		}
	}
	return nil
}

func (s *memStore) CountNodes(ctx context.Context, worldID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, node := range s.nodes {
		if node.WorldID == worldID {
			count++
		}
	}
	return count, nil
}

func (s *memStore) AddEdge(ctx context.Context, edge *common.GraphEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge.ID = s.newID("e")
	cp := *edge
	s.edges[edge.ID] = &cp
	return nil
}

func (s *memStore) ListEdgesForNode(ctx context.Context, worldID string, nodeID string) ([]common.GraphEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []common.GraphEdge
	for _, edge := range s.edges {
		if edge.WorldID != worldID {
			continue
		}
		if edge.SourceNodeID != nodeID && edge.TargetNodeID != nodeID {
			continue
		}
		out = append(out, *edge)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) DeleteWorldEdges(ctx context.Context, worldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, edge := range s.edges {
		if edge.WorldID == worldID {
			delete(s.edges, id)
		}
	}
	return nil
}

func (s *memStore) CountEdges(ctx context.Context, worldID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, edge := range s.edges {
		if edge.WorldID == worldID {
			count++
		}
	}
	return count, nil
}

func (s *memStore) GetSyncStatus(ctx context.Context, worldID string) (*common.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.status[worldID]
	if !ok {
		return nil, nil
	}
	cp := *status
	return &cp, nil
}

func (s *memStore) SaveSyncStatus(ctx context.Context, status *common.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *status
	s.status[status.WorldID] = &cp
	return nil
}

func (s *memStore) allEdges(worldID string) []common.GraphEdge {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []common.GraphEdge
	for _, edge := range s.edges {
		if edge.WorldID == worldID {
			out = append(out, *edge)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fakeReader serves a fixed world snapshot.
type fakeReader struct {
	characters []common.Character
	locations  []common.Location
	events     []common.Event
	stories    []common.Story
	beats      map[string][]common.Beat
	relations  []common.CharacterRelationship
	mentions   map[string][]common.BeatMention
}

func (r *fakeReader) ListCharacters(ctx context.Context, worldID string) ([]common.Character, error) {
	return r.characters, nil
}

func (r *fakeReader) ListLocations(ctx context.Context, worldID string) ([]common.Location, error) {
	return r.locations, nil
}

func (r *fakeReader) ListEvents(ctx context.Context, worldID string) ([]common.Event, error) {
	return r.events, nil
}

func (r *fakeReader) ListStories(ctx context.Context, worldID string) ([]common.Story, error) {
	return r.stories, nil
}

func (r *fakeReader) ListBeats(ctx context.Context, storyID string) ([]common.Beat, error) {
	return r.beats[storyID], nil
}

func (r *fakeReader) ListRelationships(ctx context.Context, worldID string) ([]common.CharacterRelationship, error) {
	return r.relations, nil
}

func (r *fakeReader) ListMentions(ctx context.Context, beatID string) ([]common.BeatMention, error) {
	return r.mentions[beatID], nil
}

// gatedReader signals on entered when the first read starts and then
// blocks until release is closed, so a test can overlap two syncs at a
// known point.
type gatedReader struct {
	*fakeReader

	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gatedReader) ListCharacters(ctx context.Context, worldID string) ([]common.Character, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.fakeReader.ListCharacters(ctx, worldID)
}

// fakeAI returns canned embeddings keyed by input text. Inputs without an
// entry get the default vector.
type fakeAI struct {
	mu sync.Mutex

	vectors    map[string][]float32
	defaultVec []float32

	embedErr      error
	completionErr error

	// Transient failure budgets: the first N calls fail, later calls
	// succeed.
	embedFailures      int
	completionFailures int

	embedBatches    int
	embeddedTexts   []string
	completionCalls int
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completionCalls++
	if f.completionErr != nil {
		return "", f.completionErr
	}
	if f.completionFailures > 0 {
		f.completionFailures--
		return "", errors.New("transient completion failure")
	}
	return fmt.Sprintf("summary %d", f.completionCalls), nil
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	vecs, err := f.GenerateEmbeddings(ctx, [][]byte{input})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeAI) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedBatches++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.embedFailures > 0 {
		f.embedFailures--
		return nil, errors.New("transient embedding failure")
	}
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		f.embeddedTexts = append(f.embeddedTexts, string(input))
		if vec, ok := f.vectors[string(input)]; ok {
			out[i] = vec
			continue
		}
		if f.defaultVec != nil {
			out[i] = f.defaultVec
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func (f *fakeAI) ResetMetrics()               {}
func (f *fakeAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (f *fakeAI) embeddedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.embeddedTexts)
}

// fakeLocker grants leases unless a world is marked busy.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) AcquireWorld(ctx context.Context, worldID string) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[worldID] {
		return nil, leaselock.ErrBusy
	}
	l.held[worldID] = true
	return &fakeLease{locker: l, worldID: worldID}, nil
}

type fakeLease struct {
	locker  *fakeLocker
	worldID string
}

func (f *fakeLease) Ctx() context.Context { return context.Background() }

func (f *fakeLease) Release(ctx context.Context) error {
	f.locker.mu.Lock()
	defer f.locker.mu.Unlock()
	if !f.locker.held[f.worldID] {
		return errors.New("lease not held")
	}
	delete(f.locker.held, f.worldID)
	return nil
}

func newTestEngine(st *memStore, rd source.Reader, aiClient *fakeAI, locks Locker) *Engine {
	if locks == nil {
		locks = newFakeLocker()
	}
	return &Engine{
		store:       st,
		reader:      rd,
		aiClient:    aiClient,
		locks:       locks,
		validate:    validator.New(),
		embedBatch:  64,
		maxParallel: 4,
	}
}
