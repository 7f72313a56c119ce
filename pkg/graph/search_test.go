package graph

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fablekit/worldgraph/pkg/common"
)

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "identical vectors",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 1.0,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0, 0},
			b:    []float32{0, 1, 0},
			want: 0.0,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: -1.0,
		},
		{
			name: "zero norm left",
			a:    []float32{0, 0, 0},
			b:    []float32{1, 2, 3},
			want: 0.0,
		},
		{
			name: "zero norm right",
			a:    []float32{1, 2, 3},
			b:    []float32{0, 0, 0},
			want: 0.0,
		},
		{
			name: "dimension mismatch",
			a:    []float32{1, 2},
			b:    []float32{1, 2, 3},
			want: 0.0,
		},
		{
			name: "both empty",
			a:    nil,
			b:    nil,
			want: 0.0,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("cosineSimilarity(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func seedSearchNodes(t *testing.T, st *memStore) {
	t.Helper()
	nodes := []common.GraphNode{
		{WorldID: "w1", EntityType: common.KindCharacter, EntityID: "exact", ContentHash: "h1",
			Embedding: []float32{1, 0, 0}, SemanticSummary: "exact match", ImportanceScore: 0.5},
		{WorldID: "w1", EntityType: common.KindLocation, EntityID: "partial", ContentHash: "h2",
			Embedding: []float32{1, 1, 0}, SemanticSummary: "partial match", ImportanceScore: 0.4},
		{WorldID: "w1", EntityType: common.KindEvent, EntityID: "unrelated", ContentHash: "h3",
			Embedding: []float32{0, 1, 0}, SemanticSummary: "unrelated", ImportanceScore: 0.5},
		{WorldID: "w1", EntityType: common.KindBeat, EntityID: "no_embedding", ContentHash: "h4",
			SemanticSummary: "never embedded", ImportanceScore: 0.3},
	}
	for i := range nodes {
		if _, err := st.UpsertNode(context.Background(), &nodes[i]); err != nil {
			t.Fatalf("UpsertNode() error = %v", err)
		}
	}
}

func TestSemanticSearchRankingAndFloor(t *testing.T) {
	st := newMemStore()
	seedSearchNodes(t, st)
	aiClient := &fakeAI{vectors: map[string][]float32{"heroes": {1, 0, 0}}}
	engine := newTestEngine(st, &fakeReader{}, aiClient, nil)

	results, err := engine.SemanticSearch(context.Background(), SearchParams{
		WorldID:       "w1",
		Query:         "heroes",
		MinSimilarity: 0.5,
	})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (floor excludes the orthogonal node)", len(results))
	}
	if results[0].EntityID != "exact" || results[1].EntityID != "partial" {
		t.Errorf("order = %s, %s, want exact, partial", results[0].EntityID, results[1].EntityID)
	}
	if math.Abs(results[0].Similarity-1.0) > 1e-6 {
		t.Errorf("top similarity = %v, want 1.0", results[0].Similarity)
	}
	for _, res := range results {
		if res.Similarity < 0.5 {
			t.Errorf("result %s below the floor: %v", res.EntityID, res.Similarity)
		}
	}
}

func TestSemanticSearchImportanceBreaksTies(t *testing.T) {
	st := newMemStore()
	nodes := []common.GraphNode{
		{WorldID: "w1", EntityType: common.KindCharacter, EntityID: "minor", ContentHash: "h1",
			Embedding: []float32{1, 0}, ImportanceScore: 0.2},
		{WorldID: "w1", EntityType: common.KindCharacter, EntityID: "major", ContentHash: "h2",
			Embedding: []float32{1, 0}, ImportanceScore: 0.9},
	}
	for i := range nodes {
		if _, err := st.UpsertNode(context.Background(), &nodes[i]); err != nil {
			t.Fatalf("UpsertNode() error = %v", err)
		}
	}
	aiClient := &fakeAI{vectors: map[string][]float32{"q": {1, 0}}}
	engine := newTestEngine(st, &fakeReader{}, aiClient, nil)

	results, err := engine.SemanticSearch(context.Background(), SearchParams{WorldID: "w1", Query: "q"})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(results) != 2 || results[0].EntityID != "major" {
		t.Fatalf("results = %+v, want major first on equal similarity", results)
	}
}

func TestSemanticSearchEntityTypeFilter(t *testing.T) {
	st := newMemStore()
	seedSearchNodes(t, st)
	aiClient := &fakeAI{vectors: map[string][]float32{"q": {1, 1, 1}}}
	engine := newTestEngine(st, &fakeReader{}, aiClient, nil)

	single, err := engine.SemanticSearch(context.Background(), SearchParams{
		WorldID:     "w1",
		Query:       "q",
		EntityTypes: []common.EntityKind{common.KindLocation},
	})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(single) != 1 || single[0].EntityType != common.KindLocation {
		t.Fatalf("single-type results = %+v, want only the location", single)
	}

	multi, err := engine.SemanticSearch(context.Background(), SearchParams{
		WorldID:     "w1",
		Query:       "q",
		EntityTypes: []common.EntityKind{common.KindLocation, common.KindEvent},
	})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(multi) != 2 {
		t.Fatalf("multi-type results = %d, want 2", len(multi))
	}
	for _, res := range multi {
		if res.EntityType != common.KindLocation && res.EntityType != common.KindEvent {
			t.Errorf("unexpected kind %q in filtered results", res.EntityType)
		}
	}
}

func TestSemanticSearchLimit(t *testing.T) {
	st := newMemStore()
	seedSearchNodes(t, st)
	aiClient := &fakeAI{vectors: map[string][]float32{"q": {1, 1, 0}}}
	engine := newTestEngine(st, &fakeReader{}, aiClient, nil)

	results, err := engine.SemanticSearch(context.Background(), SearchParams{
		WorldID: "w1",
		Query:   "q",
		Limit:   1,
	})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
}

func TestSemanticSearchEmptyQuery(t *testing.T) {
	st := newMemStore()
	seedSearchNodes(t, st)
	engine := newTestEngine(st, &fakeReader{}, &fakeAI{}, nil)

	for _, query := range []string{"", "   "} {
		results, err := engine.SemanticSearch(context.Background(), SearchParams{WorldID: "w1", Query: query})
		if err != nil {
			t.Fatalf("SemanticSearch(%q) error = %v", query, err)
		}
		if len(results) != 0 {
			t.Errorf("SemanticSearch(%q) = %d results, want 0", query, len(results))
		}
	}
}

func TestSemanticSearchEmbeddingFailure(t *testing.T) {
	st := newMemStore()
	seedSearchNodes(t, st)
	aiClient := &fakeAI{embedErr: errors.New("provider down")}
	engine := newTestEngine(st, &fakeReader{}, aiClient, nil)

	results, err := engine.SemanticSearch(context.Background(), SearchParams{WorldID: "w1", Query: "q"})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0 on embedding failure", len(results))
	}
}
