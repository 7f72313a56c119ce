package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestChunkRange(t *testing.T) {
	t.Parallel()

	type span struct{ start, end int }

	tests := []struct {
		name  string
		n     int
		chunk int
		want  []span
	}{
		{
			name:  "empty range",
			n:     0,
			chunk: 4,
			want:  nil,
		},
		{
			name:  "single partial chunk",
			n:     3,
			chunk: 4,
			want:  []span{{0, 3}},
		},
		{
			name:  "exact multiple",
			n:     8,
			chunk: 4,
			want:  []span{{0, 4}, {4, 8}},
		},
		{
			name:  "trailing partial chunk",
			n:     10,
			chunk: 4,
			want:  []span{{0, 4}, {4, 8}, {8, 10}},
		},
		{
			name:  "non-positive chunk treated as one span",
			n:     5,
			chunk: 0,
			want:  []span{{0, 5}},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var got []span
			err := ChunkRange(tc.n, tc.chunk, func(start, end int) error {
				got = append(got, span{start, end})
				return nil
			})
			if err != nil {
				t.Fatalf("ChunkRange() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ChunkRange(%d, %d) spans = %v, want %v", tc.n, tc.chunk, got, tc.want)
			}
		})
	}
}

func TestChunkRangeStopsOnError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("stop")
	calls := 0
	err := ChunkRange(10, 2, func(start, end int) error {
		calls++
		if calls == 2 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("ChunkRange() error = %v, want sentinel", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
