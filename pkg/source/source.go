package source

import (
	"context"

	"github.com/fablekit/worldgraph/pkg/common"
)

// Reader is the read-only view of the workspace's domain entities that the
// sync coordinator consumes. The domain tables belong to the surrounding
// application; the engine only reads the projections defined in
// pkg/common.
type Reader interface {
	ListCharacters(ctx context.Context, worldID string) ([]common.Character, error)
	ListLocations(ctx context.Context, worldID string) ([]common.Location, error)
	ListEvents(ctx context.Context, worldID string) ([]common.Event, error)
	ListStories(ctx context.Context, worldID string) ([]common.Story, error)
	ListBeats(ctx context.Context, storyID string) ([]common.Beat, error)
	ListRelationships(ctx context.Context, worldID string) ([]common.CharacterRelationship, error)
	ListMentions(ctx context.Context, beatID string) ([]common.BeatMention, error)
}
