package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fablekit/worldgraph/pkg/common"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// EntityReader implements source.Reader over the application's domain
// tables. All queries are plain reads; the engine never mutates domain
// data.
type EntityReader struct {
	conn pgxIConn
}

// NewEntityReader creates an EntityReader over an existing connection or
// pool.
func NewEntityReader(conn pgxIConn) *EntityReader {
	return &EntityReader{conn: conn}
}

func (r *EntityReader) ListCharacters(ctx context.Context, worldID string) ([]common.Character, error) {
	rows, err := r.conn.Query(ctx, `
SELECT id, world_id, name, coalesce(description, ''), coalesce(role, '')
FROM characters
WHERE world_id = $1
ORDER BY id`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]common.Character, 0)
	for rows.Next() {
		var c common.Character
		if err := rows.Scan(&c.ID, &c.WorldID, &c.Name, &c.Description, &c.Role); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *EntityReader) ListLocations(ctx context.Context, worldID string) ([]common.Location, error) {
	rows, err := r.conn.Query(ctx, `
SELECT id, world_id, name, coalesce(description, ''), coalesce(significance, ''), coalesce(parent_location_id, '')
FROM locations
WHERE world_id = $1
ORDER BY id`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]common.Location, 0)
	for rows.Next() {
		var l common.Location
		if err := rows.Scan(&l.ID, &l.WorldID, &l.Name, &l.Description, &l.Significance, &l.ParentID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *EntityReader) ListEvents(ctx context.Context, worldID string) ([]common.Event, error) {
	rows, err := r.conn.Query(ctx, `
SELECT id, world_id, name, coalesce(description, '')
FROM events
WHERE world_id = $1
ORDER BY id`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]common.Event, 0)
	for rows.Next() {
		var e common.Event
		if err := rows.Scan(&e.ID, &e.WorldID, &e.Name, &e.Description); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EntityReader) ListStories(ctx context.Context, worldID string) ([]common.Story, error) {
	rows, err := r.conn.Query(ctx, `
SELECT id, world_id, title, coalesce(summary, '')
FROM stories
WHERE world_id = $1
ORDER BY id`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]common.Story, 0)
	for rows.Next() {
		var s common.Story
		if err := rows.Scan(&s.ID, &s.WorldID, &s.Title, &s.Summary); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *EntityReader) ListBeats(ctx context.Context, storyID string) ([]common.Beat, error) {
	rows, err := r.conn.Query(ctx, `
SELECT b.id, s.world_id, b.story_id, coalesce(b.title, ''), coalesce(b.content, '')
FROM beats b
JOIN stories s ON s.id = b.story_id
WHERE b.story_id = $1
ORDER BY b.id`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]common.Beat, 0)
	for rows.Next() {
		var b common.Beat
		if err := rows.Scan(&b.ID, &b.WorldID, &b.StoryID, &b.Title, &b.Content); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *EntityReader) ListRelationships(ctx context.Context, worldID string) ([]common.CharacterRelationship, error) {
	rows, err := r.conn.Query(ctx, `
SELECT id, world_id, character_a_id, character_b_id, coalesce(relationship_type, ''), coalesce(description, '')
FROM character_relationships
WHERE world_id = $1
ORDER BY id`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]common.CharacterRelationship, 0)
	for rows.Next() {
		var rel common.CharacterRelationship
		if err := rows.Scan(&rel.ID, &rel.WorldID, &rel.CharacterAID, &rel.CharacterBID, &rel.Type, &rel.Description); err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (r *EntityReader) ListMentions(ctx context.Context, beatID string) ([]common.BeatMention, error) {
	rows, err := r.conn.Query(ctx, `
SELECT beat_id, entity_kind, entity_id, coalesce(mention_type, '')
FROM beat_mentions
WHERE beat_id = $1
ORDER BY entity_kind, entity_id`, beatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]common.BeatMention, 0)
	for rows.Next() {
		var (
			m    common.BeatMention
			kind string
		)
		if err := rows.Scan(&m.BeatID, &kind, &m.EntityID, &m.Subtype); err != nil {
			return nil, err
		}
		m.EntityKind = common.EntityKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}
