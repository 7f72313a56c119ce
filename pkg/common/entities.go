package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Source is implemented by every entity projection the sync coordinator
// consumes. HashInput returns the fields that determine the entity's
// semantic content; two calls with equal results mean the node needs no
// re-embedding or re-summarizing. DisplayText is what gets embedded and
// summarized. Importance is the static per-kind ranking weight in [0,1].
type Source interface {
	Kind() EntityKind
	EntityID() string
	HashInput() string
	DisplayName() string
	DisplayText() string
	Importance() float64
}

// HashContent digests a hash input for change detection. The digest is not
// a security boundary; it only has to be stable and collision-poor over
// entity text.
func HashContent(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Character is the projection of a character record that the graph engine
// reads. Role is a free-form prominence label; the recognized values are
// "major", "minor" and "background".
type Character struct {
	ID          string `json:"id"`
	WorldID     string `json:"world_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role"`
}

func (c Character) Kind() EntityKind    { return KindCharacter }
func (c Character) EntityID() string    { return c.ID }
func (c Character) DisplayName() string { return c.Name }

func (c Character) HashInput() string {
	return c.Name + "|" + c.Description
}

func (c Character) DisplayText() string {
	return joinNonEmpty(c.Name, c.Description)
}

func (c Character) Importance() float64 {
	switch strings.ToLower(c.Role) {
	case "major":
		return 0.9
	case "minor":
		return 0.5
	case "background":
		return 0.2
	default:
		return 0.5
	}
}

// Location projects a location record. ParentID links to an enclosing
// location and drives the "contains" hierarchy edges.
type Location struct {
	ID           string `json:"id"`
	WorldID      string `json:"world_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Significance string `json:"significance"`
	ParentID     string `json:"parent_id,omitempty"`
}

func (l Location) Kind() EntityKind    { return KindLocation }
func (l Location) EntityID() string    { return l.ID }
func (l Location) DisplayName() string { return l.Name }

func (l Location) HashInput() string {
	return l.Name + "|" + l.Description
}

func (l Location) DisplayText() string {
	return joinNonEmpty(l.Name, l.Description)
}

func (l Location) Importance() float64 {
	switch strings.ToLower(l.Significance) {
	case "major":
		return 0.8
	case "minor":
		return 0.4
	case "background":
		return 0.2
	default:
		return 0.4
	}
}

// Event projects a timeline event record.
type Event struct {
	ID          string `json:"id"`
	WorldID     string `json:"world_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (e Event) Kind() EntityKind    { return KindEvent }
func (e Event) EntityID() string    { return e.ID }
func (e Event) DisplayName() string { return e.Name }

func (e Event) HashInput() string {
	return e.Name + "|" + e.Description
}

func (e Event) DisplayText() string {
	return joinNonEmpty(e.Name, e.Description)
}

func (e Event) Importance() float64 { return 0.5 }

// Story projects a story record. Beats belong to exactly one story.
type Story struct {
	ID      string `json:"id"`
	WorldID string `json:"world_id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

func (s Story) Kind() EntityKind    { return KindStory }
func (s Story) EntityID() string    { return s.ID }
func (s Story) DisplayName() string { return s.Title }

func (s Story) HashInput() string {
	return s.Title + "|" + s.Summary
}

func (s Story) DisplayText() string {
	return joinNonEmpty(s.Title, s.Summary)
}

func (s Story) Importance() float64 { return 0.7 }

// Beat projects a narrative beat. The hash covers the full text: any
// edit to the prose invalidates the node.
type Beat struct {
	ID      string `json:"id"`
	WorldID string `json:"world_id"`
	StoryID string `json:"story_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (b Beat) Kind() EntityKind { return KindBeat }
func (b Beat) EntityID() string { return b.ID }

// DisplayName falls back to the beat id when a beat has no title.
func (b Beat) DisplayName() string {
	if b.Title != "" {
		return b.Title
	}
	return b.ID
}

func (b Beat) HashInput() string {
	return b.Title + "|" + b.Content
}

func (b Beat) DisplayText() string {
	return joinNonEmpty(b.Title, b.Content)
}

func (b Beat) Importance() float64 { return 0.3 }

// FallbackSummary is the deterministic summary used when the summarizer
// is unavailable or fails for an entity.
func FallbackSummary(src Source) string {
	return fmt.Sprintf("%s: %s", titleKind(src.Kind()), strings.TrimSpace(src.DisplayName()))
}

func titleKind(kind EntityKind) string {
	k := string(kind)
	if k == "" {
		return k
	}
	return strings.ToUpper(k[:1]) + k[1:]
}

// CharacterRelationship is an explicit character-to-character relationship
// record. It is symmetric at the source level; the edge builder emits one
// "knows" edge per direction.
type CharacterRelationship struct {
	ID           string `json:"id"`
	WorldID      string `json:"world_id"`
	CharacterAID string `json:"character_a_id"`
	CharacterBID string `json:"character_b_id"`
	Type         string `json:"type"`
	Description  string `json:"description"`
}

// BeatMention records that a beat's text references another entity.
// Subtype carries the mention flavor ("direct", "implied", ...).
type BeatMention struct {
	BeatID     string     `json:"beat_id"`
	EntityKind EntityKind `json:"entity_kind"`
	EntityID   string     `json:"entity_id"`
	Subtype    string     `json:"subtype"`
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ": ")
}
