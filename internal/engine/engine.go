package engine

import (
	"errors"
	"fmt"

	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/metrics"
	"github.com/quizbox/quizbox/internal/room"
	"github.com/quizbox/quizbox/internal/store"
	"go.uber.org/zap"
)

// EpisodeState is the lifecycle state of one episode version. The string
// values are the stored representation.
type EpisodeState string

const (
	StateDraft         EpisodeState = "DRAFT"
	StatePendingReview EpisodeState = "REVIEW"
	StatePublished     EpisodeState = "PUBLISHED"
	StateSuperseded    EpisodeState = "UNPUBLISHED"
	StateDiscarded     EpisodeState = "DISCARDED"
)

// Terminal states never trigger demotions and are never left.
func (s EpisodeState) Terminal() bool {
	return s == StateSuperseded || s == StateDiscarded
}

// OptionSupport describes whether a game engine can, may, or must use a
// room feature such as scoring or an audience channel.
type OptionSupport int

const (
	NotSupported OptionSupport = iota
	Optional
	Required
)

// RoomOptions carries the host's choices when creating a play room.
type RoomOptions struct {
	Scoring  bool
	Teams    []string
	Audience bool
}

// Episode is one loaded episode version: header metadata plus the raw
// content payload, which each engine parses itself.
type Episode struct {
	ID          int64        `json:"episode_id"`
	Engine      string       `json:"game_engine"`
	AuthorID    int64        `json:"-"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Version     int          `json:"version"`
	State       EpisodeState `json:"state"`
	Data        string       `json:"-"`
}

// GameEngine is implemented by each hosted game type. The facade owns
// persistence and lifecycle; the engine owns content parsing and room
// construction.
type GameEngine interface {
	// Ident is the stable tag stored in the database.
	Ident() string
	Name() string
	Description() string

	CMSEnabled() bool
	MaxTeams() int
	ScoringMode() OptionSupport
	SupportsAudience() OptionSupport

	// LoadEpisode loads an episode by id and version. Version 0 means the
	// current draft, creating one from the latest version if absent.
	LoadEpisode(episodeID int64, version int) (*Episode, error)
	ListEpisodes(state EpisodeState) ([]*Episode, error)
	UserEpisodes(userID int64) ([]*Episode, error)
	CreateEpisode(userID int64, title string) (int64, error)

	// Save persists draft edits: metadata on the episode header, content on
	// the draft version.
	Save(ep *Episode) error
	SaveState(ep *Episode, newState EpisodeState) error

	PlayRoom(ep *Episode, opts RoomOptions) (*room.Room, error)
	EditRoom(ep *Episode) (*room.Room, error)
	ViewRoom(ep *Episode) (*room.Room, error)
}

// ErrNoEpisode is returned when the requested episode or version does not
// exist for the engine.
var ErrNoEpisode = errors.New("engine: no such episode")

// Base implements the persistence half of GameEngine on top of the store.
// Concrete engines embed it and supply content parsing and rooms.
type Base struct {
	Store *store.Store
	Tag   string
}

// LoadEpisode loads one episode version. Version 0 resolves to the current
// draft, creating a fresh draft from the latest version when none exists.
func (b *Base) LoadEpisode(episodeID int64, version int) (*Episode, error) {
	if version == 0 {
		v, err := b.getOrCreateDraftVersion(episodeID)
		if err != nil {
			return nil, err
		}
		version = v
	}

	row, err := b.Store.EpisodeVersion(b.Tag, episodeID, version)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoEpisode
	}
	if err != nil {
		return nil, err
	}
	return episodeFromRow(row), nil
}

// getOrCreateDraftVersion finds the episode's draft, or copies the latest
// version into a new draft. Version numbering stays strictly monotonic.
func (b *Base) getOrCreateDraftVersion(episodeID int64) (int, error) {
	v, err := b.Store.DraftVersion(episodeID)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}
	return b.Store.CopyLatestToDraft(episodeID)
}

// ListEpisodes returns, per episode, the latest version in the given state.
func (b *Base) ListEpisodes(state EpisodeState) ([]*Episode, error) {
	rows, err := b.Store.LatestByState(b.Tag, string(state))
	if err != nil {
		return nil, err
	}
	out := make([]*Episode, 0, len(rows))
	for i := range rows {
		out = append(out, episodeFromRow(&rows[i]))
	}
	return out, nil
}

// UserEpisodes lists every episode a user owns, each at its current draft
// version if one exists, otherwise at its latest version.
func (b *Base) UserEpisodes(userID int64) ([]*Episode, error) {
	headers, err := b.Store.UserEpisodeHeaders(b.Tag, userID)
	if err != nil {
		return nil, err
	}

	var out []*Episode
	for _, h := range headers {
		versions, err := b.Store.EpisodeVersions(h.ID)
		if err != nil {
			return nil, err
		}
		pick := 0
		for _, v := range versions {
			if EpisodeState(v.State) == StateDraft {
				pick = v.Version
				break
			}
			if v.Version > pick {
				pick = v.Version
			}
		}
		row, err := b.Store.EpisodeVersion(b.Tag, h.ID, pick)
		if err != nil {
			return nil, err
		}
		out = append(out, episodeFromRow(row))
	}
	return out, nil
}

// CreateEpisode creates a blank episode owned by the user, with an empty
// version 1 draft.
func (b *Base) CreateEpisode(userID int64, title string) (int64, error) {
	return b.Store.CreateEpisode(b.Tag, userID, title)
}

// Save persists draft edits. Only the current draft version is writable.
func (b *Base) Save(ep *Episode) error {
	if ep.State != StateDraft {
		return fmt.Errorf("engine: cannot save version %d in state %s", ep.Version, ep.State)
	}
	if err := b.Store.SaveEpisodeMeta(b.Tag, ep.ID, ep.Title, ep.Description); err != nil {
		metrics.EpisodeSaves.WithLabelValues("error").Inc()
		return err
	}
	if err := b.Store.SaveDraftData(ep.ID, ep.Version, ep.Data); err != nil {
		metrics.EpisodeSaves.WithLabelValues("error").Inc()
		return err
	}
	metrics.EpisodeSaves.WithLabelValues("ok").Inc()
	return nil
}

// SaveState transitions an episode version to a new lifecycle state and
// applies the demotion invariants: a new PUBLISHED supersedes the previous
// PUBLISHED; any other non-terminal state discards prior versions holding
// it. Terminal states never demote.
func (b *Base) SaveState(ep *Episode, newState EpisodeState) error {
	if ep.State.Terminal() {
		return fmt.Errorf("engine: version %d is in terminal state %s", ep.Version, ep.State)
	}

	if err := b.Store.SetVersionState(ep.ID, ep.Version, string(ep.State), string(newState)); err != nil {
		return err
	}
	ep.State = newState

	switch {
	case newState == StatePublished:
		if err := b.Store.DemoteOtherVersions(ep.ID, ep.Version, string(StatePublished), string(StateSuperseded)); err != nil {
			return err
		}
	case !newState.Terminal():
		if err := b.Store.DemoteOtherVersions(ep.ID, ep.Version, string(newState), string(StateDiscarded)); err != nil {
			return err
		}
	}

	logging.Info("episode state changed",
		zap.Int64("episode_id", ep.ID),
		zap.Int("version", ep.Version),
		zap.String("state", string(newState)))
	return nil
}

func episodeFromRow(row *store.VersionRow) *Episode {
	return &Episode{
		ID:          row.ID,
		Engine:      row.Engine,
		AuthorID:    row.UserID,
		Title:       row.Title,
		Description: row.Description,
		Version:     row.Version,
		State:       EpisodeState(row.State),
		Data:        row.Data,
	}
}
