package oc

import (
	"errors"

	"github.com/quizbox/quizbox/internal/engine"
	"github.com/quizbox/quizbox/internal/room"
	"github.com/quizbox/quizbox/internal/store"
	"k8s.io/utils/clock"
)

// Ident is the stable engine tag stored with every episode.
const Ident = "only_connect"

// Engine is the Only Connect game engine: content parsing plus room
// construction on top of the shared persistence base.
type Engine struct {
	engine.Base
	clock clock.WithTicker
}

var _ engine.GameEngine = (*Engine)(nil)

// NewEngine builds the engine over the durable store.
func NewEngine(st *store.Store) *Engine {
	return NewEngineWithClock(st, clock.RealClock{})
}

// NewEngineWithClock lets tests drive the edit-room save timers.
func NewEngineWithClock(st *store.Store, c clock.WithTicker) *Engine {
	return &Engine{
		Base:  engine.Base{Store: st, Tag: Ident},
		clock: c,
	}
}

func (e *Engine) Ident() string { return Ident }
func (e *Engine) Name() string  { return "Only Connect" }

func (e *Engine) Description() string {
	return "The British game show Only Connect. " +
		"Games can include any or all of the four rounds from the show: finding connections, " +
		"completing a sequence, solving the connecting wall, or filling in the missing vowels."
}

func (e *Engine) CMSEnabled() bool { return true }
func (e *Engine) MaxTeams() int    { return MaxTeams }

func (e *Engine) ScoringMode() engine.OptionSupport      { return engine.Required }
func (e *Engine) SupportsAudience() engine.OptionSupport { return engine.NotSupported }

// authorName resolves the episode's author handle for display.
func (e *Engine) authorName(ep *engine.Episode) string {
	u, err := e.Store.GetUser(ep.AuthorID)
	if err != nil {
		return ""
	}
	return u.Name
}

// PlayRoom builds a live game room for an episode.
func (e *Engine) PlayRoom(ep *engine.Episode, opts engine.RoomOptions) (*room.Room, error) {
	content := ParseEpisode(ep.Data)
	if !content.HasConnections() && !content.HasCompletions() &&
		!content.HasConnectingWalls(max(len(opts.Teams), 1)) && !content.HasMissingVowels() {
		return nil, errors.New("episode has no playable rounds")
	}
	return NewPlayRoom(ep, content, e.authorName(ep), opts), nil
}

// EditRoom builds the CMS edit session for an episode draft.
func (e *Engine) EditRoom(ep *engine.Episode) (*room.Room, error) {
	if ep.State != engine.StateDraft {
		return nil, errors.New("only drafts are editable")
	}
	return NewEditRoom(e, ep), nil
}

// ViewRoom builds the read-only CMS view of an episode version.
func (e *Engine) ViewRoom(ep *engine.Episode) (*room.Room, error) {
	return NewViewRoom(e, ep), nil
}
