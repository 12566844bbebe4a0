package oc

import (
	"fmt"
	"time"

	"github.com/quizbox/quizbox/internal/engine"
	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/room"
	"go.uber.org/zap"
)

// selectRevealDelay is the staged pause between "question selected" and
// the question being displayed on the public screens.
const selectRevealDelay = 500 * time.Millisecond

// playRoom wires a Game into the room runtime: a game-manager endpoint
// with the full action surface, public preview and overlay endpoints, and
// one voting endpoint per team.
type playRoom struct {
	room   *room.Room
	game   *Game
	meta   *engine.Episode
	author string
	log    *zap.Logger
}

// NewPlayRoom builds the endpoints for playing an episode.
func NewPlayRoom(meta *engine.Episode, content *Episode, author string, opts engine.RoomOptions) *room.Room {
	teams := opts.Teams
	if len(teams) == 0 {
		teams = []string{"Team 1"}
	}

	p := &playRoom{
		room:   room.New(),
		game:   NewGame(content, teams),
		meta:   meta,
		author: author,
	}

	p.addEndpoint(p.gmEndpoint())
	p.addEndpoint(p.screenEndpoint("preview", true))
	p.addEndpoint(p.screenEndpoint("overlay", false))
	for i, team := range p.game.Teams {
		p.addEndpoint(p.teamEndpoint(i, team))
	}

	p.room.SetDefaultEndpoint("gm")
	p.room.SetStartingEndpoint("gm")
	p.log = logging.GetLogger().With(zap.String("engine", "only_connect"))
	return p.room
}

func (p *playRoom) addEndpoint(e *room.Endpoint) {
	p.room.AddEndpoint(e)
}

func stateChangeFrame(state map[string]any) map[string]any {
	return map[string]any{"cmd": "state_change", "state": state}
}

// setupFrame is the first-frame bootstrap: episode metadata, which rounds
// exist, and the current state.
func (p *playRoom) setupFrame(admin bool) map[string]any {
	state := p.game.PublicState()
	if admin {
		state = p.game.AdminState()
	}

	return map[string]any{
		"cmd": "setup",
		"episode": map[string]any{
			"title":       p.meta.Title,
			"author":      p.author,
			"description": p.meta.Description,
			"rounds": map[string]any{
				"connections": p.game.Episode.HasConnections(),
				"completions": p.game.Episode.HasCompletions(),
				"walls":       p.game.Episode.HasConnectingWalls(len(p.game.Teams)),
				"vowels":      p.game.Episode.HasMissingVowels(),
			},
		},
		"state": state,
	}
}

// requireHost guards host-only commands: the socket must belong to a
// logged-in session.
func requireHost(s *room.Socket) bool {
	return s.Session.LoggedIn()
}

func (p *playRoom) gmEndpoint() *room.Endpoint {
	e := room.NewEndpoint("gm")
	e.View = func() any { return stateChangeFrame(p.game.AdminState()) }
	e.OnJoin = func(s *room.Socket) any { return p.setupFrame(true) }

	e.Command("setup", func(s *room.Socket, _ map[string]any) any {
		return p.setupFrame(true)
	})

	e.Command("endpoints", func(s *room.Socket, _ map[string]any) any {
		if !requireHost(s) {
			return map[string]any{"cmd": "error", "message": "not authorised"}
		}
		endpoints := make([]map[string]any, 0)
		for _, ep := range p.room.Endpoints() {
			endpoints = append(endpoints, map[string]any{
				"room": ep.Code,
				"name": ep.Name,
			})
		}
		return map[string]any{"cmd": "endpoints", "endpoints": endpoints}
	})

	e.Command("close", func(s *room.Socket, _ map[string]any) any {
		if !requireHost(s) {
			return map[string]any{"cmd": "error", "message": "not authorised"}
		}
		// Stop acquires the room lock, which this handler already holds.
		go p.room.Stop()
		return nil
	})

	e.Command("skip", func(s *room.Socket, args map[string]any) any {
		if !requireHost(s) {
			return map[string]any{"cmd": "error", "message": "not authorised"}
		}
		name, _ := args["round_name"].(string)
		next, ok := roundByName(name)
		if !ok {
			return map[string]any{"cmd": "error", "message": fmt.Sprintf("invalid round %q", name)}
		}
		if !p.game.StartRound(next) {
			return map[string]any{"cmd": "error", "message": fmt.Sprintf("unable to skip to %q", name)}
		}
		p.room.FanoutLocked()
		return nil
	})

	e.NoLogCommand("action", func(s *room.Socket, args map[string]any) any {
		if !requireHost(s) {
			return map[string]any{"cmd": "error", "message": "not authorised"}
		}
		name, _ := args["action"].(string)
		choice := Action(name)

		p.log.Info("processing action", zap.String("room_code", p.room.Code), zap.String("action", name))

		if choice == ActStartNextRound {
			p.game.NextRound()
			p.room.FanoutLocked()
			return nil
		}

		if p.game.Current == nil {
			return nil
		}
		if p.game.Current.Do(choice) {
			p.room.FanoutLocked()
			if isSelect(choice) {
				// Let the selection land on screen before the question.
				time.AfterFunc(selectRevealDelay, p.room.Fanout)
			}
		}
		return nil
	})

	p.addToggle(e)
	return e
}

// screenEndpoint serves the public projection: the preview full-screen
// view (which can also drive wall toggles) and the stream overlay.
func (p *playRoom) screenEndpoint(name string, toggles bool) *room.Endpoint {
	e := room.NewEndpoint(name)
	e.View = func() any { return stateChangeFrame(p.game.PublicState()) }
	e.OnJoin = func(s *room.Socket) any { return p.setupFrame(false) }

	e.Command("setup", func(s *room.Socket, _ map[string]any) any {
		return p.setupFrame(false)
	})

	if toggles {
		p.addToggle(e)
	}
	return e
}

func (p *playRoom) addToggle(e *room.Endpoint) {
	e.Command("toggle", func(s *room.Socket, args map[string]any) any {
		wall, ok := p.game.Current.(*WallRound)
		if !ok {
			return map[string]any{"cmd": "error", "message": "not on the connecting wall"}
		}
		word, _ := args["word"].(string)
		wall.Toggle(word, p.room.FanoutLocked)
		return nil
	})
}

// teamEndpoint is one team's channel: the public view plus a vote command.
func (p *playRoom) teamEndpoint(index int, team *Team) *room.Endpoint {
	e := room.NewEndpoint(fmt.Sprintf("team %d", index+1))
	e.View = func() any { return stateChangeFrame(p.game.PublicState()) }
	e.OnJoin = func(s *room.Socket) any { return p.setupFrame(false) }

	e.Command("setup", func(s *room.Socket, _ map[string]any) any {
		return p.setupFrame(false)
	})

	e.Command("vote", func(s *room.Socket, args map[string]any) any {
		vote, _ := args["vote"].(string)
		team.Vote = vote
		return map[string]any{"cmd": "voted", "vote": vote}
	})

	return e
}
