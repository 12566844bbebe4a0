package oc

import "k8s.io/utils/set"

// RoundTracker is the top-level game position. Rounds advance linearly;
// rounds without valid content are skipped.
type RoundTracker string

const (
	RoundPreGame         RoundTracker = "pre-game"
	RoundConnections     RoundTracker = "connections"
	RoundCompletions     RoundTracker = "completions"
	RoundConnectingWalls RoundTracker = "connecting_walls"
	RoundMissingVowels   RoundTracker = "missing_vowels"
	RoundPostGame        RoundTracker = "post-game"
)

var roundOrder = []RoundTracker{
	RoundPreGame,
	RoundConnections,
	RoundCompletions,
	RoundConnectingWalls,
	RoundMissingVowels,
	RoundPostGame,
}

// Next returns the following round. Post-game is terminal.
func (r RoundTracker) Next() RoundTracker {
	if r == RoundPostGame {
		return RoundPostGame
	}
	for i, round := range roundOrder {
		if round == r {
			return roundOrder[i+1]
		}
	}
	return RoundPostGame
}

// roundByName resolves a skip target like "CONNECTING_WALLS" or
// "connecting_walls" to its round.
func roundByName(name string) (RoundTracker, bool) {
	byName := map[string]RoundTracker{
		"PRE_GAME":         RoundPreGame,
		"CONNECTIONS":      RoundConnections,
		"COMPLETIONS":      RoundCompletions,
		"CONNECTING_WALLS": RoundConnectingWalls,
		"MISSING_VOWELS":   RoundMissingVowels,
		"POST_GAME":        RoundPostGame,
	}
	if r, ok := byName[name]; ok {
		return r, true
	}
	for _, r := range roundOrder {
		if string(r) == name {
			return r, true
		}
	}
	return "", false
}

// InRoundState is the sub-state within a round.
type InRoundState string

const (
	StatePreRound          InRoundState = "pre-round"
	StateQuestionSelection InRoundState = "select"
	StateQuestionActive    InRoundState = "question"
	StateLockedIn          InRoundState = "locked-in"
	StateStealing          InRoundState = "stealing"
	StateAnswerRevealed    InRoundState = "answer"
	StatePostRound         InRoundState = "post-round"
)

// Action is one host action on the game state machine.
type Action string

const (
	ActNextQuestion Action = "NEXT_QUESTION"

	ActSelectTwoReeds    Action = "SELECT_TWO_REEDS"
	ActSelectLion        Action = "SELECT_LION"
	ActSelectTwistedFlax Action = "SELECT_TWISTED_FLAX"
	ActSelectHornedViper Action = "SELECT_HORNED_VIPER"
	ActSelectWater       Action = "SELECT_WATER"
	ActSelectEyeOfHorus  Action = "SELECT_EYE_OF_HORUS"

	ActNextClue       Action = "NEXT_CLUE"
	ActLockIn         Action = "LOCK_IN"
	ActRevealForSteal Action = "REVEAL_FOR_STEAL"

	ActScoreTeam1     Action = "SCORE_TEAM1"
	ActScoreTeam2     Action = "SCORE_TEAM2"
	ActScoreSteal     Action = "SCORE_STEAL"
	ActScoreIncorrect Action = "SCORE_INCORRECT"

	ActStartNextRound Action = "START_NEXT_ROUND"
)

// selectActions maps question slots 0..5 to the hieroglyph tokens in
// declaration order.
var selectActions = []Action{
	ActSelectTwoReeds,
	ActSelectLion,
	ActSelectTwistedFlax,
	ActSelectHornedViper,
	ActSelectWater,
	ActSelectEyeOfHorus,
}

// isSelect reports whether an action is one of the six selection tokens.
func isSelect(a Action) bool {
	for _, s := range selectActions {
		if s == a {
			return true
		}
	}
	return false
}

// RoundHandler is the uniform contract of the four round types. Handlers
// own their round-local data and mutate team scores through the game.
type RoundHandler interface {
	// PublicState is the snapshot for non-privileged endpoints.
	PublicState() map[string]any
	// AdminState adds host-only fields: connections, details, hidden cells.
	AdminState() map[string]any
	// PossibleActions lists the actions permissible right now.
	PossibleActions() set.Set[Action]
	// Do attempts an action and reports whether state changed. Impossible
	// actions are silent no-ops.
	Do(action Action) bool
}

// Game is the in-memory play state: the episode content, the teams, the
// round position and the live round handler (nil in pre/post game).
type Game struct {
	Episode *Episode
	Teams   []*Team

	CurrentRound RoundTracker
	Current      RoundHandler
}

// NewGame builds the pre-game state for an episode and team names.
func NewGame(ep *Episode, teamNames []string) *Game {
	if len(teamNames) > MaxTeams {
		teamNames = teamNames[:MaxTeams]
	}
	teams := make([]*Team, 0, len(teamNames))
	for _, name := range teamNames {
		teams = append(teams, NewTeam(name))
	}
	return &Game{
		Episode:      ep,
		Teams:        teams,
		CurrentRound: RoundPreGame,
	}
}

// NextRound walks forward from the current round and installs the first
// one whose content is valid. Rounds without content are skipped.
func (g *Game) NextRound() {
	next := g.CurrentRound
	for {
		next = next.Next()
		if g.StartRound(next) {
			return
		}
	}
}

// StartRound installs a specific round, reporting whether its content
// allows it. Pre-game and post-game always succeed and clear the handler.
func (g *Game) StartRound(next RoundTracker) bool {
	switch next {
	case RoundConnections:
		if !g.Episode.HasConnections() {
			return false
		}
		g.CurrentRound = next
		g.Current = NewStandardRound(g, g.Episode.Connections)
		return true

	case RoundCompletions:
		if !g.Episode.HasCompletions() {
			return false
		}
		g.CurrentRound = next
		g.Current = NewStandardRound(g, g.Episode.Completions)
		return true

	case RoundConnectingWalls:
		if !g.Episode.HasConnectingWalls(len(g.Teams)) {
			return false
		}
		g.CurrentRound = next
		g.Current = NewWallRound(g, g.Episode.ConnectingWalls)
		return true

	case RoundMissingVowels:
		if !g.Episode.HasMissingVowels() {
			return false
		}
		g.CurrentRound = next
		g.Current = NewMissingVowelsRound(g, g.Episode.MissingVowels)
		return true

	case RoundPreGame, RoundPostGame:
		g.CurrentRound = next
		g.Current = nil
		return true
	}

	return false
}

func (g *Game) teamsJSON() []any {
	out := make([]any, 0, len(g.Teams))
	for _, t := range g.Teams {
		out = append(out, t.JSON())
	}
	return out
}

// PublicState is the full snapshot for non-privileged endpoints.
func (g *Game) PublicState() map[string]any {
	state := map[string]any{
		"round": g.CurrentRound,
		"teams": g.teamsJSON(),
	}
	if g.Current != nil {
		for k, v := range g.Current.PublicState() {
			state[k] = v
		}
	}
	return state
}

// AdminState is the full snapshot for the game manager, including the
// list of currently possible actions.
func (g *Game) AdminState() map[string]any {
	state := map[string]any{
		"round": g.CurrentRound,
		"teams": g.teamsJSON(),
	}
	if g.Current != nil {
		for k, v := range g.Current.AdminState() {
			state[k] = v
		}
		actions := g.Current.PossibleActions()
		list := make([]string, 0, actions.Len())
		for _, a := range actions.SortedList() {
			list = append(list, string(a))
		}
		state["actions"] = list
	} else if g.CurrentRound == RoundPreGame {
		state["actions"] = []string{string(ActStartNextRound)}
	}
	return state
}
