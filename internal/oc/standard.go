package oc

import "k8s.io/utils/set"

// StandardRound runs Connections and Completions: six selectable
// questions, clue-by-clue reveal, the 5/3/2/1 score ladder and the steal
// mechanic.
type StandardRound struct {
	game *Game

	state InRoundState
	data  []Question

	// available holds the selection token per unconsumed slot; consumed
	// slots are "".
	available  []Action
	activeTeam int
	current    *Question

	revealedClues int
	maxRevealed   int
}

// NewStandardRound sets up the round over six questions. In Completions
// the fourth element is the sought answer, so only three clues reveal and
// the picker does not alternate.
func NewStandardRound(g *Game, data []Question) *StandardRound {
	r := &StandardRound{
		game:       g,
		state:      StatePreRound,
		data:       data,
		available:  append([]Action(nil), selectActions...),
		activeTeam: 0,
		current:    &data[0],

		revealedClues: 0,
		maxRevealed:   SlotsPerConnection,
	}

	if len(g.Teams) > 1 {
		r.activeTeam = 1
	}
	if g.CurrentRound == RoundCompletions {
		r.maxRevealed = SlotsPerConnection - 1
		r.activeTeam = 0
	}
	return r
}

func (r *StandardRound) elementsAny(clues []Clue) []any {
	out := make([]any, 0, len(clues))
	for _, c := range clues {
		out = append(out, c)
	}
	return out
}

func (r *StandardRound) PublicState() map[string]any {
	state := map[string]any{
		"state":       r.state,
		"active_team": r.game.Teams[r.activeTeam].JSON(),
	}

	switch r.state {
	case StatePreRound, StatePostRound:
		return state

	case StateQuestionSelection:
		avail := make([]any, 0, len(r.available))
		for _, a := range r.available {
			if a == "" {
				avail = append(avail, nil)
			} else {
				avail = append(avail, string(a))
			}
		}
		state["available"] = avail
		return state

	case StateAnswerRevealed:
		state["current"] = map[string]any{
			"question_type": r.current.Type,
			"connection":    r.current.Connection,
			"details":       r.current.Details,
			"elements":      r.elementsAny(r.current.Elements),
		}
		return state
	}

	if r.state == StateStealing && r.maxRevealed < len(r.current.Elements) {
		// The stealing team sees every revealed clue plus a placeholder
		// for the hidden final element.
		elements := r.elementsAny(r.current.Elements[:r.revealedClues])
		elements = append(elements, "?")
		state["current"] = map[string]any{
			"question_type": r.current.Type,
			"revealed":      len(r.current.Elements),
			"elements":      elements,
		}
	} else {
		state["current"] = map[string]any{
			"question_type": r.current.Type,
			"revealed":      r.revealedClues,
			"elements":      r.elementsAny(r.current.Elements[:r.revealedClues]),
		}
	}

	return state
}

func (r *StandardRound) AdminState() map[string]any {
	state := r.PublicState()

	if current, ok := state["current"].(map[string]any); ok {
		current["connection"] = r.current.Connection
		current["details"] = r.current.Details
		if r.maxRevealed < SlotsPerConnection {
			elements, _ := current["elements"].([]any)
			for len(elements) < SlotsPerConnection {
				elements = append(elements, "")
			}
			elements[r.maxRevealed] = r.current.Elements[r.maxRevealed]
			current["elements"] = elements
		}
	}

	return state
}

func (r *StandardRound) PossibleActions() set.Set[Action] {
	switch r.state {
	case StatePreRound:
		return set.New(ActNextQuestion)
	case StateQuestionSelection:
		avail := set.New[Action]()
		for _, a := range r.available {
			if a != "" {
				avail.Insert(a)
			}
		}
		return avail
	case StateQuestionActive:
		return set.New(ActLockIn, ActNextClue)
	case StateStealing:
		return set.New(ActScoreSteal, ActScoreIncorrect)
	case StateAnswerRevealed:
		return set.New(ActNextQuestion)
	case StatePostRound:
		return set.New(ActStartNextRound)
	}

	// LOCKED_IN
	if len(r.game.Teams) == 1 {
		return set.New(ActScoreTeam1, ActScoreIncorrect)
	}
	scorer := ActScoreTeam1
	if r.activeTeam == 1 {
		scorer = ActScoreTeam2
	}
	return set.New(scorer, ActRevealForSteal)
}

func (r *StandardRound) Do(action Action) bool {
	switch action {
	case ActNextQuestion:
		return r.nextQuestion()
	case ActNextClue:
		return r.nextClue()
	case ActLockIn:
		return r.lockIn()
	case ActRevealForSteal:
		return r.revealForSteal()
	case ActScoreTeam1:
		return r.score(0)
	case ActScoreTeam2:
		return r.score(1)
	case ActScoreSteal:
		return r.scoreSteal()
	case ActScoreIncorrect:
		return r.scoreIncorrect()
	}
	if isSelect(action) {
		return r.selectQuestion(action)
	}
	return false
}

func (r *StandardRound) nextQuestion() bool {
	if r.state != StatePreRound && r.state != StateAnswerRevealed {
		return false
	}

	remaining := false
	for _, a := range r.available {
		if a != "" {
			remaining = true
		}
	}
	if !remaining {
		r.state = StatePostRound
		return true
	}

	if len(r.game.Teams) != 1 && r.game.CurrentRound != RoundCompletions {
		r.activeTeam = 1 - r.activeTeam
	}

	r.state = StateQuestionSelection
	return true
}

func (r *StandardRound) selectQuestion(token Action) bool {
	if r.state != StateQuestionSelection {
		return false
	}

	for index, a := range r.available {
		if a == token {
			r.state = StateQuestionActive
			r.current = &r.data[index]
			r.revealedClues = 1
			r.available[index] = ""
			return true
		}
	}
	return false
}

func (r *StandardRound) nextClue() bool {
	if r.state != StateQuestionActive {
		return false
	}
	if r.revealedClues >= r.maxRevealed {
		return false
	}

	r.revealedClues++
	if r.revealedClues == r.maxRevealed {
		r.state = StateLockedIn
	}
	return true
}

func (r *StandardRound) lockIn() bool {
	if r.state != StateQuestionActive {
		return false
	}
	r.state = StateLockedIn
	return true
}

// scoreLadder maps revealed clue count to points: 5 on one clue, down to
// 1 on all four.
var scoreLadder = []int{0, 5, 3, 2, 1}

func (r *StandardRound) score(team int) bool {
	if r.state != StateLockedIn || team >= len(r.game.Teams) {
		return false
	}

	r.game.Teams[team].Score += scoreLadder[r.revealedClues]
	r.state = StateAnswerRevealed
	r.revealedClues = SlotsPerConnection
	return true
}

func (r *StandardRound) scoreSteal() bool {
	if r.state != StateStealing {
		return false
	}

	r.game.Teams[1-r.activeTeam].Score++
	r.state = StateAnswerRevealed
	r.revealedClues = SlotsPerConnection
	return true
}

func (r *StandardRound) scoreIncorrect() bool {
	if r.state != StateLockedIn && r.state != StateStealing {
		return false
	}

	r.state = StateAnswerRevealed
	r.revealedClues = SlotsPerConnection
	return true
}

func (r *StandardRound) revealForSteal() bool {
	if r.state != StateLockedIn || len(r.game.Teams) == 1 {
		return false
	}

	r.revealedClues = r.maxRevealed
	r.state = StateStealing
	return true
}
