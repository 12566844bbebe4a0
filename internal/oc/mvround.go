package oc

import "k8s.io/utils/set"

// MissingVowelsRound runs the final round: rapid-fire vowel puzzles,
// grouped by connection, one point each.
type MissingVowelsRound struct {
	game *Game

	state InRoundState

	groups       []*MissingVowelsGroup
	currentGroup []VowelPair

	groupIndex    int
	questionIndex int
}

// NewMissingVowelsRound keeps only the groups with at least one valid
// pair; invalid pairs inside a kept group are skipped too.
func NewMissingVowelsRound(g *Game, groups []*MissingVowelsGroup) *MissingVowelsRound {
	kept := make([]*MissingVowelsGroup, 0, len(groups))
	for _, group := range groups {
		if group != nil && len(group.ValidPairs()) > 0 {
			kept = append(kept, group)
		}
	}

	return &MissingVowelsRound{
		game:          g,
		state:         StatePreRound,
		groups:        kept,
		groupIndex:    -1,
		questionIndex: -1,
	}
}

func (r *MissingVowelsRound) activeQuestion() map[string]any {
	switch r.state {
	case StateQuestionActive:
		return map[string]any{
			"connection": r.groups[r.groupIndex].Connection,
			"text":       r.currentGroup[r.questionIndex].Prompt,
		}
	case StateAnswerRevealed:
		return map[string]any{
			"connection": r.groups[r.groupIndex].Connection,
			"text":       r.currentGroup[r.questionIndex].Answer,
		}
	}
	return nil
}

func (r *MissingVowelsRound) PublicState() map[string]any {
	var question any
	if q := r.activeQuestion(); q != nil {
		question = q
	}
	return map[string]any{
		"round":    RoundMissingVowels,
		"state":    r.state,
		"question": question,
	}
}

func (r *MissingVowelsRound) AdminState() map[string]any {
	state := r.PublicState()

	if state["question"] != nil {
		state["question"] = map[string]any{
			"connection": r.groups[r.groupIndex].Connection,
			"text":       r.currentGroup[r.questionIndex].Prompt,
			"answer":     r.currentGroup[r.questionIndex].Answer,
		}
	}
	return state
}

func (r *MissingVowelsRound) PossibleActions() set.Set[Action] {
	switch r.state {
	case StateQuestionActive:
		return set.New(ActScoreTeam1, ActScoreTeam2, ActScoreIncorrect)
	case StatePostRound:
		return set.New(ActStartNextRound)
	}
	return set.New(ActNextQuestion)
}

func (r *MissingVowelsRound) Do(action Action) bool {
	switch action {
	case ActNextQuestion:
		return r.nextQuestion()
	case ActScoreTeam1:
		return r.score(0)
	case ActScoreTeam2:
		return r.score(1)
	case ActScoreIncorrect:
		return r.scoreIncorrect()
	}
	return false
}

func (r *MissingVowelsRound) nextGroup() {
	r.groupIndex++

	if r.groupIndex >= len(r.groups) {
		r.state = StatePostRound
		return
	}

	r.currentGroup = r.groups[r.groupIndex].ValidPairs()
	r.questionIndex = 0
	r.state = StateQuestionActive
}

func (r *MissingVowelsRound) nextQuestion() bool {
	if r.state == StatePreRound {
		r.nextGroup()
		return true
	}

	if r.state != StateAnswerRevealed {
		return false
	}

	r.questionIndex++
	r.state = StateQuestionActive
	if r.questionIndex >= len(r.currentGroup) {
		r.nextGroup()
	}
	return true
}

func (r *MissingVowelsRound) score(team int) bool {
	if r.state != StateQuestionActive || team >= len(r.game.Teams) {
		return false
	}

	r.game.Teams[team].Score++
	r.state = StateAnswerRevealed
	return true
}

func (r *MissingVowelsRound) scoreIncorrect() bool {
	if r.state != StateQuestionActive {
		return false
	}

	r.state = StateAnswerRevealed
	return true
}
