package oc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/set"
)

func newConnectionsGame(t *testing.T, teams ...string) *Game {
	t.Helper()
	g := NewGame(fullEpisode(), teams)
	require.True(t, g.StartRound(RoundConnections))
	return g
}

// A single team buzzes on clue 1, 2, 3 and 4 across four questions. The
// ladder pays 5+3+2+1 = 11.
func TestConnectionsScoreLadder(t *testing.T) {
	g := newConnectionsGame(t, "Solo")
	r := g.Current.(*StandardRound)

	for buzzAt := 1; buzzAt <= 4; buzzAt++ {
		require.True(t, r.Do(ActNextQuestion))
		require.Equal(t, StateQuestionSelection, r.state)

		require.True(t, r.Do(selectActions[buzzAt-1]))
		require.Equal(t, StateQuestionActive, r.state)
		assert.Equal(t, 1, r.revealedClues)

		for i := 1; i < buzzAt; i++ {
			require.True(t, r.Do(ActNextClue))
		}
		assert.Equal(t, buzzAt, r.revealedClues)

		if r.state != StateLockedIn {
			require.True(t, r.Do(ActLockIn))
		}
		require.True(t, r.Do(ActScoreTeam1))
		require.Equal(t, StateAnswerRevealed, r.state)
	}

	assert.Equal(t, 11, g.Teams[0].Score)
}

// In Completions only three clues ever reveal; the admin view shows the
// sought fourth element in the final slot.
func TestCompletionsHidesFinalElement(t *testing.T) {
	g := NewGame(fullEpisode(), []string{"A", "B"})
	require.True(t, g.StartRound(RoundCompletions))
	r := g.Current.(*StandardRound)

	assert.Equal(t, SlotsPerConnection-1, r.maxRevealed)
	// The completions picker does not alternate.
	assert.Equal(t, 0, r.activeTeam)

	require.True(t, r.Do(ActNextQuestion))
	require.True(t, r.Do(ActSelectTwoReeds))
	require.True(t, r.Do(ActNextClue))
	require.True(t, r.Do(ActNextClue))

	// Revealing the third clue locks the question automatically.
	assert.Equal(t, 3, r.revealedClues)
	assert.Equal(t, StateLockedIn, r.state)
	assert.False(t, r.Do(ActNextClue))

	public, ok := r.PublicState()["current"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, public["elements"], 3)

	admin, ok := r.AdminState()["current"].(map[string]any)
	require.True(t, ok)
	elements, ok := admin["elements"].([]any)
	require.True(t, ok)
	require.Len(t, elements, SlotsPerConnection)
	assert.Equal(t, r.current.Elements[3], elements[3])
}

func TestStandardStealFlow(t *testing.T) {
	g := newConnectionsGame(t, "A", "B")
	r := g.Current.(*StandardRound)

	// Team 2 picks first in a two-team game.
	assert.Equal(t, 1, r.activeTeam)

	require.True(t, r.Do(ActNextQuestion))
	assert.Equal(t, 0, r.activeTeam)

	require.True(t, r.Do(ActSelectLion))
	require.True(t, r.Do(ActLockIn))

	actions := r.PossibleActions()
	assert.True(t, actions.Has(ActScoreTeam1))
	assert.True(t, actions.Has(ActRevealForSteal))
	assert.False(t, actions.Has(ActScoreTeam2))

	require.True(t, r.Do(ActRevealForSteal))
	assert.Equal(t, StateStealing, r.state)
	assert.Equal(t, set.New(ActScoreSteal, ActScoreIncorrect), r.PossibleActions())

	require.True(t, r.Do(ActScoreSteal))
	assert.Equal(t, 1, g.Teams[1].Score)
	assert.Equal(t, 0, g.Teams[0].Score)
	assert.Equal(t, StateAnswerRevealed, r.state)
}

func TestStealHidesFinalCompletionsElement(t *testing.T) {
	g := NewGame(fullEpisode(), []string{"A", "B"})
	require.True(t, g.StartRound(RoundCompletions))
	r := g.Current.(*StandardRound)

	require.True(t, r.Do(ActNextQuestion))
	require.True(t, r.Do(ActSelectTwoReeds))
	require.True(t, r.Do(ActLockIn))
	require.True(t, r.Do(ActRevealForSteal))

	public, ok := r.PublicState()["current"].(map[string]any)
	require.True(t, ok)
	elements, ok := public["elements"].([]any)
	require.True(t, ok)
	require.Len(t, elements, SlotsPerConnection)
	assert.Equal(t, "?", elements[SlotsPerConnection-1])
}

func TestRevealForStealNeedsTwoTeams(t *testing.T) {
	g := newConnectionsGame(t, "Solo")
	r := g.Current.(*StandardRound)

	require.True(t, r.Do(ActNextQuestion))
	require.True(t, r.Do(ActSelectTwoReeds))
	require.True(t, r.Do(ActLockIn))

	assert.False(t, r.Do(ActRevealForSteal))
	assert.Equal(t, set.New(ActScoreTeam1, ActScoreIncorrect), r.PossibleActions())
}

func TestStandardRoundExhaustsToPostRound(t *testing.T) {
	g := newConnectionsGame(t, "Solo")
	r := g.Current.(*StandardRound)

	for i := range QuestionsPerRound {
		require.True(t, r.Do(ActNextQuestion))
		require.True(t, r.Do(selectActions[i]))
		require.True(t, r.Do(ActLockIn))
		require.True(t, r.Do(ActScoreIncorrect))
	}

	require.True(t, r.Do(ActNextQuestion))
	assert.Equal(t, StatePostRound, r.state)
	assert.Equal(t, set.New(ActStartNextRound), r.PossibleActions())
}

func TestSelectionConsumesSlots(t *testing.T) {
	g := newConnectionsGame(t, "Solo")
	r := g.Current.(*StandardRound)

	require.True(t, r.Do(ActNextQuestion))
	require.True(t, r.Do(ActSelectWater))

	// The slot is gone from the selection view and cannot be re-picked.
	require.True(t, r.Do(ActLockIn))
	require.True(t, r.Do(ActScoreIncorrect))
	require.True(t, r.Do(ActNextQuestion))

	assert.False(t, r.PossibleActions().Has(ActSelectWater))
	assert.False(t, r.Do(ActSelectWater))
}

func TestImpossibleActionsAreSilentNoOps(t *testing.T) {
	g := newConnectionsGame(t, "A", "B")
	r := g.Current.(*StandardRound)

	before := g.Teams[0].Score
	assert.False(t, r.Do(ActScoreTeam1))
	assert.False(t, r.Do(ActNextClue))
	assert.False(t, r.Do(ActSelectLion))
	assert.Equal(t, before, g.Teams[0].Score)
	assert.Equal(t, StatePreRound, r.state)
}
