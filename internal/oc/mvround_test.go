package oc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/set"
)

func mvGroups() []*MissingVowelsGroup {
	return []*MissingVowelsGroup{
		{Connection: "Shows", Words: []VowelPair{
			{Answer: "Only Connect", Prompt: "NLY CNNCT"},
			{Answer: "Pointless", Prompt: "PNTLSS"},
		}},
		{Connection: "Rivers", Words: []VowelPair{
			{Answer: "Severn", Prompt: "SVRN"},
		}},
	}
}

func TestMissingVowelsWalksGroups(t *testing.T) {
	ep := fullEpisode()
	ep.MissingVowels = mvGroups()
	g := NewGame(ep, []string{"A", "B"})
	require.True(t, g.StartRound(RoundMissingVowels))
	r := g.Current.(*MissingVowelsRound)

	assert.Equal(t, StatePreRound, r.state)
	assert.Equal(t, set.New(ActNextQuestion), r.PossibleActions())

	require.True(t, r.Do(ActNextQuestion))
	assert.Equal(t, StateQuestionActive, r.state)

	q := r.PublicState()["question"].(map[string]any)
	assert.Equal(t, "Shows", q["connection"])
	assert.Equal(t, "NLY CNNCT", q["text"])

	// Team 1 buzzes correctly: a point, and the answer shows.
	require.True(t, r.Do(ActScoreTeam1))
	assert.Equal(t, 1, g.Teams[0].Score)
	assert.Equal(t, StateAnswerRevealed, r.state)
	q = r.PublicState()["question"].(map[string]any)
	assert.Equal(t, "Only Connect", q["text"])

	require.True(t, r.Do(ActNextQuestion))
	q = r.PublicState()["question"].(map[string]any)
	assert.Equal(t, "PNTLSS", q["text"])

	// Nobody gets the second one; the group is exhausted, so the next
	// question starts the Rivers group.
	require.True(t, r.Do(ActScoreIncorrect))
	require.True(t, r.Do(ActNextQuestion))
	q = r.PublicState()["question"].(map[string]any)
	assert.Equal(t, "Rivers", q["connection"])

	require.True(t, r.Do(ActScoreTeam2))
	assert.Equal(t, 1, g.Teams[1].Score)
	require.True(t, r.Do(ActNextQuestion))

	assert.Equal(t, StatePostRound, r.state)
	assert.Equal(t, set.New(ActStartNextRound), r.PossibleActions())
}

func TestMissingVowelsAdminCarriesAnswer(t *testing.T) {
	ep := fullEpisode()
	ep.MissingVowels = mvGroups()
	g := NewGame(ep, []string{"Solo"})
	require.True(t, g.StartRound(RoundMissingVowels))
	r := g.Current.(*MissingVowelsRound)

	require.True(t, r.Do(ActNextQuestion))

	public := r.PublicState()["question"].(map[string]any)
	_, hasAnswer := public["answer"]
	assert.False(t, hasAnswer)

	admin := r.AdminState()["question"].(map[string]any)
	assert.Equal(t, "NLY CNNCT", admin["text"])
	assert.Equal(t, "Only Connect", admin["answer"])
}

func TestMissingVowelsSkipsInvalidPairs(t *testing.T) {
	groups := []*MissingVowelsGroup{
		{Connection: "Broken", Words: []VowelPair{
			{Answer: "Only Connect", Prompt: "wrong"},
		}},
		{Connection: "Fine", Words: []VowelPair{
			{Answer: "Pointless", Prompt: "PNTLSS"},
			{Answer: "Mismatch", Prompt: "also wrong"},
		}},
	}
	ep := fullEpisode()
	g := NewGame(ep, []string{"Solo"})
	r := NewMissingVowelsRound(g, groups)

	// The all-invalid group is dropped entirely, and the bad pair inside
	// the kept group never comes up.
	require.True(t, r.Do(ActNextQuestion))
	q := r.PublicState()["question"].(map[string]any)
	assert.Equal(t, "Fine", q["connection"])
	assert.Equal(t, "PNTLSS", q["text"])

	require.True(t, r.Do(ActScoreIncorrect))
	require.True(t, r.Do(ActNextQuestion))
	assert.Equal(t, StatePostRound, r.state)
}

func TestMissingVowelsScoreTeam2NeedsTwoTeams(t *testing.T) {
	ep := fullEpisode()
	g := NewGame(ep, []string{"Solo"})
	require.True(t, g.StartRound(RoundMissingVowels))
	r := g.Current.(*MissingVowelsRound)

	require.True(t, r.Do(ActNextQuestion))
	assert.False(t, r.Do(ActScoreTeam2))
	assert.Equal(t, StateQuestionActive, r.state)
}
