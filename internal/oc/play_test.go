package oc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbox/quizbox/internal/engine"
)

func TestPlayRoomEndpoints(t *testing.T) {
	meta := &engine.Episode{ID: 1, Title: "Grand Final"}
	r := NewPlayRoom(meta, fullEpisode(), "author", engine.RoomOptions{Teams: []string{"A", "B"}})
	t.Cleanup(r.Stop)

	names := make([]string, 0, 5)
	for _, ep := range r.Endpoints() {
		names = append(names, ep.Name)
	}
	assert.Equal(t, []string{"gm", "preview", "overlay", "team 1", "team 2"}, names)
	assert.Same(t, r.Endpoint("gm"), r.DefaultEndpoint())
	assert.Same(t, r.Endpoint("gm"), r.StartingEndpoint())
}

func TestPlayRoomDefaultsToOneTeam(t *testing.T) {
	meta := &engine.Episode{ID: 1, Title: "Solo Night"}
	r := NewPlayRoom(meta, fullEpisode(), "author", engine.RoomOptions{})
	t.Cleanup(r.Stop)

	names := make([]string, 0, 4)
	for _, ep := range r.Endpoints() {
		names = append(names, ep.Name)
	}
	assert.Equal(t, []string{"gm", "preview", "overlay", "team 1"}, names)
}

func TestSetupFrameViews(t *testing.T) {
	meta := &engine.Episode{ID: 1, Title: "Grand Final", Description: "the decider"}
	ep := fullEpisode()
	ep.MissingVowels = nil
	p := &playRoom{game: NewGame(ep, []string{"A"}), meta: meta, author: "author"}

	frame := p.setupFrame(false)
	assert.Equal(t, "setup", frame["cmd"])

	info, ok := frame["episode"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Grand Final", info["title"])
	assert.Equal(t, "author", info["author"])

	rounds, ok := info["rounds"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, rounds["connections"])
	assert.Equal(t, false, rounds["vowels"])

	// Public frames carry no action list; the admin frame does.
	state, ok := frame["state"].(map[string]any)
	require.True(t, ok)
	_, hasActions := state["actions"]
	assert.False(t, hasActions)

	admin := p.setupFrame(true)
	state, ok = admin["state"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, state, "actions")
}

func TestTeamVote(t *testing.T) {
	team := NewTeam("Quizzers")
	assert.Equal(t, "Quizzers", team.Name)
	assert.NotEmpty(t, team.ID)
	assert.Zero(t, team.Score)

	team.Vote = "left"
	j := team.JSON()
	assert.Equal(t, "Quizzers", j["name"])
	assert.Equal(t, 0, j["score"])
}
