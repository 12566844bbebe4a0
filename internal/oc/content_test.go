package oc

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textQuestion(connection string, elements ...string) Question {
	q := Question{Type: "text", Connection: connection}
	for _, e := range elements {
		q.Elements = append(q.Elements, TextClue(e))
	}
	return q
}

func validSection(prefix string) []Question {
	qs := make([]Question, QuestionsPerRound)
	for i := range qs {
		qs[i] = textQuestion(
			fmt.Sprintf("%s connection %d", prefix, i),
			fmt.Sprintf("%s%d-a", prefix, i),
			fmt.Sprintf("%s%d-b", prefix, i),
			fmt.Sprintf("%s%d-c", prefix, i),
			fmt.Sprintf("%s%d-d", prefix, i),
		)
	}
	return qs
}

func validWall(prefix string) Wall {
	w := make(Wall, SlotsPerConnection)
	for i := range w {
		w[i] = textQuestion(
			fmt.Sprintf("%s group %d", prefix, i),
			fmt.Sprintf("%s%d-1", prefix, i),
			fmt.Sprintf("%s%d-2", prefix, i),
			fmt.Sprintf("%s%d-3", prefix, i),
			fmt.Sprintf("%s%d-4", prefix, i),
		)
	}
	return w
}

func fullEpisode() *Episode {
	return &Episode{
		Title:           "Test Episode",
		Description:     "for the tests",
		Connections:     validSection("cn"),
		Completions:     validSection("cp"),
		ConnectingWalls: []Wall{validWall("w0"), validWall("w1")},
		MissingVowels: []*MissingVowelsGroup{
			{Connection: "Shows", Words: []VowelPair{
				{Answer: "Only Connect", Prompt: "NLY CNNCT"},
				{Answer: "Pointless", Prompt: "PNTLSS"},
			}},
		},
	}
}

func TestClueJSON(t *testing.T) {
	text, err := json.Marshal(TextClue("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(text))

	media, err := json.Marshal(BlobClue("abc123"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"blob":"abc123"}`, string(media))

	var c Clue
	require.NoError(t, json.Unmarshal([]byte(`"plain"`), &c))
	assert.Equal(t, TextClue("plain"), c)

	require.NoError(t, json.Unmarshal([]byte(`{"blob":"abc123"}`), &c))
	assert.Equal(t, BlobClue("abc123"), c)

	assert.Error(t, json.Unmarshal([]byte(`{"blob":""}`), &c))
	assert.Error(t, json.Unmarshal([]byte(`42`), &c))
}

func TestEpisodeSerialiseRoundTrip(t *testing.T) {
	ep := fullEpisode()
	back := ParseEpisode(ep.Serialise())

	assert.Equal(t, ep.Title, back.Title)
	assert.Equal(t, ep.Description, back.Description)
	assert.Equal(t, ep.Connections, back.Connections)
	assert.Equal(t, ep.Completions, back.Completions)
	assert.Equal(t, ep.ConnectingWalls, back.ConnectingWalls)
	require.Len(t, back.MissingVowels, 1)
	assert.Equal(t, ep.MissingVowels[0].Connection, back.MissingVowels[0].Connection)
	assert.Equal(t, ep.MissingVowels[0].Words, back.MissingVowels[0].Words)
}

func TestParseEpisodeBrokenJSON(t *testing.T) {
	ep := ParseEpisode("not json at all")
	assert.Nil(t, ep.Connections)
	assert.Nil(t, ep.Completions)
	assert.Nil(t, ep.ConnectingWalls)
	assert.Nil(t, ep.MissingVowels)
}

func TestParseEpisodeRejectsWrongShape(t *testing.T) {
	// Five connections instead of six: the section is disabled.
	ep := fullEpisode()
	ep.Connections = ep.Connections[:5]
	back := ParseEpisode(ep.Serialise())
	assert.Nil(t, back.Connections)
	assert.NotNil(t, back.Completions)

	// A wall with three groups disables the walls section.
	ep = fullEpisode()
	ep.ConnectingWalls[1] = ep.ConnectingWalls[1][:3]
	back = ParseEpisode(ep.Serialise())
	assert.Nil(t, back.ConnectingWalls)
}

func TestQuestionValid(t *testing.T) {
	q := textQuestion("conn", "a", "b", "c", "d")
	assert.True(t, q.Valid())

	q.Connection = ""
	assert.False(t, q.Valid())

	q = textQuestion("conn", "a", "b", "c")
	assert.False(t, q.Valid())

	q = textQuestion("conn", "a", "b", "c", "")
	assert.False(t, q.Valid())
}

func TestWallValidRequiresTextOnly(t *testing.T) {
	w := validWall("w")
	assert.True(t, w.Valid())

	w[2].Elements[1] = BlobClue("abc")
	assert.False(t, w.Valid())
}

func TestWallClues(t *testing.T) {
	w := validWall("w")
	clues := w.Clues()
	assert.Len(t, clues, SlotsPerConnection*SlotsPerConnection)
	assert.Equal(t, "w0-1", clues[0])
	assert.Equal(t, "w3-4", clues[15])
}

func TestHasConnectingWallsTeamCount(t *testing.T) {
	ep := fullEpisode()
	assert.True(t, ep.HasConnectingWalls(1))
	assert.True(t, ep.HasConnectingWalls(2))

	// Second wall broken: still playable for one team, not for two.
	ep.ConnectingWalls[1][0].Connection = ""
	assert.True(t, ep.HasConnectingWalls(1))
	assert.False(t, ep.HasConnectingWalls(2))

	ep.ConnectingWalls = nil
	assert.False(t, ep.HasConnectingWalls(1))
}

func TestHasMissingVowels(t *testing.T) {
	ep := fullEpisode()
	assert.True(t, ep.HasMissingVowels())

	ep.MissingVowels[0].Words[0].Prompt = "wrong"
	ep.MissingVowels[0].Words[1].Prompt = "wrong"
	assert.False(t, ep.HasMissingVowels())
}
