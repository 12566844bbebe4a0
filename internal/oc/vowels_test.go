package oc

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckValid(t *testing.T) {
	assert.True(t, CheckValid("NLYCNNCT", "Only Connect"))
	assert.True(t, CheckValid("N LY CNN CT", "Only Connect"))
	assert.True(t, CheckValid("nly cnnct", "ONLY CONNECT"))

	assert.False(t, CheckValid("NLYCNNC", "Only Connect"))
	assert.False(t, CheckValid("", "Only Connect"))
	assert.False(t, CheckValid("XNLYCNNCT", "Only Connect"))
}

func TestGeneratePrompt(t *testing.T) {
	answers := []string{
		"Only Connect",
		"The Connecting Wall",
		"Missing Vowels",
		"A",
		"Aeiou",
	}

	for _, answer := range answers {
		for range 20 {
			prompt := GeneratePrompt(answer)
			assert.True(t, CheckValid(prompt, answer),
				"prompt %q should validate for %q", prompt, answer)
			assert.Equal(t, strings.TrimSpace(prompt), prompt)
			assert.NotContains(t, prompt, "  ")
		}
	}
}

func TestGeneratePromptAllVowels(t *testing.T) {
	// An answer that strips to nothing yields an empty prompt.
	assert.Equal(t, "", GeneratePrompt("AEIOU EAU"))
}

func TestPromptPattern(t *testing.T) {
	pattern, err := regexp.Compile(PromptPattern("Only Connect"))
	require.NoError(t, err)

	assert.True(t, pattern.MatchString("NLYCNNCT"))
	assert.True(t, pattern.MatchString("N L Y C N N C T"))
	assert.True(t, pattern.MatchString("NLY CNNCT"))
	assert.False(t, pattern.MatchString("NLYCNNC"))
	assert.False(t, pattern.MatchString(" NLYCNNCT"))

	for range 10 {
		assert.True(t, pattern.MatchString(GeneratePrompt("Only Connect")))
	}
}

func TestVowelPairValid(t *testing.T) {
	assert.True(t, VowelPair{Answer: "Only Connect", Prompt: "NLY CNNCT"}.Valid())
	assert.False(t, VowelPair{Answer: "Only Connect", Prompt: "wrong"}.Valid())
}

func TestValidPairsFilters(t *testing.T) {
	g := &MissingVowelsGroup{
		Connection: "Shows",
		Words: []VowelPair{
			{Answer: "Only Connect", Prompt: "NLY CNNCT"},
			{Answer: "University Challenge", Prompt: "nope"},
			{Answer: "Pointless", Prompt: "PNTLSS"},
		},
	}
	pairs := g.ValidPairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, "Only Connect", pairs[0].Answer)
	assert.Equal(t, "Pointless", pairs[1].Answer)
}

func TestMissingVowelsGroupJSONRoundTrip(t *testing.T) {
	g := &MissingVowelsGroup{
		Connection: "Shows",
		Words: []VowelPair{
			{Answer: "Only Connect", Prompt: "NLY CNNCT"},
			{Answer: "Bad", Prompt: "nope"},
		},
	}

	data, err := g.MarshalJSON()
	require.NoError(t, err)

	var back MissingVowelsGroup
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, g.Connection, back.Connection)
	require.Len(t, back.Words, 2)
	assert.Equal(t, g.Words[0], back.Words[0])
	assert.Equal(t, g.Words[1], back.Words[1])
}

func TestMissingVowelsGroupUnmarshalRejectsShortEntries(t *testing.T) {
	var g MissingVowelsGroup
	err := g.UnmarshalJSON([]byte(`{"connection":"x","words":[[0,"only"]]}`))
	assert.Error(t, err)
}
