package oc

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

var vowelsAndSpaces = regexp.MustCompile(`[ AEIOU]`)

func stripVowels(answer string) string {
	return vowelsAndSpaces.ReplaceAllString(strings.ToUpper(answer), "")
}

// CheckValid reports whether a prompt is the vowel-stripped form of the
// answer: uppercased, spaces ignored on the prompt side.
func CheckValid(prompt, answer string) bool {
	return strings.ReplaceAll(strings.ToUpper(prompt), " ", "") == stripVowels(answer)
}

// GeneratePrompt builds a display prompt for an answer: strip spaces and
// vowels, then re-split with spaces at a random stride of 2 to 6 characters.
func GeneratePrompt(answer string) string {
	prompt := stripVowels(answer)

	x := 0
	for {
		x += 2 + rand.IntN(5)
		if x >= len(prompt) {
			break
		}
		prompt = prompt[:x] + " " + prompt[x:]
	}

	return strings.TrimSpace(prompt)
}

// PromptPattern returns a human-typable regular expression matching any
// spacing of the answer's stripped consonant sequence.
func PromptPattern(answer string) string {
	stripped := stripVowels(answer)
	return "^" + strings.Join(strings.Split(stripped, ""), " ?") + "$"
}

// VowelPair is one missing-vowels puzzle: the answer and its displayed
// prompt.
type VowelPair struct {
	Answer string
	Prompt string
}

// Valid reports whether the prompt really is the stripped answer.
func (p VowelPair) Valid() bool {
	return CheckValid(p.Prompt, p.Answer)
}

// MissingVowelsGroup is one connection's worth of vowel puzzles.
type MissingVowelsGroup struct {
	Connection string
	Words      []VowelPair
}

// ValidPairs returns the pairs that pass validation, in order.
func (g *MissingVowelsGroup) ValidPairs() []VowelPair {
	var out []VowelPair
	for _, p := range g.Words {
		if p.Valid() {
			out = append(out, p)
		}
	}
	return out
}

// The stored form indexes each pair and carries its validity so clients
// can render it without re-deriving: [index, answer, prompt, valid].
func (g *MissingVowelsGroup) MarshalJSON() ([]byte, error) {
	words := make([][]any, 0, len(g.Words))
	for i, p := range g.Words {
		words = append(words, []any{i, p.Answer, p.Prompt, p.Valid()})
	}
	return json.Marshal(map[string]any{
		"connection": g.Connection,
		"words":      words,
	})
}

func (g *MissingVowelsGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Connection string  `json:"connection"`
		Words      [][]any `json:"words"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("bad missing vowels group: %w", err)
	}

	g.Connection = raw.Connection
	g.Words = nil
	for _, word := range raw.Words {
		if len(word) < 3 {
			return fmt.Errorf("bad missing vowels word entry (%d fields)", len(word))
		}
		answer, ok1 := word[1].(string)
		prompt, ok2 := word[2].(string)
		if !ok1 || !ok2 {
			return fmt.Errorf("bad missing vowels word entry")
		}
		g.Words = append(g.Words, VowelPair{Answer: answer, Prompt: prompt})
	}
	return nil
}
