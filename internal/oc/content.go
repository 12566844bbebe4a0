// Package oc implements the Only Connect game: episode content model,
// the four round state machines, and the play/edit/view rooms.
package oc

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	MaxTeams           = 2
	SlotsPerConnection = 4
	QuestionsPerRound  = 6
	WallsPerEpisode    = 2
)

// Clue is one cell of a question: either a text string or a reference to
// an uploaded media blob. The tag survives serialisation.
type Clue struct {
	Text   string
	BlobID string
}

// TextClue makes a plain text clue.
func TextClue(text string) Clue { return Clue{Text: text} }

// BlobClue makes a media clue referencing a stored blob.
func BlobClue(id string) Clue { return Clue{BlobID: id} }

// IsBlob reports whether the clue is a media reference.
func (c Clue) IsBlob() bool { return c.BlobID != "" }

// Empty reports whether the clue carries no content.
func (c Clue) Empty() bool { return c.Text == "" && c.BlobID == "" }

func (c Clue) MarshalJSON() ([]byte, error) {
	if c.IsBlob() {
		return json.Marshal(map[string]string{"blob": c.BlobID})
	}
	return json.Marshal(c.Text)
}

func (c *Clue) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = Clue{Text: text}
		return nil
	}

	var ref struct {
		Blob string `json:"blob"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("clue is neither text nor blob reference: %w", err)
	}
	if ref.Blob == "" {
		return errors.New("blob clue missing id")
	}
	*c = Clue{BlobID: ref.Blob}
	return nil
}

// Question is one connection: four clues, the connection that links them,
// and host-only notes.
type Question struct {
	Type       string `json:"question_type"`
	Connection string `json:"connection"`
	Details    string `json:"details"`
	Elements   []Clue `json:"elements"`
}

// DefaultQuestion returns an empty text question with four blank clues.
func DefaultQuestion() Question {
	return Question{
		Type:     "text",
		Elements: make([]Clue, SlotsPerConnection),
	}
}

// Valid reports whether the question is playable: a non-empty connection
// and all four elements present and non-empty.
func (q *Question) Valid() bool {
	if q.Connection == "" || len(q.Elements) != SlotsPerConnection {
		return false
	}
	for _, e := range q.Elements {
		if e.Empty() {
			return false
		}
	}
	return true
}

// TextOnly reports whether every element is a text clue. Wall questions
// must be text only.
func (q *Question) TextOnly() bool {
	for _, e := range q.Elements {
		if e.IsBlob() {
			return false
		}
	}
	return true
}

// Wall is one connecting wall: exactly four text questions forming the
// sixteen-cell grid.
type Wall []Question

// DefaultWall returns a wall of four blank questions.
func DefaultWall() Wall {
	w := make(Wall, SlotsPerConnection)
	for i := range w {
		w[i] = DefaultQuestion()
	}
	return w
}

// Valid reports whether all four wall questions are playable.
func (w Wall) Valid() bool {
	if len(w) != SlotsPerConnection {
		return false
	}
	for i := range w {
		if !w[i].Valid() || !w[i].TextOnly() {
			return false
		}
	}
	return true
}

// Clues returns the sixteen cell texts in group order.
func (w Wall) Clues() []string {
	var out []string
	for i := range w {
		for _, e := range w[i].Elements {
			out = append(out, e.Text)
		}
	}
	return out
}

// Episode is the Only Connect content payload. Every round section is
// optional; nil means the round is disabled.
type Episode struct {
	Title       string
	Description string

	Connections     []Question
	Completions     []Question
	ConnectingWalls []Wall
	MissingVowels   []*MissingVowelsGroup
}

type episodeJSON struct {
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Connections     []Question            `json:"connections"`
	Completions     []Question            `json:"completions"`
	ConnectingWalls []Wall                `json:"connecting_walls"`
	MissingVowels   []*MissingVowelsGroup `json:"missing_vowels"`
}

// ParseEpisode rebuilds the content tree from a stored payload. Broken
// JSON yields an empty episode. Missing sections are disabled; a present
// section with the wrong shape is rejected (also disabled).
func ParseEpisode(data string) *Episode {
	var raw episodeJSON
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return &Episode{}
	}

	ep := &Episode{Title: raw.Title, Description: raw.Description}

	if len(raw.Connections) == QuestionsPerRound {
		ep.Connections = raw.Connections
	}
	if len(raw.Completions) == QuestionsPerRound {
		ep.Completions = raw.Completions
	}

	if len(raw.ConnectingWalls) == WallsPerEpisode {
		ok := true
		for _, w := range raw.ConnectingWalls {
			if len(w) != SlotsPerConnection {
				ok = false
			}
		}
		if ok {
			ep.ConnectingWalls = raw.ConnectingWalls
		}
	}

	if raw.MissingVowels != nil {
		groups := make([]*MissingVowelsGroup, 0, len(raw.MissingVowels))
		for _, g := range raw.MissingVowels {
			if g != nil && len(g.Words) > 0 {
				groups = append(groups, g)
			}
		}
		ep.MissingVowels = groups
	}

	return ep
}

// JSON produces the canonical tree for durable storage.
func (ep *Episode) JSON() map[string]any {
	out := map[string]any{
		"title":            ep.Title,
		"description":      ep.Description,
		"connections":      nil,
		"completions":      nil,
		"connecting_walls": nil,
		"missing_vowels":   nil,
	}
	if ep.Connections != nil {
		out["connections"] = ep.Connections
	}
	if ep.Completions != nil {
		out["completions"] = ep.Completions
	}
	if ep.ConnectingWalls != nil {
		out["connecting_walls"] = ep.ConnectingWalls
	}
	if ep.MissingVowels != nil {
		out["missing_vowels"] = ep.MissingVowels
	}
	return out
}

// Serialise encodes the canonical tree as compact text.
func (ep *Episode) Serialise() string {
	data, err := json.Marshal(ep.JSON())
	if err != nil {
		// All field types marshal cleanly; this cannot happen with a
		// well-formed episode.
		return "{}"
	}
	return string(data)
}

func sectionValid(qs []Question) bool {
	if len(qs) != QuestionsPerRound {
		return false
	}
	for i := range qs {
		if !qs[i].Valid() {
			return false
		}
	}
	return true
}

// HasConnections reports whether the connections round is enabled and valid.
func (ep *Episode) HasConnections() bool { return sectionValid(ep.Connections) }

// HasCompletions reports whether the completions round is enabled and valid.
func (ep *Episode) HasCompletions() bool { return sectionValid(ep.Completions) }

// HasConnectingWalls reports whether the walls round is offerable for the
// given team count: one valid wall suffices for one team, two teams need
// both.
func (ep *Episode) HasConnectingWalls(teams int) bool {
	if len(ep.ConnectingWalls) != WallsPerEpisode {
		return false
	}
	if !ep.ConnectingWalls[0].Valid() {
		return false
	}
	if teams > 1 && !ep.ConnectingWalls[1].Valid() {
		return false
	}
	return true
}

// HasMissingVowels reports whether at least one group has a valid pair.
func (ep *Episode) HasMissingVowels() bool {
	for _, g := range ep.MissingVowels {
		if g != nil && len(g.ValidPairs()) > 0 {
			return true
		}
	}
	return false
}
