package oc

import "github.com/google/uuid"

// Team is one competing team in a play room: stable id, display name,
// running score and the team channel's current vote, if any.
type Team struct {
	ID    string
	Name  string
	Score int
	Vote  string
}

// NewTeam creates a team with a fresh id and zero score.
func NewTeam(name string) *Team {
	return &Team{ID: uuid.NewString(), Name: name}
}

// JSON is the wire form of the team used in state snapshots.
func (t *Team) JSON() map[string]any {
	return map[string]any{"id": t.ID, "name": t.Name, "score": t.Score}
}
