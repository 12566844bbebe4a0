package oc

import (
	"errors"
	"math/rand/v2"
	"slices"

	"k8s.io/utils/set"
)

// errWallFinished signals that the wall stopped accepting input: either
// solved or out of strikes.
var errWallFinished = errors.New("wall finished")

// ActiveWall is the live state of one connecting wall being solved: the
// sixteen clues split across grouped, ungrouped and not-found, the current
// selection, the strike counter and the post-solve confirmation cursor.
type ActiveWall struct {
	wall Wall

	Grouped   []string
	Ungrouped []string
	NotFound  []string
	Selected  []int

	// Strikes is nil until only two groups remain, then counts down from 3.
	Strikes *int

	Groups          []Question
	ConfirmingGroup int
	IsGroupRevealed bool
}

// NewActiveWall shuffles the wall's clues onto the board.
func NewActiveWall(w Wall) *ActiveWall {
	words := w.Clues()
	rand.Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})

	return &ActiveWall{
		wall:            w,
		Ungrouped:       words,
		Grouped:         []string{},
		NotFound:        []string{},
		Selected:        []int{},
		ConfirmingGroup: -1,
		IsGroupRevealed: true,
	}
}

// Toggle selects or deselects a clue by text. emit is called after each
// visible change so callers can fan out intermediate states. Returns
// errWallFinished when the board solves or strikes run out.
func (w *ActiveWall) Toggle(word string, emit func()) error {
	index := slices.Index(w.Ungrouped, word)
	if index < 0 {
		return nil
	}

	if i := slices.Index(w.Selected, index); i >= 0 {
		w.Selected = slices.Delete(w.Selected, i, i+1)
		emit()
		return nil
	}

	w.Selected = append(w.Selected, index)
	// Show the selection before resolving a possible match.
	emit()

	if len(w.Selected) != SlotsPerConnection {
		return nil
	}

	selectedWords := make([]string, 0, SlotsPerConnection)
	for _, idx := range w.Selected {
		selectedWords = append(selectedWords, w.Ungrouped[idx])
	}
	err := w.checkMatchGroup(selectedWords)

	w.Selected = []int{}
	emit()
	return err
}

func (w *ActiveWall) checkMatchGroup(words []string) error {
	for i := range w.wall {
		group := &w.wall[i]
		if !wordsInGroup(words, group) {
			continue
		}

		// Move the selected entries from ungrouped to grouped.
		indices := append([]int(nil), w.Selected...)
		slices.Sort(indices)
		for j := len(indices) - 1; j >= 0; j-- {
			w.Ungrouped = slices.Delete(w.Ungrouped, indices[j], indices[j]+1)
		}
		for _, e := range group.Elements {
			w.Grouped = append(w.Grouped, e.Text)
		}
		w.Groups = append(w.Groups, *group)

		// The three strikes start when two groups remain.
		if len(w.Ungrouped) == 2*SlotsPerConnection {
			strikes := 3
			w.Strikes = &strikes
		}

		if len(w.Ungrouped) == 0 {
			return errWallFinished
		}
		return nil
	}

	// No group matched: burn a strike if they are being counted.
	if w.Strikes != nil {
		*w.Strikes--
		if *w.Strikes <= 0 {
			return errWallFinished
		}
	}
	return nil
}

func wordsInGroup(words []string, group *Question) bool {
	for _, word := range words {
		found := false
		for _, e := range group.Elements {
			if e.Text == word {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RevealWall moves every remaining clue into not-found, group by group,
// and stops counting strikes.
func (w *ActiveWall) RevealWall() {
	w.Strikes = nil

	for len(w.Ungrouped) > 0 {
		groupOn := w.Ungrouped[0]
		for i := range w.wall {
			group := &w.wall[i]
			if !clueInGroup(groupOn, group) {
				continue
			}

			for _, e := range group.Elements {
				w.NotFound = append(w.NotFound, e.Text)
			}
			w.Groups = append(w.Groups, *group)

			for _, e := range group.Elements {
				if idx := slices.Index(w.Ungrouped, e.Text); idx >= 0 {
					w.Ungrouped = slices.Delete(w.Ungrouped, idx, idx+1)
				}
			}
			break
		}
	}
}

func clueInGroup(word string, group *Question) bool {
	for _, e := range group.Elements {
		if e.Text == word {
			return true
		}
	}
	return false
}

// StartConfirmNextGroup advances the confirmation cursor to the next
// found group and hides its connection until the host scores it.
func (w *ActiveWall) StartConfirmNextGroup() {
	w.ConfirmingGroup++
	w.IsGroupRevealed = false
}

// JSON serialises the board. The admin view additionally carries the
// connection and details of the group being confirmed.
func (w *ActiveWall) JSON(admin bool) map[string]any {
	var confirming map[string]any
	if w.ConfirmingGroup >= 0 && w.ConfirmingGroup < len(w.Groups) {
		group := w.Groups[w.ConfirmingGroup]
		var connection, details any
		if admin || w.IsGroupRevealed {
			connection = group.Connection
		}
		if admin {
			details = group.Details
		}
		clues := make([]string, 0, len(group.Elements))
		for _, e := range group.Elements {
			clues = append(clues, e.Text)
		}
		confirming = map[string]any{
			"group_id":   w.ConfirmingGroup,
			"clues":      clues,
			"connection": connection,
			"details":    details,
		}
	}

	var strikes any
	if w.Strikes != nil {
		strikes = *w.Strikes
	}

	return map[string]any{
		"grouped":    w.Grouped,
		"ungrouped":  w.Ungrouped,
		"not_found":  w.NotFound,
		"selected":   w.Selected,
		"strikes":    strikes,
		"confirming": confirming,
	}
}

// WallRound runs the connecting walls: each team picks and solves a wall,
// then the host confirms the groups one by one.
type WallRound struct {
	game *Game

	state          InRoundState
	availableWalls []*Wall
	activeTeam     int
	activeWall     *ActiveWall
}

// NewWallRound sets up the round. The team entering with the higher score
// picks its wall first.
func NewWallRound(g *Game, walls []Wall) *WallRound {
	available := make([]*Wall, WallsPerEpisode)
	for i := range walls {
		w := walls[i]
		available[i] = &w
	}

	r := &WallRound{
		game:           g,
		state:          StatePreRound,
		availableWalls: available,
	}
	if len(g.Teams) > 1 && g.Teams[1].Score > g.Teams[0].Score {
		r.activeTeam = 1
	}
	return r
}

func (r *WallRound) stateJSON(admin bool) map[string]any {
	available := make([]any, 0, len(r.availableWalls))
	for _, w := range r.availableWalls {
		available = append(available, w != nil)
	}

	var current any
	if r.activeWall != nil {
		current = r.activeWall.JSON(admin)
	}

	return map[string]any{
		"round":       RoundConnectingWalls,
		"state":       r.state,
		"active_team": r.game.Teams[r.activeTeam].JSON(),
		"available":   available,
		"current":     current,
	}
}

func (r *WallRound) PublicState() map[string]any { return r.stateJSON(false) }
func (r *WallRound) AdminState() map[string]any  { return r.stateJSON(true) }

func (r *WallRound) PossibleActions() set.Set[Action] {
	switch r.state {
	case StatePreRound:
		return set.New(ActNextQuestion)
	case StateQuestionSelection:
		avail := set.New[Action]()
		if r.availableWalls[0] != nil {
			avail.Insert(ActSelectLion)
		}
		if r.availableWalls[1] != nil {
			avail.Insert(ActSelectWater)
		}
		return avail
	case StatePostRound:
		return set.New(ActStartNextRound)
	}

	// The players solving a wall can give up at any time.
	if r.state != StateLockedIn && r.activeWall != nil {
		return set.New(ActLockIn)
	}

	if r.activeWall != nil &&
		r.activeWall.ConfirmingGroup == SlotsPerConnection-1 &&
		r.activeWall.IsGroupRevealed {
		return set.New(ActNextQuestion)
	}

	if r.activeWall != nil && r.activeWall.IsGroupRevealed {
		return set.New(ActRevealForSteal)
	}

	scorer := ActScoreTeam1
	if r.activeTeam == 1 {
		scorer = ActScoreTeam2
	}
	return set.New(scorer, ActScoreIncorrect)
}

func (r *WallRound) Do(action Action) bool {
	switch action {
	case ActNextQuestion:
		return r.nextQuestion()
	case ActSelectLion:
		return r.selectWall(0)
	case ActSelectWater:
		return r.selectWall(1)
	case ActLockIn:
		return r.LockIn()
	case ActRevealForSteal:
		return r.revealForSteal()
	case ActScoreTeam1:
		return r.scoreConfirm(0, true)
	case ActScoreTeam2:
		return r.scoreConfirm(1, true)
	case ActScoreIncorrect:
		return r.scoreConfirm(0, false)
	}
	return false
}

func (r *WallRound) selectWall(index int) bool {
	if r.state != StateQuestionSelection {
		return false
	}
	if r.availableWalls[index] == nil {
		return false
	}

	r.activeWall = NewActiveWall(*r.availableWalls[index])
	r.availableWalls[index] = nil
	r.state = StateQuestionActive
	return true
}

func (r *WallRound) nextQuestion() bool {
	if r.state == StatePreRound {
		r.state = StateQuestionSelection
		return true
	}

	if r.state != StateLockedIn || r.activeWall == nil ||
		r.activeWall.ConfirmingGroup < SlotsPerConnection-1 {
		return false
	}

	anyLeft := false
	for _, w := range r.availableWalls {
		if w != nil {
			anyLeft = true
		}
	}
	if len(r.game.Teams) == 1 || !anyLeft {
		r.state = StatePostRound
		return true
	}

	r.state = StateQuestionSelection
	r.activeTeam = 1 - r.activeTeam
	return true
}

// LockIn ends wall solving: the team banks one point per found group, the
// remaining clues are revealed, and confirmation begins.
func (r *WallRound) LockIn() bool {
	if r.state != StateQuestionActive || r.activeWall == nil {
		return false
	}

	r.game.Teams[r.activeTeam].Score += len(r.activeWall.Grouped) / SlotsPerConnection
	r.activeWall.RevealWall()
	r.state = StateLockedIn
	return true
}

// Toggle flips a clue's selection, calling emit after each visible change.
// Solving the board or running out of strikes auto-locks the wall.
func (r *WallRound) Toggle(word string, emit func()) {
	if r.activeWall == nil {
		return
	}

	if err := r.activeWall.Toggle(word, emit); err != nil {
		r.LockIn()
		emit()
	}
}

func (r *WallRound) revealForSteal() bool {
	if r.state != StateLockedIn || r.activeWall == nil {
		return false
	}

	r.activeWall.StartConfirmNextGroup()
	return true
}

func (r *WallRound) scoreConfirm(team int, credit bool) bool {
	if r.state != StateLockedIn || r.activeWall == nil ||
		r.activeWall.ConfirmingGroup < 0 || r.activeWall.IsGroupRevealed {
		return false
	}
	if credit && team >= len(r.game.Teams) {
		return false
	}

	if credit {
		r.game.Teams[team].Score++
	}
	r.activeWall.IsGroupRevealed = true
	return true
}
