package oc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quizbox/quizbox/internal/engine"
	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/room"
	"github.com/quizbox/quizbox/internal/store"
	"go.uber.org/zap"
)

const (
	// Accepted mutations push the durable write out by this much, so a
	// burst of keystrokes becomes one write.
	saveDebounce = 3 * time.Second
	// The background saver polls the debounce deadline at this interval.
	saverPoll = 5 * time.Second
)

// editRoom is a live edit session over one episode draft. Multiple editors
// share the in-memory episode; edits are last-writer-wins per field and
// every accepted mutation is broadcast and queued for a debounced save.
type editRoom struct {
	room *room.Room
	eng  *Engine
	meta *engine.Episode

	// current is the editable episode. shadow keeps the most recent
	// contents of disabled sections so re-enabling restores them.
	current *Episode
	shadow  map[string]any

	// cursors maps each editor socket to the field path it announced.
	cursors map[*room.Socket]string

	// Pending durable write, guarded separately so the saver goroutine
	// never touches live room state.
	mu       sync.Mutex
	pending  bool
	payload  string
	title    string
	desc     string
	deadline time.Time

	stopSaver chan struct{}
	saverDone chan struct{}
}

// NewEditRoom builds the edit session room for an episode draft.
func NewEditRoom(eng *Engine, meta *engine.Episode) *room.Room {
	return newEditRoom(eng, meta).room
}

func newEditRoom(eng *Engine, meta *engine.Episode) *editRoom {
	e := &editRoom{
		room:      room.New(),
		eng:       eng,
		meta:      meta,
		current:   ParseEpisode(meta.Data),
		shadow:    make(map[string]any),
		cursors:   make(map[*room.Socket]string),
		stopSaver: make(chan struct{}),
		saverDone: make(chan struct{}),
	}
	e.current.Title = meta.Title
	e.current.Description = meta.Description

	e.room.AddEndpoint(e.editEndpoint())
	e.room.AddEndpoint(e.viewEndpoint())
	e.room.SetDefaultEndpoint("edit")
	e.room.SetStartingEndpoint("edit")

	e.room.OnStop(e.stop)
	go e.saver()
	return e
}

// NewViewRoom builds a read-only CMS view of an episode version.
func NewViewRoom(eng *Engine, meta *engine.Episode) *room.Room {
	e := &editRoom{
		room:    room.New(),
		eng:     eng,
		meta:    meta,
		current: ParseEpisode(meta.Data),
		cursors: make(map[*room.Socket]string),
	}
	e.current.Title = meta.Title
	e.current.Description = meta.Description

	e.room.AddEndpoint(e.viewEndpoint())
	e.room.SetDefaultEndpoint("view")
	e.room.SetStartingEndpoint("view")
	return e.room
}

func (e *editRoom) updateFrame() map[string]any {
	return map[string]any{
		"cmd":     "update",
		"episode": e.current.JSON(),
		"meta": map[string]any{
			"episode_id": e.meta.ID,
			"version":    e.meta.Version,
			"state":      string(e.meta.State),
		},
	}
}

func (e *editRoom) editingFrame() map[string]any {
	editing := make([]map[string]any, 0, len(e.cursors))
	for s, position := range e.cursors {
		username := ""
		if u := s.User(); u != nil {
			username = u.Name
		}
		editing = append(editing, map[string]any{
			"session":  s.ID,
			"username": username,
			"position": position,
		})
	}
	return map[string]any{"cmd": "editing", "editing": editing}
}

// touch queues the current content for a debounced durable write and
// broadcasts the new state to every connected editor.
func (e *editRoom) touch() {
	e.mu.Lock()
	e.pending = true
	e.payload = e.current.Serialise()
	e.title = e.current.Title
	e.desc = e.current.Description
	e.deadline = e.eng.clock.Now().Add(saveDebounce)
	e.mu.Unlock()

	e.room.FanoutLocked()
}

// saver is the background task that turns the debounce deadline into
// durable writes. A failed write stays pending and retries next poll.
func (e *editRoom) saver() {
	defer close(e.saverDone)
	ticker := e.eng.clock.NewTicker(saverPoll)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopSaver:
			return
		case <-ticker.C():
			e.flushIfDue()
		}
	}
}

func (e *editRoom) flushIfDue() {
	e.mu.Lock()
	due := e.pending && e.eng.clock.Now().After(e.deadline)
	e.mu.Unlock()
	if due {
		e.flush()
	}
}

// flush writes the pending content to the store. The lock stays held
// across the meta update and the write so a forced flush and a saver tick
// cannot interleave; a touch arriving meanwhile simply queues again.
func (e *editRoom) flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pending {
		return
	}

	e.meta.Data = e.payload
	e.meta.Title = e.title
	e.meta.Description = e.desc
	if err := e.eng.Save(e.meta); err != nil {
		logging.Error("failed to save episode draft",
			zap.Int64("episode_id", e.meta.ID), zap.Error(err))
		return
	}
	e.pending = false
}

// stop runs on room stop: the saver is awaited, then a final write occurs.
func (e *editRoom) stop() {
	close(e.stopSaver)
	<-e.saverDone
	e.flush()
}

func errFrame(format string, args ...any) map[string]any {
	return map[string]any{"cmd": "error", "message": fmt.Sprintf(format, args...)}
}

func (e *editRoom) editEndpoint() *room.Endpoint {
	ep := room.NewEndpoint("edit")
	ep.View = func() any { return e.updateFrame() }
	ep.OnJoin = func(s *room.Socket) any { return e.updateFrame() }
	ep.OnLeave = func(s *room.Socket) {
		// The disconnect path and the announce path converge here so a
		// vanished editor's cursor cannot linger.
		delete(e.cursors, s)
		ep.BroadcastLocked(e.editingFrame())
	}

	ep.Command("init", func(s *room.Socket, _ map[string]any) any {
		return e.updateFrame()
	})

	ep.Command("set_meta", func(s *room.Socket, args map[string]any) any {
		title, _ := args["title"].(string)
		description, _ := args["description"].(string)
		e.current.Title = title
		e.current.Description = description
		e.touch()
		return nil
	})

	ep.Command("enable_section", func(s *room.Socket, args map[string]any) any {
		name, _ := args["name"].(string)
		if !e.enableSection(name) {
			return errFrame("unknown section %q", name)
		}
		e.touch()
		return nil
	})

	ep.Command("disable_section", func(s *room.Socket, args map[string]any) any {
		name, _ := args["name"].(string)
		if !e.disableSection(name) {
			return errFrame("unknown section %q", name)
		}
		e.touch()
		return nil
	})

	ep.Command("update", func(s *room.Socket, args map[string]any) any {
		section, _ := args["section"].(string)
		question := intArg(args["question"])
		element, _ := args["element"].(string)
		value, _ := args["value"].(string)

		if err := e.applyUpdate(section, question, element, value); err != nil {
			return errFrame("%s", err.Error())
		}
		e.touch()
		return nil
	})

	ep.Command("submit", func(s *room.Socket, _ map[string]any) any {
		if !s.Session.LoggedIn() {
			return errFrame("not authorised")
		}
		e.flushNow()
		if err := e.eng.SaveState(e.meta, engine.StatePendingReview); err != nil {
			return errFrame("submit failed: %s", err.Error())
		}
		e.room.FanoutLocked()
		return map[string]any{"cmd": "submitted", "state": string(e.meta.State)}
	})

	ep.NoLogCommand("announce_editing", func(s *room.Socket, args map[string]any) any {
		element, _ := args["element"].(string)
		e.cursors[s] = element
		ep.BroadcastLocked(e.editingFrame())
		return nil
	})

	return ep
}

// flushNow forces the pending content out regardless of the debounce.
func (e *editRoom) flushNow() {
	e.mu.Lock()
	e.pending = true
	e.payload = e.current.Serialise()
	e.title = e.current.Title
	e.desc = e.current.Description
	e.mu.Unlock()
	e.flush()
}

func (e *editRoom) viewEndpoint() *room.Endpoint {
	ep := room.NewEndpoint("view")
	ep.View = func() any { return e.updateFrame() }
	ep.OnJoin = func(s *room.Socket) any { return e.updateFrame() }

	ep.Command("init", func(s *room.Socket, _ map[string]any) any {
		return e.updateFrame()
	})
	return ep
}

func intArg(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return -1
}

// Section names accepted by enable/disable/update.
const (
	sectionConnections   = "connections"
	sectionCompletions   = "completions"
	sectionWall0         = "wall0"
	sectionWall1         = "wall1"
	sectionMissingVowels = "missing_vowels"
)

func defaultSection() []Question {
	qs := make([]Question, QuestionsPerRound)
	for i := range qs {
		qs[i] = DefaultQuestion()
	}
	return qs
}

func (e *editRoom) enableSection(name string) bool {
	switch name {
	case sectionConnections:
		if e.current.Connections == nil {
			if prev, ok := e.shadow[name].([]Question); ok {
				e.current.Connections = prev
			} else {
				e.current.Connections = defaultSection()
			}
		}
	case sectionCompletions:
		if e.current.Completions == nil {
			if prev, ok := e.shadow[name].([]Question); ok {
				e.current.Completions = prev
			} else {
				e.current.Completions = defaultSection()
			}
		}
	case sectionWall0, sectionWall1:
		if e.current.ConnectingWalls == nil {
			if prev, ok := e.shadow["walls"].([]Wall); ok {
				e.current.ConnectingWalls = prev
			} else {
				e.current.ConnectingWalls = []Wall{DefaultWall(), DefaultWall()}
			}
		}
	case sectionMissingVowels:
		if e.current.MissingVowels == nil {
			if prev, ok := e.shadow[name].([]*MissingVowelsGroup); ok {
				e.current.MissingVowels = prev
			} else {
				e.current.MissingVowels = []*MissingVowelsGroup{}
			}
		}
	default:
		return false
	}
	return true
}

func (e *editRoom) disableSection(name string) bool {
	switch name {
	case sectionConnections:
		if e.current.Connections != nil {
			e.shadow[name] = e.current.Connections
			e.current.Connections = nil
		}
	case sectionCompletions:
		if e.current.Completions != nil {
			e.shadow[name] = e.current.Completions
			e.current.Completions = nil
		}
	case sectionWall0, sectionWall1:
		if e.current.ConnectingWalls != nil {
			e.shadow["walls"] = e.current.ConnectingWalls
			e.current.ConnectingWalls = nil
		}
	case sectionMissingVowels:
		if e.current.MissingVowels != nil {
			e.shadow[name] = e.current.MissingVowels
			e.current.MissingVowels = nil
		}
	default:
		return false
	}
	return true
}

// resolveClue turns an editor value into a clue: "blob::<id>" becomes a
// media reference after checking the blob exists, anything else is text.
func (e *editRoom) resolveClue(value string) (Clue, error) {
	const prefix = "blob::"
	if !strings.HasPrefix(value, prefix) {
		return TextClue(value), nil
	}

	id := strings.TrimPrefix(value, prefix)
	if _, err := e.eng.Store.GetBlob(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Clue{}, fmt.Errorf("unknown blob %q", id)
		}
		return Clue{}, fmt.Errorf("blob lookup failed: %w", err)
	}
	return BlobClue(id), nil
}

func (e *editRoom) applyUpdate(section string, question int, element, value string) error {
	switch section {
	case sectionConnections, sectionCompletions:
		qs := e.current.Connections
		if section == sectionCompletions {
			qs = e.current.Completions
		}
		if qs == nil {
			return fmt.Errorf("section %q is disabled", section)
		}
		if question < 0 || question >= len(qs) {
			return fmt.Errorf("question %d out of range", question)
		}
		return e.updateQuestion(&qs[question], element, value, true)

	case sectionWall0, sectionWall1:
		if e.current.ConnectingWalls == nil {
			return fmt.Errorf("section %q is disabled", section)
		}
		wall := e.current.ConnectingWalls[0]
		if section == sectionWall1 {
			wall = e.current.ConnectingWalls[1]
		}
		if question < 0 || question >= len(wall) {
			return fmt.Errorf("question %d out of range", question)
		}
		// Walls are text only.
		return e.updateQuestion(&wall[question], element, value, false)

	case sectionMissingVowels:
		return e.updateMissingVowels(question, element, value)
	}

	return fmt.Errorf("unknown section %q", section)
}

func (e *editRoom) updateQuestion(q *Question, element, value string, media bool) error {
	switch element {
	case "connection":
		q.Connection = value
		return nil
	case "details":
		q.Details = value
		return nil
	}

	slot, err := strconv.Atoi(element)
	if err != nil || slot < 0 || slot >= SlotsPerConnection {
		return fmt.Errorf("unknown element %q", element)
	}

	clue := TextClue(value)
	if media {
		if clue, err = e.resolveClue(value); err != nil {
			return err
		}
	}
	for len(q.Elements) < SlotsPerConnection {
		q.Elements = append(q.Elements, Clue{})
	}
	q.Elements[slot] = clue
	if clue.IsBlob() {
		q.Type = "media"
	}
	return nil
}

// updateMissingVowels edits group metadata or a word pair. Element paths:
// "connection", or "<pair>.answer" / "<pair>.prompt". Editing one past the
// end of the groups or pairs appends a blank entry first.
func (e *editRoom) updateMissingVowels(group int, element, value string) error {
	if e.current.MissingVowels == nil {
		return fmt.Errorf("section %q is disabled", sectionMissingVowels)
	}

	if group < 0 || group > len(e.current.MissingVowels) {
		return fmt.Errorf("group %d out of range", group)
	}
	if group == len(e.current.MissingVowels) {
		e.current.MissingVowels = append(e.current.MissingVowels, &MissingVowelsGroup{})
	}
	g := e.current.MissingVowels[group]

	if element == "connection" {
		g.Connection = value
		return nil
	}

	field, found := "", false
	var pair int
	if before, after, ok := strings.Cut(element, "."); ok {
		if n, err := strconv.Atoi(before); err == nil {
			pair, field, found = n, after, true
		}
	}
	if !found || (field != "answer" && field != "prompt") {
		return fmt.Errorf("unknown element %q", element)
	}

	if pair < 0 || pair > len(g.Words) {
		return fmt.Errorf("pair %d out of range", pair)
	}
	if pair == len(g.Words) {
		g.Words = append(g.Words, VowelPair{})
	}

	if field == "answer" {
		g.Words[pair].Answer = value
	} else {
		g.Words[pair].Prompt = value
	}
	return nil
}
