package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizbox/quizbox/internal/store"
)

func newBase(t *testing.T) (*Base, *store.User) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	author, err := st.ForTwitch(42, "author")
	require.NoError(t, err)
	return &Base{Store: st, Tag: "test_game"}, author
}

func versionStates(t *testing.T, b *Base, episodeID int64) map[int]EpisodeState {
	t.Helper()
	versions, err := b.Store.EpisodeVersions(episodeID)
	require.NoError(t, err)
	out := make(map[int]EpisodeState, len(versions))
	for _, v := range versions {
		out[v.Version] = EpisodeState(v.State)
	}
	return out
}

func TestCreateAndLoadDraft(t *testing.T) {
	b, author := newBase(t)

	id, err := b.CreateEpisode(author.ID, "Fresh")
	require.NoError(t, err)

	ep, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, ep.Version)
	assert.Equal(t, StateDraft, ep.State)
	assert.Equal(t, "Fresh", ep.Title)
	assert.Equal(t, author.ID, ep.AuthorID)
	assert.Empty(t, ep.Data)
}

func TestLoadMissingEpisode(t *testing.T) {
	b, _ := newBase(t)

	_, err := b.LoadEpisode(999, 3)
	assert.ErrorIs(t, err, ErrNoEpisode)
}

func TestSaveWritesDraftOnly(t *testing.T) {
	b, author := newBase(t)
	id, err := b.CreateEpisode(author.ID, "Editable")
	require.NoError(t, err)

	ep, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)

	ep.Title = "Renamed"
	ep.Description = "with notes"
	ep.Data = `{"title":"Renamed"}`
	require.NoError(t, b.Save(ep))

	back, err := b.LoadEpisode(id, ep.Version)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", back.Title)
	assert.Equal(t, "with notes", back.Description)
	assert.Equal(t, ep.Data, back.Data)

	require.NoError(t, b.SaveState(ep, StatePublished))
	err = b.Save(ep)
	assert.ErrorContains(t, err, "cannot save")
}

func TestLoadVersionZeroCreatesDraftFromLatest(t *testing.T) {
	b, author := newBase(t)
	id, err := b.CreateEpisode(author.ID, "Evolving")
	require.NoError(t, err)

	v1, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	v1.Data = `{"round":"one"}`
	require.NoError(t, b.Save(v1))
	require.NoError(t, b.SaveState(v1, StatePublished))

	// No draft exists now, so version 0 copies the latest into a new one.
	v2, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, StateDraft, v2.State)
	assert.Equal(t, v1.Data, v2.Data)

	// Asking again reuses the same draft instead of stacking new ones.
	again, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Version)
}

func TestPublishSupersedesPreviousVersion(t *testing.T) {
	b, author := newBase(t)
	id, err := b.CreateEpisode(author.ID, "Live")
	require.NoError(t, err)

	v1, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	require.NoError(t, b.SaveState(v1, StatePublished))

	v2, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	require.NoError(t, b.SaveState(v2, StatePublished))

	assert.Equal(t, map[int]EpisodeState{
		1: StateSuperseded,
		2: StatePublished,
	}, versionStates(t, b, id))
}

func TestResubmitDiscardsStaleReview(t *testing.T) {
	b, author := newBase(t)
	id, err := b.CreateEpisode(author.ID, "Reviewed")
	require.NoError(t, err)

	v1, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	require.NoError(t, b.SaveState(v1, StatePendingReview))

	v2, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	require.NoError(t, b.SaveState(v2, StatePendingReview))

	// Only one version per episode may sit in review.
	assert.Equal(t, map[int]EpisodeState{
		1: StateDiscarded,
		2: StatePendingReview,
	}, versionStates(t, b, id))
}

func TestSaveStateRefusesTerminalVersions(t *testing.T) {
	b, author := newBase(t)
	id, err := b.CreateEpisode(author.ID, "Done")
	require.NoError(t, err)

	ep, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	require.NoError(t, b.SaveState(ep, StateDiscarded))

	err = b.SaveState(ep, StateDraft)
	assert.ErrorContains(t, err, "terminal")
}

func TestListEpisodesByState(t *testing.T) {
	b, author := newBase(t)

	id1, err := b.CreateEpisode(author.ID, "First")
	require.NoError(t, err)
	id2, err := b.CreateEpisode(author.ID, "Second")
	require.NoError(t, err)

	ep1, err := b.LoadEpisode(id1, 0)
	require.NoError(t, err)
	require.NoError(t, b.SaveState(ep1, StatePendingReview))

	pending, err := b.ListEpisodes(StatePendingReview)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id1, pending[0].ID)

	drafts, err := b.ListEpisodes(StateDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, id2, drafts[0].ID)
}

func TestUserEpisodesPrefersDraft(t *testing.T) {
	b, author := newBase(t)
	other, err := b.Store.ForTwitch(43, "someone else")
	require.NoError(t, err)

	id, err := b.CreateEpisode(author.ID, "Mine")
	require.NoError(t, err)
	_, err = b.CreateEpisode(other.ID, "Theirs")
	require.NoError(t, err)

	v1, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	require.NoError(t, b.SaveState(v1, StatePublished))
	v2, err := b.LoadEpisode(id, 0)
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)

	mine, err := b.UserEpisodes(author.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0].ID)
	assert.Equal(t, 2, mine[0].Version)
	assert.Equal(t, StateDraft, mine[0].State)
}
