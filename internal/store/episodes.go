package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EpisodeHeader is the per-episode row: ownership and display metadata
// shared by all versions.
type EpisodeHeader struct {
	ID          int64
	Engine      string
	UserID      int64
	Title       string
	Description string
}

// VersionInfo summarises one version of an episode.
type VersionInfo struct {
	Version int
	State   string
	Updated time.Time
}

// VersionRow is one fully loaded episode version.
type VersionRow struct {
	EpisodeHeader
	Version int
	State   string
	Data    string
}

// EpisodeHeader fetches an episode's header row, scoped to an engine.
func (s *Store) EpisodeHeader(engine string, episodeID int64) (*EpisodeHeader, error) {
	h := &EpisodeHeader{}
	err := s.db.QueryRow(
		`SELECT episode_id, game_engine, user_id, title, description
		 FROM Episode WHERE game_engine = ? AND episode_id = ?`, engine, episodeID,
	).Scan(&h.ID, &h.Engine, &h.UserID, &h.Title, &h.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	return h, nil
}

// EpisodeVersions lists every version of an episode with state and timestamp.
func (s *Store) EpisodeVersions(episodeID int64) ([]VersionInfo, error) {
	rows, err := s.db.Query(
		"SELECT version, state, version_updated FROM EpisodeVersion WHERE episode_id = ?",
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var out []VersionInfo
	for rows.Next() {
		var v VersionInfo
		if err := rows.Scan(&v.Version, &v.State, &v.Updated); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DraftVersion returns the episode's current DRAFT version number, or
// ErrNotFound when no draft exists.
func (s *Store) DraftVersion(episodeID int64) (int, error) {
	var version int
	err := s.db.QueryRow(
		"SELECT version FROM EpisodeVersion WHERE episode_id = ? AND state = 'DRAFT'",
		episodeID,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find draft: %w", err)
	}
	return version, nil
}

// CopyLatestToDraft creates a new DRAFT version by copying the contents of
// the latest existing version and incrementing the version number. Returns
// the new version number.
func (s *Store) CopyLatestToDraft(episodeID int64) (int, error) {
	var latest sql.NullInt64
	err := s.db.QueryRow(
		"SELECT MAX(version) FROM EpisodeVersion WHERE episode_id = ?", episodeID,
	).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("failed to find latest version: %w", err)
	}
	if !latest.Valid {
		return 0, fmt.Errorf("no versions for episode %d", episodeID)
	}

	_, err = s.db.Exec(
		`INSERT INTO EpisodeVersion (episode_id, version, data)
		 SELECT episode_id, version + 1, data
		 FROM EpisodeVersion WHERE episode_id = ? AND version = ?`,
		episodeID, latest.Int64,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create draft: %w", err)
	}

	return int(latest.Int64) + 1, nil
}

// EpisodeVersion loads a single episode version with its content blob.
func (s *Store) EpisodeVersion(engine string, episodeID int64, version int) (*VersionRow, error) {
	row := &VersionRow{}
	err := s.db.QueryRow(
		`SELECT e.episode_id, e.game_engine, e.user_id, e.title, e.description,
		        v.version, v.state, v.data
		 FROM Episode e JOIN EpisodeVersion v ON e.episode_id = v.episode_id
		 WHERE e.game_engine = ? AND e.episode_id = ? AND v.version = ?`,
		engine, episodeID, version,
	).Scan(
		&row.ID, &row.Engine, &row.UserID, &row.Title, &row.Description,
		&row.Version, &row.State, &row.Data,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load episode version: %w", err)
	}
	return row, nil
}

// LatestByState lists, per episode, the highest version currently in the
// given lifecycle state.
func (s *Store) LatestByState(engine, state string) ([]VersionRow, error) {
	rows, err := s.db.Query(
		`SELECT e.episode_id, e.game_engine, e.user_id, e.title, e.description,
		        MAX(v.version) AS version, v.state, v.data
		 FROM Episode e JOIN EpisodeVersion v ON e.episode_id = v.episode_id
		 WHERE e.game_engine = ? AND v.state = ?
		 GROUP BY e.episode_id`,
		engine, state,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var out []VersionRow
	for rows.Next() {
		var row VersionRow
		if err := rows.Scan(
			&row.ID, &row.Engine, &row.UserID, &row.Title, &row.Description,
			&row.Version, &row.State, &row.Data,
		); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UserEpisodeHeaders lists every episode a user owns for an engine.
func (s *Store) UserEpisodeHeaders(engine string, userID int64) ([]EpisodeHeader, error) {
	rows, err := s.db.Query(
		`SELECT episode_id, game_engine, user_id, title, description
		 FROM Episode WHERE game_engine = ? AND user_id = ?`,
		engine, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeHeader
	for rows.Next() {
		var h EpisodeHeader
		if err := rows.Scan(&h.ID, &h.Engine, &h.UserID, &h.Title, &h.Description); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CreateEpisode inserts a new episode with an empty version 1 draft.
func (s *Store) CreateEpisode(engine string, userID int64, title string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO Episode (game_engine, user_id, title, description) VALUES (?, ?, ?, '')",
		engine, userID, title,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create episode: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get episode id: %w", err)
	}

	if _, err := s.db.Exec(
		"INSERT INTO EpisodeVersion (episode_id, version, data) VALUES (?, 1, '')", id,
	); err != nil {
		return 0, fmt.Errorf("failed to create first version: %w", err)
	}

	return id, nil
}

// SaveEpisodeMeta updates an episode's title and description.
func (s *Store) SaveEpisodeMeta(engine string, episodeID int64, title, description string) error {
	_, err := s.db.Exec(
		"UPDATE Episode SET title = ?, description = ? WHERE game_engine = ? AND episode_id = ?",
		title, description, engine, episodeID,
	)
	if err != nil {
		return fmt.Errorf("failed to save episode meta: %w", err)
	}
	return nil
}

// SaveDraftData writes an episode version's content blob. Only DRAFT
// versions are writable.
func (s *Store) SaveDraftData(episodeID int64, version int, data string) error {
	_, err := s.db.Exec(
		`UPDATE EpisodeVersion SET data = ?, version_updated = CURRENT_TIMESTAMP
		 WHERE episode_id = ? AND version = ? AND state = 'DRAFT'`,
		data, episodeID, version,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// SetVersionState moves one version from one lifecycle state to another.
// The old state is a predicate, not a convenience: the update applies only
// if the version is still in that state.
func (s *Store) SetVersionState(episodeID int64, version int, oldState, newState string) error {
	_, err := s.db.Exec(
		`UPDATE EpisodeVersion SET state = ?, version_updated = CURRENT_TIMESTAMP
		 WHERE episode_id = ? AND version = ? AND state = ?`,
		newState, episodeID, version, oldState,
	)
	if err != nil {
		return fmt.Errorf("failed to set version state: %w", err)
	}
	return nil
}

// DemoteOtherVersions moves every version of an episode other than the
// named one out of fromState into toState. Used to keep PUBLISHED and
// PENDING_REVIEW unique per episode.
func (s *Store) DemoteOtherVersions(episodeID int64, keepVersion int, fromState, toState string) error {
	_, err := s.db.Exec(
		"UPDATE EpisodeVersion SET state = ? WHERE episode_id = ? AND state = ? AND version != ?",
		toState, episodeID, fromState, keepVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to demote versions: %w", err)
	}
	return nil
}
