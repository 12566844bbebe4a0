package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// BlobInfo is the metadata row for one content-addressed blob. The bytes
// themselves live on disk under the blob directory, keyed by ID.
type BlobInfo struct {
	ID     string `json:"blob_id"`
	Mime   string `json:"mime"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// GetBlob fetches blob metadata by content id.
func (s *Store) GetBlob(id string) (*BlobInfo, error) {
	b := &BlobInfo{}
	err := s.db.QueryRow(
		"SELECT blob_id, mime, width, height FROM Blob WHERE blob_id = ?", id,
	).Scan(&b.ID, &b.Mime, &b.Width, &b.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return b, nil
}

// InsertBlob records blob metadata. Inserting the same id twice is a no-op,
// which makes uploads idempotent.
func (s *Store) InsertBlob(b *BlobInfo) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO Blob (blob_id, mime, width, height) VALUES (?, ?, ?, ?)",
		b.ID, b.Mime, b.Width, b.Height,
	)
	if err != nil {
		return fmt.Errorf("failed to insert blob: %w", err)
	}
	return nil
}
