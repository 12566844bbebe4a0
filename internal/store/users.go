package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a persistent account tied to a Twitch identity.
type User struct {
	ID       int64  `json:"user_id"`
	Name     string `json:"user_name"`
	TwitchID int64  `json:"-"`
	IsMod    bool   `json:"is_mod"`
}

// Notification is a message delivered to a user's dashboard.
type Notification struct {
	ID        int64     `json:"-"`
	UserID    int64     `json:"-"`
	CreatedAt time.Time `json:"date"`
	IsRead    bool      `json:"is_read"`
	Data      string    `json:"data"`
}

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// GetUser fetches a user by id.
func (s *Store) GetUser(id int64) (*User, error) {
	u := &User{}
	err := s.db.QueryRow(
		"SELECT user_id, user_name, twitch_id, is_mod FROM User WHERE user_id = ?", id,
	).Scan(&u.ID, &u.Name, &u.TwitchID, &u.IsMod)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ForTwitch returns the user for a Twitch identity, creating one on first
// login.
func (s *Store) ForTwitch(twitchID int64, displayName string) (*User, error) {
	u := &User{}
	err := s.db.QueryRow(
		"SELECT user_id, user_name, twitch_id, is_mod FROM User WHERE twitch_id = ?", twitchID,
	).Scan(&u.ID, &u.Name, &u.TwitchID, &u.IsMod)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up twitch user: %w", err)
	}

	res, err := s.db.Exec(
		"INSERT INTO User (twitch_id, user_name) VALUES (?, ?)", twitchID, displayName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}

	return s.GetUser(id)
}

// Notifications returns every notification for a user, newest first.
func (s *Store) Notifications(userID int64) ([]Notification, error) {
	rows, err := s.db.Query(
		`SELECT notification_id, user_id, created_at, is_read, data
		 FROM Notification WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.CreatedAt, &n.IsRead, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadNotificationCount returns the number of unread notifications.
func (s *Store) UnreadNotificationCount(userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(0) FROM Notification WHERE user_id = ? AND is_read = 0", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// SendNotification records a notification for a user.
func (s *Store) SendNotification(userID int64, message string) error {
	_, err := s.db.Exec(
		"INSERT INTO Notification (user_id, data) VALUES (?, ?)", userID, message,
	)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// MarkNotificationsRead marks every notification for a user as read.
func (s *Store) MarkNotificationsRead(userID int64) error {
	_, err := s.db.Exec(
		"UPDATE Notification SET is_read = 1 WHERE user_id = ?", userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
