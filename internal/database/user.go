package database

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"strings"
)

func (s *sqliteDB) GetUser(userID int64) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(
		"SELECT id, public_id, first_name, last_name, username, created_at FROM users WHERE id = ?",
		userID,
	).Scan(
		&user.ID,
		&user.PublicID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SaveUser upserts the profile. A user gets a short public ID on first save
// and keeps it across profile updates.
func (s *sqliteDB) SaveUser(user User) error {
	if user.PublicID == "" {
		publicID, err := generatePublicID()
		if err != nil {
			return err
		}
		user.PublicID = publicID
	}

	_, err := s.db.Exec(`
		INSERT INTO users (id, public_id, first_name, last_name, username)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			username = excluded.username,
			public_id = excluded.public_id,
			updated_at = CURRENT_TIMESTAMP
	`, user.ID, user.PublicID, user.FirstName, user.LastName, user.Username)
	return err
}

const publicIDLength = 4

// generatePublicID draws a random 4-character base36 string.
func generatePublicID() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}

	const space = 36 * 36 * 36 * 36
	num := binary.BigEndian.Uint32(buf[:]) % space

	id := strconv.FormatUint(uint64(num), 36)
	return strings.Repeat("0", publicIDLength-len(id)) + id, nil
}
