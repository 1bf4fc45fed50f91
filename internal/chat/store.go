package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/akidev/akibot/internal/ai"
	"github.com/akidev/akibot/internal/database"
	"github.com/akidev/akibot/internal/logger"
)

const snapshotVersion = 1

var (
	// ErrNotInitialized means no session exists for the key yet.
	ErrNotInitialized = errors.New("conversation not initialized")
	// ErrPersist wraps failures writing the snapshot; the in-memory turns
	// survive so the exchange is not lost.
	ErrPersist = errors.New("failed to persist conversation")
)

// snapshot is the durable form of a conversation: a versioned, self-describing
// JSON document stored as a single row per user key.
type snapshot struct {
	Version int          `json:"version"`
	Turns   []ai.Content `json:"turns"`
}

// UserKey builds the storage key for a user. Spaces in the username become
// underscores and an absent username falls back to "unknown", so a user keeps
// the same history even if their display data is odd.
func UserKey(userID int64, username string) string {
	username = strings.ReplaceAll(strings.TrimSpace(username), " ", "_")
	if username == "" {
		username = "unknown"
	}
	return fmt.Sprintf("%s_%d", username, userID)
}

// Store keeps one Session per user key, loading and seeding lazily.
type Store struct {
	db     database.Database
	logger logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(db database.Database, log logger.Logger) *Store {
	return &Store{
		db:       db,
		logger:   log,
		sessions: make(map[string]*Session),
	}
}

// Initialize returns the session for the user, creating it if needed. A new
// session is restored from its snapshot when one exists; otherwise it is
// seeded with the system instruction as its first turn. A broken snapshot is
// logged and replaced by a fresh seeded history rather than failing the user.
func (s *Store) Initialize(ctx context.Context, userID int64, username, systemPrompt string) *Session {
	key := UserKey(userID, username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess
	}

	sess := &Session{
		store:  s,
		key:    key,
		userID: userID,
		turns:  s.loadTurns(ctx, key, systemPrompt),
	}
	s.sessions[key] = sess
	return sess
}

func (s *Store) loadTurns(ctx context.Context, key, systemPrompt string) []ai.Content {
	seed := []ai.Content{ai.NewTextContent(ai.RoleUser, systemPrompt)}

	data, err := s.db.GetConversation(ctx, key)
	if errors.Is(err, database.ErrConversationNotFound) {
		return seed
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).
			Warn("Failed to load conversation, starting fresh")
		return seed
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Version != snapshotVersion || len(snap.Turns) == 0 {
		s.logger.WithFields(logger.Fields{
			"key":     key,
			"version": snap.Version,
		}).Warn("Conversation snapshot unreadable, starting fresh")
		return seed
	}

	return snap.Turns
}

// Get returns an already-initialized session.
func (s *Store) Get(userID int64, username string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[UserKey(userID, username)]
	if !ok {
		return nil, ErrNotInitialized
	}
	return sess, nil
}

// Clear drops the user's history from memory and storage. Clearing a user
// with no history is a no-op.
func (s *Store) Clear(ctx context.Context, userID int64, username string) error {
	key := UserKey(userID, username)

	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()

	if err := s.db.DeleteConversation(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Session is one user's conversation. All mutation happens under the session
// lock, so concurrent messages from the same user serialize their
// append-and-persist sequences.
type Session struct {
	store  *Store
	key    string
	userID int64

	mu    sync.Mutex
	turns []ai.Content
}

func (s *Session) Key() string {
	return s.key
}

// History returns a copy of the turns, oldest first.
func (s *Session) History() []ai.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.Content(nil), s.turns...)
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Append adds turns and persists the snapshot in one critical section. On a
// persist failure the turns stay in memory and ErrPersist is returned so the
// caller can warn the user.
func (s *Session) Append(ctx context.Context, turns ...ai.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turns...)
	return s.persistLocked(ctx)
}

// Replace swaps the whole history (used after context-window trimming) and
// persists it.
func (s *Session) Replace(ctx context.Context, turns []ai.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append([]ai.Content(nil), turns...)
	return s.persistLocked(ctx)
}

func (s *Session) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(snapshot{
		Version: snapshotVersion,
		Turns:   s.turns,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	if err := s.store.db.SaveConversation(ctx, s.key, s.userID, data); err != nil {
		s.store.logger.WithError(err).WithField("key", s.key).
			Error("Failed to save conversation snapshot")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
