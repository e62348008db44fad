// Package session owns the persisted {token, user} pair. Nothing else in
// the client writes it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"fdss/internal/domain"
	"fdss/internal/logger"
)

// Store is safe for use from the event loop and from transport goroutines.
type Store struct {
	mu  sync.Mutex
	kv  domain.KeyValueStore
	log logger.Logger
}

func NewStore(kv domain.KeyValueStore, log logger.Logger) *Store {
	return &Store{kv: kv, log: log.With("component", "session")}
}

// Load returns the stored session or nil. Corrupt state is cleared here
// and reported as absent.
func (s *Store) Load(ctx context.Context) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) *domain.Session {
	vals, err := s.kv.GetMany(ctx, domain.SessionTokenKey, domain.SessionUserKey)
	if err != nil && !errors.Is(err, domain.ErrCorruptSession) {
		s.log.Error("failed to read session", "error", err)
		return nil
	}

	var sess *domain.Session
	if err == nil {
		sess, err = decode(vals)
	}
	if err != nil {
		s.log.Warn("discarding persisted session", "error", err)
		if err := s.kv.DeleteMany(ctx, domain.SessionTokenKey, domain.SessionUserKey); err != nil {
			s.log.Error("failed to clear corrupt session", "error", err)
		}
		return nil
	}

	return sess
}

func decode(vals map[string]string) (*domain.Session, error) {
	token, hasToken := vals[domain.SessionTokenKey]
	rawUser, hasUser := vals[domain.SessionUserKey]

	if !hasToken && !hasUser {
		return nil, nil
	}
	if !hasToken || !hasUser {
		return nil, fmt.Errorf("%w: partial session", domain.ErrCorruptSession)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrCorruptSession)
	}
	if rawUser == "" || rawUser == "undefined" || rawUser == "null" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrCorruptSession)
	}

	var user domain.UserProfile
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptSession, err)
	}
	if user.Email == "" || !user.Role.Valid() {
		return nil, fmt.Errorf("%w: user is missing email or role", domain.ErrCorruptSession)
	}

	return &domain.Session{Token: token, User: &user}, nil
}

// Save replaces token and user in one write.
func (s *Store) Save(ctx context.Context, sess *domain.Session) error {
	if !sess.Complete() {
		return domain.ErrIncompleteSession
	}

	rawUser, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("session marshal failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.SetMany(ctx, map[string]string{
		domain.SessionTokenKey: sess.Token,
		domain.SessionUserKey:  string(rawUser),
	}); err != nil {
		return fmt.Errorf("session save failed: %w", err)
	}

	s.log.Debug("session saved", "email", sess.User.Email)
	return nil
}

// UpdateUser swaps the user of the current session and keeps its token.
// It reports false when no session exists anymore.
func (s *Store) UpdateUser(ctx context.Context, user *domain.UserProfile) (bool, error) {
	if user == nil {
		return false, domain.ErrIncompleteSession
	}

	rawUser, err := json.Marshal(user)
	if err != nil {
		return false, fmt.Errorf("session marshal failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load(ctx)
	if current == nil {
		return false, nil
	}

	if err := s.kv.SetMany(ctx, map[string]string{
		domain.SessionTokenKey: current.Token,
		domain.SessionUserKey:  string(rawUser),
	}); err != nil {
		return false, fmt.Errorf("session save failed: %w", err)
	}

	return true, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.DeleteMany(ctx, domain.SessionTokenKey, domain.SessionUserKey); err != nil {
		return fmt.Errorf("session clear failed: %w", err)
	}

	s.log.Debug("session cleared")
	return nil
}

func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return s.Load(ctx) != nil
}

// Token is what the transport attaches as bearer credential.
func (s *Store) Token(ctx context.Context) string {
	if sess := s.Load(ctx); sess != nil {
		return sess.Token
	}
	return ""
}
