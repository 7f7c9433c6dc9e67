// Package session keeps the signed-in employee of a terminal. It is loaded at
// start, set on login and cleared on logout; nothing reads tokens from
// anywhere else.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/security"
)

var ErrNoSession = errors.New("no active session")

// Session is the decoded view of the stored token.
type Session struct {
	Token     string    `yaml:"token"`
	UserID    int64     `yaml:"user_id"`
	Username  string    `yaml:"username"`
	Name      string    `yaml:"name,omitempty"`
	RawRole   string    `yaml:"role"`
	BranchID  int64     `yaml:"branch_id"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
	SavedAt   time.Time `yaml:"saved_at"`
}

func (s *Session) Role() domain.Role {
	return domain.NormalizeRole(s.RawRole)
}

// Expired reports whether the token's own expiry has passed. A token without
// an expiry never expires locally; the backend still decides.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Store struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	current *Session
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// DefaultPath is where rentalwatch keeps its session unless told otherwise.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "rentalwatch", "session.yaml")
}

// Load reads the session file. A missing file or an expired token leaves the
// store signed out without error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.setCurrent(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return fmt.Errorf("parse session: %w", err)
	}
	if sess.Token == "" || sess.Expired(s.now()) {
		logger.Info("Stored session is empty or expired, signing out", "path", s.path)
		s.setCurrent(nil)
		return nil
	}
	s.setCurrent(&sess)
	return nil
}

// Set installs a new token and persists it.
func (s *Store) Set(token string) (*Session, error) {
	claims, err := security.ParseUnverified(token)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		Token:    token,
		UserID:   claims.UserID,
		Username: claims.Username,
		Name:     claims.Name,
		RawRole:  claims.Role,
		BranchID: claims.BranchID,
		SavedAt:  s.now().UTC(),
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}

	data, err := yaml.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write session: %w", err)
	}

	s.setCurrent(sess)
	logger.Info("Session stored", "username", sess.Username, "role", sess.Role(), "branch_id", sess.BranchID)
	return sess, nil
}

// Clear signs out and removes the file.
func (s *Store) Clear() error {
	s.setCurrent(nil)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Current returns the active session, or ErrNoSession.
func (s *Store) Current() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Expired(s.now()) {
		return nil, ErrNoSession
	}
	cp := *s.current
	return &cp, nil
}

// Token implements client.TokenSource.
func (s *Store) Token() string {
	sess, err := s.Current()
	if err != nil {
		return ""
	}
	return sess.Token
}

func (s *Store) setCurrent(sess *Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}
