package library

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"readingroom/domain"
)

// Persisted keys. "user" holds the serialized profile, "token" the raw bearer token.
const (
	keyUser    = "user"
	keyToken   = "token"
	keyRefresh = "refresh"
)

// SessionStore persists the single live session.
type SessionStore interface {
	// Get returns the persisted session, or false when none is stored.
	// A missing or unreadable record reads as absent.
	Get(ctx context.Context) (domain.Session, bool)
	// Set overwrites any prior session as one record.
	Set(ctx context.Context, s domain.Session) error
	// Clear removes token, refresh token and profile.
	Clear(ctx context.Context) error
	Close() error
}

// SQLiteSessionStore keeps the session in a local SQLite file.
type SQLiteSessionStore struct {
	db     *Database
	logger *zap.Logger
}

// NewSQLiteSessionStore opens (or creates) the session file at path.
func NewSQLiteSessionStore(path string, logger *zap.Logger) (*SQLiteSessionStore, error) {
	db, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteSessionStore{db: db, logger: logger}, nil
}

func (s *SQLiteSessionStore) Get(ctx context.Context) (domain.Session, bool) {
	token, ok, err := s.db.Get(ctx, keyToken)
	if err != nil {
		s.logger.Warn("Failed to read session token", zap.Error(err))
		return domain.Session{}, false
	}
	if !ok || token == "" {
		return domain.Session{}, false
	}
	rawUser, _, err := s.db.Get(ctx, keyUser)
	if err != nil {
		s.logger.Warn("Failed to read session profile", zap.Error(err))
		return domain.Session{}, false
	}
	refresh, _, err := s.db.Get(ctx, keyRefresh)
	if err != nil {
		s.logger.Warn("Failed to read refresh token", zap.Error(err))
		return domain.Session{}, false
	}
	return decodeSession(token, refresh, rawUser, s.logger)
}

func (s *SQLiteSessionStore) Set(ctx context.Context, sess domain.Session) error {
	pairs, err := encodeSession(sess)
	if err != nil {
		return err
	}
	if err := s.db.SetAll(ctx, pairs); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Clear(ctx context.Context) error {
	if err := s.db.DeleteAll(ctx, keyUser, keyToken, keyRefresh); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Close() error { return s.db.Close() }

func encodeSession(sess domain.Session) (map[string]string, error) {
	user, err := json.Marshal(sess.User)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return map[string]string{
		keyUser:    string(user),
		keyToken:   sess.Token,
		keyRefresh: sess.Refresh,
	}, nil
}

func decodeSession(token, refresh, rawUser string, logger *zap.Logger) (domain.Session, bool) {
	sess := domain.Session{Token: token, Refresh: refresh}
	if rawUser != "" {
		if err := json.Unmarshal([]byte(rawUser), &sess.User); err != nil {
			logger.Warn("Discarding unreadable session profile", zap.Error(err))
			return domain.Session{}, false
		}
	}
	return sess, true
}

// SessionContext is the injectable owner of the live session. It is loaded
// once at start (Init), replaced on login (Begin) and torn down on logout
// (End). Dependents register with Subscribe instead of reading storage.
type SessionContext struct {
	store  SessionStore
	logger *zap.Logger

	mu      sync.RWMutex
	current domain.Session
	live    bool
	subs    []func(domain.Session, bool)
}

func NewSessionContext(store SessionStore, logger *zap.Logger) *SessionContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionContext{store: store, logger: logger}
}

// Init reads the persisted session, deciding the initial routing state.
func (c *SessionContext) Init(ctx context.Context) (domain.Session, bool) {
	sess, ok := c.store.Get(ctx)
	c.mu.Lock()
	c.current, c.live = sess, ok && sess.Valid()
	c.mu.Unlock()
	if c.live {
		c.logger.Debug("Restored session", zap.String("username", sess.User.Username))
	}
	return c.Current()
}

// Begin persists sess and makes it current.
func (c *SessionContext) Begin(ctx context.Context, sess domain.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("session: token is required")
	}
	if err := c.store.Set(ctx, sess); err != nil {
		return err
	}
	c.mu.Lock()
	c.current, c.live = sess, true
	subs := append([]func(domain.Session, bool){}, c.subs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(sess, true)
	}
	return nil
}

// UpdateToken swaps the access token of the live session, keeping the profile.
func (c *SessionContext) UpdateToken(ctx context.Context, token string) error {
	sess, ok := c.Current()
	if !ok {
		return ErrNoSession
	}
	sess.Token = token
	return c.Begin(ctx, sess)
}

// End clears the stored session and notifies dependents. The in-memory
// session is dropped even when the store fails.
func (c *SessionContext) End(ctx context.Context) error {
	err := c.store.Clear(ctx)

	c.mu.Lock()
	c.current, c.live = domain.Session{}, false
	subs := append([]func(domain.Session, bool){}, c.subs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(domain.Session{}, false)
	}
	return err
}

// Current returns the live session, or false when logged out.
func (c *SessionContext) Current() (domain.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.live
}

// Token implements api.TokenSource.
func (c *SessionContext) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.live {
		return ""
	}
	return c.current.Token
}

// Subscribe registers fn to be called after every Begin and End.
func (c *SessionContext) Subscribe(fn func(domain.Session, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}
