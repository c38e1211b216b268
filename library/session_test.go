package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingroom/domain"
)

var sample = domain.Session{
	Token:   "access-token",
	Refresh: "refresh-token",
	User:    domain.Profile{ID: 3, Username: "ana", UserLevel: "librarian"},
}

func sqliteStore(t *testing.T, path string) *SQLiteSessionStore {
	t.Helper()
	s, err := NewSQLiteSessionStore(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func redisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisSessionStore(mr.Addr(), "", 0, "", nil)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func exerciseStore(t *testing.T, s SessionStore) {
	ctx := context.Background()

	_, ok := s.Get(ctx)
	assert.False(t, ok, "empty store has no session")

	require.NoError(t, s.Set(ctx, sample))
	got, ok := s.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, sample, got)

	next := sample
	next.Token = "second"
	next.User.Username = "ben"
	require.NoError(t, s.Set(ctx, next))
	got, _ = s.Get(ctx)
	assert.Equal(t, next, got, "set overwrites the whole record")

	require.NoError(t, s.Clear(ctx))
	_, ok = s.Get(ctx)
	assert.False(t, ok)
	require.NoError(t, s.Clear(ctx), "clearing twice is fine")
}

func TestSQLiteSessionStore(t *testing.T) {
	exerciseStore(t, sqliteStore(t, filepath.Join(t.TempDir(), "session.db")))
}

func TestRedisSessionStore(t *testing.T) {
	s, mr := redisStore(t)
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), sample))
	v, err := mr.Get("readingroom:session:token")
	require.NoError(t, err)
	assert.Equal(t, "access-token", v)
}

func TestSQLiteSessionSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	first, err := NewSQLiteSessionStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, sample))
	require.NoError(t, first.Close())

	second := sqliteStore(t, path)
	got, ok := second.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, sample.User.Username, got.User.Username)
}

func TestCorruptProfileReadsAsAbsent(t *testing.T) {
	s := sqliteStore(t, filepath.Join(t.TempDir(), "session.db"))
	ctx := context.Background()
	require.NoError(t, s.db.SetAll(ctx, map[string]string{keyToken: "tok", keyUser: "{not json"}))

	_, ok := s.Get(ctx)
	assert.False(t, ok)
}

func TestRedisUnavailableReadsAsAbsent(t *testing.T) {
	s, mr := redisStore(t)
	mr.SetError("LOADING Redis is loading the dataset in memory")
	_, ok := s.Get(context.Background())
	assert.False(t, ok)
	assert.Error(t, s.Set(context.Background(), sample))
}

type failingStore struct {
	SessionStore
	clearErr error
}

func (f failingStore) Clear(ctx context.Context) error {
	_ = f.SessionStore.Clear(ctx)
	return f.clearErr
}

func TestSessionContextLifecycle(t *testing.T) {
	store := sqliteStore(t, filepath.Join(t.TempDir(), "session.db"))
	ctx := context.Background()
	sc := NewSessionContext(store, nil)

	_, ok := sc.Init(ctx)
	assert.False(t, ok)
	assert.Empty(t, sc.Token())

	var events []bool
	sc.Subscribe(func(_ domain.Session, live bool) { events = append(events, live) })

	require.NoError(t, sc.Begin(ctx, sample))
	assert.Equal(t, "access-token", sc.Token())

	require.NoError(t, sc.UpdateToken(ctx, "rotated"))
	assert.Equal(t, "rotated", sc.Token())

	// A fresh context over the same store sees the persisted session.
	restored, ok := NewSessionContext(store, nil).Init(ctx)
	require.True(t, ok)
	assert.Equal(t, "rotated", restored.Token)
	assert.Equal(t, "ana", restored.User.Username)

	require.NoError(t, sc.End(ctx))
	_, ok = sc.Current()
	assert.False(t, ok)
	assert.Equal(t, []bool{true, true, false}, events)

	assert.ErrorIs(t, sc.UpdateToken(ctx, "x"), ErrNoSession)
	assert.Error(t, sc.Begin(ctx, domain.Session{}), "a session needs a token")
}

func TestEndDropsSessionEvenWhenStoreFails(t *testing.T) {
	inner := sqliteStore(t, filepath.Join(t.TempDir(), "session.db"))
	boom := errors.New("disk full")
	sc := NewSessionContext(failingStore{SessionStore: inner, clearErr: boom}, nil)
	ctx := context.Background()

	require.NoError(t, sc.Begin(ctx, sample))
	assert.ErrorIs(t, sc.End(ctx), boom)
	_, ok := sc.Current()
	assert.False(t, ok)
}
