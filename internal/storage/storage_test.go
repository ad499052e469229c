package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStoreFrom(map[string]string{"b": "2"})

	require.NoError(t, s.Set("a", "1"))
	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, s.Snapshot())

	require.NoError(t, s.Remove("a"))
	require.NoError(t, s.Remove("missing"))
	_, ok = s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"b": "2"}, s.Snapshot())
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players", "42.json")

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	_, ok := s.Get("score")
	assert.False(t, ok)

	require.NoError(t, s.Set("score", "12"))
	require.NoError(t, s.Set("currentUser", "me"))
	require.NoError(t, s.Remove("currentUser"))

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	v, ok := reopened.Get("score")
	assert.True(t, ok)
	assert.Equal(t, "12", v)
	_, ok = reopened.Get("currentUser")
	assert.False(t, ok)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := OpenFileStore(path)
	assert.Error(t, err)
}

type fakeStateRepo struct {
	mu      sync.Mutex
	values  map[int64]map[string]string
	loadErr error
	putErr  error
}

func (f *fakeStateRepo) Load(ctx context.Context, playerID int64) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[string]string)
	for k, v := range f.values[playerID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStateRepo) Put(ctx context.Context, playerID int64, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	if f.values == nil {
		f.values = make(map[int64]map[string]string)
	}
	if f.values[playerID] == nil {
		f.values[playerID] = make(map[string]string)
	}
	f.values[playerID][key] = value
	return nil
}

func (f *fakeStateRepo) Delete(ctx context.Context, playerID int64, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values[playerID], key)
	return nil
}

func TestPostgresStore_WriteThrough(t *testing.T) {
	repo := &fakeStateRepo{values: map[int64]map[string]string{7: {"score": "3"}}}
	ctx := context.Background()

	s, err := OpenPostgresStore(ctx, repo, 7, 0)
	require.NoError(t, err)

	v, ok := s.Get("score")
	require.True(t, ok)
	assert.Equal(t, "3", v)

	require.NoError(t, s.Set("score", "4"))
	require.NoError(t, s.Remove("score"))
	require.NoError(t, s.Set("buttonTheme", "fire"))
	assert.Equal(t, map[string]string{"buttonTheme": "fire"}, repo.values[7])

	s.Close()
	assert.ErrorIs(t, s.Set("score", "5"), ErrClosed)
	assert.ErrorIs(t, s.Remove("score"), ErrClosed)
}

func TestPostgresStore_Errors(t *testing.T) {
	boom := errors.New("connection refused")

	_, err := OpenPostgresStore(context.Background(), &fakeStateRepo{loadErr: boom}, 1, 0)
	assert.ErrorIs(t, err, boom)

	repo := &fakeStateRepo{}
	s, err := OpenPostgresStore(context.Background(), repo, 1, 0)
	require.NoError(t, err)
	repo.putErr = boom

	assert.ErrorIs(t, s.Set("score", "1"), boom)
	// The in-memory value still changes; storage failures do not block play.
	v, _ := s.Get("score")
	assert.Equal(t, "1", v)
}
