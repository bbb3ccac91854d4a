package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "syncmld.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNonceUpsertGetClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "server1", "client1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Upsert(ctx, "server1", "client1", "abc123"))
	nonce, found, err := s.Get(ctx, "server1", "client1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc123", nonce)

	require.NoError(t, s.Clear(ctx, "server1", "client1"))
	_, found, err = s.Get(ctx, "server1", "client1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGenerateProducesDistinctNonces(t *testing.T) {
	s := openTestStore(t)
	a, err := s.Generate()
	require.NoError(t, err)
	b, err := s.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}

func TestChangelogLoadSaveRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry, err := s.Load(ctx, "deviceA", "./card", model.DirFromClient)
	require.NoError(t, err)
	assert.Equal(t, &ports.ChangelogEntry{}, entry)

	want := &ports.ChangelogEntry{Anchor: "123", Added: []string{"a"}, Modified: []string{"b"}, Removed: []string{"c"}}
	require.NoError(t, s.Save(ctx, "deviceA", "./card", model.DirFromClient, want))

	got, err := s.Load(ctx, "deviceA", "./card", model.DirFromClient)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	other, err := s.Load(ctx, "deviceA", "./card", model.DirFromServer)
	require.NoError(t, err)
	assert.Equal(t, &ports.ChangelogEntry{}, other, "direction is part of the key")
}

func TestSaveSessionPersists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snapshot := ports.SessionSnapshot{
		RemoteDevice: "deviceA",
		Targets: []ports.TargetSnapshot{
			{SourceURI: "./card", LocalLastAnchor: "1", RemoteLastAnchor: "1"},
		},
	}
	require.NoError(t, s.SaveSession(ctx, snapshot))
}
