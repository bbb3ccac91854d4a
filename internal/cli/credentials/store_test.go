package credentials

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewStoreAt(path)
	require.NoError(t, err)

	_, err = store.Get("phone")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("phone", Credential{AuthUser: "alice", AuthPass: "s3cret"}))

	cred, err := store.Get("phone")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.AuthUser)
	assert.Equal(t, "s3cret", cred.AuthPass)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewStoreAt(path)
	require.NoError(t, err)
	require.NoError(t, store.Set("tablet", Credential{AuthUser: "bob", AuthPass: "hunter2"}))

	reopened, err := NewStoreAt(path)
	require.NoError(t, err)
	cred, err := reopened.Get("tablet")
	require.NoError(t, err)
	assert.Equal(t, "bob", cred.AuthUser)
}

func TestStoreDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewStoreAt(path)
	require.NoError(t, err)
	require.NoError(t, store.Set("phone", Credential{AuthUser: "alice", AuthPass: "s3cret"}))
	require.NoError(t, store.Delete("phone"))

	_, err = store.Get("phone")
	assert.ErrorIs(t, err, ErrNotFound)
}
